package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/calverley/cecd/internal/cec"
	"github.com/calverley/cecd/internal/infrastructure/config"
)

// Logger interface for structured logging.
// Compatible with slog.Logger and logging package.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// DeviceRecord is one row of the device table: a logical address seen
// initiating traffic on the bus.
type DeviceRecord struct {
	Address    cec.LogicalAddr `json:"address"`
	Name       string          `json:"name"`
	LastSeen   time.Time       `json:"last_seen"`
	FrameCount int64           `json:"frame_count"`
}

// OpcodeRecord is one row of the opcode table.
type OpcodeRecord struct {
	Opcode     cec.Opcode `json:"opcode"`
	Name       string     `json:"name"`
	LastSeen   time.Time  `json:"last_seen"`
	FrameCount int64      `json:"frame_count"`
}

// Journal passively records devices and opcodes seen on the CEC bus.
// It is wired as a dispatcher observer and called for every parsed
// inbound frame, building a database of bus activity over time.
//
// Thread Safety: All methods are safe for concurrent use.
type Journal struct {
	cfg    config.JournalConfig
	logger Logger

	db *sql.DB

	// Prepared statements for upserts (created once, reused)
	deviceUpsertStmt *sql.Stmt
	opcodeUpsertStmt *sql.Stmt
	stmtMu           sync.Mutex

	// Shutdown coordination
	closed bool
	mu     sync.RWMutex
}

// New creates a journal for the given configuration.
// Call Start before wiring it as an observer.
func New(cfg config.JournalConfig) *Journal {
	return &Journal{
		cfg: cfg,
	}
}

// SetLogger sets the logger for the journal.
func (j *Journal) SetLogger(logger Logger) {
	j.logger = logger
}

// Start opens the database, applies the schema, and prepares the
// upsert statements. Calling Start on a started journal is a no-op.
func (j *Journal) Start() error {
	j.stmtMu.Lock()
	defer j.stmtMu.Unlock()

	if j.db != nil {
		return nil // Already started
	}

	db, err := openDatabase(j.cfg.Path, j.cfg.WALMode, j.cfg.BusyTimeout)
	if err != nil {
		return err
	}

	deviceStmt, err := db.Prepare(`
		INSERT INTO cec_devices (logical_address, name, last_seen, frame_count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(logical_address) DO UPDATE SET
			last_seen = excluded.last_seen,
			frame_count = frame_count + 1
	`)
	if err != nil {
		db.Close()
		return fmt.Errorf("preparing device upsert statement: %w", err)
	}

	opcodeStmt, err := db.Prepare(`
		INSERT INTO cec_opcodes (opcode, name, last_seen, frame_count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(opcode) DO UPDATE SET
			last_seen = excluded.last_seen,
			frame_count = frame_count + 1
	`)
	if err != nil {
		deviceStmt.Close()
		db.Close()
		return fmt.Errorf("preparing opcode upsert statement: %w", err)
	}

	j.db = db
	j.deviceUpsertStmt = deviceStmt
	j.opcodeUpsertStmt = opcodeStmt

	j.mu.Lock()
	j.closed = false
	j.mu.Unlock()

	j.log("journal started", "path", j.cfg.Path)
	return nil
}

// Stop closes the journal and releases resources.
func (j *Journal) Stop() {
	j.mu.Lock()
	j.closed = true
	j.mu.Unlock()

	j.stmtMu.Lock()
	defer j.stmtMu.Unlock()

	if j.deviceUpsertStmt != nil {
		j.deviceUpsertStmt.Close()
		j.deviceUpsertStmt = nil
	}
	if j.opcodeUpsertStmt != nil {
		j.opcodeUpsertStmt.Close()
		j.opcodeUpsertStmt = nil
	}
	if j.db != nil {
		j.db.Close()
		j.db = nil
	}

	j.log("journal stopped")
}

// Observe records the initiator and opcode of an inbound frame.
// It matches the engine's observer signature and is wired via
// AddObserver. Recording failures are logged and dropped.
//
// The broadcast/unregistered address is a valid initiator on the wire
// (unconfigured devices send from 15) but is not a device, so only the
// opcode is recorded for those frames.
func (j *Journal) Observe(f cec.Frame) {
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return
	}
	j.mu.RUnlock()

	j.stmtMu.Lock()
	deviceStmt := j.deviceUpsertStmt
	opcodeStmt := j.opcodeUpsertStmt
	j.stmtMu.Unlock()

	if deviceStmt == nil || opcodeStmt == nil {
		return // Not started
	}

	now := time.Now().Unix()

	if f.Initiator != cec.AddrBroadcast {
		if _, err := deviceStmt.Exec(int(f.Initiator), f.Initiator.String(), now); err != nil {
			j.logError("recording device", err)
		}
	}

	if _, err := opcodeStmt.Exec(int(f.Opcode), f.Opcode.String(), now); err != nil {
		j.logError("recording opcode", err)
	}
}

// Devices returns every recorded device, ordered by logical address.
func (j *Journal) Devices(ctx context.Context) ([]DeviceRecord, error) {
	db := j.database()
	if db == nil {
		return nil, ErrNotStarted
	}

	rows, err := db.QueryContext(ctx, `
		SELECT logical_address, name, last_seen, frame_count
		FROM cec_devices
		ORDER BY logical_address ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DeviceRecord
	for rows.Next() {
		var (
			addr     int
			name     string
			lastSeen int64
			count    int64
		)
		if err := rows.Scan(&addr, &name, &lastSeen, &count); err != nil {
			return nil, err
		}
		records = append(records, DeviceRecord{
			Address:    cec.LogicalAddr(addr),
			Name:       name,
			LastSeen:   time.Unix(lastSeen, 0),
			FrameCount: count,
		})
	}

	return records, rows.Err()
}

// Opcodes returns every recorded opcode, ordered by opcode value.
func (j *Journal) Opcodes(ctx context.Context) ([]OpcodeRecord, error) {
	db := j.database()
	if db == nil {
		return nil, ErrNotStarted
	}

	rows, err := db.QueryContext(ctx, `
		SELECT opcode, name, last_seen, frame_count
		FROM cec_opcodes
		ORDER BY opcode ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []OpcodeRecord
	for rows.Next() {
		var (
			op       int
			name     string
			lastSeen int64
			count    int64
		)
		if err := rows.Scan(&op, &name, &lastSeen, &count); err != nil {
			return nil, err
		}
		records = append(records, OpcodeRecord{
			Opcode:     cec.Opcode(op),
			Name:       name,
			LastSeen:   time.Unix(lastSeen, 0),
			FrameCount: count,
		})
	}

	return records, rows.Err()
}

// DeviceCount returns the number of recorded devices.
func (j *Journal) DeviceCount(ctx context.Context) (int, error) {
	db := j.database()
	if db == nil {
		return 0, ErrNotStarted
	}

	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cec_devices`).Scan(&count)
	return count, err
}

// OpcodeCount returns the number of distinct opcodes recorded.
func (j *Journal) OpcodeCount(ctx context.Context) (int, error) {
	db := j.database()
	if db == nil {
		return 0, ErrNotStarted
	}

	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cec_opcodes`).Scan(&count)
	return count, err
}

// HealthCheck verifies the journal database is accessible.
func (j *Journal) HealthCheck(ctx context.Context) error {
	db := j.database()
	if db == nil {
		return ErrNotStarted
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("journal health check failed: %w", err)
	}
	return nil
}

// database returns the open handle, or nil before Start / after Stop.
func (j *Journal) database() *sql.DB {
	j.stmtMu.Lock()
	defer j.stmtMu.Unlock()
	return j.db
}

// log logs an info message if logger is set.
func (j *Journal) log(msg string, keysAndValues ...any) {
	if j.logger != nil {
		j.logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error if logger is set.
func (j *Journal) logError(msg string, err error) {
	if j.logger != nil {
		j.logger.Error(msg, "error", err)
	}
}
