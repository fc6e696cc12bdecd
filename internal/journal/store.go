package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// Journal files hold nothing secret, but they live under the
	// daemon's own state directory. Owner-only access keeps it tidy.
	journalDirMode  = 0750
	journalFileMode = 0600

	// pingTimeout bounds the connectivity probe at open.
	pingTimeout = 5 * time.Second

	idleConnLife = 30 * time.Minute
)

// schema is applied idempotently on every Start. The journal's shape is
// fixed, so there is no migration versioning; new columns would arrive
// with their own ALTER here.
const schema = `
CREATE TABLE IF NOT EXISTS cec_devices (
	logical_address INTEGER PRIMARY KEY,
	name            TEXT    NOT NULL,
	last_seen       INTEGER NOT NULL,
	frame_count     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS cec_opcodes (
	opcode      INTEGER PRIMARY KEY,
	name        TEXT    NOT NULL,
	last_seen   INTEGER NOT NULL,
	frame_count INTEGER NOT NULL DEFAULT 0
);
`

// openDatabase readies the SQLite journal file: parent directory,
// connection pragmas, a ping to prove the file is usable, and then the
// schema.
func openDatabase(path string, walMode bool, busyTimeout int) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), journalDirMode); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	// Pragmas ride the DSN with mattn/go-sqlite3. busyTimeout is
	// configured in seconds, the driver takes milliseconds.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on", path, busyTimeout*1000)
	if walMode {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(idleConnLife)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("verifying journal database: %w", err)
	}

	// Ignore the error; on first run the file appears with the first
	// write and inherits the mode then.
	_ = os.Chmod(path, journalFileMode)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying journal schema: %w", err)
	}

	return db, nil
}
