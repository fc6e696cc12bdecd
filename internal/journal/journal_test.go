package journal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/calverley/cecd/internal/cec"
	"github.com/calverley/cecd/internal/infrastructure/config"
)

// newTestJournal creates a started journal backed by a throwaway file.
func newTestJournal(t *testing.T) *Journal {
	t.Helper()

	j := New(config.JournalConfig{
		Enabled:     true,
		Path:        filepath.Join(t.TempDir(), "journal.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err := j.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(j.Stop)
	return j
}

func TestJournal_StartStop(t *testing.T) {
	j := newTestJournal(t)

	// Double-start should be idempotent (no error).
	if err := j.Start(); err != nil {
		t.Fatalf("second Start() error: %v", err)
	}

	// Stop should not panic.
	j.Stop()

	// Double-stop should not panic.
	j.Stop()
}

func TestJournal_StartCreatesSchema(t *testing.T) {
	j := newTestJournal(t)

	for _, table := range []string{"cec_devices", "cec_opcodes"} {
		var name string
		err := j.database().QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestJournal_StartBadPath(t *testing.T) {
	// A regular file where the directory should be makes MkdirAll fail.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("writing blocker file: %v", err)
	}

	j := New(config.JournalConfig{
		Enabled:     true,
		Path:        filepath.Join(blocker, "journal.db"),
		BusyTimeout: 5,
	})
	if err := j.Start(); err == nil {
		j.Stop()
		t.Fatal("Start() with unusable path succeeded, want error")
	}
}

func TestJournal_ObserveRecordsDeviceAndOpcode(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	j.Observe(cec.Build(cec.AddrTV, cec.AddrRecorder1, cec.OpReportPowerStatus, 0x00))

	devCount, err := j.DeviceCount(ctx)
	if err != nil {
		t.Fatalf("DeviceCount() error: %v", err)
	}
	if devCount != 1 {
		t.Errorf("DeviceCount() = %d, want 1", devCount)
	}

	opCount, err := j.OpcodeCount(ctx)
	if err != nil {
		t.Fatalf("OpcodeCount() error: %v", err)
	}
	if opCount != 1 {
		t.Errorf("OpcodeCount() = %d, want 1", opCount)
	}

	devices, err := j.Devices(ctx)
	if err != nil {
		t.Fatalf("Devices() error: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("Devices() returned %d records, want 1", len(devices))
	}
	if devices[0].Address != cec.AddrTV {
		t.Errorf("device address = %v, want %v", devices[0].Address, cec.AddrTV)
	}
	if devices[0].Name != "tv" {
		t.Errorf("device name = %q, want %q", devices[0].Name, "tv")
	}
	if devices[0].FrameCount != 1 {
		t.Errorf("device frame count = %d, want 1", devices[0].FrameCount)
	}
	if devices[0].LastSeen.IsZero() {
		t.Error("device last seen is zero")
	}

	opcodes, err := j.Opcodes(ctx)
	if err != nil {
		t.Fatalf("Opcodes() error: %v", err)
	}
	if len(opcodes) != 1 {
		t.Fatalf("Opcodes() returned %d records, want 1", len(opcodes))
	}
	if opcodes[0].Opcode != cec.OpReportPowerStatus {
		t.Errorf("opcode = %v, want %v", opcodes[0].Opcode, cec.OpReportPowerStatus)
	}
	if opcodes[0].Name != "ReportPowerStatus" {
		t.Errorf("opcode name = %q, want %q", opcodes[0].Name, "ReportPowerStatus")
	}
}

func TestJournal_ObserveUpserts(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	// Same initiator and opcode three times. Rows stay unique, counts grow.
	for range 3 {
		j.Observe(cec.Build(cec.AddrAudioSystem, cec.AddrTV, cec.OpReportAudioStatus, 0x28))
	}

	devCount, err := j.DeviceCount(ctx)
	if err != nil {
		t.Fatalf("DeviceCount() error: %v", err)
	}
	if devCount != 1 {
		t.Errorf("DeviceCount() after duplicates = %d, want 1", devCount)
	}

	devices, err := j.Devices(ctx)
	if err != nil {
		t.Fatalf("Devices() error: %v", err)
	}
	if devices[0].FrameCount != 3 {
		t.Errorf("device frame count = %d, want 3", devices[0].FrameCount)
	}

	opcodes, err := j.Opcodes(ctx)
	if err != nil {
		t.Fatalf("Opcodes() error: %v", err)
	}
	if opcodes[0].FrameCount != 3 {
		t.Errorf("opcode frame count = %d, want 3", opcodes[0].FrameCount)
	}
}

func TestJournal_ObserveSkipsBroadcastInitiator(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	// Unconfigured devices announce from the broadcast address. The
	// opcode is still interesting; a device row is not.
	j.Observe(cec.Build(cec.AddrBroadcast, cec.AddrBroadcast, cec.OpActiveSource, 0x10, 0x00))

	devCount, err := j.DeviceCount(ctx)
	if err != nil {
		t.Fatalf("DeviceCount() error: %v", err)
	}
	if devCount != 0 {
		t.Errorf("DeviceCount() = %d, want 0", devCount)
	}

	opCount, err := j.OpcodeCount(ctx)
	if err != nil {
		t.Fatalf("OpcodeCount() error: %v", err)
	}
	if opCount != 1 {
		t.Errorf("OpcodeCount() = %d, want 1", opCount)
	}
}

func TestJournal_DevicesOrderedByAddress(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	j.Observe(cec.Build(cec.AddrAudioSystem, cec.AddrTV, cec.OpReportAudioStatus, 0x28))
	j.Observe(cec.Build(cec.AddrTV, cec.AddrBroadcast, cec.OpStandby))
	j.Observe(cec.Build(cec.AddrPlayback1, cec.AddrTV, cec.OpImageViewOn))

	devices, err := j.Devices(ctx)
	if err != nil {
		t.Fatalf("Devices() error: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("Devices() returned %d records, want 3", len(devices))
	}

	want := []cec.LogicalAddr{cec.AddrTV, cec.AddrPlayback1, cec.AddrAudioSystem}
	for i, addr := range want {
		if devices[i].Address != addr {
			t.Errorf("devices[%d].Address = %v, want %v", i, devices[i].Address, addr)
		}
	}
}

func TestJournal_ObserveBeforeStart(t *testing.T) {
	j := New(config.JournalConfig{Path: "unused.db", BusyTimeout: 5})

	// Must be a silent no-op.
	j.Observe(cec.Build(cec.AddrTV, cec.AddrBroadcast, cec.OpStandby))
}

func TestJournal_ObserveAfterStop(t *testing.T) {
	j := newTestJournal(t)
	j.Stop()

	// Must be a silent no-op.
	j.Observe(cec.Build(cec.AddrTV, cec.AddrBroadcast, cec.OpStandby))
}

func TestJournal_QueriesBeforeStart(t *testing.T) {
	j := New(config.JournalConfig{Path: "unused.db", BusyTimeout: 5})
	ctx := context.Background()

	if _, err := j.Devices(ctx); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Devices() error = %v, want %v", err, ErrNotStarted)
	}
	if _, err := j.Opcodes(ctx); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Opcodes() error = %v, want %v", err, ErrNotStarted)
	}
	if _, err := j.DeviceCount(ctx); !errors.Is(err, ErrNotStarted) {
		t.Errorf("DeviceCount() error = %v, want %v", err, ErrNotStarted)
	}
	if _, err := j.OpcodeCount(ctx); !errors.Is(err, ErrNotStarted) {
		t.Errorf("OpcodeCount() error = %v, want %v", err, ErrNotStarted)
	}
	if err := j.HealthCheck(ctx); !errors.Is(err, ErrNotStarted) {
		t.Errorf("HealthCheck() error = %v, want %v", err, ErrNotStarted)
	}
}

func TestJournal_HealthCheck(t *testing.T) {
	j := newTestJournal(t)

	if err := j.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil", err)
	}

	j.Stop()

	if err := j.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() after Stop = nil, want error")
	}
}

func TestJournal_RestartAfterStop(t *testing.T) {
	dir := t.TempDir()
	cfg := config.JournalConfig{
		Enabled:     true,
		Path:        filepath.Join(dir, "journal.db"),
		WALMode:     true,
		BusyTimeout: 5,
	}

	j := New(cfg)
	if err := j.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	j.Observe(cec.Build(cec.AddrTV, cec.AddrBroadcast, cec.OpStandby))
	j.Stop()

	// Reopening the same file sees the earlier rows.
	if err := j.Start(); err != nil {
		t.Fatalf("restart Start() error: %v", err)
	}
	defer j.Stop()

	count, err := j.DeviceCount(context.Background())
	if err != nil {
		t.Fatalf("DeviceCount() error: %v", err)
	}
	if count != 1 {
		t.Errorf("DeviceCount() after restart = %d, want 1", count)
	}
}
