package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/sweeney/thermostat/internal/logic"
)

const testPath = "/var/lib/thermostat/setpoint.json"

func TestFileStoreRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewFileStore(fs, testPath)
	ctx := context.Background()

	if _, err := s.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty store: got %v, want ErrNotFound", err)
	}

	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	rec := RecordOf(logic.Setpoint{Value: 21, Preset: logic.PresetRemote, Enabled: true}, "node-1", at)
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !sameRecord(got, rec) {
		t.Errorf("got %+v, want %+v", got, rec)
	}

	if ok, _ := afero.Exists(fs, testPath+".tmp"); ok {
		t.Error("temporary file left behind")
	}
}

func TestFileStoreReadsLegacyRecord(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, testPath, []byte(`{"setpoint":15,"preset":"away","enabled":false}`), 0o644)

	rec, err := NewFileStore(fs, testPath).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	sp, err := rec.ToSetpoint()
	if err != nil {
		t.Fatal(err)
	}
	if sp.Value != 15 || sp.Preset != logic.PresetAway || sp.Enabled {
		t.Errorf("got %+v", sp)
	}
	if rec.DeviceID != "" {
		t.Errorf("device id should be empty, got %q", rec.DeviceID)
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, testPath, []byte(`{"setpoint":`), 0o644)

	_, err := NewFileStore(fs, testPath).Load(context.Background())
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestFileStoreWriteFailure(t *testing.T) {
	s := NewFileStore(afero.NewReadOnlyFs(afero.NewMemMapFs()), testPath)
	if err := s.Save(context.Background(), Record{Setpoint: 19, Preset: "on"}); err == nil {
		t.Error("expected error on read-only filesystem")
	}
}

func TestRecordToSetpointValidates(t *testing.T) {
	tests := []Record{
		{Setpoint: 50, Preset: "on"},
		{Setpoint: 19, Preset: "tropical"},
	}
	for _, rec := range tests {
		if _, err := rec.ToSetpoint(); err == nil {
			t.Errorf("%+v: expected error", rec)
		}
	}
}

func sameRecord(a, b Record) bool {
	return a.Setpoint == b.Setpoint && a.Preset == b.Preset && a.Enabled == b.Enabled &&
		a.DeviceID == b.DeviceID && a.UpdatedAt.Equal(b.UpdatedAt)
}
