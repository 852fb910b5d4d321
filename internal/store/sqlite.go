package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

const schemaSetpoint = `
CREATE TABLE IF NOT EXISTS thermostat_setpoint (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    setpoint REAL NOT NULL,
    preset TEXT NOT NULL,
    enabled BOOLEAN NOT NULL,
    device_id TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const (
	setpointRowID = 1

	upsertSetpointSQL = `
		INSERT INTO thermostat_setpoint (id, setpoint, preset, enabled, device_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			setpoint=excluded.setpoint,
			preset=excluded.preset,
			enabled=excluded.enabled,
			device_id=excluded.device_id,
			updated_at=excluded.updated_at
	`

	selectSetpointSQL = `
		SELECT setpoint, preset, enabled, device_id, updated_at
		FROM thermostat_setpoint WHERE id=?
	`
)

// OpenSQLite opens or creates the database at path and ensures the schema.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// One writer: the control loop.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSetpoint); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// SQLiteStore keeps the record as the single row of thermostat_setpoint.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save implements Store. UpdatedAt is stored as UTC; zero means now.
func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	ts := rec.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx, upsertSetpointSQL,
		setpointRowID,
		rec.Setpoint,
		rec.Preset,
		rec.Enabled,
		rec.DeviceID,
		ts.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save setpoint: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context) (Record, error) {
	var rec Record
	err := s.db.QueryRowContext(ctx, selectSetpointSQL, setpointRowID).Scan(
		&rec.Setpoint,
		&rec.Preset,
		&rec.Enabled,
		&rec.DeviceID,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("load setpoint: %w", err)
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
