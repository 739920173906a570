// Package history stores accepted readings and alarm events in TimescaleDB.
package history

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"

	// Register the postgres driver for sqlx.Connect.
	_ "github.com/lib/pq"

	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
	"github.com/oshokin/alarm-telemetry/internal/logger"
)

// driverName is the database/sql driver registered by lib/pq.
const driverName = "postgres"

// identifierPattern limits table names to plain SQL identifiers.
var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// errInvalidTable is returned for table names that are not plain identifiers.
var errInvalidTable = errors.New("invalid table name")

// readingRow is one row of the readings hypertable.
type readingRow struct {
	DeviceID string    `db:"device_id"`
	Channel  string    `db:"channel"`
	Value    float64   `db:"value"`
	Latched  bool      `db:"latched"`
	TS       time.Time `db:"ts"`
}

// eventRow is one row of the alarm events hypertable.
type eventRow struct {
	DeviceID string    `db:"device_id"`
	Channel  string    `db:"channel"`
	Value    float64   `db:"value"`
	Side     string    `db:"side"`
	TS       time.Time `db:"ts"`
}

// Store writes readings and events for one device.
type Store struct {
	db           *sqlx.DB
	deviceID     string
	readingTable string
	eventTable   string
}

// Connect opens and pings a Timescale database.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect history database: %w", err)
	}

	return db, nil
}

// New creates a store writing into the given tables.
func New(db *sqlx.DB, deviceID, readingTable, eventTable string) (*Store, error) {
	for _, table := range []string{readingTable, eventTable} {
		if !identifierPattern.MatchString(table) {
			return nil, fmt.Errorf("%w: %q", errInvalidTable, table)
		}
	}

	return &Store{
		db:           db,
		deviceID:     deviceID,
		readingTable: readingTable,
		eventTable:   eventTable,
	}, nil
}

// InitSchema creates the tables and turns them into hypertables when TimescaleDB is available.
func (s *Store) InitSchema(ctx context.Context) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS ` + s.readingTable + ` (
			device_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			latched BOOLEAN NOT NULL,
			ts TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ` + s.eventTable + ` (
			device_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			side TEXT NOT NULL,
			ts TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, query := range tables {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create history table: %w", err)
		}
	}

	// Plain PostgreSQL has no create_hypertable; the tables still work without it.
	for _, table := range []string{s.readingTable, s.eventTable} {
		query := `SELECT create_hypertable($1, 'ts', if_not_exists => TRUE)`
		if _, err := s.db.ExecContext(ctx, query, table); err != nil {
			logger.WarnKV(ctx, "Hypertable not created", "table", table, "error", err)
		}
	}

	return nil
}

// WriteSnapshot inserts one row per channel that has a value.
func (s *Store) WriteSnapshot(ctx context.Context, snapshot telemetry.Snapshot) error {
	rows := make([]readingRow, 0, len(snapshot.Channels))

	for _, ch := range snapshot.Channels {
		if !ch.HasValue {
			continue
		}

		rows = append(rows, readingRow{
			DeviceID: s.deviceID,
			Channel:  ch.Name,
			Value:    ch.Value,
			Latched:  ch.Latched,
			TS:       snapshot.At,
		})
	}

	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO ` + s.readingTable + ` (device_id, channel, value, latched, ts)
		VALUES (:device_id, :channel, :value, :latched, :ts)`

	if _, err := s.db.NamedExecContext(ctx, query, rows); err != nil {
		return fmt.Errorf("insert readings: %w", err)
	}

	return nil
}

// RecordEvents inserts alarm events.
func (s *Store) RecordEvents(ctx context.Context, events []telemetry.AlarmEvent) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([]eventRow, 0, len(events))
	for _, e := range events {
		rows = append(rows, eventRow{
			DeviceID: s.deviceID,
			Channel:  e.Channel,
			Value:    e.Value,
			Side:     string(e.Side),
			TS:       e.At,
		})
	}

	query := `INSERT INTO ` + s.eventTable + ` (device_id, channel, value, side, ts)
		VALUES (:device_id, :channel, :value, :side, :ts)`

	if _, err := s.db.NamedExecContext(ctx, query, rows); err != nil {
		return fmt.Errorf("insert alarm events: %w", err)
	}

	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
