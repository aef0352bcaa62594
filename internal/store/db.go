// Package store provides the Local Routing Store (spec §4.7): a durable,
// single-writer/multi-reader key/value layer over SQLite keyed by
// backend-id, recording state, spawn spec, last-active time, and the
// optional proxy route.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO required

	"github.com/axelav/spawner/internal/domain"
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/state.db.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer; the executor is the only writer (spec §4.7).
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error { return d.db.Close() }

// Ping checks database connectivity, used by the health checker.
func (d *DB) Ping() error { return d.db.Ping() }

func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS backends (
			backend_id   TEXT PRIMARY KEY,
			state        TEXT NOT NULL,
			spec         BLOB NOT NULL,
			last_active  INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS proxy_routes (
			backend_id     TEXT PRIMARY KEY REFERENCES backends(backend_id),
			hostname_label TEXT NOT NULL,
			address        TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_backends_state ON backends(state)`,
	}
	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// InsertBackend records a newly spawned backend (spec §4.7: "inserted on
// spawn arrival"). Re-inserting an existing backend_id replaces only its
// stored spec; its state and last_active are kept.
func (d *DB) InsertBackend(ctx context.Context, spec domain.SpawnRequest) error {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("marshal spawn spec: %w", err)
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO backends (backend_id, state, spec, last_active)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(backend_id) DO UPDATE SET spec=excluded.spec`,
		spec.BackendID.String(), string(domain.Loading), specJSON, time.Now().Unix(),
	)
	return err
}

// UpdateBackendState mutates the state column — the only write path state
// ever takes, always from the executor task that owns backend_id (spec
// §3).
func (d *DB) UpdateBackendState(ctx context.Context, backendID domain.BackendID, state domain.BackendState) error {
	_, err := d.db.ExecContext(ctx, `UPDATE backends SET state = ? WHERE backend_id = ?`, string(state), backendID.String())
	return err
}

// GetBackendLastActive returns the last-active timestamp, set on insert
// and bumped by TouchBackend (spec §4.7).
func (d *DB) GetBackendLastActive(ctx context.Context, backendID domain.BackendID) (time.Time, error) {
	var unixSecs int64
	err := d.db.QueryRowContext(ctx, `SELECT last_active FROM backends WHERE backend_id = ?`, backendID.String()).Scan(&unixSecs)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(unixSecs, 0), nil
}

// TouchBackend bumps last_active, called by the proxy whenever it observes
// traffic for backendID (spec §4.8).
func (d *DB) TouchBackend(ctx context.Context, backendID domain.BackendID, at time.Time) error {
	_, err := d.db.ExecContext(ctx, `UPDATE backends SET last_active = ? WHERE backend_id = ?`, at.Unix(), backendID.String())
	return err
}

// InsertProxyRoute records the {hostname_label, addr} pair once a backend
// reaches Ready (spec §3/§6).
func (d *DB) InsertProxyRoute(ctx context.Context, backendID domain.BackendID, hostnameLabel, addr string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO proxy_routes (backend_id, hostname_label, address) VALUES (?, ?, ?)
		 ON CONFLICT(backend_id) DO UPDATE SET hostname_label=excluded.hostname_label, address=excluded.address`,
		backendID.String(), hostnameLabel, addr,
	)
	return err
}

// GetProxyRoute returns the proxy route recorded for backendID, or
// sql.ErrNoRows if the backend has no route yet (it hasn't reached Ready).
func (d *DB) GetProxyRoute(ctx context.Context, backendID domain.BackendID) (domain.ProxyRoute, error) {
	var route domain.ProxyRoute
	err := d.db.QueryRowContext(ctx,
		`SELECT hostname_label, address FROM proxy_routes WHERE backend_id = ?`,
		backendID.String(),
	).Scan(&route.HostnameLabel, &route.Addr)
	return route, err
}

// GetBackends returns every backend record, including terminal ones —
// history is retained for observability and never removed (spec §3).
func (d *DB) GetBackends(ctx context.Context) ([]domain.Backend, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT b.backend_id, b.state, b.spec, b.last_active, r.hostname_label, r.address
		 FROM backends b LEFT JOIN proxy_routes r ON r.backend_id = b.backend_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Backend
	for rows.Next() {
		var (
			backendID  string
			state      string
			specJSON   []byte
			lastActive int64
			hostname   sql.NullString
			address    sql.NullString
		)
		if err := rows.Scan(&backendID, &state, &specJSON, &lastActive, &hostname, &address); err != nil {
			return nil, err
		}
		var spec domain.SpawnRequest
		if err := json.Unmarshal(specJSON, &spec); err != nil {
			return nil, fmt.Errorf("unmarshal spawn spec for %s: %w", backendID, err)
		}
		b := domain.Backend{
			BackendID:    domain.BackendID(backendID),
			State:        domain.BackendState(state),
			Spec:         spec,
			LastActiveAt: lastActive,
		}
		if hostname.Valid && address.Valid {
			b.ProxyRoute = &domain.ProxyRoute{HostnameLabel: hostname.String, Addr: address.String}
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
