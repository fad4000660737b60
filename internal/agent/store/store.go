// Package store is the device-local scan queue: every decoded QR is recorded
// here first, then delivered to the backend when connectivity allows.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DeliveryState of a locally captured scan.
type DeliveryState string

const (
	StatePending DeliveryState = "pendiente"
	StateSent    DeliveryState = "enviado"
	StateError   DeliveryState = "error"
)

// Record is one captured scan.
type Record struct {
	ID         int64
	URL        string
	CapturedAt time.Time
	State      DeliveryState
	Attempts   int
	NroOrden   string
}

type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS escaneos (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT NOT NULL,
    fecha INTEGER NOT NULL,
    estado TEXT NOT NULL DEFAULT 'pendiente',
    intentos INTEGER NOT NULL DEFAULT 0,
    nro_orden TEXT
);
CREATE INDEX IF NOT EXISTS idx_escaneos_url ON escaneos(url);
CREATE INDEX IF NOT EXISTS idx_escaneos_estado ON escaneos(estado);
`

// Open opens (or creates) the queue database. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// single writer; the engine serializes access anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Insert records a new scan as pendiente and returns its local id.
func (s *Store) Insert(ctx context.Context, url, nroOrden string, at time.Time) (int64, error) {
	var nro any
	if nroOrden != "" {
		nro = nroOrden
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO escaneos (url, fecha, estado, intentos, nro_orden) VALUES (?, ?, 'pendiente', 0, ?)`,
		url, at.Unix(), nro,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FindByURL returns the record for url, or (nil, nil) when never scanned.
func (s *Store) FindByURL(ctx context.Context, url string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, fecha, estado, intentos, COALESCE(nro_orden, '') FROM escaneos WHERE url = ? LIMIT 1`,
		url,
	)
	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListUndelivered returns every record still awaiting delivery (pendiente or
// error), oldest capture first.
func (s *Store) ListUndelivered(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, fecha, estado, intentos, COALESCE(nro_orden, '')
		 FROM escaneos WHERE estado != 'enviado' ORDER BY fecha ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *Store) MarkSent(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE escaneos SET estado = 'enviado' WHERE id = ?`, id)
	return err
}

func (s *Store) IncrementAttempts(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE escaneos SET intentos = intentos + 1 WHERE id = ?`, id)
	return err
}

func (s *Store) CountPending(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM escaneos WHERE estado != 'enviado'`)
}

func (s *Store) CountSent(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM escaneos WHERE estado = 'enviado'`)
}

func (s *Store) CountTotal(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM escaneos`)
}

// ClearAll wipes the local history only; the server keeps everything.
func (s *Store) ClearAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM escaneos`)
	return err
}

func (s *Store) count(ctx context.Context, q string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanRecord(scan func(...any) error) (*Record, error) {
	var (
		rec   Record
		fecha int64
		state string
	)
	if err := scan(&rec.ID, &rec.URL, &fecha, &state, &rec.Attempts, &rec.NroOrden); err != nil {
		return nil, err
	}
	rec.CapturedAt = time.Unix(fecha, 0)
	rec.State = DeliveryState(state)
	return &rec, nil
}
