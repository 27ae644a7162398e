// Package recorddb provides the ground-motion record database: a sqlite
// store of record metadata and spectral ordinates, the candidate-pool
// filtering applied before selection, and the record series reader/writer.
package recorddb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// Record is one database entry: metadata plus the spectral ordinates of one
// or two horizontal components on the database period grid.
type Record struct {
	ID         string
	Magnitude  float64
	DistanceKm float64
	Vs30       float64
	// Mechanism encodes the fault type: 0 unspecified, 1 strike-slip,
	// 2 normal, 3 reverse.
	Mechanism int
	Dt        float64
	DurationS float64
	FileH1    string
	FileH2    string

	// Sa1 and Sa2 align with the store's period grid; Sa2 is nil for
	// single-component records.
	Sa1 []float64
	Sa2 []float64
}

// Capabilities describes what the opened database can provide.
type Capabilities struct {
	Records      int
	Periods      int
	TwoComponent bool
}

// Store is a sqlite-backed record database.
type Store struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// NewStore creates a store for the given sqlite path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Init opens the database and creates the schema when absent.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

// Periods returns the database period grid, ascending.
func (s *Store) Periods(ctx context.Context) ([]float64, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT DISTINCT period FROM spectra ORDER BY period`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []float64
	for rows.Next() {
		var p float64
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// Capabilities reports the record count, grid size and component coverage.
func (s *Store) Capabilities(ctx context.Context) (Capabilities, error) {
	db, err := s.getDB()
	if err != nil {
		return Capabilities{}, err
	}

	var caps Capabilities
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&caps.Records); err != nil {
		return Capabilities{}, err
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT period) FROM spectra`).Scan(&caps.Periods); err != nil {
		return Capabilities{}, err
	}
	if err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM spectra WHERE component = 2)`).Scan(&caps.TwoComponent); err != nil {
		return Capabilities{}, err
	}
	return caps, nil
}

// SaveRecord inserts or replaces a record and its spectral ordinates. The
// spectra must align with the given period grid.
func (s *Store) SaveRecord(ctx context.Context, rec Record, periods []float64) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if len(rec.Sa1) != len(periods) {
		return fmt.Errorf("record %s: component 1 has %d ordinates for %d periods", rec.ID, len(rec.Sa1), len(periods))
	}
	if rec.Sa2 != nil && len(rec.Sa2) != len(periods) {
		return fmt.Errorf("record %s: component 2 has %d ordinates for %d periods", rec.ID, len(rec.Sa2), len(periods))
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (id, magnitude, distance_km, vs30, mechanism, dt, duration_s, file_h1, file_h2)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			magnitude = excluded.magnitude,
			distance_km = excluded.distance_km,
			vs30 = excluded.vs30,
			mechanism = excluded.mechanism,
			dt = excluded.dt,
			duration_s = excluded.duration_s,
			file_h1 = excluded.file_h1,
			file_h2 = excluded.file_h2
	`, rec.ID, rec.Magnitude, rec.DistanceKm, rec.Vs30, rec.Mechanism, rec.Dt, rec.DurationS, rec.FileH1, rec.FileH2)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM spectra WHERE record_id = ?`, rec.ID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO spectra (record_id, component, period, sa) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range periods {
		if _, err := stmt.ExecContext(ctx, rec.ID, 1, p, rec.Sa1[i]); err != nil {
			return err
		}
		if rec.Sa2 != nil {
			if _, err := stmt.ExecContext(ctx, rec.ID, 2, p, rec.Sa2[i]); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// Filter bounds the metadata of the records to load. Nil or empty ranges
// are not applied.
type Filter struct {
	MagnitudeRange []float64
	DistanceRange  []float64
	Vs30Range      []float64
	Mechanism      *int
}

// Records loads the records passing the filter, spectra aligned to the
// store's period grid.
func (s *Store) Records(ctx context.Context, f Filter) ([]Record, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	periods, err := s.Periods(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[float64]int, len(periods))
	for i, p := range periods {
		index[p] = i
	}

	query := `SELECT id, magnitude, distance_km, vs30, mechanism, dt, duration_s, file_h1, file_h2 FROM records WHERE 1=1`
	var args []any
	for _, b := range []struct {
		col string
		rng []float64
	}{
		{"magnitude", f.MagnitudeRange},
		{"distance_km", f.DistanceRange},
		{"vs30", f.Vs30Range},
	} {
		if len(b.rng) == 2 {
			query += fmt.Sprintf(" AND %s >= ? AND %s <= ?", b.col, b.col)
			args = append(args, b.rng[0], b.rng[1])
		}
	}
	if f.Mechanism != nil {
		query += " AND mechanism = ?"
		args = append(args, *f.Mechanism)
	}
	query += " ORDER BY id"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []Record
	byID := map[string]int{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Magnitude, &r.DistanceKm, &r.Vs30, &r.Mechanism, &r.Dt, &r.DurationS, &r.FileH1, &r.FileH2); err != nil {
			return nil, err
		}
		r.Sa1 = make([]float64, len(periods))
		byID[r.ID] = len(recs)
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	spec, err := db.QueryContext(ctx, `SELECT record_id, component, period, sa FROM spectra ORDER BY record_id, component, period`)
	if err != nil {
		return nil, err
	}
	defer spec.Close()

	for spec.Next() {
		var (
			id        string
			component int
			period    float64
			sa        float64
		)
		if err := spec.Scan(&id, &component, &period, &sa); err != nil {
			return nil, err
		}
		ri, ok := byID[id]
		if !ok {
			continue
		}
		pi, ok := index[period]
		if !ok {
			continue
		}
		switch component {
		case 1:
			recs[ri].Sa1[pi] = sa
		case 2:
			if recs[ri].Sa2 == nil {
				recs[ri].Sa2 = make([]float64, len(periods))
			}
			recs[ri].Sa2[pi] = sa
		}
	}
	return recs, spec.Err()
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			magnitude REAL NOT NULL,
			distance_km REAL NOT NULL,
			vs30 REAL NOT NULL,
			mechanism INTEGER NOT NULL DEFAULT 0,
			dt REAL NOT NULL DEFAULT 0,
			duration_s REAL NOT NULL DEFAULT 0,
			file_h1 TEXT NOT NULL DEFAULT '',
			file_h2 TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS spectra (
			record_id TEXT NOT NULL,
			component INTEGER NOT NULL,
			period REAL NOT NULL,
			sa REAL NOT NULL,
			PRIMARY KEY (record_id, component, period)
		);
	`)
	return err
}
