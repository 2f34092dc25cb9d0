package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/nvandessel/sisweep/internal/epidemic"
	"github.com/nvandessel/sisweep/internal/sweep"

	_ "modernc.org/sqlite" // SQLite driver
)

// timeLayout has a fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteResultStore implements ResultStore on a single SQLite database file.
type SQLiteResultStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteResultStore opens (creating if needed) the database at dbPath.
func NewSQLiteResultStore(dbPath string) (*SQLiteResultStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteResultStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteResultStore) Path() string {
	return s.dbPath
}

// SaveSweep stores rec in one transaction.
func (s *SQLiteResultStore) SaveSweep(ctx context.Context, rec *SweepRecord) (string, error) {
	if err := prepare(rec); err != nil {
		return "", fmt.Errorf("saving sweep: %w", err)
	}

	params, err := json.Marshal(rec.Topology.Params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal topology params: %w", err)
	}
	cfg, err := json.Marshal(rec.Config)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	var diagnostics []byte
	if len(rec.Table.Diagnostics) > 0 {
		if diagnostics, err = json.Marshal(rec.Table.Diagnostics); err != nil {
			return "", fmt.Errorf("failed to marshal diagnostics: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sweeps (
			id, name, topology_kind, topology_params, topology_seed, nodes, edges,
			config, betas, diagnostics, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name(), rec.Topology.Kind, string(params),
		strconv.FormatUint(rec.Topology.Seed, 10), rec.Topology.Nodes, rec.Topology.Edges,
		string(cfg), encodeFloats(rec.Table.Betas), nullString(diagnostics),
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert sweep: %w", err)
	}

	for i, series := range rec.Table.Series {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO series (sweep_id, mu_index, mu, prevalence) VALUES (?, ?, ?, ?)`,
			rec.ID, i, series.Mu, encodeFloats(series.Values)); err != nil {
			return "", fmt.Errorf("failed to insert series mu=%v: %w", series.Mu, err)
		}
	}

	for _, c := range rec.Table.Cells {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cells (sweep_id, mu_index, beta_index, beta, mu, trajectory)
			VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID, c.MuIndex, c.BetaIndex, c.Beta, c.Mu, encodeFloats(c.Trajectory)); err != nil {
			return "", fmt.Errorf("failed to insert cell beta=%v mu=%v: %w", c.Beta, c.Mu, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit sweep: %w", err)
	}
	return rec.ID, nil
}

// GetSweep loads the sweep matching id or a unique id prefix.
func (s *SQLiteResultStore) GetSweep(ctx context.Context, id string) (*SweepRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fullID, err := s.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		rec                        SweepRecord
		params, seed, cfg, created string
		betas                      []byte
		diagnostics                sql.NullString
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT id, topology_kind, topology_params, topology_seed, nodes, edges,
			config, betas, diagnostics, created_at
		FROM sweeps WHERE id = ?`, fullID).Scan(
		&rec.ID, &rec.Topology.Kind, &params, &seed, &rec.Topology.Nodes, &rec.Topology.Edges,
		&cfg, &betas, &diagnostics, &created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sweep: %w", err)
	}

	if err := json.Unmarshal([]byte(params), &rec.Topology.Params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal topology params: %w", err)
	}
	if rec.Topology.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return nil, fmt.Errorf("failed to parse topology seed: %w", err)
	}
	if err := json.Unmarshal([]byte(cfg), &rec.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	table := &sweep.Table{}
	if table.Betas, err = decodeFloats(betas); err != nil {
		return nil, fmt.Errorf("betas: %w", err)
	}
	if diagnostics.Valid {
		var ds []epidemic.Diagnostic
		if err := json.Unmarshal([]byte(diagnostics.String), &ds); err != nil {
			return nil, fmt.Errorf("failed to unmarshal diagnostics: %w", err)
		}
		table.Diagnostics = ds
	}
	if table.Series, err = s.loadSeries(ctx, fullID); err != nil {
		return nil, err
	}
	if table.Cells, err = s.loadCells(ctx, fullID); err != nil {
		return nil, err
	}
	rec.Table = table

	return &rec, nil
}

func (s *SQLiteResultStore) loadSeries(ctx context.Context, id string) ([]sweep.Series, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT mu, prevalence FROM series WHERE sweep_id = ? ORDER BY mu_index`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	var out []sweep.Series
	for rows.Next() {
		var (
			mu   float64
			blob []byte
		)
		if err := rows.Scan(&mu, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan series: %w", err)
		}
		values, err := decodeFloats(blob)
		if err != nil {
			return nil, fmt.Errorf("series mu=%v: %w", mu, err)
		}
		out = append(out, sweep.Series{Mu: mu, Values: values})
	}
	return out, rows.Err()
}

func (s *SQLiteResultStore) loadCells(ctx context.Context, id string) ([]sweep.Cell, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mu_index, beta_index, beta, mu, trajectory FROM cells
		WHERE sweep_id = ? ORDER BY mu_index, beta_index`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query cells: %w", err)
	}
	defer rows.Close()

	var out []sweep.Cell
	for rows.Next() {
		var (
			c    sweep.Cell
			blob []byte
		)
		if err := rows.Scan(&c.MuIndex, &c.BetaIndex, &c.Beta, &c.Mu, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}
		if c.Trajectory, err = decodeFloats(blob); err != nil {
			return nil, fmt.Errorf("cell beta=%v mu=%v: %w", c.Beta, c.Mu, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// resolveID expands a unique prefix to the full sweep id.
func (s *SQLiteResultStore) resolveID(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty id", ErrNotFound)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM sweeps WHERE id = ? OR substr(id, 1, ?) = ?
		 ORDER BY id = ? DESC LIMIT 2`,
		id, len(id), id, id)
	if err != nil {
		return "", fmt.Errorf("failed to look up sweep id: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return "", fmt.Errorf("failed to scan sweep id: %w", err)
		}
		if m == id {
			return m, nil
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousID, id)
	}
}

// ListSweeps returns summaries of all sweeps, newest first.
func (s *SQLiteResultStore) ListSweeps(ctx context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.topology_kind, s.nodes, s.config, s.diagnostics, s.created_at,
			(SELECT COUNT(*) FROM series WHERE sweep_id = s.id)
		FROM sweeps s
		ORDER BY s.created_at DESC, s.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sweeps: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum         Summary
			cfgJSON     string
			diagnostics sql.NullString
			created     string
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Kind, &sum.Nodes, &cfgJSON,
			&diagnostics, &created, &sum.Mus); err != nil {
			return nil, fmt.Errorf("failed to scan sweep: %w", err)
		}

		var cfg sweep.Config
		if err := json.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
			return nil, fmt.Errorf("sweep %s: failed to unmarshal config: %w", sum.ID, err)
		}
		sum.Repeats = cfg.Repeats
		sum.Betas = len(cfg.Betas)

		if diagnostics.Valid {
			var ds []epidemic.Diagnostic
			if err := json.Unmarshal([]byte(diagnostics.String), &ds); err != nil {
				return nil, fmt.Errorf("sweep %s: failed to unmarshal diagnostics: %w", sum.ID, err)
			}
			sum.Diagnostics = len(ds)
		}
		if sum.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("sweep %s: failed to parse created_at: %w", sum.ID, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// DeleteSweep removes a sweep and, by cascade, its series and cells.
func (s *SQLiteResultStore) DeleteSweep(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fullID, err := s.resolveID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sweeps WHERE id = ?`, fullID); err != nil {
		return fmt.Errorf("failed to delete sweep: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteResultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func nullString(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
