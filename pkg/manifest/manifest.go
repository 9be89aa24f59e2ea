// Package manifest records decomposition runs in a SQLite database: which
// leaves went to which subset, where the files are and the minimum branch
// length estimated for each subset.
package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// Defining possible error
var (
	ErrNoRun          = errors.New("no run recorded")
	ErrRunNotFound    = errors.New("run not found")
	ErrSubsetNotFound = errors.New("subset not found")
	ErrMinBranchUnset = errors.New("minimum branch length not recorded")
	ErrLabelNotFound  = errors.New("label not found in run")
)

// SubsetStatus is the lifecycle of a subset in downstream processing.
type SubsetStatus string

const (
	SubsetWritten   SubsetStatus = "written"
	SubsetEstimated SubsetStatus = "estimated"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id         TEXT PRIMARY KEY,
	created_at     TEXT NOT NULL,
	tree_path      TEXT NOT NULL,
	alignment_path TEXT NOT NULL,
	output_dir     TEXT NOT NULL,
	max_size       INTEGER NOT NULL,
	strategy       TEXT NOT NULL,
	leaves         INTEGER NOT NULL,
	subsets        INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS subsets (
	run_id         TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	subset_index   INTEGER NOT NULL,
	leaves         INTEGER NOT NULL,
	tree_file      TEXT NOT NULL,
	alignment_file TEXT NOT NULL,
	status         TEXT NOT NULL,
	minbr          REAL,
	updated_at     TEXT NOT NULL,
	PRIMARY KEY (run_id, subset_index)
);
CREATE TABLE IF NOT EXISTS subset_leaves (
	run_id       TEXT NOT NULL,
	subset_index INTEGER NOT NULL,
	label        TEXT NOT NULL,
	PRIMARY KEY (run_id, label),
	FOREIGN KEY (run_id, subset_index) REFERENCES subsets(run_id, subset_index) ON DELETE CASCADE
);
`

// Run is one decomposition.
type Run struct {
	ID            string
	CreatedAt     time.Time
	TreePath      string
	AlignmentPath string
	OutputDir     string
	MaxSize       int
	Strategy      string
	Leaves        int
	Subsets       int
}

// SubsetRecord is one subset of a run.
type SubsetRecord struct {
	Index         int
	Leaves        int
	TreeFile      string
	AlignmentFile string
	Status        SubsetStatus
	MinBranch     sql.NullFloat64
	UpdatedAt     time.Time
	Labels        []string // only used by RecordRun
}

// Manifest is an open manifest database.
type Manifest struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the manifest at path.
func Open(ctx context.Context, path string) (*Manifest, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open manifest %s: %w", path, err)
	}
	// one writer at a time, and foreign keys are per connection
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000", schema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init manifest %s: %w", path, err)
		}
	}
	return &Manifest{db: db, now: time.Now}, nil
}

// Close closes the database.
func (m *Manifest) Close() error { return m.db.Close() }

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// RecordRun stores a run with its subsets and leaf membership in one
// transaction. An empty run.ID is replaced by NewRunID; the stored ID is
// returned.
func (m *Manifest) RecordRun(ctx context.Context, run Run, subsets []SubsetRecord) (string, error) {
	if run.ID == "" {
		run.ID = NewRunID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = m.now()
	}
	run.Subsets = len(subsets)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, created_at, tree_path, alignment_path, output_dir, max_size, strategy, leaves, subsets)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, formatTime(run.CreatedAt), run.TreePath, run.AlignmentPath, run.OutputDir,
		run.MaxSize, run.Strategy, run.Leaves, run.Subsets); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	subStm, err := tx.PrepareContext(ctx, `
		INSERT INTO subsets (run_id, subset_index, leaves, tree_file, alignment_file, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer subStm.Close()

	leafStm, err := tx.PrepareContext(ctx, `INSERT INTO subset_leaves (run_id, subset_index, label) VALUES (?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer leafStm.Close()

	now := formatTime(run.CreatedAt)
	for _, s := range subsets {
		status := s.Status
		if status == "" {
			status = SubsetWritten
		}
		if _, err := subStm.ExecContext(ctx, run.ID, s.Index, s.Leaves, s.TreeFile, s.AlignmentFile, string(status), now); err != nil {
			return "", fmt.Errorf("insert subset %d: %w", s.Index, err)
		}
		for _, l := range s.Labels {
			if _, err := leafStm.ExecContext(ctx, run.ID, s.Index, l); err != nil {
				return "", fmt.Errorf("insert leaf %q of subset %d: %w", l, s.Index, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return run.ID, nil
}

// Runs lists the recorded runs, newest first.
func (m *Manifest) Runs(ctx context.Context) ([]Run, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT run_id, created_at, tree_path, alignment_path, output_dir, max_size, strategy, leaves, subsets
		FROM runs ORDER BY rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			created string
		)
		if err := rows.Scan(&r.ID, &created, &r.TreePath, &r.AlignmentPath, &r.OutputDir,
			&r.MaxSize, &r.Strategy, &r.Leaves, &r.Subsets); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(created)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LatestRunID returns the most recently recorded run.
func (m *Manifest) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := m.db.QueryRowContext(ctx, `SELECT run_id FROM runs ORDER BY rowid DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoRun
	}
	return id, err
}

// ResolveRun returns runID, or the latest run when runID is empty.
func (m *Manifest) ResolveRun(ctx context.Context, runID string) (string, error) {
	if runID == "" {
		return m.LatestRunID(ctx)
	}
	var n int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE run_id = ?`, runID).Scan(&n); err != nil {
		return "", err
	}
	if n == 0 {
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return runID, nil
}

// Subset returns one subset of a run.
func (m *Manifest) Subset(ctx context.Context, runID string, index int) (SubsetRecord, error) {
	var (
		s       SubsetRecord
		status  string
		updated string
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT subset_index, leaves, tree_file, alignment_file, status, minbr, updated_at
		FROM subsets WHERE run_id = ? AND subset_index = ?`, runID, index).
		Scan(&s.Index, &s.Leaves, &s.TreeFile, &s.AlignmentFile, &status, &s.MinBranch, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return s, fmt.Errorf("%w: run %s subset %d", ErrSubsetNotFound, runID, index)
	}
	if err != nil {
		return s, err
	}
	s.Status = SubsetStatus(status)
	s.UpdatedAt = parseTime(updated)
	return s, nil
}

// Subsets returns every subset of a run in index order.
func (m *Manifest) Subsets(ctx context.Context, runID string) ([]SubsetRecord, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT subset_index, leaves, tree_file, alignment_file, status, minbr, updated_at
		FROM subsets WHERE run_id = ? ORDER BY subset_index`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SubsetRecord
	for rows.Next() {
		var (
			s       SubsetRecord
			status  string
			updated string
		)
		if err := rows.Scan(&s.Index, &s.Leaves, &s.TreeFile, &s.AlignmentFile, &status, &s.MinBranch, &updated); err != nil {
			return nil, err
		}
		s.Status = SubsetStatus(status)
		s.UpdatedAt = parseTime(updated)
		out = append(out, s)
	}
	return out, rows.Err()
}

// SetMinBranch stores the minimum branch length of a subset and marks it
// estimated. The value is stored as an IEEE double, without rounding.
func (m *Manifest) SetMinBranch(ctx context.Context, runID string, index int, value float64) error {
	res, err := m.db.ExecContext(ctx, `
		UPDATE subsets SET minbr = ?, status = ?, updated_at = ?
		WHERE run_id = ? AND subset_index = ?`,
		value, string(SubsetEstimated), formatTime(m.now()), runID, index)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: run %s subset %d", ErrSubsetNotFound, runID, index)
	}
	return nil
}

// MinBranch returns the stored minimum branch length of a subset.
func (m *Manifest) MinBranch(ctx context.Context, runID string, index int) (float64, error) {
	s, err := m.Subset(ctx, runID, index)
	if err != nil {
		return 0, err
	}
	if !s.MinBranch.Valid {
		return 0, fmt.Errorf("%w: run %s subset %d", ErrMinBranchUnset, runID, index)
	}
	return s.MinBranch.Float64, nil
}

// Locate returns the subset index holding a leaf.
func (m *Manifest) Locate(ctx context.Context, runID, label string) (int, error) {
	var index int
	err := m.db.QueryRowContext(ctx, `
		SELECT subset_index FROM subset_leaves WHERE run_id = ? AND label = ?`, runID, label).Scan(&index)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", ErrLabelNotFound, label)
	}
	return index, err
}

// Labels returns the leaves of a subset in the order they were recorded.
func (m *Manifest) Labels(ctx context.Context, runID string, index int) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT label FROM subset_leaves WHERE run_id = ? AND subset_index = ? ORDER BY rowid`, runID, index)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}
