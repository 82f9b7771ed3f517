package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/projpred/internal/model"
	"github.com/banshee-data/projpred/internal/timeutil"
)

// ErrNotFound is returned when a run ID does not exist.
var ErrNotFound = errors.New("store: run not found")

// Run is one persisted projection.
type Run struct {
	RunID         string   `json:"run_id"`
	ReferenceName string   `json:"reference_name"`
	Method        string   `json:"method"`
	Terms         []string `json:"terms"`
	ModelSize     int      `json:"model_size"`
	Loss          float64  `json:"loss"`
	NonConverged  int      `json:"non_converged"`
	ELPD          float64  `json:"elpd_loo"`
	SE            float64  `json:"se"`
	PLoo          float64  `json:"p_loo"`
	Warning       bool     `json:"warning"`
	Chains        int      `json:"chains"`
	Draws         int      `json:"draws"`
	CreatedAt     int64    `json:"created_at"`
}

// NewRun summarises a projected submodel for storage.
func NewRun(referenceName, method string, md *model.ModelData) *Run {
	r := &Run{
		ReferenceName: referenceName,
		Method:        method,
		Terms:         append([]string{}, md.Structure.CommonTerms...),
		ModelSize:     md.ModelSize(),
		Loss:          md.DistToRefModel,
		NonConverged:  md.NonConverged,
		Chains:        md.IData.Chains,
		Draws:         md.IData.Draws,
	}
	if md.ELPD != nil {
		r.ELPD, r.SE, r.PLoo, r.Warning = md.ELPD.ELPD, md.ELPD.SE, md.ELPD.PLoo, md.ELPD.Warning
	}
	return r
}

// RunStore provides persistence for projection runs.
type RunStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db.DB, clock: timeutil.RealClock{}}
}

// SetClock replaces the clock used to stamp new runs.
func (s *RunStore) SetClock(c timeutil.Clock) { s.clock = c }

// Insert persists a run and the posterior draws of md. If RunID is empty, a
// UUID is generated.
func (s *RunStore) Insert(ctx context.Context, run *Run, md *model.ModelData) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = s.clock.Now().UnixNano()
	}
	termsJSON, err := json.Marshal(run.Terms)
	if err != nil {
		return fmt.Errorf("marshal terms: %w", err)
	}

	names := md.IData.PosteriorNames()
	draws := make(map[string][]float64, len(names))
	for _, name := range names {
		draws[name] = md.IData.Posterior[name].Data
	}
	blob, checksum, err := encodeDraws(names, draws)
	if err != nil {
		return fmt.Errorf("encode draws: %w", err)
	}
	namesJSON, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("marshal draw names: %w", err)
	}

	return retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO projection_runs (
				run_id, reference_name, method, terms_json, model_size,
				loss, non_converged, elpd_loo, elpd_se, p_loo, elpd_warning,
				chains, draws, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.ReferenceName, run.Method, string(termsJSON), run.ModelSize,
			run.Loss, run.NonConverged, run.ELPD, run.SE, run.PLoo, run.Warning,
			run.Chains, run.Draws, run.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO projection_draws (run_id, names_json, encoding, checksum, blob)
			VALUES (?, ?, ?, ?, ?)`,
			run.RunID, string(namesJSON), drawsEncoding, int64(checksum), blob,
		)
		if err != nil {
			return fmt.Errorf("insert draws: %w", err)
		}
		return tx.Commit()
	})
}

const runColumns = `run_id, reference_name, method, terms_json, model_size,
		       loss, non_converged, elpd_loo, elpd_se, p_loo, elpd_warning,
		       chains, draws, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var termsJSON string
	err := row.Scan(
		&r.RunID, &r.ReferenceName, &r.Method, &termsJSON, &r.ModelSize,
		&r.Loss, &r.NonConverged, &r.ELPD, &r.SE, &r.PLoo, &r.Warning,
		&r.Chains, &r.Draws, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(termsJSON), &r.Terms); err != nil {
		return nil, fmt.Errorf("decode terms of run %s: %w", r.RunID, err)
	}
	return &r, nil
}

// Get returns a single run by ID.
func (s *RunStore) Get(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM projection_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// List returns the runs of a reference model ordered by model size, then
// creation time. An empty referenceName lists every run.
func (s *RunStore) List(ctx context.Context, referenceName string) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM projection_runs`
	var args []any
	if referenceName != "" {
		query += ` WHERE reference_name = ?`
		args = append(args, referenceName)
	}
	query += ` ORDER BY model_size ASC, created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Draws returns the stored posterior draws of a run, keyed by variable.
func (s *RunStore) Draws(ctx context.Context, runID string) (map[string][]float64, error) {
	var (
		namesJSON, encoding string
		checksum            int64
		blob                []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT names_json, encoding, checksum, blob FROM projection_draws WHERE run_id = ?`, runID,
	).Scan(&namesJSON, &encoding, &checksum, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("draws of run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan draws: %w", err)
	}
	if encoding != drawsEncoding {
		return nil, fmt.Errorf("draws of run %s use unknown encoding %q", runID, encoding)
	}
	var names []string
	if err := json.Unmarshal([]byte(namesJSON), &names); err != nil {
		return nil, fmt.Errorf("decode draw names: %w", err)
	}
	return decodeDraws(names, blob, uint64(checksum))
}

// Delete removes a run and its draws.
func (s *RunStore) Delete(ctx context.Context, runID string) error {
	return retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `DELETE FROM projection_draws WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("delete draws: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM projection_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return tx.Commit()
	})
}
