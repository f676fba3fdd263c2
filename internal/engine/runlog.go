package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/placescore/affordability-cli/internal/db"
)

// Run statuses recorded in afford.score_run.
const (
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
)

// RunEntry is a row in afford.score_run, the audit trail of scoring runs.
type RunEntry struct {
	ID             uuid.UUID  `json:"id"`
	Policy         string     `json:"policy"`
	Status         string     `json:"status"`
	HousingCount   int        `json:"housing_count"`
	COLCount       int        `json:"col_count"`
	TaxCount       int        `json:"tax_count"`
	RecordsWritten int64      `json:"records_written"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// RunCounts holds the per-component and output tallies of a finished run.
type RunCounts struct {
	Housing        int
	COL            int
	Tax            int
	RecordsWritten int64
}

// RunLog provides read/write access to afford.score_run.
type RunLog struct {
	pool db.Pool
}

// NewRunLog creates a RunLog backed by the given pool.
func NewRunLog(pool db.Pool) *RunLog {
	return &RunLog{pool: pool}
}

// Start records the beginning of a scoring run and returns its ID.
func (l *RunLog) Start(ctx context.Context, policy string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := l.pool.Exec(ctx,
		`INSERT INTO afford.score_run (id, policy, status, started_at)
		 VALUES ($1, $2, $3, now())`,
		id, policy, RunStatusRunning,
	)
	if err != nil {
		return uuid.Nil, eris.Wrap(err, "runlog: start run")
	}
	return id, nil
}

// Complete marks a run as successfully finished with its tallies.
func (l *RunLog) Complete(ctx context.Context, id uuid.UUID, counts RunCounts) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE afford.score_run
		 SET status = $1, housing_count = $2, col_count = $3, tax_count = $4,
		     records_written = $5, completed_at = now()
		 WHERE id = $6`,
		RunStatusComplete, counts.Housing, counts.COL, counts.Tax,
		counts.RecordsWritten, id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: complete run %s", id)
	}
	return nil
}

// Fail marks a run as failed, keeping the error text for the status
// command.
func (l *RunLog) Fail(ctx context.Context, id uuid.UUID, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	_, err := l.pool.Exec(ctx,
		`UPDATE afford.score_run
		 SET status = $1, error = $2, completed_at = now()
		 WHERE id = $3`,
		RunStatusFailed, msg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: fail run %s", id)
	}
	return nil
}

// Latest returns the most recently started run, or nil when no run has
// ever been recorded.
func (l *RunLog) Latest(ctx context.Context) (*RunEntry, error) {
	row := l.pool.QueryRow(ctx,
		`SELECT id, policy, status, housing_count, col_count, tax_count,
		        records_written, COALESCE(error, ''), started_at, completed_at
		 FROM afford.score_run
		 ORDER BY started_at DESC
		 LIMIT 1`)

	var e RunEntry
	err := row.Scan(
		&e.ID, &e.Policy, &e.Status, &e.HousingCount, &e.COLCount, &e.TaxCount,
		&e.RecordsWritten, &e.Error, &e.StartedAt, &e.CompletedAt,
	)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "runlog: query latest run")
	}
	return &e, nil
}
