package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/placescore/affordability-cli/internal/config"
	"github.com/placescore/affordability-cli/internal/db"
	"github.com/placescore/affordability-cli/internal/model"
	"github.com/placescore/affordability-cli/internal/store"
)

// Engine runs the full scoring pipeline: burden calculators, the
// percentile transform, weighted composition, the score store, and the
// global normalizer second pass.
type Engine struct {
	pool   db.Pool
	cfg    config.EngineConfig
	policy WeightingPolicy
	scores *store.ScoreStore
	runs   *RunLog
	dryRun bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithDryRun computes scores and the projected distribution without
// writing anything.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) { e.dryRun = dryRun }
}

// New creates an Engine for the given pool and configuration.
func New(pool db.Pool, cfg config.EngineConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := NewWeightingPolicy(cfg)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		pool:   pool,
		cfg:    cfg,
		policy: policy,
		scores: store.New(pool),
		runs:   NewRunLog(pool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RunReport summarizes a completed scoring run.
type RunReport struct {
	RunID             uuid.UUID    `json:"run_id,omitempty"`
	Policy            string       `json:"policy"`
	Counts            RunCounts    `json:"counts"`
	SkippedComponents []Component  `json:"skipped_components,omitempty"`
	Distribution      Distribution `json:"distribution"`
	DryRun            bool         `json:"dry_run"`
}

// Run executes one full scoring pass over the entire geography
// population. Per-geography data gaps never abort the run; a component
// whose population is degenerate is skipped with a warning; a run
// where no component is scoreable, or any infrastructure failure, is
// fatal.
func (e *Engine) Run(ctx context.Context) (*RunReport, error) {
	log := zap.L().With(zap.String("component", "engine"))
	log.Info("starting scoring run",
		zap.String("policy", e.policy.Name()),
		zap.Bool("dry_run", e.dryRun),
	)

	runID := uuid.Nil
	if !e.dryRun {
		var err error
		runID, err = e.runs.Start(ctx, e.policy.Name())
		if err != nil {
			return nil, err
		}
	}

	report, err := e.run(ctx, runID)
	if err != nil {
		if runID != uuid.Nil {
			if failErr := e.runs.Fail(ctx, runID, err); failErr != nil {
				log.Warn("could not record run failure", zap.Error(failErr))
			}
		}
		return nil, err
	}
	return report, nil
}

func (e *Engine) run(ctx context.Context, runID uuid.UUID) (*RunReport, error) {
	log := zap.L().With(zap.String("component", "engine"))

	// The three calculators are independent bulk queries; each is a
	// single pass over the whole population.
	var housing, col, tax map[model.GeoKey]float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		housing, err = NewHousingCalculator(e.pool, e.cfg).Ratios(gctx)
		return err
	})
	g.Go(func() (err error) {
		col, err = NewCOLCalculator(e.pool, e.cfg).Ratios(gctx)
		return err
	})
	g.Go(func() (err error) {
		tax, err = NewTaxCalculator(e.pool, e.cfg).Ratios(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ratios := map[Component]map[model.GeoKey]float64{
		ComponentHousing: housing,
		ComponentCOL:     col,
		ComponentTax:     tax,
	}

	results := make(ComponentResults, len(scoredComponents))
	var skipped []Component
	for _, comp := range scoredComponents {
		scores, err := PercentileScores(ratios[comp])
		if err != nil {
			if eris.Is(err, ErrDegeneratePopulation) {
				log.Warn("component population degenerate, skipping",
					zap.String("burden_component", string(comp)),
					zap.Int("geographies", len(ratios[comp])),
				)
				skipped = append(skipped, comp)
				continue
			}
			return nil, err
		}
		results[comp] = scores
	}
	if len(results) == 0 {
		return nil, eris.New("engine: no component produced a scoreable population")
	}

	records := Compose(results, e.policy, time.Now().UTC())

	counts := RunCounts{
		Housing: len(results[ComponentHousing]),
		COL:     len(results[ComponentCOL]),
		Tax:     len(results[ComponentTax]),
	}

	var dist Distribution
	if e.dryRun {
		dist = e.projectedDistribution(records)
	} else {
		written, err := e.scores.UpsertScores(ctx, records)
		if err != nil {
			return nil, err
		}
		counts.RecordsWritten = written

		// Second pass: the normalizer needs every composite persisted
		// before it can rank the population.
		dist, err = NewNormalizer(e.scores).Run(ctx)
		if err != nil {
			return nil, err
		}

		if err := e.runs.Complete(ctx, runID, counts); err != nil {
			return nil, err
		}
	}

	log.Info("scoring run finished",
		zap.Int("housing", counts.Housing),
		zap.Int("col", counts.COL),
		zap.Int("tax", counts.Tax),
		zap.Int64("records_written", counts.RecordsWritten),
		zap.Float64("median_composite", dist.Median),
	)

	return &RunReport{
		RunID:             runID,
		Policy:            e.policy.Name(),
		Counts:            counts,
		SkippedComponents: skipped,
		Distribution:      dist,
		DryRun:            e.dryRun,
	}, nil
}

// projectedDistribution previews what the normalizer would persist,
// ranking the composed records in memory.
func (e *Engine) projectedDistribution(records []model.ScoreRecord) Distribution {
	if len(records) < 2 {
		values := make([]float64, len(records))
		for i, r := range records {
			values[i] = r.CompositeScore
		}
		return Summarize(values)
	}

	entries := make([]rankEntry, len(records))
	for i, r := range records {
		entries[i] = rankEntry{key: r.Key, value: r.CompositeScore}
	}
	percentiles, err := fractionalPercentiles(entries)
	if err != nil {
		return Distribution{}
	}
	values := make([]float64, 0, len(percentiles))
	for _, pct := range percentiles {
		values = append(values, pct)
	}
	return Summarize(values)
}
