package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/placescore/affordability-cli/internal/store"
)

// Normalizer is the second pass of a scoring run: it re-expresses the
// persisted weighted composite as a percent rank over the entire score
// population and overwrites it in place. This is what guarantees the
// final distribution is uniform with a median of 50, even when one
// dominant component skews the weighted composite. It must run only
// after all per-geography composites are written, since it needs the
// full output set to rank.
type Normalizer struct {
	scores *store.ScoreStore
}

// NewNormalizer creates a global distribution normalizer.
func NewNormalizer(scores *store.ScoreStore) *Normalizer {
	return &Normalizer{scores: scores}
}

// Run re-ranks all persisted composites and returns the distribution
// of the normalized scores. Composite is already higher-is-better, so
// unlike the component transform the rank is not inverted.
func (n *Normalizer) Run(ctx context.Context) (Distribution, error) {
	log := zap.L().With(zap.String("component", "engine.normalize"))

	composites, err := n.scores.Composites(ctx)
	if err != nil {
		return Distribution{}, err
	}
	if len(composites) < 2 {
		log.Warn("score population too small to normalize",
			zap.Int("records", len(composites)),
		)
		values := make([]float64, len(composites))
		for i, c := range composites {
			values[i] = c.Score
		}
		return Summarize(values), nil
	}

	entries := make([]rankEntry, len(composites))
	for i, c := range composites {
		entries[i] = rankEntry{key: c.Key, value: c.Score}
	}
	percentiles, err := fractionalPercentiles(entries)
	if err != nil {
		return Distribution{}, eris.Wrap(err, "engine: normalize: rank composites")
	}

	normalized := make([]store.Composite, len(composites))
	values := make([]float64, len(composites))
	for i, c := range composites {
		pct := percentiles[c.Key]
		normalized[i] = store.Composite{Key: c.Key, Score: pct}
		values[i] = pct
	}

	if _, err := n.scores.UpdateComposites(ctx, normalized); err != nil {
		return Distribution{}, err
	}

	dist := Summarize(values)
	log.Info("normalized composite scores",
		zap.Int("records", dist.Count),
		zap.Float64("median", dist.Median),
	)
	return dist, nil
}
