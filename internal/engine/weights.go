package engine

import (
	"github.com/rotisserie/eris"

	"github.com/placescore/affordability-cli/internal/config"
	"github.com/placescore/affordability-cli/internal/model"
)

// WeightingPolicy decides how the sub-scores present for a geography
// combine into one composite. Exactly one policy is active per run;
// the two built-in policies produce materially different composites
// for the same inputs and must never be mixed.
type WeightingPolicy interface {
	// Name is the policy identifier recorded with each run.
	Name() string
	// Weights returns normalized weights (summing to 1) over the
	// components present in sub. A nil result means the geography
	// cannot be scored under this policy and is skipped.
	Weights(sub map[Component]model.BurdenResult) map[Component]float64
}

// NewWeightingPolicy builds the policy named by the engine config.
func NewWeightingPolicy(cfg config.EngineConfig) (WeightingPolicy, error) {
	switch cfg.Policy {
	case config.PolicyFixed:
		return &FixedPolicy{weights: cfg.Weights}, nil
	case config.PolicyBurden:
		return &BurdenProportionalPolicy{}, nil
	}
	return nil, eris.Errorf("engine: unknown weighting policy %q", cfg.Policy)
}

// FixedPolicy uses configured population-wide weights, renormalized
// over only the components present for each geography so the applied
// weights always sum to 1.
type FixedPolicy struct {
	weights config.WeightsConfig
}

func (p *FixedPolicy) Name() string { return config.PolicyFixed }

func (p *FixedPolicy) Weights(sub map[Component]model.BurdenResult) map[Component]float64 {
	configured := map[Component]float64{
		ComponentHousing: p.weights.Housing,
		ComponentCOL:     p.weights.COL,
		ComponentTax:     p.weights.Tax,
		ComponentQOL:     p.weights.QOL,
	}

	var total float64
	for comp := range sub {
		total += configured[comp]
	}
	if total <= 0 {
		return nil
	}

	out := make(map[Component]float64, len(sub))
	for comp := range sub {
		out[comp] = configured[comp] / total
	}
	return out
}

// BurdenProportionalPolicy derives each weight from the component's
// share of the geography's total observed burden, so the composite
// reflects the local cost structure rather than a national prior.
type BurdenProportionalPolicy struct{}

func (p *BurdenProportionalPolicy) Name() string { return config.PolicyBurden }

func (p *BurdenProportionalPolicy) Weights(sub map[Component]model.BurdenResult) map[Component]float64 {
	var total float64
	for _, r := range sub {
		total += r.Ratio
	}
	if total <= 0 {
		return nil
	}

	out := make(map[Component]float64, len(sub))
	for comp, r := range sub {
		out[comp] = r.Ratio / total
	}
	return out
}
