package engine

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/placescore/affordability-cli/internal/model"
)

// ComponentResults holds the per-component transformer output for the
// whole population. A geography missing from a map has that component
// absent.
type ComponentResults map[Component]map[model.GeoKey]model.BurdenResult

// Compose combines per-component sub-scores into one ScoreRecord per
// geography under the given policy. Geographies where the policy
// yields no weights (zero usable components, or zero total burden
// under the proportional policy) are skipped entirely, not written
// with a zero score. Output is sorted by (geoType, geoId) so a rerun
// on identical inputs produces identical records.
func Compose(results ComponentResults, policy WeightingPolicy, calculatedAt time.Time) []model.ScoreRecord {
	keys := make(map[model.GeoKey]bool)
	for _, byGeo := range results {
		for key := range byGeo {
			keys[key] = true
		}
	}

	records := make([]model.ScoreRecord, 0, len(keys))
	var skipped int
	for key := range keys {
		sub := make(map[Component]model.BurdenResult, len(scoredComponents))
		for _, comp := range scoredComponents {
			if r, ok := results[comp][key]; ok {
				sub[comp] = r
			}
		}

		weights := policy.Weights(sub)
		if weights == nil {
			skipped++
			continue
		}

		var composite float64
		for comp, w := range weights {
			composite += sub[comp].SubScore * w
		}

		rec := model.ScoreRecord{
			Key:            key,
			CompositeScore: composite,
			DataQuality:    classifyQuality(len(sub)),
			CalculatedAt:   calculatedAt,
		}
		if r, ok := sub[ComponentHousing]; ok {
			rec.HousingScore = ptr(r.SubScore)
			rec.HousingBurdenRatio = ptr(r.Ratio)
		}
		if r, ok := sub[ComponentCOL]; ok {
			rec.COLScore = ptr(r.SubScore)
			rec.COLBurdenRatio = ptr(r.Ratio)
		}
		if r, ok := sub[ComponentTax]; ok {
			rec.TaxScore = ptr(r.SubScore)
			rec.TaxBurdenRatio = ptr(r.Ratio)
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Key.Less(records[j].Key)
	})

	zap.L().Info("composed scores",
		zap.String("policy", policy.Name()),
		zap.Int("records", len(records)),
		zap.Int("skipped", skipped),
	)
	return records
}

// classifyQuality labels a record by how many burden components were
// computable: 2+ complete, exactly 1 partial, otherwise minimal. A
// minimal record never reaches the store since zero components means
// the geography is skipped.
func classifyQuality(present int) model.DataQuality {
	switch {
	case present >= 2:
		return model.QualityComplete
	case present == 1:
		return model.QualityPartial
	default:
		return model.QualityMinimal
	}
}

func ptr(v float64) *float64 { return &v }
