package engine

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/placescore/affordability-cli/internal/model"
)

// ErrDegeneratePopulation is returned when fewer than two geographies
// have a usable value, making a percentile rank meaningless.
var ErrDegeneratePopulation = eris.New("engine: fewer than 2 geographies with usable values")

type rankEntry struct {
	key   model.GeoKey
	value float64
}

// fractionalPercentiles assigns each entry its percent rank in [0,100]
// over the whole slice: avgRank/(N-1)*100, where tied values share the
// mean of their ordinal ranks. Entries are sorted by (value, key) so
// re-running on identical input yields identical ranks regardless of
// input order.
func fractionalPercentiles(entries []rankEntry) (map[model.GeoKey]float64, error) {
	n := len(entries)
	if n < 2 {
		return nil, ErrDegeneratePopulation
	}

	sorted := make([]rankEntry, n)
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].value != sorted[j].value {
			return sorted[i].value < sorted[j].value
		}
		return sorted[i].key.Less(sorted[j].key)
	})

	out := make(map[model.GeoKey]float64, n)
	denom := float64(n - 1)
	for i := 0; i < n; {
		j := i
		for j < n && sorted[j].value == sorted[i].value {
			j++
		}
		// Ties receive the average of their ordinal ranks.
		avgRank := float64(i+j-1) / 2
		pct := avgRank / denom * 100
		for k := i; k < j; k++ {
			out[sorted[k].key] = pct
		}
		i = j
	}
	return out, nil
}

// PercentileScores converts raw burden ratios into inverted percentile
// sub-scores across the full population that has the component. Lower
// burden means more affordable, so the percent rank is flipped:
// the lowest ratio scores 100, the highest scores 0. By construction
// the sub-scores are uniform over [0,100] no matter how skewed the
// underlying ratios are.
func PercentileScores(ratios map[model.GeoKey]float64) (map[model.GeoKey]model.BurdenResult, error) {
	entries := make([]rankEntry, 0, len(ratios))
	for key, ratio := range ratios {
		entries = append(entries, rankEntry{key: key, value: ratio})
	}

	percentiles, err := fractionalPercentiles(entries)
	if err != nil {
		return nil, err
	}

	out := make(map[model.GeoKey]model.BurdenResult, len(ratios))
	for key, pct := range percentiles {
		out[key] = model.BurdenResult{
			Ratio:      ratios[key],
			Percentile: pct,
			SubScore:   100 - pct,
		}
	}
	return out, nil
}
