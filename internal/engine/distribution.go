package engine

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Distribution summarizes a set of composite scores. After the global
// normalizer runs, Median sits at 50 (by construction) and the decile
// shares are each close to 0.10.
type Distribution struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	// DecileShares[i] is the fraction of scores in [10i, 10(i+1)),
	// with the last bucket closed at 100.
	DecileShares [10]float64 `json:"decile_shares"`
}

// Summarize computes distribution statistics over composite scores.
func Summarize(values []float64) Distribution {
	d := Distribution{Count: len(values)}
	if len(values) == 0 {
		return d
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	d.Mean = stat.Mean(sorted, nil)
	d.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	d.Min = sorted[0]
	d.Max = sorted[len(sorted)-1]

	for _, v := range sorted {
		bucket := int(v / 10)
		if bucket > 9 {
			bucket = 9 // 100 belongs to the top decile
		}
		d.DecileShares[bucket]++
	}
	for i := range d.DecileShares {
		d.DecileShares[i] /= float64(len(sorted))
	}
	return d
}

// String renders the summary for run reports and the status command.
func (d Distribution) String() string {
	if d.Count == 0 {
		return "no scores"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "n=%d mean=%.2f median=%.2f min=%.2f max=%.2f\n",
		d.Count, d.Mean, d.Median, d.Min, d.Max)
	for i, share := range d.DecileShares {
		fmt.Fprintf(&b, "  [%3d-%3d) %5.1f%%\n", i*10, (i+1)*10, share*100)
	}
	return b.String()
}
