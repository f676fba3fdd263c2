package engine

import "github.com/rotisserie/eris"

// percentToDecimal converts a rate stored as a percentage (4.56 means
// 4.56%) into decimal form. Values outside [0, maxPct] cannot be a
// percentage in the expected range and indicate the source table holds
// the wrong unit; mixing percentage and decimal forms silently inflates
// burden ratios 100x, so this fails loudly instead of propagating.
func percentToDecimal(pct, maxPct float64) (float64, error) {
	if pct < 0 || pct > maxPct {
		return 0, eris.Errorf("engine: rate %.4f outside expected percentage range [0, %.0f]; check source table units", pct, maxPct)
	}
	return pct / 100, nil
}
