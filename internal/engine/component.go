// Package engine implements the affordability percentile scoring
// engine: burden ratio calculators, the rank-based score transform,
// weighted composition, and the global distribution normalizer.
package engine

// Component identifies one burden dimension of the composite score.
type Component string

const (
	ComponentHousing Component = "housing"
	ComponentCOL     Component = "col"
	ComponentTax     Component = "tax"
	ComponentQOL     Component = "qol" // reserved; no calculator produces it
)

// scoredComponents lists the components a scoring run computes, in
// reporting order.
var scoredComponents = []Component{ComponentHousing, ComponentCOL, ComponentTax}
