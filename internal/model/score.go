package model

import "time"

// DataQuality classifies a score record by how many burden components
// were computable for the geography.
type DataQuality string

const (
	QualityComplete DataQuality = "complete" // 2+ components
	QualityPartial  DataQuality = "partial"  // exactly 1 component
	QualityMinimal  DataQuality = "minimal"  // none (never persisted)
)

// BurdenResult is the per-component intermediate produced by a burden
// calculator and the percentile transformer. It lives for one scoring
// pass and is never persisted on its own.
type BurdenResult struct {
	Ratio      float64 `json:"ratio"`
	Percentile float64 `json:"percentile"` // 0-100 fractional percent rank
	SubScore   float64 `json:"sub_score"`  // 100 - Percentile
}

// ScoreRecord is the persisted output row, one per geography. Component
// scores and ratios are nil when that component was absent for the
// geography; CompositeScore is always set (a geography with zero usable
// components is skipped, not written).
type ScoreRecord struct {
	Key GeoKey `json:"key"`

	HousingScore *float64 `json:"housing_score,omitempty"`
	COLScore     *float64 `json:"col_score,omitempty"`
	TaxScore     *float64 `json:"tax_score,omitempty"`
	QOLScore     *float64 `json:"qol_score,omitempty"` // reserved; always nil

	CompositeScore float64 `json:"composite_score"`

	HousingBurdenRatio *float64 `json:"housing_burden_ratio,omitempty"`
	COLBurdenRatio     *float64 `json:"col_burden_ratio,omitempty"`
	TaxBurdenRatio     *float64 `json:"tax_burden_ratio,omitempty"`

	DataQuality  DataQuality `json:"data_quality"`
	CalculatedAt time.Time   `json:"calculated_at"`
}
