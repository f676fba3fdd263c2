package engine

import (
	"context"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/placescore/affordability-cli/internal/config"
	"github.com/placescore/affordability-cli/internal/db"
	"github.com/placescore/affordability-cli/internal/model"
)

// HousingCalculator computes the housing burden ratio for every
// geography with a usable snapshot: monthly mortgage payment plus
// monthly property tax, over monthly income.
type HousingCalculator struct {
	pool db.Pool
	cfg  config.EngineConfig
}

// NewHousingCalculator creates a housing burden calculator.
func NewHousingCalculator(pool db.Pool, cfg config.EngineConfig) *HousingCalculator {
	return &HousingCalculator{pool: pool, cfg: cfg}
}

const housingInputsQuery = `
WITH latest_snapshot AS (
    SELECT DISTINCT ON (geo_type, geo_id)
        geo_type, geo_id, home_value, median_income, property_tax_rate
    FROM affordability_snapshot
    ORDER BY geo_type, geo_id, as_of_date DESC
),
latest_prop_tax AS (
    SELECT DISTINCT ON (geo_type, geo_id)
        geo_type, geo_id, effective_rate
    FROM property_tax_rate
    ORDER BY geo_type, geo_id, as_of_year DESC
)
SELECT s.geo_type, s.geo_id, s.home_value, s.median_income,
       s.property_tax_rate, p.effective_rate
FROM latest_snapshot s
LEFT JOIN latest_prop_tax p
    ON p.geo_type = s.geo_type AND p.geo_id = s.geo_id
WHERE s.home_value IS NOT NULL AND s.home_value > 0
  AND s.median_income IS NOT NULL AND s.median_income > 0`

const mortgageRateQuery = `
SELECT rate
FROM mortgage_rate
WHERE loan_type = '30 Year Fixed'
ORDER BY as_of_date DESC
LIMIT 1`

// Ratios computes the housing burden ratio for the whole population in
// one bulk query. Geographies missing home value or income are simply
// not returned (the component is absent for them).
func (c *HousingCalculator) Ratios(ctx context.Context) (map[model.GeoKey]float64, error) {
	log := zap.L().With(zap.String("component", "engine.housing"))

	rate, err := c.latestMortgageRate(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("using mortgage rate", zap.Float64("rate", rate))

	rows, err := c.pool.Query(ctx, housingInputsQuery)
	if err != nil {
		return nil, eris.Wrap(err, "engine: housing: query inputs")
	}
	defer rows.Close()

	ratios := make(map[model.GeoKey]float64)
	var fallbacks int
	for rows.Next() {
		var (
			geoType, geoID     string
			homeValue, income  float64
			override, tablePct *float64
		)
		if err := rows.Scan(&geoType, &geoID, &homeValue, &income, &override, &tablePct); err != nil {
			return nil, eris.Wrap(err, "engine: housing: scan row")
		}

		key := model.GeoKey{Type: model.GeoType(geoType), ID: geoID}
		propRate, usedDefault := c.resolvePropertyTaxRate(key, override, tablePct, log)
		if usedDefault {
			fallbacks++
		}

		monthly := monthlyMortgagePayment(homeValue*(1-c.cfg.DownPaymentPct), rate/12, c.cfg.TermMonths)
		monthly += homeValue * propRate / 12
		ratios[key] = monthly / (income / 12)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "engine: housing: iterate rows")
	}

	log.Info("computed housing burden ratios",
		zap.Int("geographies", len(ratios)),
		zap.Int("default_property_tax", fallbacks),
	)
	return ratios, nil
}

// resolvePropertyTaxRate picks the effective property tax rate as a
// decimal: per-geography snapshot override, then the property_tax_rate
// reference table (stored as a percentage), then the configured
// default. Overrides outside a plausible decimal range are ignored
// rather than trusted, since a percentage smuggled into the override
// column would inflate the burden 100x.
func (c *HousingCalculator) resolvePropertyTaxRate(key model.GeoKey, override, tablePct *float64, log *zap.Logger) (rate float64, usedDefault bool) {
	if override != nil {
		if *override > 0 && *override <= 0.10 {
			return *override, false
		}
		log.Warn("ignoring out-of-range property tax override",
			zap.String("geo", key.String()),
			zap.Float64("value", *override),
		)
	}
	if tablePct != nil && *tablePct > 0 && *tablePct <= 10 {
		return *tablePct / 100, false
	}
	return c.cfg.DefaultPropertyTaxRate, true
}

// latestMortgageRate returns the most recent 30-year-fixed rate as a
// decimal, or the configured default when the rate feed is empty.
func (c *HousingCalculator) latestMortgageRate(ctx context.Context) (float64, error) {
	var pct float64
	err := c.pool.QueryRow(ctx, mortgageRateQuery).Scan(&pct)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return c.cfg.DefaultMortgageRate, nil
		}
		return 0, eris.Wrap(err, "engine: housing: query mortgage rate")
	}
	rate, err := percentToDecimal(pct, 25)
	if err != nil {
		return 0, eris.Wrap(err, "engine: housing: mortgage rate")
	}
	return rate, nil
}

// monthlyMortgagePayment is the standard amortization formula for a
// fixed-rate loan. A zero rate degenerates to straight-line principal.
func monthlyMortgagePayment(principal, monthlyRate float64, termMonths int) float64 {
	if monthlyRate <= 0 {
		return principal / float64(termMonths)
	}
	growth := math.Pow(1+monthlyRate, float64(termMonths))
	return principal * monthlyRate * growth / (growth - 1)
}
