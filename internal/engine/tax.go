package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/placescore/affordability-cli/internal/config"
	"github.com/placescore/affordability-cli/internal/db"
	"github.com/placescore/affordability-cli/internal/model"
)

// TaxCalculator computes the tax burden ratio: state income tax at the
// geography's median-income bracket plus estimated sales tax, over
// income. Property tax is excluded here; it is already part of the
// housing burden.
type TaxCalculator struct {
	pool db.Pool
	cfg  config.EngineConfig
}

// NewTaxCalculator creates a tax burden calculator.
func NewTaxCalculator(pool db.Pool, cfg config.EngineConfig) *TaxCalculator {
	return &TaxCalculator{pool: pool, cfg: cfg}
}

const taxInputsQuery = `
WITH latest_snapshot AS (
    SELECT DISTINCT ON (geo_type, geo_id)
        geo_type, geo_id, median_income
    FROM affordability_snapshot
    ORDER BY geo_type, geo_id, as_of_date DESC
),
geo_state AS (
    SELECT 'CITY' AS geo_type, city_id AS geo_id, state_abbr
    FROM geo_city
    WHERE state_abbr IS NOT NULL
    UNION ALL
    SELECT 'PLACE', place_geoid, state_abbr
    FROM geo_place
    WHERE state_abbr IS NOT NULL
    UNION ALL
    SELECT 'ZCTA', zcta, state_abbr
    FROM geo_zcta
    WHERE state_abbr IS NOT NULL
),
latest_income_tax AS (
    SELECT DISTINCT ON (state_abbr)
        state_abbr, effective_rate_at_50k, effective_rate_at_75k,
        effective_rate_at_100k, effective_rate_at_150k, effective_rate_at_200k
    FROM income_tax_rate
    WHERE local_jurisdiction IS NULL
    ORDER BY state_abbr, tax_year DESC
),
latest_sales_tax AS (
    SELECT DISTINCT ON (geo_id)
        geo_id AS state_abbr, combined_rate
    FROM sales_tax_rate
    WHERE geo_type = 'STATE'
    ORDER BY geo_id, as_of_year DESC
)
SELECT s.geo_type, s.geo_id, s.median_income, gs.state_abbr,
       it.effective_rate_at_50k, it.effective_rate_at_75k,
       it.effective_rate_at_100k, it.effective_rate_at_150k,
       it.effective_rate_at_200k, st.combined_rate
FROM latest_snapshot s
JOIN geo_state gs ON gs.geo_type = s.geo_type AND gs.geo_id = s.geo_id
LEFT JOIN latest_income_tax it ON it.state_abbr = gs.state_abbr
LEFT JOIN latest_sales_tax st ON st.state_abbr = gs.state_abbr
WHERE s.median_income IS NOT NULL AND s.median_income > 0`

// bracketRates holds a state's effective income tax rates by income
// bracket, stored as percentages.
type bracketRates struct {
	at50k, at75k, at100k, at150k, at200k *float64
}

// rateFor selects the bracket rate for a median income. Incomes of
// 150k and above use the 200k bracket rate.
func (b bracketRates) rateFor(income float64) *float64 {
	switch {
	case income < 50_000:
		return b.at50k
	case income < 75_000:
		return b.at75k
	case income < 100_000:
		return b.at100k
	case income < 150_000:
		return b.at150k
	default:
		return b.at200k
	}
}

// Ratios computes the tax burden ratio for every geography whose state
// has both income-tax and sales-tax data. A state with a null rate
// leaves its geographies absent rather than pretending a zero burden,
// which would falsely rank them as the lowest-tax places nationally.
func (c *TaxCalculator) Ratios(ctx context.Context) (map[model.GeoKey]float64, error) {
	log := zap.L().With(zap.String("component", "engine.tax"))

	rows, err := c.pool.Query(ctx, taxInputsQuery)
	if err != nil {
		return nil, eris.Wrap(err, "engine: tax: query inputs")
	}
	defer rows.Close()

	ratios := make(map[model.GeoKey]float64)
	missingState := map[string]bool{}
	for rows.Next() {
		var (
			geoType, geoID string
			income         float64
			stateAbbr      string
			brackets       bracketRates
			salesPct       *float64
		)
		err := rows.Scan(
			&geoType, &geoID, &income, &stateAbbr,
			&brackets.at50k, &brackets.at75k, &brackets.at100k,
			&brackets.at150k, &brackets.at200k, &salesPct,
		)
		if err != nil {
			return nil, eris.Wrap(err, "engine: tax: scan row")
		}

		incomePct := brackets.rateFor(income)
		if incomePct == nil || salesPct == nil {
			missingState[stateAbbr] = true
			continue
		}

		// Rates are stored as percentages; the division below is
		// guarded so a decimal-form rate in the source table fails the
		// run instead of inflating the burden 100x.
		incomeRate, err := percentToDecimal(*incomePct, 25)
		if err != nil {
			return nil, eris.Wrapf(err, "engine: tax: income tax rate for %s", stateAbbr)
		}
		salesRate, err := percentToDecimal(*salesPct, 15)
		if err != nil {
			return nil, eris.Wrapf(err, "engine: tax: sales tax rate for %s", stateAbbr)
		}

		incomeTax := income * incomeRate
		salesTax := (income - incomeTax) * c.cfg.TaxableSpendShare * salesRate

		key := model.GeoKey{Type: model.GeoType(geoType), ID: geoID}
		ratios[key] = (incomeTax + salesTax) / income
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "engine: tax: iterate rows")
	}

	if len(missingState) > 0 {
		states := make([]string, 0, len(missingState))
		for s := range missingState {
			states = append(states, s)
		}
		log.Warn("states with missing tax data skipped", zap.Strings("states", states))
	}
	log.Info("computed tax burden ratios", zap.Int("geographies", len(ratios)))
	return ratios, nil
}
