package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/placescore/affordability-cli/internal/config"
	"github.com/placescore/affordability-cli/internal/db"
	"github.com/placescore/affordability-cli/internal/model"
)

// COLCalculator computes the cost-of-living burden ratio: the
// non-housing portion of the county cost basket over annual income.
// A geography enters the population only when it resolves to a county
// FIPS with basket data; county resolution failure is the dominant
// cause of absent COL scores.
type COLCalculator struct {
	pool db.Pool
	cfg  config.EngineConfig
}

// NewCOLCalculator creates a cost-of-living burden calculator.
func NewCOLCalculator(pool db.Pool, cfg config.EngineConfig) *COLCalculator {
	return &COLCalculator{pool: pool, cfg: cfg}
}

const colInputsQuery = `
WITH latest_snapshot AS (
    SELECT DISTINCT ON (geo_type, geo_id)
        geo_type, geo_id, median_income
    FROM affordability_snapshot
    ORDER BY geo_type, geo_id, as_of_date DESC
),
geo_county AS (
    SELECT 'CITY' AS geo_type, city_id AS geo_id, county_fips
    FROM geo_city
    WHERE county_fips IS NOT NULL
    UNION ALL
    SELECT 'PLACE', place_geoid, state_fips || county_fips
    FROM geo_place
    WHERE county_fips IS NOT NULL
    UNION ALL
    SELECT 'ZCTA', zcta, county_fips
    FROM geo_zcta
    WHERE county_fips IS NOT NULL
),
latest_basket AS (
    SELECT DISTINCT ON (county_fips)
        county_fips, total_annual, COALESCE(housing, 0) AS housing
    FROM cost_basket
    WHERE household_type = $1
    ORDER BY county_fips, updated_at DESC
)
SELECT s.geo_type, s.geo_id, b.total_annual, b.housing, s.median_income
FROM latest_snapshot s
JOIN geo_county gc ON gc.geo_type = s.geo_type AND gc.geo_id = s.geo_id
JOIN latest_basket b ON b.county_fips = gc.county_fips
WHERE s.median_income IS NOT NULL AND s.median_income > 0`

// Ratios computes the COL burden ratio for every geography that
// resolves to a county with basket data, in one bulk query.
func (c *COLCalculator) Ratios(ctx context.Context) (map[model.GeoKey]float64, error) {
	log := zap.L().With(zap.String("component", "engine.col"))

	rows, err := c.pool.Query(ctx, colInputsQuery, c.cfg.HouseholdType)
	if err != nil {
		return nil, eris.Wrap(err, "engine: col: query inputs")
	}
	defer rows.Close()

	ratios := make(map[model.GeoKey]float64)
	for rows.Next() {
		var (
			geoType, geoID string
			totalAnnual    float64
			housing        float64
			income         float64
		)
		if err := rows.Scan(&geoType, &geoID, &totalAnnual, &housing, &income); err != nil {
			return nil, eris.Wrap(err, "engine: col: scan row")
		}
		key := model.GeoKey{Type: model.GeoType(geoType), ID: geoID}
		ratios[key] = (totalAnnual - housing) / income
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "engine: col: iterate rows")
	}

	log.Info("computed cost-of-living burden ratios",
		zap.String("household_type", c.cfg.HouseholdType),
		zap.Int("geographies", len(ratios)),
	)
	return ratios, nil
}
