// Package store owns the engine's persisted output: the afford.score
// table and its read paths. The engine is the only writer; downstream
// consumers read at any time, including mid-run.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/placescore/affordability-cli/internal/db"
	"github.com/placescore/affordability-cli/internal/model"
)

// ScoreStore reads and writes afford.score rows.
type ScoreStore struct {
	pool db.Pool
}

// New creates a ScoreStore backed by the given pool.
func New(pool db.Pool) *ScoreStore {
	return &ScoreStore{pool: pool}
}

var scoreColumns = []string{
	"geo_type", "geo_id",
	"housing_score", "col_score", "tax_score", "qol_score",
	"composite_score",
	"housing_burden_ratio", "col_burden_ratio", "tax_burden_ratio",
	"data_quality", "calculated_at",
}

// UpsertScores writes records keyed by (geo_type, geo_id), overwriting
// every component score, ratio, composite, quality label, and the
// calculated-at timestamp on conflict. Rerunning with unchanged inputs
// is idempotent apart from calculated_at.
func (s *ScoreStore) UpsertScores(ctx context.Context, records []model.ScoreRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{
			string(r.Key.Type), r.Key.ID,
			r.HousingScore, r.COLScore, r.TaxScore, r.QOLScore,
			r.CompositeScore,
			r.HousingBurdenRatio, r.COLBurdenRatio, r.TaxBurdenRatio,
			string(r.DataQuality), r.CalculatedAt,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertSpec{
		Schema:       "afford",
		Table:        "score",
		Columns:      scoreColumns,
		ConflictKeys: []string{"geo_type", "geo_id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "store: upsert scores")
	}

	zap.L().Info("store: scores upserted", zap.Int64("rows", n))
	return n, nil
}

// Composite pairs a geography with its current composite score.
type Composite struct {
	Key   model.GeoKey
	Score float64
}

// Composites returns every persisted composite score, ordered by
// (geo_type, geo_id) for deterministic downstream ranking.
func (s *ScoreStore) Composites(ctx context.Context) ([]Composite, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT geo_type, geo_id, composite_score
		 FROM afford.score
		 ORDER BY geo_type, geo_id`)
	if err != nil {
		return nil, eris.Wrap(err, "store: query composites")
	}
	defer rows.Close()

	var out []Composite
	for rows.Next() {
		var c Composite
		var geoType string
		if err := rows.Scan(&geoType, &c.Key.ID, &c.Score); err != nil {
			return nil, eris.Wrap(err, "store: scan composite")
		}
		c.Key.Type = model.GeoType(geoType)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate composites")
	}
	return out, nil
}

// UpdateComposites overwrites composite_score in place for the given
// geographies. Used by the global normalizer's second pass. Every key
// already exists, so this is a set-based UPDATE against unnested
// arrays rather than the staged upsert path: staging through a table
// cloned with LIKE would carry the score table's not-null constraints
// onto columns this write never touches.
func (s *ScoreStore) UpdateComposites(ctx context.Context, composites []Composite) (int64, error) {
	if len(composites) == 0 {
		return 0, nil
	}

	geoTypes := make([]string, len(composites))
	geoIDs := make([]string, len(composites))
	scores := make([]float64, len(composites))
	for i, c := range composites {
		geoTypes[i] = string(c.Key.Type)
		geoIDs[i] = c.Key.ID
		scores[i] = c.Score
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE afford.score AS s
		 SET composite_score = v.composite_score
		 FROM (
		     SELECT unnest($1::text[]) AS geo_type,
		            unnest($2::text[]) AS geo_id,
		            unnest($3::float8[]) AS composite_score
		 ) AS v
		 WHERE s.geo_type = v.geo_type AND s.geo_id = v.geo_id`,
		geoTypes, geoIDs, scores,
	)
	if err != nil {
		return 0, eris.Wrap(err, "store: update composites")
	}
	return tag.RowsAffected(), nil
}

const scoreSelect = `
SELECT geo_type, geo_id,
       housing_score, col_score, tax_score, qol_score,
       composite_score,
       housing_burden_ratio, col_burden_ratio, tax_burden_ratio,
       data_quality, calculated_at
FROM afford.score`

// Get returns the current score record for one geography, or nil when
// it has not been scored.
func (s *ScoreStore) Get(ctx context.Context, key model.GeoKey) (*model.ScoreRecord, error) {
	row := s.pool.QueryRow(ctx, scoreSelect+` WHERE geo_type = $1 AND geo_id = $2`,
		string(key.Type), key.ID)

	rec, err := scanScore(row)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "store: get score %s", key)
	}
	return rec, nil
}

// Rankings returns up to limit records ordered by composite score
// descending, optionally filtered by geography type. Ties order by
// (geo_type, geo_id) so pagination is stable.
func (s *ScoreStore) Rankings(ctx context.Context, geoType *model.GeoType, limit int) ([]model.ScoreRecord, error) {
	query := scoreSelect
	args := []any{limit}
	if geoType != nil {
		query += ` WHERE geo_type = $2`
		args = append(args, string(*geoType))
	}
	query += ` ORDER BY composite_score DESC, geo_type, geo_id LIMIT $1`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: query rankings")
	}
	defer rows.Close()

	var out []model.ScoreRecord
	for rows.Next() {
		rec, err := scanScore(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan ranking")
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate rankings")
	}
	return out, nil
}

// CoverageRow summarizes stored scores for one (geo type, quality) cell.
type CoverageRow struct {
	GeoType model.GeoType     `json:"geo_type"`
	Quality model.DataQuality `json:"data_quality"`
	Count   int64             `json:"count"`
}

// Coverage reports how many score rows exist per geography type and
// data quality tier.
func (s *ScoreStore) Coverage(ctx context.Context) ([]CoverageRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT geo_type, data_quality, COUNT(*)
		 FROM afford.score
		 GROUP BY geo_type, data_quality
		 ORDER BY geo_type, data_quality`)
	if err != nil {
		return nil, eris.Wrap(err, "store: query coverage")
	}
	defer rows.Close()

	var out []CoverageRow
	for rows.Next() {
		var r CoverageRow
		var geoType, quality string
		if err := rows.Scan(&geoType, &quality, &r.Count); err != nil {
			return nil, eris.Wrap(err, "store: scan coverage")
		}
		r.GeoType = model.GeoType(geoType)
		r.Quality = model.DataQuality(quality)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate coverage")
	}
	return out, nil
}

// scanScore scans one afford.score row.
func scanScore(row pgx.Row) (*model.ScoreRecord, error) {
	var rec model.ScoreRecord
	var geoType, quality string
	err := row.Scan(
		&geoType, &rec.Key.ID,
		&rec.HousingScore, &rec.COLScore, &rec.TaxScore, &rec.QOLScore,
		&rec.CompositeScore,
		&rec.HousingBurdenRatio, &rec.COLBurdenRatio, &rec.TaxBurdenRatio,
		&quality, &rec.CalculatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Key.Type = model.GeoType(geoType)
	rec.DataQuality = model.DataQuality(quality)
	return &rec, nil
}
