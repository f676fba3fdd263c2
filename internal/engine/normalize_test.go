package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placescore/affordability-cli/internal/store"
)

// expectCompositeUpdate sets up the pgxmock expectation for the
// composite rewrite: a single set-based UPDATE over unnested arrays.
// The rewrite must not go through the staged upsert path, whose temp
// table would inherit not-null constraints on columns it never fills.
func expectCompositeUpdate(m pgxmock.PgxPoolIface, n int64) {
	m.ExpectExec("UPDATE afford.score").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", n))
}

func TestNormalizer_UniformOutput(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// Heavily skewed composites: normalization cares only about order.
	rows := pgxmock.NewRows([]string{"geo_type", "geo_id", "composite_score"}).
		AddRow("CITY", "a", 12.0).
		AddRow("CITY", "b", 13.0).
		AddRow("CITY", "c", 14.0).
		AddRow("CITY", "d", 14.5).
		AddRow("CITY", "e", 97.0)
	mock.ExpectQuery("SELECT geo_type, geo_id, composite_score").WillReturnRows(rows)
	expectCompositeUpdate(mock, 5)

	n := NewNormalizer(store.New(mock))
	dist, err := n.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, dist.Count)
	assert.InDelta(t, 0, dist.Min, 1e-9)
	assert.InDelta(t, 100, dist.Max, 1e-9)
	assert.InDelta(t, 50, dist.Median, 1e-9)
	assert.InDelta(t, 50, dist.Mean, 1e-9)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNormalizer_RankNotInverted(t *testing.T) {
	// Composite is already higher-is-better: the best composite must end
	// at 100, not 0. Verified through the distribution endpoints on a
	// two-record population where order is fully determined.
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"geo_type", "geo_id", "composite_score"}).
		AddRow("CITY", "best", 90.0).
		AddRow("CITY", "worst", 10.0)
	mock.ExpectQuery("SELECT geo_type, geo_id, composite_score").WillReturnRows(rows)
	expectCompositeUpdate(mock, 2)

	n := NewNormalizer(store.New(mock))
	dist, err := n.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, dist.Count)
	assert.InDelta(t, 0, dist.Min, 1e-9)
	assert.InDelta(t, 100, dist.Max, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNormalizer_SmallPopulationSkipsRewrite(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"geo_type", "geo_id", "composite_score"}).
		AddRow("CITY", "only", 42.0)
	mock.ExpectQuery("SELECT geo_type, geo_id, composite_score").WillReturnRows(rows)
	// No write expectations: a single record cannot be ranked.

	n := NewNormalizer(store.New(mock))
	dist, err := n.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dist.Count)
	assert.InDelta(t, 42, dist.Median, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNormalizer_ReadError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT geo_type, geo_id, composite_score").
		WillReturnError(fmt.Errorf("connection refused"))

	n := NewNormalizer(store.New(mock))
	_, err = n.Run(context.Background())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
