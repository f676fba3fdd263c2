package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ValidatesConfig(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := testEngineConfig()
	cfg.TermMonths = 0
	_, err = New(mock, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "term_months")

	cfg = testEngineConfig()
	cfg.Policy = "bogus"
	_, err = New(mock, cfg)
	require.Error(t, err)
}

// expectCalculatorQueries wires the three bulk input queries. They run
// concurrently, so expectations must not be order-matched.
func expectCalculatorQueries(mock pgxmock.PgxPoolIface, housingRows, colRows, taxRows *pgxmock.Rows) {
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery("FROM mortgage_rate").
		WillReturnRows(pgxmock.NewRows([]string{"rate"}).AddRow(6.5))
	mock.ExpectQuery("latest_prop_tax").WillReturnRows(housingRows)
	mock.ExpectQuery("latest_basket").
		WithArgs("2_adults_0_kids").
		WillReturnRows(colRows)
	mock.ExpectQuery("latest_income_tax").WillReturnRows(taxRows)
}

func housingInputRows(geos ...string) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{
		"geo_type", "geo_id", "home_value", "median_income", "property_tax_rate", "effective_rate",
	})
	for i, g := range geos {
		rows.AddRow("CITY", g, 300_000.0+float64(i)*50_000, 80_000.0, nil, nil)
	}
	return rows
}

func colInputRows(geos ...string) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{
		"geo_type", "geo_id", "total_annual", "housing", "median_income",
	})
	for i, g := range geos {
		rows.AddRow("CITY", g, 40_000.0+float64(i)*2_000, 12_000.0, 80_000.0)
	}
	return rows
}

func taxInputRows(geos ...string) *pgxmock.Rows {
	rows := pgxmock.NewRows(taxRowColumns())
	for i, g := range geos {
		rows.AddRow("CITY", g, 80_000.0+float64(i)*1_000, "GA",
			ptr(2.0), ptr(3.0), ptr(4.0), ptr(5.0), ptr(5.5), ptr(7.0))
	}
	return rows
}

func TestEngine_DryRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectCalculatorQueries(mock,
		housingInputRows("a", "b", "c"),
		colInputRows("a", "b"),
		taxInputRows("a", "b", "c"),
	)
	// Dry run: no run-log insert, no score writes, no normalizer pass.

	e, err := New(mock, testEngineConfig(), WithDryRun(true))
	require.NoError(t, err)

	report, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.True(t, report.DryRun)
	assert.Equal(t, uuid.Nil, report.RunID)
	assert.Equal(t, "fixed", report.Policy)
	assert.Equal(t, 3, report.Counts.Housing)
	assert.Equal(t, 2, report.Counts.COL)
	assert.Equal(t, 3, report.Counts.Tax)
	assert.Equal(t, int64(0), report.Counts.RecordsWritten)
	assert.Empty(t, report.SkippedComponents)

	// Projected distribution ranks the three composed geographies.
	assert.Equal(t, 3, report.Distribution.Count)
	assert.InDelta(t, 50, report.Distribution.Median, 1e-9)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_DryRun_DegenerateComponentSkipped(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// Only one geography has tax data: that component cannot be ranked
	// and is skipped, while the run proceeds on the other two.
	expectCalculatorQueries(mock,
		housingInputRows("a", "b", "c"),
		colInputRows("a", "b", "c"),
		taxInputRows("a"),
	)

	e, err := New(mock, testEngineConfig(), WithDryRun(true))
	require.NoError(t, err)

	report, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []Component{ComponentTax}, report.SkippedComponents)
	assert.Equal(t, 3, report.Distribution.Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_DryRun_NoScoreableComponent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectCalculatorQueries(mock,
		housingInputRows("a"),
		colInputRows(),
		taxInputRows(),
	)

	e, err := New(mock, testEngineConfig(), WithDryRun(true))
	require.NoError(t, err)

	_, err = e.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no component produced a scoreable population")
	assert.NoError(t, mock.ExpectationsWereMet())
}
