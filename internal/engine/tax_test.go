package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placescore/affordability-cli/internal/model"
)

func TestBracketRates_RateFor(t *testing.T) {
	b := bracketRates{
		at50k:  ptr(2.0),
		at75k:  ptr(3.0),
		at100k: ptr(4.0),
		at150k: ptr(5.0),
		at200k: ptr(6.0),
	}

	tests := []struct {
		income float64
		want   float64
	}{
		{income: 30_000, want: 2.0},
		{income: 49_999, want: 2.0},
		{income: 50_000, want: 3.0},
		{income: 74_999, want: 3.0},
		{income: 75_000, want: 4.0},
		{income: 100_000, want: 5.0},
		{income: 149_999, want: 5.0},
		{income: 150_000, want: 6.0},
		{income: 500_000, want: 6.0},
	}
	for _, tt := range tests {
		got := b.rateFor(tt.income)
		require.NotNilf(t, got, "income %.0f", tt.income)
		assert.Equalf(t, tt.want, *got, "income %.0f", tt.income)
	}
}

func TestBracketRates_RateFor_NilBracket(t *testing.T) {
	b := bracketRates{at50k: ptr(2.0)}
	assert.Nil(t, b.rateFor(80_000))
	assert.NotNil(t, b.rateFor(40_000))
}

func taxRowColumns() []string {
	return []string{
		"geo_type", "geo_id", "median_income", "state_abbr",
		"effective_rate_at_50k", "effective_rate_at_75k", "effective_rate_at_100k",
		"effective_rate_at_150k", "effective_rate_at_200k", "combined_rate",
	}
}

func TestTaxRatios(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows(taxRowColumns()).
		// 80k income uses the 100k bracket: 4.2% income tax, 7.0% sales.
		AddRow("CITY", "c1", 80_000.0, "GA",
			ptr(2.0), ptr(3.1), ptr(4.2), ptr(5.0), ptr(5.5), ptr(7.0)).
		// No-income-tax state: bracket rates present as zero.
		AddRow("ZCTA", "75001", 60_000.0, "TX",
			ptr(0.0), ptr(0.0), ptr(0.0), ptr(0.0), ptr(0.0), ptr(8.25))
	mock.ExpectQuery("latest_income_tax").WillReturnRows(rows)

	c := NewTaxCalculator(mock, testEngineConfig())
	ratios, err := c.Ratios(context.Background())
	require.NoError(t, err)
	require.Len(t, ratios, 2)

	// GA: income tax 80000*0.042, sales on 30% of the remainder at 7%.
	incomeTax := 80_000 * 0.042
	salesTax := (80_000 - incomeTax) * 0.30 * 0.07
	assert.InDelta(t, (incomeTax+salesTax)/80_000,
		ratios[model.GeoKey{Type: model.GeoTypeCity, ID: "c1"}], 1e-9)

	// TX: only sales tax, on the full income since income tax is zero.
	assert.InDelta(t, (60_000*0.30*0.0825)/60_000,
		ratios[model.GeoKey{Type: model.GeoTypeZCTA, ID: "75001"}], 1e-9)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaxRatios_MissingStateDataLeavesGeographyAbsent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows(taxRowColumns()).
		// No income-tax row joined for this state at all.
		AddRow("CITY", "c1", 80_000.0, "XX",
			nil, nil, nil, nil, nil, ptr(6.0)).
		// Income tax present but no sales tax data.
		AddRow("CITY", "c2", 80_000.0, "YY",
			ptr(2.0), ptr(3.0), ptr(4.0), ptr(5.0), ptr(5.5), nil).
		AddRow("CITY", "c3", 80_000.0, "GA",
			ptr(2.0), ptr(3.1), ptr(4.2), ptr(5.0), ptr(5.5), ptr(7.0))
	mock.ExpectQuery("latest_income_tax").WillReturnRows(rows)

	c := NewTaxCalculator(mock, testEngineConfig())
	ratios, err := c.Ratios(context.Background())
	require.NoError(t, err)

	// c1 and c2 are absent, not written as zero-tax paradises.
	require.Len(t, ratios, 1)
	_, ok := ratios[model.GeoKey{Type: model.GeoTypeCity, ID: "c3"}]
	assert.True(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaxRatios_WrongUnitRateFailsRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// A combined sales rate of 825 can only be the wrong unit; the run
	// must fail rather than score the state at an 824% tax burden.
	rows := pgxmock.NewRows(taxRowColumns()).
		AddRow("CITY", "c1", 80_000.0, "TX",
			ptr(0.0), ptr(0.0), ptr(0.0), ptr(0.0), ptr(0.0), ptr(825.0))
	mock.ExpectQuery("latest_income_tax").WillReturnRows(rows)

	c := NewTaxCalculator(mock, testEngineConfig())
	_, err = c.Ratios(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sales tax rate for TX")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaxRatios_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("latest_income_tax").WillReturnError(fmt.Errorf("timeout"))

	c := NewTaxCalculator(mock, testEngineConfig())
	_, err = c.Ratios(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query inputs")
	assert.NoError(t, mock.ExpectationsWereMet())
}
