package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLog_Start(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO afford.score_run").
		WithArgs(pgxmock.AnyArg(), "fixed", RunStatusRunning).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	l := NewRunLog(mock)
	id, err := l.Start(context.Background(), "fixed")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunLog_StartError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO afford.score_run").
		WithArgs(pgxmock.AnyArg(), "fixed", RunStatusRunning).
		WillReturnError(fmt.Errorf("table missing"))

	l := NewRunLog(mock)
	_, err = l.Start(context.Background(), "fixed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunLog_Complete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	counts := RunCounts{Housing: 100, COL: 80, Tax: 90, RecordsWritten: 105}
	mock.ExpectExec("UPDATE afford.score_run").
		WithArgs(RunStatusComplete, 100, 80, 90, int64(105), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	l := NewRunLog(mock)
	require.NoError(t, l.Complete(context.Background(), id, counts))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunLog_Fail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE afford.score_run").
		WithArgs(RunStatusFailed, "boom", id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	l := NewRunLog(mock)
	require.NoError(t, l.Fail(context.Background(), id, fmt.Errorf("boom")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunLog_Latest(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	started := time.Now().UTC().Add(-time.Hour)
	completed := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "policy", "status", "housing_count", "col_count", "tax_count",
		"records_written", "error", "started_at", "completed_at",
	}).AddRow(id, "fixed", RunStatusComplete, 100, 80, 90, int64(105), "", started, &completed)
	mock.ExpectQuery("FROM afford.score_run").WillReturnRows(rows)

	l := NewRunLog(mock)
	entry, err := l.Latest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, id, entry.ID)
	assert.Equal(t, RunStatusComplete, entry.Status)
	assert.Equal(t, 100, entry.HousingCount)
	assert.Equal(t, int64(105), entry.RecordsWritten)
	require.NotNil(t, entry.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunLog_LatestNoRuns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM afford.score_run").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "policy", "status", "housing_count", "col_count", "tax_count",
			"records_written", "error", "started_at", "completed_at",
		}))

	l := NewRunLog(mock)
	entry, err := l.Latest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.NoError(t, mock.ExpectationsWereMet())
}
