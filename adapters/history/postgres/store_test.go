package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"warpmine/domain/core"
	"warpmine/domain/history"
	apperrors "warpmine/internal/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"key", "ts", "request_id", "kind", "request", "result", "error", "duration_ms"}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	s := New(sqlx.NewDb(raw, "postgres"))
	t.Cleanup(func() {
		mock.ExpectClose()
		assert.NoError(t, s.Close())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return s, mock
}

func TestStore_Append(t *testing.T) {
	s, mock := newMock(t)
	ts := core.NewTimestamp(time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC))
	e, err := history.NewEntry(ts, "req-9", history.KindExtraction, map[string]float64{"ore_grade": 2.5}, nil, nil, 12*time.Millisecond)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO history_entries")).
		WithArgs(e.Key, ts.Time(), "req-9", "extraction", `{"ore_grade":2.5}`, nil, "", int64(12)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.Append(context.Background(), e))
}

func TestStore_AppendFailure(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO history_entries")).WillReturnError(errors.New("connection reset"))

	err := s.Append(context.Background(), history.Entry{Key: "k", Kind: history.KindChat})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeDatabaseError, apperrors.GetCode(err))
}

func TestStore_ListFilters(t *testing.T) {
	s, mock := newMock(t)
	since := core.NewTimestamp(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	when := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

	rows := sqlmock.NewRows(columns).
		AddRow("k1", when, "req-1", "optimization", `{"metric":"recovery"}`, `{"best_value":91.2}`, "", int64(800)).
		AddRow("k2", when.Add(time.Second), "req-2", "optimization", nil, nil, "boom", int64(3))

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT key, ts, request_id, kind, request, result, error, duration_ms FROM history_entries WHERE kind = $1 AND ts >= $2 ORDER BY key DESC LIMIT $3 OFFSET $4")).
		WithArgs("optimization", since.Time(), 5, 2).
		WillReturnRows(rows)

	got, err := s.List(context.Background(), history.Filter{Kind: history.KindOptimization, Since: since, Limit: 5, Offset: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "k1", got[0].Key)
	assert.JSONEq(t, `{"best_value":91.2}`, string(got[0].Result))
	assert.Equal(t, when, got[0].Timestamp.Time())
	assert.Nil(t, got[1].Request)
	assert.Equal(t, "boom", got[1].Error)
}

func TestStore_ListUnfiltered(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM history_entries ORDER BY key DESC")).
		WillReturnRows(sqlmock.NewRows(columns))

	got, err := s.List(context.Background(), history.Filter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}
