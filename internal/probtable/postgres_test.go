package probtable

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/surgeo/internal/model"
)

func ptr(f float64) *float64 { return &f }

func TestPostgresSource_Load(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"state", "county", "tract", "hispanic", "white", "black", "api", "ai", "multi"}
	mock.ExpectQuery(`SELECT state, county, tract, hispanic, white, black, api, ai, multi FROM "bisg"."tract_given_race" ORDER BY state, county, tract`).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("29", "189", "213501", ptr(8.1e-07), ptr(1.58e-05), ptr(3.98e-06), ptr(6.55e-06), ptr(2.67e-06), ptr(1.0e-05)).
			AddRow("6", "37", "207400", ptr(1e-06), ptr(1e-06), ptr(1e-06), ptr(1e-06), ptr(1e-06), ptr(1e-06)))

	src := NewPostgresSource(mock, "")
	tbl, err := src.Load(context.Background(), TractGivenRace)
	require.NoError(t, err)
	assert.Equal(t, []string{"29|189|213501", "06|037|207400"}, tbl.Keys())
	v, ok := tbl.Lookup("29|189|213501")
	require.True(t, ok)
	assert.InDelta(t, 1.58e-05, v[model.White], 1e-18)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_LoadQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT`).WillReturnError(fmt.Errorf("relation does not exist"))

	_, err = NewPostgresSource(mock, "bisg").Load(context.Background(), RaceGivenSurname)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: query race_given_surname")
}

func TestPostgresSource_Import(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tbl, err := FromRows(RaceGivenSurname,
		[][]string{{"WILSON"}, {"GARCIA"}},
		[]model.ProbabilityVector{wilson, garcia})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS "census"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "census"."race_given_surname"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`TRUNCATE "census"."race_given_surname"`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"census", "race_given_surname"},
		[]string{"name", "hispanic", "white", "black", "api", "ai", "multi"}).WillReturnResult(2)
	mock.ExpectCommit()

	n, err := NewPostgresSource(mock, "census").Import(context.Background(), tbl)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLHelpers(t *testing.T) {
	assert.Equal(t,
		"state TEXT NOT NULL, county TEXT NOT NULL, tract TEXT NOT NULL, hispanic REAL, white REAL, black REAL, api REAL, ai REAL, multi REAL, PRIMARY KEY (state, county, tract)",
		sqlDDL(RaceGivenTract, "TEXT", "REAL"))

	row := sqlRow(RaceGivenTract, "29|189|213501", model.ProbabilityVector{0.1, 0.2, 0.3, 0.4, 0, 0})
	assert.Equal(t, []any{"29", "189", "213501", 0.1, 0.2, 0.3, 0.4, 0.0, 0.0}, row)

	row = sqlRow(RaceGivenSurname, "RARE", model.MissingVector())
	assert.Equal(t, []any{"RARE", nil, nil, nil, nil, nil, nil}, row)
}
