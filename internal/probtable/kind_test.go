package probtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_Names(t *testing.T) {
	tests := []struct {
		kind  Kind
		name  string
		label string
		file  string
	}{
		{RaceGivenSurname, "race_given_surname", "race|surname", "prob_race_given_surname_2010.csv"},
		{RaceGivenFirstName, "race_given_first_name", "race|first_name", "prob_race_given_first_name_harvard.csv"},
		{FirstNameGivenRace, "first_name_given_race", "first_name|race", "prob_first_name_given_race_harvard.csv"},
		{RaceGivenZCTA, "race_given_zcta", "race|zcta", "prob_race_given_zcta_2010.csv"},
		{ZCTAGivenRace, "zcta_given_race", "zcta|race", "prob_zcta_given_race_2010.csv"},
		{RaceGivenTract, "race_given_tract", "race|tract", "prob_race_given_tract_2010.csv"},
		{TractGivenRace, "tract_given_race", "tract|race", "prob_tract_given_race_2010.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.kind.String())
			assert.Equal(t, tt.label, tt.kind.Label())
			assert.Equal(t, tt.file, tt.kind.DefaultFile())
			assert.True(t, tt.kind.Valid())
		})
	}
	assert.Len(t, AllKinds(), len(tests))
}

func TestKind_InvalidCombination(t *testing.T) {
	k := Kind{Surname, GivenRace}
	assert.False(t, k.Valid())
	assert.Empty(t, k.DefaultFile())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("race_given_surname")
	require.NoError(t, err)
	assert.Equal(t, RaceGivenSurname, k)

	k, err = ParseKind(" ZCTA|race ")
	require.NoError(t, err)
	assert.Equal(t, ZCTAGivenRace, k)

	_, err = ParseKind("surname_given_race")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown table kind")
}

func TestKind_KeyColumns(t *testing.T) {
	assert.Equal(t, []string{"name"}, RaceGivenSurname.KeyColumns())
	assert.Equal(t, []string{"name"}, FirstNameGivenRace.KeyColumns())
	assert.Equal(t, []string{"zcta5"}, ZCTAGivenRace.KeyColumns())
	assert.Equal(t, []string{"state", "county", "tract"}, RaceGivenTract.KeyColumns())
}

func TestTableKey(t *testing.T) {
	tests := []struct {
		name   string
		kind   Kind
		fields []string
		want   string
	}{
		{"name trimmed", RaceGivenSurname, []string{" WILSON "}, "WILSON"},
		{"name not re-cased", RaceGivenSurname, []string{"nan"}, "nan"},
		{"zcta padded", RaceGivenZCTA, []string{"631"}, "00631"},
		{"zcta kept", ZCTAGivenRace, []string{"63144"}, "63144"},
		{"tract padded", RaceGivenTract, []string{"6", "37", "207400"}, "06|037|207400"},
		{"tract kept", TractGivenRace, []string{"29", "189", "213501"}, "29|189|213501"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TableKey(tt.kind, tt.fields)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTableKey_WrongArity(t *testing.T) {
	_, err := TableKey(RaceGivenTract, []string{"29", "189"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs 3 fields, got 2")
}

func TestSplitKey(t *testing.T) {
	assert.Equal(t, []string{"29", "189", "213501"}, SplitKey(RaceGivenTract, "29|189|213501"))
	assert.Equal(t, []string{"WILSON"}, SplitKey(RaceGivenSurname, "WILSON"))
	assert.Equal(t, []string{"63144"}, SplitKey(ZCTAGivenRace, "63144"))
}
