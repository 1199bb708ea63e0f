package join

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/surgeo/internal/model"
	"github.com/sells-group/surgeo/internal/normalize"
	"github.com/sells-group/surgeo/internal/probtable"
)

var (
	wilson = model.ProbabilityVector{.0209, .6736, .2645, .0047, .0100, .0263}
	nan    = model.ProbabilityVector{.0250, .1250, 0, .8250, 0, .0250}
	zip    = model.ProbabilityVector{.035, .861, .040, .035, .002, .027}
)

func surnameTable(t *testing.T) *probtable.Table {
	t.Helper()
	tbl, err := probtable.FromRows(probtable.RaceGivenSurname,
		[][]string{{"WILSON"}, {"NAN"}},
		[]model.ProbabilityVector{wilson, nan})
	require.NoError(t, err)
	return tbl
}

func TestNames_LeftJoinPreservesOrderAndLength(t *testing.T) {
	raw := []string{"Will fail", "wilson", "", "Wilson Jr.", "nan", "WILSON"}
	col := Names(raw, surnameTable(t))

	require.Equal(t, len(raw), col.Len())
	assert.Equal(t, []string{"WILLFAIL", "WILSON", "", "WILSON", "NAN", "WILSON"}, col.Keys)
	assert.True(t, col.Vectors[0].IsMissing())
	assert.Equal(t, wilson, col.Vectors[1])
	assert.True(t, col.Vectors[2].IsMissing())
	assert.Equal(t, wilson, col.Vectors[3])
	assert.Equal(t, nan, col.Vectors[4])
	assert.Equal(t, wilson, col.Vectors[5])
	assert.Equal(t, 2, col.Unmatched())
}

func TestNames_Empty(t *testing.T) {
	col := Names(nil, surnameTable(t))
	assert.Zero(t, col.Len())
	assert.Zero(t, col.Unmatched())
}

func TestNames_WithFallback(t *testing.T) {
	col := Names([]string{"Will fail", "Wilson"}, surnameTable(t), WithFallback(model.NationalFallback))
	assert.Equal(t, model.NationalFallback, col.Vectors[0])
	assert.Equal(t, wilson, col.Vectors[1])
	assert.Zero(t, col.Unmatched())
}

func TestNames_FallbackKeepsStoredMissingRow(t *testing.T) {
	tbl, err := probtable.FromRows(probtable.RaceGivenSurname,
		[][]string{{"RARE"}}, []model.ProbabilityVector{model.MissingVector()})
	require.NoError(t, err)

	col := Names([]string{"Rare"}, tbl, WithFallback(model.NationalFallback))
	assert.True(t, col.Vectors[0].IsMissing())
}

func TestZCTAs(t *testing.T) {
	tbl, err := probtable.FromRows(probtable.RaceGivenZCTA,
		[][]string{{"63144"}, {"631"}},
		[]model.ProbabilityVector{zip, wilson})
	require.NoError(t, err)

	col := ZCTAs([]string{" 63144", "631", "00631", "631440", "99999"}, tbl)
	assert.Equal(t, []string{"63144", "00631", "00631", "631440", "99999"}, col.Keys)
	assert.Equal(t, zip, col.Vectors[0])
	assert.Equal(t, wilson, col.Vectors[1])
	assert.Equal(t, wilson, col.Vectors[2])
	assert.True(t, col.Vectors[3].IsMissing())
	assert.True(t, col.Vectors[4].IsMissing())
}

func TestTracts_InputNotPadded(t *testing.T) {
	tbl, err := probtable.FromRows(probtable.RaceGivenTract,
		[][]string{{"6", "37", "207400"}},
		[]model.ProbabilityVector{zip})
	require.NoError(t, err)

	col := Tracts([]normalize.Tract{
		{State: "06", County: "037", Tract: "207400"},
		{State: "6", County: "37", Tract: "207400"},
	}, tbl)
	assert.Equal(t, zip, col.Vectors[0])
	assert.True(t, col.Vectors[1].IsMissing())
	assert.Equal(t, "06|037|207400", col.Keys[0])
}
