package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResultSet(t *testing.T) {
	t.Parallel()

	probs := []ProbabilityVector{
		{0.02, 0.67364, 0.26, 0.01, 0.01, 0.02636},
		MissingVector(),
	}
	rs := NewResultSet(
		[]string{"zcta5", "name"},
		[][]string{{"63144", "63110"}, {"WILSON", "WILLFAIL"}},
		probs,
	)

	require.Equal(t, 2, rs.Len())
	assert.Equal(t, []string{"63144", "WILSON"}, rs.Records[0].IDs)
	assert.Equal(t, []string{"63110", "WILLFAIL"}, rs.Records[1].IDs)
	assert.Equal(t, 1, rs.MissingCount())
	assert.Equal(t, []string{"zcta5", "name", "hispanic", "white", "black", "api", "ai", "multi"}, rs.Header())
	assert.Len(t, rs.Probabilities(), 2)
}

func TestResultSet_Rows(t *testing.T) {
	t.Parallel()

	rs := NewResultSet(
		[]string{"name"},
		[][]string{{"WILSON", "WILLFAIL"}},
		[]ProbabilityVector{{0.02, 0.67364, 0.26, 0.01, 0.01, 0.02636}, MissingVector()},
	)

	rows := rs.Rows(4)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"WILSON", "0.0200", "0.6736", "0.2600", "0.0100", "0.0100", "0.0264"}, rows[0])
	assert.Equal(t, []string{"WILLFAIL", "", "", "", "", "", ""}, rows[1])

	full := rs.Rows(-1)
	assert.Equal(t, "0.67364", full[0][2])
}
