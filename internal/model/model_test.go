package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelSetNormalizes(t *testing.T) {
	s := NewLabelSet("b", "a", "b", "c")
	assert.Equal(t, LabelSet{"a", "b", "c"}, s)
	assert.True(t, s.Contains("b"))
	assert.False(t, s.Contains("d"))
	assert.True(t, NewLabelSet("c", "a").SubsetOf(s))
	assert.Equal(t, LabelSet{"b"}, s.Minus(NewLabelSet("a", "c")))
	assert.Equal(t, LabelSet{"a", "b", "c", "d"}, s.Union(NewLabelSet("d", "a")))
	assert.Equal(t, "{a, b, c}", s.String())
}

func TestLabelSetKeyIgnoresOrder(t *testing.T) {
	assert.Equal(t, NewLabelSet("x", "y").Key(), NewLabelSet("y", "x").Key())
	assert.NotEqual(t, NewLabelSet("xy").Key(), NewLabelSet("x", "y").Key())
}

func TestLabelSetUnmarshalSorts(t *testing.T) {
	var s LabelSet
	require.NoError(t, json.Unmarshal([]byte(`["z","a","z"]`), &s))
	assert.Equal(t, LabelSet{"a", "z"}, s)
}

func TestRuleKeySets(t *testing.T) {
	r := Rule{Antecedent: NewLabelSet("b", "a"), Consequent: NewLabelSet("c")}
	ante, cons := r.Key().Sets()
	assert.True(t, ante.Equal(r.Antecedent))
	assert.True(t, cons.Equal(r.Consequent))

	empty, _ := RuleKey{}.Sets()
	assert.Empty(t, empty)
}

func TestDelayBoundInclusive(t *testing.T) {
	b := DelayBound{Min: -1, Max: 2}
	assert.True(t, b.Contains(-1))
	assert.True(t, b.Contains(2))
	assert.False(t, b.Contains(2.0001))
}

func TestVerdictAlertFlag(t *testing.T) {
	assert.Nil(t, Insufficient("a").Alert())
	require.NotNil(t, Clean("a").Alert())
	assert.False(t, *Clean("a").Alert())

	v := AlertVerdict("a", ReasonTiming, "delay 9 outside [0, 1]", nil)
	require.NotNil(t, v.Alert())
	assert.True(t, *v.Alert())
	assert.Equal(t, "rule violated: timing: delay 9 outside [0, 1]", v.Explanation())
	assert.Equal(t, "", Clean("a").Explanation())
}
