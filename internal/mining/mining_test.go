package mining

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arguard/internal/model"
)

func set(labels ...model.Label) model.LabelSet { return model.NewLabelSet(labels...) }

func testMatrix() *Matrix {
	m := NewMatrix()
	m.AddRow(set("A", "B"))
	m.AddRow(set("A", "B", "C"))
	m.AddRow(set("A", "C"))
	m.AddRow(set("B", "D"))
	return m
}

func TestMatrixCells(t *testing.T) {
	m := testMatrix()
	assert.Equal(t, 4, m.Rows())
	assert.Equal(t, []model.Label{"A", "B", "C", "D"}, m.Labels())
	assert.True(t, m.Cell(1, "C"))
	assert.False(t, m.Cell(0, "C"))
	assert.False(t, m.Cell(0, "D"))
	assert.True(t, m.Cell(3, "D"))
	assert.Equal(t, 0.5, m.Support(set("A", "B")))
	assert.Equal(t, 0.0, m.Support(set("A", "Z")))
}

func TestMatrixManyRows(t *testing.T) {
	m := NewMatrix()
	for i := 0; i < 200; i++ {
		if i%2 == 0 {
			m.AddRow(set("even", "all"))
		} else {
			m.AddRow(set("all"))
		}
	}
	assert.Equal(t, 100, m.Count(set("even")))
	assert.Equal(t, 200, m.Count(set("all")))
	assert.Equal(t, 100, m.Count(set("all", "even")))
}

func TestAprioriItemsets(t *testing.T) {
	got, err := Apriori{}.FrequentItemsets(context.Background(), testMatrix(), 0.5)
	require.NoError(t, err)
	want := []model.Itemset{
		{Items: set("A"), Support: 0.75},
		{Items: set("B"), Support: 0.75},
		{Items: set("C"), Support: 0.5},
		{Items: set("A", "B"), Support: 0.5},
		{Items: set("A", "C"), Support: 0.5},
	}
	assert.Equal(t, want, got)
}

func TestAprioriMaxLength(t *testing.T) {
	m := NewMatrix()
	m.AddRow(set("A", "B", "C"))
	m.AddRow(set("A", "B", "C"))
	all, err := Apriori{}.FrequentItemsets(context.Background(), m, 1)
	require.NoError(t, err)
	assert.Len(t, all, 7)
	short, err := Apriori{MaxLength: 2}.FrequentItemsets(context.Background(), m, 1)
	require.NoError(t, err)
	assert.Len(t, short, 6)
}

func TestDeriveRules(t *testing.T) {
	itemsets, err := Apriori{}.FrequentItemsets(context.Background(), testMatrix(), 0.5)
	require.NoError(t, err)
	rules := DeriveRules(itemsets, 1.0)
	require.Len(t, rules, 1)
	assert.Equal(t, set("C"), rules[0].Antecedent)
	assert.Equal(t, set("A"), rules[0].Consequent)
	assert.Equal(t, 1.0, rules[0].Confidence)
	assert.Equal(t, 0.5, rules[0].Support)

	loose := DeriveRules(itemsets, 0.6)
	keys := make([]string, 0, len(loose))
	for _, r := range loose {
		keys = append(keys, r.String())
	}
	assert.Equal(t, []string{"{A} => {B}", "{B} => {A}", "{A} => {C}", "{C} => {A}"}, keys)
}

func TestDeriveRulesOrderLargestAntecedentFirst(t *testing.T) {
	m := NewMatrix()
	m.AddRow(set("A", "B", "C"))
	itemsets, err := Apriori{}.FrequentItemsets(context.Background(), m, 1)
	require.NoError(t, err)
	rules := DeriveRules(itemsets, 1)
	var fromTriple []string
	for _, r := range rules {
		if len(r.Antecedent)+len(r.Consequent) == 3 {
			fromTriple = append(fromTriple, r.String())
		}
	}
	assert.Equal(t, []string{
		"{A, B} => {C}", "{A, C} => {B}", "{B, C} => {A}",
		"{A} => {B, C}", "{B} => {A, C}", "{C} => {A, B}",
	}, fromTriple)
}

func TestCombinations(t *testing.T) {
	var got [][]int
	combinations(4, 2, func(idx []int) { got = append(got, append([]int(nil), idx...)) })
	assert.Equal(t, [][]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}, got)
}
