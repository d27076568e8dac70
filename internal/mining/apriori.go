package mining

import (
	"context"

	"arguard/internal/model"
)

// Miner finds the itemsets whose support is at least minSupport.
type Miner interface {
	FrequentItemsets(ctx context.Context, m *Matrix, minSupport float64) ([]model.Itemset, error)
}

// Apriori is a level-wise frequent itemset miner. Results are ordered by
// itemset length, then lexicographically. MaxLength <= 0 means unbounded.
type Apriori struct {
	MaxLength int
}

func (a Apriori) FrequentItemsets(ctx context.Context, m *Matrix, minSupport float64) ([]model.Itemset, error) {
	if m.Rows() == 0 {
		return nil, nil
	}
	var out []model.Itemset
	var level []model.LabelSet
	for _, l := range m.Labels() {
		set := model.LabelSet{l}
		if s := m.Support(set); s >= minSupport {
			out = append(out, model.Itemset{Items: set, Support: s})
			level = append(level, set)
		}
	}
	for k := 2; len(level) > 1 && (a.MaxLength <= 0 || k <= a.MaxLength); k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		known := make(map[string]struct{}, len(level))
		for _, s := range level {
			known[s.Key()] = struct{}{}
		}
		var next []model.LabelSet
		for i := 0; i < len(level); i++ {
			for j := i + 1; j < len(level); j++ {
				cand, ok := join(level[i], level[j])
				if !ok {
					break
				}
				if !allSubsetsKnown(cand, known) {
					continue
				}
				if s := m.Support(cand); s >= minSupport {
					out = append(out, model.Itemset{Items: cand, Support: s})
					next = append(next, cand)
				}
			}
		}
		level = next
	}
	return out, nil
}

// join merges two sorted (k-1)-sets sharing their first k-2 labels. level is
// sorted, so once prefixes differ no later j matches either.
func join(a, b model.LabelSet) (model.LabelSet, bool) {
	n := len(a)
	for i := 0; i < n-1; i++ {
		if a[i] != b[i] {
			return nil, false
		}
	}
	if a[n-1] >= b[n-1] {
		return nil, false
	}
	out := make(model.LabelSet, 0, n+1)
	out = append(out, a...)
	out = append(out, b[n-1])
	return out, true
}

func allSubsetsKnown(cand model.LabelSet, known map[string]struct{}) bool {
	sub := make(model.LabelSet, 0, len(cand)-1)
	for skip := range cand {
		sub = sub[:0]
		for i, l := range cand {
			if i != skip {
				sub = append(sub, l)
			}
		}
		if _, ok := known[sub.Key()]; !ok {
			return false
		}
	}
	return true
}
