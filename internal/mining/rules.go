package mining

import (
	"arguard/internal/model"
)

// DeriveRules generates association rules from frequent itemsets. For each
// itemset of two or more labels, antecedents are enumerated from the largest
// proper subset down to single labels, in lexicographic combination order.
// A rule is kept when support(itemset) / support(antecedent) >= minConfidence.
func DeriveRules(itemsets []model.Itemset, minConfidence float64) []model.Rule {
	support := make(map[string]float64, len(itemsets))
	for _, is := range itemsets {
		support[is.Items.Key()] = is.Support
	}
	var rules []model.Rule
	for _, is := range itemsets {
		if len(is.Items) < 2 {
			continue
		}
		for size := len(is.Items) - 1; size >= 1; size-- {
			combinations(len(is.Items), size, func(idx []int) {
				ante := make(model.LabelSet, len(idx))
				for i, j := range idx {
					ante[i] = is.Items[j]
				}
				anteSupport, ok := support[ante.Key()]
				if !ok || anteSupport == 0 {
					return
				}
				conf := is.Support / anteSupport
				if conf < minConfidence {
					return
				}
				rules = append(rules, model.Rule{
					Antecedent: ante,
					Consequent: is.Items.Minus(ante),
					Support:    is.Support,
					Confidence: conf,
				})
			})
		}
	}
	return rules
}

// combinations calls fn with every k-subset of [0, n) in lexicographic order.
func combinations(n, k int, fn func([]int)) {
	if k <= 0 || k > n {
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		fn(idx)
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
