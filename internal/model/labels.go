package model

import (
	"encoding/json"
	"sort"
	"strings"
)

// Label is the discrete class of one observation.
type Label string

// LabelSet is a sorted set of labels without duplicates.
type LabelSet []Label

const keySep = "\x1f"

func NewLabelSet(labels ...Label) LabelSet {
	if len(labels) == 0 {
		return LabelSet{}
	}
	out := make(LabelSet, len(labels))
	copy(out, labels)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

// Key is the canonical encoding of the set, independent of insertion order.
func (s LabelSet) Key() string {
	var b strings.Builder
	for i, l := range s {
		if i > 0 {
			b.WriteString(keySep)
		}
		b.WriteString(string(l))
	}
	return b.String()
}

func (s LabelSet) Contains(l Label) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= l })
	return i < len(s) && s[i] == l
}

// SubsetOf reports whether every label of s is in other.
func (s LabelSet) SubsetOf(other LabelSet) bool {
	for _, l := range s {
		if !other.Contains(l) {
			return false
		}
	}
	return true
}

func (s LabelSet) Union(other LabelSet) LabelSet {
	all := make([]Label, 0, len(s)+len(other))
	all = append(all, s...)
	all = append(all, other...)
	return NewLabelSet(all...)
}

func (s LabelSet) Minus(other LabelSet) LabelSet {
	out := make([]Label, 0, len(s))
	for _, l := range s {
		if !other.Contains(l) {
			out = append(out, l)
		}
	}
	return NewLabelSet(out...)
}

func (s LabelSet) Equal(other LabelSet) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

func (s LabelSet) String() string {
	parts := make([]string, len(s))
	for i, l := range s {
		parts[i] = string(l)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// UnmarshalJSON accepts any list and normalizes it, so a decoded set is
// always sorted and unique.
func (s *LabelSet) UnmarshalJSON(data []byte) error {
	var raw []Label
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NewLabelSet(raw...)
	return nil
}

func parseKey(key string) LabelSet {
	if key == "" {
		return LabelSet{}
	}
	parts := strings.Split(key, keySep)
	labels := make([]Label, len(parts))
	for i, p := range parts {
		labels[i] = Label(p)
	}
	return NewLabelSet(labels...)
}
