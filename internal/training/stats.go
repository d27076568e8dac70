package training

import (
	"math"
	"sort"

	"arguard/internal/model"
)

// Sample accumulates min, max and a running variance of a stream of values.
type Sample struct {
	n    int
	mean float64
	m2   float64
	min  float64
	max  float64
}

func (s *Sample) Add(x float64) {
	if s.n == 0 || x < s.min {
		s.min = x
	}
	if s.n == 0 || x > s.max {
		s.max = x
	}
	s.n++
	diff := x - s.mean
	s.mean += diff / float64(s.n)
	s.m2 += diff * (x - s.mean)
}

func (s *Sample) Count() int { return s.n }

func (s *Sample) Min() float64 { return s.min }

func (s *Sample) Max() float64 { return s.max }

func (s *Sample) Mean() float64 { return s.mean }

// Stdev is the sample standard deviation. It is zero for fewer than two
// values.
func (s *Sample) Stdev() float64 {
	if s.n < 2 {
		return 0
	}
	return math.Sqrt(s.m2 / float64(s.n-1))
}

// Bound returns [min, max], widened on both sides by one stdev if widen is
// set.
func (s *Sample) Bound(widen bool) model.DelayBound {
	b := model.DelayBound{Min: s.min, Max: s.max}
	if widen {
		sd := s.Stdev()
		b.Min -= sd
		b.Max += sd
	}
	return b
}

// ClassSet collects the distinct labels seen while training.
type ClassSet struct {
	seen map[model.Label]struct{}
}

func NewClassSet() *ClassSet {
	return &ClassSet{seen: make(map[model.Label]struct{})}
}

// Add reports whether l was new.
func (c *ClassSet) Add(l model.Label) bool {
	if _, ok := c.seen[l]; ok {
		return false
	}
	c.seen[l] = struct{}{}
	return true
}

func (c *ClassSet) Len() int { return len(c.seen) }

// Labels returns the collected labels in ascending order.
func (c *ClassSet) Labels() []model.Label {
	out := make([]model.Label, 0, len(c.seen))
	for l := range c.seen {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
