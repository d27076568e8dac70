// Package mining holds the windowed occurrence matrix and the frequent
// itemset and association rule primitives run over it.
package mining

import (
	"math/bits"
	"sort"

	"arguard/internal/model"
)

// Matrix is a boolean occurrence matrix: one row per training window, one
// column per known label. Columns are stored as row bitsets; a label first
// seen in a later window is false in all earlier rows.
type Matrix struct {
	index map[model.Label]int
	cols  [][]uint64
	rows  int
}

func NewMatrix() *Matrix {
	return &Matrix{index: make(map[model.Label]int)}
}

// AddRow records one window.
func (m *Matrix) AddRow(labels model.LabelSet) {
	row := m.rows
	m.rows++
	word := row / 64
	bit := uint64(1) << uint(row%64)
	for _, l := range labels {
		c, ok := m.index[l]
		if !ok {
			c = len(m.cols)
			m.index[l] = c
			m.cols = append(m.cols, nil)
		}
		for len(m.cols[c]) <= word {
			m.cols[c] = append(m.cols[c], 0)
		}
		m.cols[c][word] |= bit
	}
}

func (m *Matrix) Rows() int { return m.rows }

// Labels returns the column labels in sorted order.
func (m *Matrix) Labels() []model.Label {
	out := make([]model.Label, 0, len(m.index))
	for l := range m.index {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *Matrix) Cell(row int, l model.Label) bool {
	c, ok := m.index[l]
	if !ok || row < 0 || row >= m.rows {
		return false
	}
	word := row / 64
	if word >= len(m.cols[c]) {
		return false
	}
	return m.cols[c][word]&(uint64(1)<<uint(row%64)) != 0
}

// Count is the number of rows containing every label of items.
func (m *Matrix) Count(items model.LabelSet) int {
	if len(items) == 0 {
		return m.rows
	}
	cols := make([][]uint64, 0, len(items))
	shortest := -1
	for _, l := range items {
		c, ok := m.index[l]
		if !ok {
			return 0
		}
		cols = append(cols, m.cols[c])
		if shortest < 0 || len(m.cols[c]) < shortest {
			shortest = len(m.cols[c])
		}
	}
	total := 0
	for w := 0; w < shortest; w++ {
		acc := ^uint64(0)
		for _, col := range cols {
			acc &= col[w]
		}
		total += bits.OnesCount64(acc)
	}
	return total
}

// Support is the fraction of rows containing items.
func (m *Matrix) Support(items model.LabelSet) float64 {
	if m.rows == 0 {
		return 0
	}
	return float64(m.Count(items)) / float64(m.rows)
}
