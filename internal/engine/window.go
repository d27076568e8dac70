package engine

import (
	"arguard/internal/model"
)

type entry struct {
	label model.Label
	ts    float64
}

// WindowBuffer holds the last W labels in arrival order.
type WindowBuffer struct {
	width  int
	events []entry
	head   int
	size   int
	counts map[model.Label]int
}

func NewWindowBuffer(width int) *WindowBuffer {
	if width <= 0 {
		width = 1
	}
	return &WindowBuffer{
		width:  width,
		events: make([]entry, width),
		counts: make(map[model.Label]int),
	}
}

// Push appends an entry, evicting the oldest one once the buffer is full.
func (w *WindowBuffer) Push(label model.Label, ts float64) {
	if w.size == w.width {
		old := w.events[w.head]
		if count := w.counts[old.label]; count <= 1 {
			delete(w.counts, old.label)
		} else {
			w.counts[old.label] = count - 1
		}
		w.events[w.head] = entry{label: label, ts: ts}
		w.head = (w.head + 1) % w.width
	} else {
		w.events[(w.head+w.size)%w.width] = entry{label: label, ts: ts}
		w.size++
	}
	w.counts[label]++
}

func (w *WindowBuffer) Len() int { return w.size }

func (w *WindowBuffer) Width() int { return w.width }

// Ready reports whether the buffer holds exactly W entries.
func (w *WindowBuffer) Ready() bool {
	return w.size == w.width
}

// Distinct is the number of different labels currently held.
func (w *WindowBuffer) Distinct() int {
	return len(w.counts)
}

func (w *WindowBuffer) ContainsAll(set model.LabelSet) bool {
	for _, l := range set {
		if w.counts[l] == 0 {
			return false
		}
	}
	return true
}

// LastTimestamp returns the newest timestamp among entries whose label is in
// set. ok is false when none match.
func (w *WindowBuffer) LastTimestamp(set model.LabelSet) (ts float64, ok bool) {
	for i := 0; i < w.size; i++ {
		e := w.events[(w.head+i)%w.width]
		if !set.Contains(e.label) {
			continue
		}
		if !ok || e.ts > ts {
			ts = e.ts
			ok = true
		}
	}
	return ts, ok
}

// Labels returns the set of labels currently held.
func (w *WindowBuffer) Labels() model.LabelSet {
	labels := make([]model.Label, 0, len(w.counts))
	for l := range w.counts {
		labels = append(labels, l)
	}
	return model.NewLabelSet(labels...)
}

// Entries returns the held entries oldest first.
func (w *WindowBuffer) Entries() ([]model.Label, []float64) {
	labels := make([]model.Label, w.size)
	stamps := make([]float64, w.size)
	for i := 0; i < w.size; i++ {
		e := w.events[(w.head+i)%w.width]
		labels[i] = e.label
		stamps[i] = e.ts
	}
	return labels, stamps
}

// Delay is the elapsed time from the newest antecedent entry to the newest
// consequent entry.
func (w *WindowBuffer) Delay(r model.Rule) (float64, bool) {
	ante, ok := w.LastTimestamp(r.Antecedent)
	if !ok {
		return 0, false
	}
	cons, ok := w.LastTimestamp(r.Consequent)
	if !ok {
		return 0, false
	}
	return cons - ante, true
}
