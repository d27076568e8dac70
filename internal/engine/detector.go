package engine

import (
	"fmt"
	"sort"

	"arguard/internal/classify"
	"arguard/internal/model"
)

// Session is the live detector of one event stream. It owns its window; the
// model is shared read-only. A Session is not safe for concurrent use.
type Session struct {
	id         string
	model      *model.Model
	classifier classify.Classifier
	window     *WindowBuffer
	rules      []model.Rule
}

type SessionOption func(*Session)

// WithClassifier replaces the classifier derived from the model.
func WithClassifier(cl classify.Classifier) SessionOption {
	return func(s *Session) { s.classifier = cl }
}

func NewSession(id string, m *model.Model, opts ...SessionOption) (*Session, error) {
	if m == nil {
		return nil, fmt.Errorf("session %s: nil model", id)
	}
	s := &Session{
		id:     id,
		model:  m,
		window: NewWindowBuffer(m.Settings.ItemsetSize),
		rules:  OrderRules(m.Rules, m.Settings.RuleOrder),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.classifier == nil {
		cl, err := classify.FromModel(m)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", id, err)
		}
		s.classifier = cl
	}
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Ready reports whether the window has filled.
func (s *Session) Ready() bool { return s.window.Ready() }

func (s *Session) Window() *WindowBuffer { return s.window }

// Observe evaluates one observation. The distance check of cluster labels
// runs before the window is touched; rules run only on a full window and the
// first violated rule in evaluation order is reported.
func (s *Session) Observe(obs model.Observation) model.Verdict {
	c, err := s.classifier.Classify(obs)
	if err != nil {
		return model.Verdict{Status: model.StatusInsufficient, Detail: err.Error()}
	}
	if c.ClusterID >= 0 {
		if cluster, ok := s.model.Cluster(c.ClusterID); ok && c.Distance > cluster.Bound {
			return model.AlertVerdict(c.Label, model.ReasonDistance,
				fmt.Sprintf("distance %g to cluster %d exceeds %g", c.Distance, c.ClusterID, cluster.Bound), nil)
		}
	}

	s.window.Push(c.Label, obs.Timestamp)
	if !s.window.Ready() {
		return model.Insufficient(c.Label)
	}
	if s.model.Settings.SkipUniformWindows && s.window.Distinct() <= 1 {
		return model.Clean(c.Label)
	}

	for i := range s.rules {
		rule := s.rules[i]
		if !s.window.ContainsAll(rule.Antecedent) {
			continue
		}
		if !s.window.ContainsAll(rule.Consequent) {
			return model.AlertVerdict(c.Label, model.ReasonCoverage,
				fmt.Sprintf("%s with confidence %g", rule, rule.Confidence), &rule)
		}
		bound, ok := s.model.DelayBound(rule)
		if !ok {
			continue
		}
		delay, _ := s.window.Delay(rule)
		if !bound.Contains(delay) {
			return model.AlertVerdict(c.Label, model.ReasonTiming,
				fmt.Sprintf("%s delay %g outside [%g, %g]", rule, delay, bound.Min, bound.Max), &rule)
		}
	}
	return model.Clean(c.Label)
}

// OrderRules returns the rules in evaluation order. Confidence ordering is
// stable, so mined order breaks ties.
func OrderRules(rules []model.Rule, order model.RuleOrder) []model.Rule {
	out := make([]model.Rule, len(rules))
	copy(out, rules)
	if order == model.OrderConfidence {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	}
	return out
}
