// Package training learns a detector model from a corpus of normal records.
package training

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"arguard/internal/classify"
	"arguard/internal/engine"
	"arguard/internal/ingest"
	"arguard/internal/mining"
	"arguard/internal/model"
	"arguard/internal/normalize"
)

// Summary describes one training run.
type Summary struct {
	Records      int `json:"records"`
	Dropped      int `json:"dropped"`
	Windows      int `json:"windows"`
	Classes      int `json:"classes"`
	Itemsets     int `json:"itemsets"`
	Rules        int `json:"rules"`
	BoundedRules int `json:"bounded_rules"`
}

type Trainer struct {
	name      string
	settings  model.Settings
	miner     mining.Miner
	clusterer classify.Clusterer
	logger    *slog.Logger
}

type Option func(*Trainer)

func WithMiner(m mining.Miner) Option {
	return func(t *Trainer) { t.miner = m }
}

func WithClusterer(c classify.Clusterer) Option {
	return func(t *Trainer) { t.clusterer = c }
}

func New(name string, settings model.Settings, logger *slog.Logger, opts ...Option) *Trainer {
	t := &Trainer{
		name:      name,
		settings:  settings,
		miner:     mining.Apriori{MaxLength: settings.MaxItemsetLength},
		clusterer: classify.KMeans{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Train reads the corpus returned by open once per pass. Records with
// missing fields are dropped; read errors abort training.
func (t *Trainer) Train(ctx context.Context, open ingest.Opener) (*model.Model, Summary, error) {
	var summary Summary
	if err := t.settings.Validate(); err != nil {
		return nil, summary, err
	}
	m := &model.Model{
		Name:        t.name,
		Settings:    t.settings,
		DelayBounds: make(map[model.RuleKey]model.DelayBound),
	}

	features, err := t.features(ctx, open)
	if err != nil {
		return nil, summary, err
	}

	var cl classify.Classifier
	switch t.settings.Mode {
	case model.ModeCluster:
		m.Features = features
		clusters, err := t.fitClusters(ctx, open, features)
		if err != nil {
			return nil, summary, err
		}
		m.Clusters = clusters
		if cl, err = classify.FromModel(m); err != nil {
			return nil, summary, err
		}
	default:
		cl = classify.NewComposite(t.settings.ProcessValueBinSize)
	}

	classes := NewClassSet()
	matrix := mining.NewMatrix()
	window := engine.NewWindowBuffer(t.settings.ItemsetSize)
	records, dropped, err := t.scan(ctx, open, features, func(obs *model.Observation) error {
		c, err := cl.Classify(*obs)
		if err != nil {
			return err
		}
		classes.Add(c.Label)
		window.Push(c.Label, obs.Timestamp)
		if window.Ready() {
			matrix.AddRow(window.Labels())
		}
		return nil
	})
	if err != nil {
		return nil, summary, fmt.Errorf("label pass: %w", err)
	}
	summary.Records, summary.Dropped = records, dropped
	summary.Windows = matrix.Rows()
	m.Classes = classes.Labels()

	itemsets, err := t.miner.FrequentItemsets(ctx, matrix, t.settings.MinSupport)
	if err != nil {
		return nil, summary, fmt.Errorf("mine itemsets: %w", err)
	}
	m.Itemsets = itemsets
	m.Rules = mining.DeriveRules(itemsets, t.settings.MinConfidence)

	samples := make(map[model.RuleKey]*Sample)
	window = engine.NewWindowBuffer(t.settings.ItemsetSize)
	_, _, err = t.scan(ctx, open, features, func(obs *model.Observation) error {
		c, err := cl.Classify(*obs)
		if err != nil {
			return err
		}
		window.Push(c.Label, obs.Timestamp)
		if !window.Ready() {
			return nil
		}
		for _, r := range m.Rules {
			if !window.ContainsAll(r.Antecedent) || !window.ContainsAll(r.Consequent) {
				continue
			}
			delay, ok := window.Delay(r)
			if !ok {
				continue
			}
			key := r.Key()
			s := samples[key]
			if s == nil {
				s = &Sample{}
				samples[key] = s
			}
			s.Add(delay)
		}
		return nil
	})
	if err != nil {
		return nil, summary, fmt.Errorf("timing pass: %w", err)
	}
	for key, s := range samples {
		m.DelayBounds[key] = s.Bound(t.settings.WidenDelayBounds)
	}

	summary.Classes = len(m.Classes)
	summary.Itemsets = len(m.Itemsets)
	summary.Rules = len(m.Rules)
	summary.BoundedRules = len(m.DelayBounds)
	if t.logger != nil {
		t.logger.Info("training finished",
			"name", t.name,
			"mode", string(t.settings.Mode),
			"records", summary.Records,
			"dropped", summary.Dropped,
			"windows", summary.Windows,
			"classes", summary.Classes,
			"itemsets", summary.Itemsets,
			"rules", summary.Rules,
			"bounded_rules", summary.BoundedRules,
		)
	}
	return m, summary, nil
}

// features returns the configured cluster features, or the sorted value
// names of the first decodable record. Composite mode needs none.
func (t *Trainer) features(ctx context.Context, open ingest.Opener) ([]string, error) {
	if t.settings.Mode != model.ModeCluster {
		return nil, nil
	}
	if len(t.settings.Features) > 0 {
		return append([]string(nil), t.settings.Features...), nil
	}
	var features []string
	errFound := errors.New("found")
	_, _, err := t.scan(ctx, open, nil, func(obs *model.Observation) error {
		features = model.SortedKeys(obs.Values())
		return errFound
	})
	if err != nil && !errors.Is(err, errFound) {
		return nil, err
	}
	if len(features) == 0 {
		return nil, errors.New("no features found in training data")
	}
	return features, nil
}

func (t *Trainer) fitClusters(ctx context.Context, open ingest.Opener, features []string) ([]model.Cluster, error) {
	var points [][]float64
	_, _, err := t.scan(ctx, open, features, func(obs *model.Observation) error {
		vec, _ := classify.Vector(*obs, features, t.settings.MissingValue)
		points = append(points, vec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cluster pass: %w", err)
	}
	k := t.settings.NumProcessValueClusters
	centroids, err := t.clusterer.Fit(points, k)
	if err != nil {
		return nil, fmt.Errorf("fit clusters: %w", err)
	}
	distances := make([]Sample, len(centroids))
	for _, p := range points {
		id, d := classify.Nearest(centroids, p)
		distances[id].Add(d)
	}
	out := make([]model.Cluster, len(centroids))
	for i, c := range centroids {
		out[i] = model.Cluster{ID: i, Centroid: c}
		if distances[i].Count() > 0 {
			out[i].Bound = distances[i].Max() + distances[i].Stdev()
		}
	}
	return out, nil
}

// scan feeds every usable record of one pass to fn in input order. It
// returns the number of records read and dropped.
func (t *Trainer) scan(ctx context.Context, open ingest.Opener, features []string, fn func(*model.Observation) error) (records, dropped int, err error) {
	rc, err := open()
	if err != nil {
		return 0, 0, err
	}
	defer rc.Close()
	reader := ingest.NewReader(rc)
	for {
		if err := ctx.Err(); err != nil {
			return records, dropped, err
		}
		obs, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return records, dropped, nil
		}
		var de *normalize.DataError
		if errors.As(err, &de) {
			records++
			dropped++
			if t.logger != nil {
				t.logger.Debug("training record dropped", "line", reader.Line(), "err", err)
			}
			continue
		}
		if err != nil {
			return records, dropped, err
		}
		records++
		if !t.usable(obs, features) {
			dropped++
			continue
		}
		if err := fn(obs); err != nil {
			return records, dropped, err
		}
	}
}

// usable applies the missing-value policy.
func (t *Trainer) usable(obs *model.Observation, features []string) bool {
	if t.settings.AllowNone {
		return true
	}
	if t.settings.Mode == model.ModeCluster && features != nil {
		_, complete := classify.Vector(*obs, features, t.settings.MissingValue)
		return complete
	}
	for _, v := range obs.Values() {
		if v == nil {
			return false
		}
	}
	return true
}
