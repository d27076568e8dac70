package model

import "fmt"

type LabelMode string

const (
	ModeComposite LabelMode = "composite"
	ModeCluster   LabelMode = "cluster"
)

type RuleOrder string

const (
	OrderMined      RuleOrder = "mined"
	OrderConfidence RuleOrder = "confidence"
)

// Settings are the learning parameters shared by training and detection.
type Settings struct {
	Mode                    LabelMode `json:"mode" yaml:"mode"`
	ItemsetSize             int       `json:"itemset_size" yaml:"itemset_size"`
	MinSupport              float64   `json:"min_support" yaml:"min_support"`
	MinConfidence           float64   `json:"min_confidence" yaml:"min_confidence"`
	NumProcessValueClusters int       `json:"num_process_value_clusters" yaml:"num_process_value_clusters"`
	AllowNone               bool      `json:"allow_none" yaml:"allow_none"`
	ProcessValueBinSize     int       `json:"process_value_bin_size" yaml:"process_value_bin_size"`
	MissingValue            float64   `json:"missing_value" yaml:"missing_value"`
	Features                []string  `json:"features,omitempty" yaml:"features"`
	WidenDelayBounds        bool      `json:"widen_delay_bounds" yaml:"widen_delay_bounds"`
	RuleOrder               RuleOrder `json:"rule_order" yaml:"rule_order"`
	SkipUniformWindows      bool      `json:"skip_uniform_windows" yaml:"skip_uniform_windows"`
	MaxItemsetLength        int       `json:"max_itemset_length" yaml:"max_itemset_length"`
}

func DefaultSettings() Settings {
	return Settings{
		Mode:                    ModeComposite,
		ItemsetSize:             1800,
		MinSupport:              0.2,
		MinConfidence:           1.0,
		NumProcessValueClusters: 12,
		AllowNone:               false,
		ProcessValueBinSize:     10,
		MissingValue:            -1,
		RuleOrder:               OrderMined,
	}
}

func (s Settings) Validate() error {
	if s.Mode != ModeComposite && s.Mode != ModeCluster {
		return fmt.Errorf("unknown label mode %q", s.Mode)
	}
	if s.ItemsetSize <= 0 {
		return fmt.Errorf("itemset_size must be > 0")
	}
	if s.MinSupport <= 0 || s.MinSupport > 1 {
		return fmt.Errorf("min_support must be in (0, 1]")
	}
	if s.MinConfidence <= 0 || s.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be in (0, 1]")
	}
	if s.Mode == ModeCluster && s.NumProcessValueClusters <= 0 {
		return fmt.Errorf("num_process_value_clusters must be > 0")
	}
	if s.Mode == ModeComposite && s.ProcessValueBinSize <= 0 {
		return fmt.Errorf("process_value_bin_size must be > 0")
	}
	if s.RuleOrder != OrderMined && s.RuleOrder != OrderConfidence {
		return fmt.Errorf("unknown rule_order %q", s.RuleOrder)
	}
	return nil
}

type Itemset struct {
	Items   LabelSet `json:"items"`
	Support float64  `json:"support"`
}

type Rule struct {
	Antecedent LabelSet `json:"antecedents"`
	Consequent LabelSet `json:"consequents"`
	Support    float64  `json:"support"`
	Confidence float64  `json:"confidence"`
}

// RuleKey identifies a rule by its antecedent and consequent.
type RuleKey struct {
	Antecedent string
	Consequent string
}

func (r Rule) Key() RuleKey {
	return RuleKey{Antecedent: r.Antecedent.Key(), Consequent: r.Consequent.Key()}
}

func (r Rule) String() string {
	return fmt.Sprintf("%s => %s", r.Antecedent, r.Consequent)
}

type DelayBound struct {
	Min float64
	Max float64
}

func (b DelayBound) Contains(d float64) bool {
	return d >= b.Min && d <= b.Max
}

type Cluster struct {
	ID       int       `json:"id"`
	Centroid []float64 `json:"centroid"`
	Bound    float64   `json:"bound"`
}

// Model is the trained detector state. It is never mutated after training
// and may be shared by any number of sessions.
type Model struct {
	Name        string
	Settings    Settings
	Classes     []Label
	Features    []string
	Itemsets    []Itemset
	Rules       []Rule
	DelayBounds map[RuleKey]DelayBound
	Clusters    []Cluster
}

func (m *Model) DelayBound(r Rule) (DelayBound, bool) {
	if m == nil || m.DelayBounds == nil {
		return DelayBound{}, false
	}
	b, ok := m.DelayBounds[r.Key()]
	return b, ok
}

func (m *Model) Cluster(id int) (Cluster, bool) {
	if m == nil || id < 0 || id >= len(m.Clusters) {
		return Cluster{}, false
	}
	return m.Clusters[id], true
}

// Sets decodes the key back into its antecedent and consequent.
func (k RuleKey) Sets() (LabelSet, LabelSet) {
	return parseKey(k.Antecedent), parseKey(k.Consequent)
}
