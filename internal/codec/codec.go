// Package codec persists trained models.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"

	"arguard/internal/model"
)

// ErrModelNotFound is returned by Load when no model file exists. Detection
// stays untrained until one is saved.
var ErrModelNotFound = errors.New("model not found")

// IdentityMismatchError reports a model trained under a different detector
// name.
type IdentityMismatchError struct {
	Expected string
	Got      string
}

func (e *IdentityMismatchError) Error() string {
	return fmt.Sprintf("model name mismatch: expected %q, got %q", e.Expected, e.Got)
}

type wireModel struct {
	Name        string          `json:"name"`
	Settings    model.Settings  `json:"settings"`
	Classes     []model.Label   `json:"classes"`
	Features    []string        `json:"features,omitempty"`
	Itemsets    []model.Itemset `json:"itemsets"`
	Rules       []model.Rule    `json:"rules"`
	DelayBounds []wireBound     `json:"delayBounds"`
	Clusters    []model.Cluster `json:"clusters,omitempty"`
}

type wireBound struct {
	Key   [2]model.LabelSet `json:"key"`
	Value [2]float64        `json:"value"`
}

func Encode(w io.Writer, m *model.Model) error {
	if m == nil {
		return errors.New("nil model")
	}
	wm := wireModel{
		Name:        m.Name,
		Settings:    m.Settings,
		Classes:     m.Classes,
		Features:    m.Features,
		Itemsets:    m.Itemsets,
		Rules:       m.Rules,
		DelayBounds: make([]wireBound, 0, len(m.DelayBounds)),
		Clusters:    m.Clusters,
	}
	keys := make([]model.RuleKey, 0, len(m.DelayBounds))
	for k := range m.DelayBounds {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Antecedent != keys[j].Antecedent {
			return keys[i].Antecedent < keys[j].Antecedent
		}
		return keys[i].Consequent < keys[j].Consequent
	})
	for _, k := range keys {
		b := m.DelayBounds[k]
		ante, cons := k.Sets()
		wm.DelayBounds = append(wm.DelayBounds, wireBound{
			Key:   [2]model.LabelSet{ante, cons},
			Value: [2]float64{b.Min, b.Max},
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(wm)
}

func Decode(r io.Reader) (*model.Model, error) {
	var wm wireModel
	if err := json.NewDecoder(r).Decode(&wm); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if err := wm.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("decode model settings: %w", err)
	}
	m := &model.Model{
		Name:        wm.Name,
		Settings:    wm.Settings,
		Classes:     wm.Classes,
		Features:    wm.Features,
		Itemsets:    wm.Itemsets,
		Rules:       wm.Rules,
		DelayBounds: make(map[model.RuleKey]model.DelayBound, len(wm.DelayBounds)),
		Clusters:    wm.Clusters,
	}
	for _, b := range wm.DelayBounds {
		key := model.RuleKey{Antecedent: b.Key[0].Key(), Consequent: b.Key[1].Key()}
		m.DelayBounds[key] = model.DelayBound{Min: b.Value[0], Max: b.Value[1]}
	}
	return m, nil
}

// Marshal encodes m into a byte slice.
func Marshal(m *model.Model) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Unmarshal(data []byte) (*model.Model, error) {
	return Decode(bytes.NewReader(data))
}

// Save writes m to path, gzip-compressed when path ends in ".gz". The file
// is replaced atomically.
func Save(path string, m *model.Model) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	defer os.Remove(tmp.Name())

	var w io.Writer = tmp
	var zw *gzip.Writer
	if isGzip(path) {
		zw = gzip.NewWriter(tmp)
		w = zw
	}
	if err := Encode(w, m); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("save model: %w", err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("save model: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	return nil
}

// Load reads the model at path. A non-empty name must match the stored one.
func Load(path, name string) (*model.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if isGzip(path) {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip model %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}
	m, err := Decode(r)
	if err != nil {
		return nil, err
	}
	if name != "" && m.Name != name {
		return nil, &IdentityMismatchError{Expected: name, Got: m.Name}
	}
	return m, nil
}

func isGzip(path string) bool {
	return strings.HasSuffix(path, ".gz")
}
