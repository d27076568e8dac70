// Package classify maps observations to discrete labels.
package classify

import (
	"errors"
	"fmt"

	"arguard/internal/model"
)

// Classification is the result of labeling one observation. ClusterID is -1
// and Distance is zero for composite labels.
type Classification struct {
	Label     model.Label
	ClusterID int
	Features  []float64
	Distance  float64
}

type Classifier interface {
	Classify(obs model.Observation) (Classification, error)
}

var ErrNoClusters = errors.New("model has no clusters")

// FromModel builds the classifier a trained model was learned with.
func FromModel(m *model.Model) (Classifier, error) {
	if m == nil {
		return nil, errors.New("nil model")
	}
	switch m.Settings.Mode {
	case model.ModeComposite, "":
		return NewComposite(m.Settings.ProcessValueBinSize), nil
	case model.ModeCluster:
		if len(m.Clusters) == 0 {
			return nil, ErrNoClusters
		}
		centroids := make([][]float64, len(m.Clusters))
		for i, c := range m.Clusters {
			if c.ID != i {
				return nil, fmt.Errorf("cluster %d stored at position %d", c.ID, i)
			}
			centroids[i] = c.Centroid
		}
		return NewCluster(m.Features, centroids, m.Settings.MissingValue), nil
	default:
		return nil, fmt.Errorf("unknown label mode %q", m.Settings.Mode)
	}
}
