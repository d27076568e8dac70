package classify

import (
	"errors"
	"math"
	"strconv"

	"arguard/internal/model"
)

// Cluster labels an observation by the nearest centroid of its feature
// vector.
type Cluster struct {
	features  []string
	centroids [][]float64
	missing   float64
}

func NewCluster(features []string, centroids [][]float64, missing float64) *Cluster {
	return &Cluster{features: features, centroids: centroids, missing: missing}
}

// Vector builds the feature vector in feature order. Absent or null values
// are replaced by the missing sentinel; complete is false if any were.
func Vector(obs model.Observation, features []string, missing float64) (vec []float64, complete bool) {
	values := obs.Values()
	vec = make([]float64, len(features))
	complete = true
	for i, name := range features {
		v, ok := values[name]
		if !ok || v == nil {
			vec[i] = missing
			complete = false
			continue
		}
		vec[i] = *v
	}
	return vec, complete
}

func (c *Cluster) Classify(obs model.Observation) (Classification, error) {
	if len(c.centroids) == 0 {
		return Classification{}, ErrNoClusters
	}
	vec, _ := Vector(obs, c.features, c.missing)
	id, dist := Nearest(c.centroids, vec)
	return Classification{
		Label:     ClusterLabel(id),
		ClusterID: id,
		Features:  vec,
		Distance:  dist,
	}, nil
}

func ClusterLabel(id int) model.Label {
	return model.Label(strconv.Itoa(id))
}

// Nearest returns the index of the closest centroid, preferring the lowest
// index on ties.
func Nearest(centroids [][]float64, point []float64) (int, float64) {
	best := -1
	bestDist := math.Inf(1)
	for i, c := range centroids {
		d := Euclidean(c, point)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best, bestDist
}

func Euclidean(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Clusterer fits k centroids to a set of points.
type Clusterer interface {
	Fit(points [][]float64, k int) ([][]float64, error)
}

var ErrTooFewPoints = errors.New("fewer points than clusters")
