package classify

import (
	"fmt"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

// KMeans is the default Clusterer.
type KMeans struct{}

func (KMeans) Fit(points [][]float64, k int) ([][]float64, error) {
	if k <= 0 {
		return nil, fmt.Errorf("invalid cluster count %d", k)
	}
	if len(points) < k {
		return nil, fmt.Errorf("%w: %d points, %d clusters", ErrTooFewPoints, len(points), k)
	}
	dataset := make(clusters.Observations, 0, len(points))
	for _, p := range points {
		dataset = append(dataset, clusters.Coordinates(p))
	}
	partition, err := kmeans.New().Partition(dataset, k)
	if err != nil {
		return nil, fmt.Errorf("kmeans partition: %w", err)
	}
	centroids := make([][]float64, 0, len(partition))
	for _, c := range partition {
		center := make([]float64, len(c.Center))
		copy(center, c.Center)
		centroids = append(centroids, center)
	}
	return recenter(centroids, points), nil
}

// recenter moves every centroid to the mean of the points nearest to it.
// Partition stops without recentering when the first assignment is already
// stable, which leaves a single cluster at its random seed.
func recenter(centroids, points [][]float64) [][]float64 {
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for i := range centroids {
		sums[i] = make([]float64, len(centroids[i]))
	}
	for _, p := range points {
		id, _ := Nearest(centroids, p)
		counts[id]++
		for d := range sums[id] {
			if d < len(p) {
				sums[id][d] += p[d]
			}
		}
	}
	for i := range centroids {
		if counts[i] == 0 {
			continue
		}
		for d := range sums[i] {
			centroids[i][d] = sums[i][d] / float64(counts[i])
		}
	}
	return centroids
}
