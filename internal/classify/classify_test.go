package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arguard/internal/model"
)

func fp(v float64) *float64 { return &v }

func TestCompositeLabel(t *testing.T) {
	c := NewComposite(10)
	obs := model.Observation{Message: &model.Message{
		Protocol: "modbus", Type: "3", Activity: "request", Src: "plc", Dest: "tank",
		Data: map[string]any{
			"register": map[string]any{"1": float64(125), "2": float64(-3)},
			"mode":     "auto",
		},
	}}
	got, err := c.Classify(obs)
	require.NoError(t, err)
	assert.Equal(t, model.Label("modbus-3-request-plc-tank-{mode=auto;register.1=12;register.2=-1}"), got.Label)
	assert.Equal(t, -1, got.ClusterID)
}

func TestCompositeSameBinSameLabel(t *testing.T) {
	c := NewComposite(10)
	mk := func(v float64) model.Observation {
		return model.Observation{Message: &model.Message{Protocol: "p", Data: map[string]any{"v": v}}}
	}
	a, _ := c.Classify(mk(21))
	b, _ := c.Classify(mk(29.9))
	d, _ := c.Classify(mk(30))
	assert.Equal(t, a.Label, b.Label)
	assert.NotEqual(t, a.Label, d.Label)
}

func TestCompositeState(t *testing.T) {
	c := NewComposite(5)
	got, err := c.Classify(model.Observation{State: map[string]*float64{"a": fp(7), "b": nil}})
	require.NoError(t, err)
	assert.Equal(t, model.Label("state-{a=1;b=none}"), got.Label)
}

func TestClusterNearest(t *testing.T) {
	c := NewCluster([]string{"x", "y"}, [][]float64{{0, 0}, {10, 10}}, -1)
	got, err := c.Classify(model.Observation{State: map[string]*float64{"x": fp(9), "y": fp(10)}})
	require.NoError(t, err)
	assert.Equal(t, 1, got.ClusterID)
	assert.Equal(t, model.Label("1"), got.Label)
	assert.InDelta(t, 1.0, got.Distance, 1e-9)
}

func TestClusterMissingUsesSentinel(t *testing.T) {
	vec, complete := Vector(model.Observation{State: map[string]*float64{"x": fp(2), "y": nil}}, []string{"x", "y", "z"}, -1)
	assert.False(t, complete)
	assert.Equal(t, []float64{2, -1, -1}, vec)
}

func TestNearestTieBreak(t *testing.T) {
	id, d := Nearest([][]float64{{1, 0}, {-1, 0}}, []float64{0, 0})
	assert.Equal(t, 0, id)
	assert.Equal(t, 1.0, d)
}

func TestFromModel(t *testing.T) {
	m := &model.Model{Settings: model.DefaultSettings()}
	cl, err := FromModel(m)
	require.NoError(t, err)
	assert.IsType(t, &Composite{}, cl)

	m.Settings.Mode = model.ModeCluster
	_, err = FromModel(m)
	assert.ErrorIs(t, err, ErrNoClusters)

	m.Clusters = []model.Cluster{{ID: 0, Centroid: []float64{0}}}
	m.Features = []string{"x"}
	cl, err = FromModel(m)
	require.NoError(t, err)
	assert.IsType(t, &Cluster{}, cl)
}

func TestKMeansSingleCluster(t *testing.T) {
	centroids, err := KMeans{}.Fit([][]float64{{0, 0}, {2, 0}, {0, 2}, {2, 2}}, 1)
	require.NoError(t, err)
	require.Len(t, centroids, 1)
	assert.InDelta(t, 1.0, centroids[0][0], 1e-6)
	assert.InDelta(t, 1.0, centroids[0][1], 1e-6)
}

func TestKMeansTooFewPoints(t *testing.T) {
	_, err := KMeans{}.Fit([][]float64{{0}}, 2)
	assert.ErrorIs(t, err, ErrTooFewPoints)
}
