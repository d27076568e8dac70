package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arguard/internal/config"
	"arguard/internal/model"
)

func openSQLite(t *testing.T) Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "arguard.db")
	store, err := NewStore(config.StorageConfig{Enabled: true, Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Init(context.Background()))
	return store
}

func testModel(name string, confidence float64) *model.Model {
	r := model.Rule{
		Antecedent: model.NewLabelSet("a"),
		Consequent: model.NewLabelSet("b"),
		Support:    0.5,
		Confidence: confidence,
	}
	return &model.Model{
		Name:        name,
		Settings:    model.DefaultSettings(),
		Classes:     []model.Label{"a", "b"},
		Itemsets:    []model.Itemset{{Items: model.NewLabelSet("a", "b"), Support: 0.5}},
		Rules:       []model.Rule{r},
		DelayBounds: map[model.RuleKey]model.DelayBound{r.Key(): {Min: 0, Max: 3}},
	}
}

func TestNewStoreDisabled(t *testing.T) {
	store, err := NewStore(config.StorageConfig{Enabled: false})
	assert.NoError(t, err)
	assert.Nil(t, store)

	_, err = NewStore(config.StorageConfig{Enabled: true, Driver: "mongo"})
	assert.Error(t, err)
}

func TestSQLiteModelUpsert(t *testing.T) {
	store := openSQLite(t)
	ctx := context.Background()

	_, err := store.LoadModel(ctx, "ids")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SaveModel(ctx, testModel("ids", 0.9)))
	want := testModel("ids", 1)
	require.NoError(t, store.SaveModel(ctx, want))

	got, err := store.LoadModel(ctx, "ids")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSQLiteSaveAlert(t *testing.T) {
	store := openSQLite(t)
	rule := testModel("ids", 1).Rules[0]
	alert := model.Alert{
		ID:             "a1",
		Timestamp:      time.Now().UTC(),
		EventTimestamp: 12.5,
		Session:        "file:train.ipal",
		Detector:       "ids",
		Reason:         model.ReasonCoverage,
		Label:          "a",
		Rule:           &rule,
		Context:        map[string]string{"source": "file_tail"},
	}
	require.NoError(t, store.SaveAlert(context.Background(), alert))
	assert.Error(t, store.SaveAlert(context.Background(), alert), "duplicate id")
}
