package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fittedWeights() *ModelWeights {
	return &ModelWeights{
		ModelType:          "RandomForestClassifier",
		Version:            WeightsVersion,
		Classes:            []int{0, 1, 2},
		NFeatures:          3,
		FeatureImportances: []float64{0.5, 0.25, 0.25},
		Hyperparameters:    map[string]interface{}{"n_estimators": 2, "max_depth": 1},
		Metadata:           map[string]interface{}{"n_leaves": 4},
		IsFitted:           true,
	}
}

func TestModelWeights_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(mw *ModelWeights)
		wantErr bool
	}{
		{name: "valid", mutate: func(*ModelWeights) {}},
		{name: "missing type", mutate: func(mw *ModelWeights) { mw.ModelType = "" }, wantErr: true},
		{name: "missing version", mutate: func(mw *ModelWeights) { mw.Version = "" }, wantErr: true},
		{name: "fitted without classes", mutate: func(mw *ModelWeights) { mw.Classes = nil }, wantErr: true},
		{name: "unfitted with classes", mutate: func(mw *ModelWeights) { mw.IsFitted = false }, wantErr: true},
		{name: "importance length", mutate: func(mw *ModelWeights) { mw.FeatureImportances = []float64{1} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := fittedWeights()
			tt.mutate(mw)
			err := mw.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestModelWeights_JSONAndClone(t *testing.T) {
	mw := fittedWeights()
	data, err := mw.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"model_type": "RandomForestClassifier"`)

	var decoded ModelWeights
	require.NoError(t, decoded.FromJSON(data))
	assert.Equal(t, mw.Classes, decoded.Classes)
	assert.Equal(t, mw.FeatureImportances, decoded.FeatureImportances)

	clone := mw.Clone()
	clone.Classes[0] = 99
	clone.Hyperparameters["n_estimators"] = 100
	assert.Equal(t, 0, mw.Classes[0])
	assert.Equal(t, 2, mw.Hyperparameters["n_estimators"])
}

func TestGetWeightHash(t *testing.T) {
	a, err := GetWeightHash(&stubModel{Name: "a", Thresholds: []float64{1.5}})
	require.NoError(t, err)
	assert.Len(t, a, 16)

	again, err := GetWeightHash(&stubModel{Name: "a", Thresholds: []float64{1.5}})
	require.NoError(t, err)
	assert.Equal(t, a, again)

	b, err := GetWeightHash(&stubModel{Name: "a", Thresholds: []float64{2.5}})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stub.gob")
	require.NoError(t, SaveModel(&stubModel{Name: "hashed"}, path))

	hash, size, err := HashFile(path)
	require.NoError(t, err)
	assert.Len(t, hash, 16)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), size)

	_, _, err = HashFile(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
