package datasets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	werrors "github.com/YuminosukeSato/winefit/pkg/errors"
)

func TestLoadWine(t *testing.T) {
	bunch, err := LoadWine()
	require.NoError(t, err)

	rows, cols := bunch.Data.Dims()
	assert.Equal(t, 178, rows)
	assert.Equal(t, 13, cols)

	tRows, tCols := bunch.Target.Dims()
	assert.Equal(t, 178, tRows)
	assert.Equal(t, 1, tCols)

	assert.Equal(t, map[int]int{0: 59, 1: 71, 2: 48}, bunch.ClassCounts())
	assert.Equal(t, []int{0, 1, 2}, bunch.Labels())
	assert.Equal(t, []string{"class_0", "class_1", "class_2"}, bunch.TargetNames)
	require.Len(t, bunch.FeatureNames, 13)
	assert.Equal(t, "alcohol", bunch.FeatureNames[0])
	assert.Equal(t, "proline", bunch.FeatureNames[12])
	assert.Contains(t, bunch.Descr, "Wine recognition dataset")

	assert.Equal(t, 14.23, bunch.Data.At(0, 0))
	assert.Equal(t, 1065.0, bunch.Data.At(0, 12))
}

func TestLoadWine_ColumnStatistics(t *testing.T) {
	X, _, err := LoadWineXY()
	require.NoError(t, err)

	tests := []struct {
		name string
		col  int
		mean float64
		min  float64
		max  float64
	}{
		{name: "alcohol", col: 0, mean: 13.000618, min: 11.03, max: 14.83},
		{name: "magnesium", col: 4, mean: 99.741573, min: 70, max: 162},
		{name: "hue", col: 10, mean: 0.957449, min: 0.48, max: 1.71},
		{name: "proline", col: 12, mean: 746.893258, min: 278, max: 1680},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			column := mat.Col(nil, tt.col, X)
			assert.InDelta(t, tt.mean, stat.Mean(column, nil), 1e-5)

			lo, hi := column[0], column[0]
			for _, v := range column {
				lo = min(lo, v)
				hi = max(hi, v)
			}
			assert.Equal(t, tt.min, lo)
			assert.Equal(t, tt.max, hi)
		})
	}
}

func TestLoadWine_ReturnsFreshMatrices(t *testing.T) {
	X1, _, err := LoadWineXY()
	require.NoError(t, err)
	X1.Set(0, 0, -1)

	X2, _, err := LoadWineXY()
	require.NoError(t, err)
	assert.Equal(t, 14.23, X2.At(0, 0))
}

func TestLoadCSV(t *testing.T) {
	input := "a,b,label\n1.5,2,0\n3,4.25,1\n5,6,1\n"
	bunch, err := LoadCSV(strings.NewReader(input), WithHeader(true))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, bunch.FeatureNames)
	assert.Equal(t, []string{"class_0", "class_1"}, bunch.TargetNames)
	assert.Equal(t, 4.25, bunch.Data.At(1, 1))
	assert.Equal(t, 1.0, bunch.Target.At(2, 0))
}

func TestLoadCSV_LabelColumn(t *testing.T) {
	input := "2,1.5,7\n0,2.5,8\n"
	bunch, err := LoadCSV(strings.NewReader(input), WithLabelColumn(0))
	require.NoError(t, err)

	assert.Equal(t, []string{"feature_0", "feature_1"}, bunch.FeatureNames)
	assert.Equal(t, 1.5, bunch.Data.At(0, 0))
	assert.Equal(t, 8.0, bunch.Data.At(1, 1))
	assert.Equal(t, []int{0, 2}, bunch.Labels())
}

func TestLoadCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		opts    []CSVOption
		wantMsg string
	}{
		{name: "empty", input: "", wantMsg: "empty data"},
		{name: "header only", input: "a,label\n", opts: []CSVOption{WithHeader(true)}, wantMsg: "empty data"},
		{name: "non numeric", input: "1,0\nx,1\n", wantMsg: "row 1, column 0"},
		{name: "ragged", input: "1,2,0\n3,1\n", wantMsg: "line 2"},
		{name: "fractional label", input: "1,0.5\n", wantMsg: "not a non-negative integer"},
		{name: "negative label", input: "1,-1\n", wantMsg: "not a non-negative integer"},
		{name: "single column", input: "1\n", wantMsg: "at least one feature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCSV(strings.NewReader(tt.input), tt.opts...)
			require.Error(t, err)
			var valueErr *werrors.ValueError
			assert.True(t, werrors.As(err, &valueErr), "got %T", err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadCSV_NonFinite(t *testing.T) {
	_, err := LoadCSV(strings.NewReader("1,0\nNaN,1\n"))
	require.Error(t, err)
	var numErr *werrors.NumericalInstabilityError
	require.True(t, werrors.As(err, &numErr))
	assert.Equal(t, 1, numErr.Row)
}

func TestLoadCSV_BadLabelColumn(t *testing.T) {
	_, err := LoadCSV(strings.NewReader("1,0\n"), WithLabelColumn(5))
	var validationErr *werrors.ValidationError
	assert.True(t, werrors.As(err, &validationErr))
}
