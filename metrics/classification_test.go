package metrics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/winefit/pkg/errors"
)

func TestClassificationError(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "Perfect classification",
			yTrue: []float64{0, 1, 2, 1, 0},
			yPred: []float64{0, 1, 2, 1, 0},
			want:  0.0,
		},
		{
			name:  "One error",
			yTrue: []float64{0, 1, 2, 1, 0},
			yPred: []float64{0, 1, 1, 1, 0},
			want:  0.2,
		},
		{
			name:  "All wrong",
			yTrue: []float64{0, 0, 0},
			yPred: []float64{1, 1, 1},
			want:  1.0,
		},
		{
			name:  "Binary classification",
			yTrue: []float64{0, 0, 1, 1},
			yPred: []float64{0, 1, 1, 0},
			want:  0.5,
		},
		{
			name:    "Empty vectors",
			yTrue:   []float64{},
			yPred:   []float64{},
			wantErr: true,
		},
		{
			name:    "Dimension mismatch",
			yTrue:   []float64{0, 1},
			yPred:   []float64{0},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var yTrue, yPred *mat.VecDense
			if len(tt.yTrue) > 0 {
				yTrue = mat.NewVecDense(len(tt.yTrue), tt.yTrue)
			}
			if len(tt.yPred) > 0 {
				yPred = mat.NewVecDense(len(tt.yPred), tt.yPred)
			}

			got, err := ClassificationError(yTrue, yPred)
			if (err != nil) != tt.wantErr {
				t.Errorf("ClassificationError() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("ClassificationError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "Perfect accuracy",
			yTrue: []float64{0, 1, 2, 1, 0},
			yPred: []float64{0, 1, 2, 1, 0},
			want:  1.0,
		},
		{
			name:  "80% accuracy",
			yTrue: []float64{0, 1, 2, 1, 0},
			yPred: []float64{0, 1, 1, 1, 0},
			want:  0.8,
		},
		{
			name:  "Zero accuracy",
			yTrue: []float64{0, 0, 0},
			yPred: []float64{1, 1, 1},
			want:  0.0,
		},
		{
			name:    "Empty vectors",
			yTrue:   []float64{},
			yPred:   []float64{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var yTrue, yPred *mat.VecDense
			if len(tt.yTrue) > 0 {
				yTrue = mat.NewVecDense(len(tt.yTrue), tt.yTrue)
			}
			if len(tt.yPred) > 0 {
				yPred = mat.NewVecDense(len(tt.yPred), tt.yPred)
			}

			got, err := Accuracy(yTrue, yPred)
			if (err != nil) != tt.wantErr {
				t.Errorf("Accuracy() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Accuracy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccuracyMatrix(t *testing.T) {
	yTrue := mat.NewDense(4, 1, []float64{0, 1, 2, 2})
	yPred := mat.NewDense(4, 1, []float64{0, 1, 1, 2})

	got, err := AccuracyMatrix(yTrue, yPred)
	if err != nil {
		t.Fatalf("AccuracyMatrix() error = %v", err)
	}
	if math.Abs(got-0.75) > 1e-12 {
		t.Errorf("AccuracyMatrix() = %v, want 0.75", got)
	}

	if _, err := AccuracyMatrix(yTrue, mat.NewDense(3, 1, nil)); err == nil {
		t.Error("AccuracyMatrix() expected error for row mismatch")
	}
	if _, err := AccuracyMatrix(mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil)); err == nil {
		t.Error("AccuracyMatrix() expected error for non-column input")
	}
	if _, err := AccuracyMatrix(nil, yPred); err == nil {
		t.Error("AccuracyMatrix() expected error for nil input")
	}
}

func TestConfusionMatrix(t *testing.T) {
	yTrue := mat.NewVecDense(6, []float64{0, 0, 1, 1, 2, 2})
	yPred := mat.NewVecDense(6, []float64{0, 1, 1, 1, 2, 0})

	cm, labels, err := ConfusionMatrix(yTrue, yPred, nil)
	if err != nil {
		t.Fatalf("ConfusionMatrix() error = %v", err)
	}
	want := mat.NewDense(3, 3, []float64{
		1, 1, 0,
		0, 2, 0,
		1, 0, 1,
	})
	if !mat.Equal(cm, want) {
		t.Errorf("ConfusionMatrix() =\n%v\nwant\n%v", mat.Formatted(cm), mat.Formatted(want))
	}
	if len(labels) != 3 || labels[0] != 0 || labels[2] != 2 {
		t.Errorf("labels = %v, want [0 1 2]", labels)
	}

	// Explicit labels select and order the rows and columns.
	cm, _, err = ConfusionMatrix(yTrue, yPred, []int{2, 0})
	if err != nil {
		t.Fatalf("ConfusionMatrix() error = %v", err)
	}
	want = mat.NewDense(2, 2, []float64{
		1, 1,
		0, 1,
	})
	if !mat.Equal(cm, want) {
		t.Errorf("ConfusionMatrix(labels) =\n%v\nwant\n%v", mat.Formatted(cm), mat.Formatted(want))
	}

	if _, _, err := ConfusionMatrix(yTrue, yPred, []int{1, 1}); err == nil {
		t.Error("ConfusionMatrix() expected error for duplicate labels")
	}
	if _, _, err := ConfusionMatrix(yTrue, mat.NewVecDense(2, nil), nil); err == nil {
		t.Error("ConfusionMatrix() expected error for length mismatch")
	}

	colTrue := mat.NewDense(6, 1, yTrue.RawVector().Data)
	colPred := mat.NewDense(6, 1, yPred.RawVector().Data)
	fromColumns, _, err := ConfusionMatrixFromColumns(colTrue, colPred, nil)
	if err != nil {
		t.Fatalf("ConfusionMatrixFromColumns() error = %v", err)
	}
	cmAll, _, _ := ConfusionMatrix(yTrue, yPred, nil)
	if !mat.Equal(fromColumns, cmAll) {
		t.Error("ConfusionMatrixFromColumns() differs from ConfusionMatrix()")
	}
}

func TestAccuracy_ErrorTypes(t *testing.T) {
	_, err := Accuracy(mat.NewVecDense(2, []float64{0, 1}), mat.NewVecDense(3, []float64{0, 1, 1}))
	var dimErr *errors.DimensionError
	if !errors.As(err, &dimErr) {
		t.Errorf("expected DimensionError, got %T", err)
	}

	_, err = Accuracy(nil, nil)
	var valueErr *errors.ValueError
	if !errors.As(err, &valueErr) {
		t.Errorf("expected ValueError, got %T", err)
	}
}

func BenchmarkAccuracy(b *testing.B) {
	n := 1000
	yTrue := mat.NewVecDense(n, nil)
	yPred := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		yTrue.SetVec(i, float64(i%3))
		yPred.SetVec(i, float64((i+i/7)%3))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Accuracy(yTrue, yPred)
	}
}
