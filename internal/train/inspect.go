package train

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/winefit/core/model"
	"github.com/YuminosukeSato/winefit/metrics"
	werrors "github.com/YuminosukeSato/winefit/pkg/errors"
	"github.com/YuminosukeSato/winefit/sklearn/ensemble"
)

// Report is the evaluation of a reloaded artifact.
type Report struct {
	Path         string
	ArtifactSize int64
	ArtifactHash string
	Model        *ensemble.RandomForestClassifier
	Weights      *model.ModelWeights
	Accuracy     float64
	OOBScore     *float64
	Labels       []int
	Confusion    *mat.Dense
}

// Inspect loads the forest stored at path and evaluates it on (X, y).
func Inspect(path string, X, y mat.Matrix) (*Report, error) {
	forest := ensemble.NewRandomForestClassifier()
	if err := model.LoadModel(forest, path); err != nil {
		return nil, werrors.Wrapf(err, "load model from %s", path)
	}
	if !forest.IsFitted() {
		return nil, werrors.NewModelError("Inspect", "validate",
			fmt.Errorf("%w: %s holds an unfitted model", werrors.ErrInvalidArtifact, path))
	}

	predictions, err := forest.Predict(X)
	if err != nil {
		return nil, werrors.Wrap(err, "predict with loaded model")
	}
	accuracy, err := metrics.AccuracyMatrix(y, predictions)
	if err != nil {
		return nil, err
	}
	if accuracy < 0 || accuracy > 1 {
		return nil, werrors.NewValueError("Inspect", fmt.Sprintf("accuracy %v outside [0, 1]", accuracy))
	}
	cm, labels, err := metrics.ConfusionMatrixFromColumns(y, predictions, forest.Classes())
	if err != nil {
		return nil, err
	}

	weights, err := forest.ExportWeights()
	if err != nil {
		return nil, err
	}
	hash, size, err := model.HashFile(path)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		Path:         path,
		ArtifactSize: size,
		ArtifactHash: hash,
		Model:        forest,
		Weights:      weights,
		Accuracy:     accuracy,
		Labels:       labels,
		Confusion:    cm,
	}
	if v, err := forest.OOBScore(); err == nil {
		rep.OOBScore = &v
	}
	return rep, nil
}
