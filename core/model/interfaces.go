// Package model defines the estimator contracts shared by the tree and
// ensemble packages, their fitted-state bookkeeping and gob persistence.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Scorer is the interface for models that can compute a score.
type Scorer interface {
	// Score returns the mean accuracy on the given data and labels.
	Score(X, y mat.Matrix) float64
}

// Classifier combines interfaces for classification models.
type Classifier interface {
	Estimator
	Predictor
	Scorer

	// PredictProba returns probability estimates for each class.
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the unique classes seen during fitting.
	Classes() []int
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	// SetParams sets the model's hyperparameters.
	SetParams(params map[string]interface{}) error
}

// WeightExporter is implemented by models that can summarize their fitted
// state as ModelWeights.
type WeightExporter interface {
	ExportWeights() (*ModelWeights, error)
}
