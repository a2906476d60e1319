package tree

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/winefit/core/model"
	werrors "github.com/YuminosukeSato/winefit/pkg/errors"
)

// GetParams returns the model hyperparameters
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	params := map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
	if dt.maxFeaturesN > 0 {
		params["max_features"] = dt.maxFeaturesN
	}
	return params
}

// SetParams sets the model hyperparameters. Integer parameters accept any Go
// integer type or an integral float64 (as decoded from YAML or JSON).
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "criterion":
			s, ok := value.(string)
			if !ok {
				return werrors.NewValidationError(key, "must be a string", value)
			}
			dt.criterion = s
		case "max_depth":
			n, err := ToInt(key, value)
			if err != nil {
				return err
			}
			dt.maxDepth = n
		case "min_samples_split":
			n, err := ToInt(key, value)
			if err != nil {
				return err
			}
			dt.minSamplesSplit = n
		case "min_samples_leaf":
			n, err := ToInt(key, value)
			if err != nil {
				return err
			}
			dt.minSamplesLeaf = n
		case "max_features":
			if s, ok := value.(string); ok {
				dt.maxFeatures = s
				dt.maxFeaturesN = 0
				continue
			}
			n, err := ToInt(key, value)
			if err != nil {
				return err
			}
			dt.maxFeaturesN = n
		case "random_state":
			n, err := ToInt(key, value)
			if err != nil {
				return err
			}
			dt.randomState = int64(n)
		default:
			return werrors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return dt.validateParams()
}

func (dt *DecisionTreeClassifier) validateParams() error {
	switch dt.criterion {
	case CriterionGini, CriterionEntropy:
	default:
		return werrors.NewValidationError("criterion", `must be "gini" or "entropy"`, dt.criterion)
	}
	switch dt.maxFeatures {
	case "", MaxFeaturesAll, MaxFeaturesSqrt, MaxFeaturesLog2:
	default:
		return werrors.NewValidationError("max_features", `must be "", "all", "sqrt", "log2" or a positive integer`, dt.maxFeatures)
	}
	if dt.maxFeaturesN < 0 {
		return werrors.NewValidationError("max_features", "must be positive", dt.maxFeaturesN)
	}
	if dt.minSamplesSplit < 2 {
		return werrors.NewValidationError("min_samples_split", "must be at least 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return werrors.NewValidationError("min_samples_leaf", "must be at least 1", dt.minSamplesLeaf)
	}
	return nil
}

// ToInt converts a parameter value to int. It accepts the integer kinds and
// integral floats, and reports a ValidationError naming key otherwise.
func ToInt(key string, value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint:
		return int(v), nil
	case uint32:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int(v), nil
		}
	case float32:
		if float64(v) == math.Trunc(float64(v)) {
			return int(v), nil
		}
	}
	return 0, werrors.NewValidationError(key, fmt.Sprintf("must be an integer, got %T", value), value)
}

// ExportWeights summarizes the fitted tree
func (dt *DecisionTreeClassifier) ExportWeights() (*model.ModelWeights, error) {
	if err := dt.state.RequireFitted(modelName, "ExportWeights"); err != nil {
		return nil, err
	}
	hash, err := model.GetWeightHash(dt)
	if err != nil {
		return nil, err
	}
	return &model.ModelWeights{
		ModelType:          modelName,
		Version:            model.WeightsVersion,
		Classes:            dt.Classes(),
		NFeatures:          dt.nFeatures_,
		FeatureImportances: dt.GetFeatureImportances(),
		Hyperparameters:    dt.GetParams(),
		Metadata: map[string]interface{}{
			"depth":    dt.depth_,
			"n_leaves": dt.nLeaves_,
			"n_nodes":  len(dt.nodes),
		},
		IsFitted: true,
		Hash:     hash,
	}, nil
}
