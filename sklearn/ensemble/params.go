package ensemble

import (
	"github.com/YuminosukeSato/winefit/core/model"
	werrors "github.com/YuminosukeSato/winefit/pkg/errors"
	"github.com/YuminosukeSato/winefit/sklearn/tree"
)

// GetParams returns the model hyperparameters
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	params := map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"criterion":         rf.criterion,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"oob_score":         rf.oobScore,
		"random_state":      rf.randomState,
		"n_jobs":            rf.nJobs,
	}
	if rf.maxFeaturesN > 0 {
		params["max_features"] = rf.maxFeaturesN
	}
	return params
}

// SetParams sets the model hyperparameters
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "criterion":
			s, ok := value.(string)
			if !ok {
				return werrors.NewValidationError(key, "must be a string", value)
			}
			rf.criterion = s
		case "max_features":
			if s, ok := value.(string); ok {
				rf.maxFeatures = s
				rf.maxFeaturesN = 0
				continue
			}
			n, err := tree.ToInt(key, value)
			if err != nil {
				return err
			}
			rf.maxFeaturesN = n
		case "bootstrap", "oob_score":
			b, ok := value.(bool)
			if !ok {
				return werrors.NewValidationError(key, "must be a bool", value)
			}
			if key == "bootstrap" {
				rf.bootstrap = b
			} else {
				rf.oobScore = b
			}
		case "n_estimators", "max_depth", "min_samples_split", "min_samples_leaf", "random_state", "n_jobs":
			n, err := tree.ToInt(key, value)
			if err != nil {
				return err
			}
			rf.setIntParam(key, n)
		default:
			return werrors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return rf.validateParams()
}

func (rf *RandomForestClassifier) setIntParam(key string, n int) {
	switch key {
	case "n_estimators":
		rf.nEstimators = n
	case "max_depth":
		rf.maxDepth = n
	case "min_samples_split":
		rf.minSamplesSplit = n
	case "min_samples_leaf":
		rf.minSamplesLeaf = n
	case "random_state":
		rf.randomState = int64(n)
	case "n_jobs":
		rf.nJobs = n
	}
}

func (rf *RandomForestClassifier) validateParams() error {
	if rf.nEstimators < 1 {
		return werrors.NewValidationError("n_estimators", "must be at least 1", rf.nEstimators)
	}
	if rf.oobScore && !rf.bootstrap {
		return werrors.NewValidationError("oob_score", "requires bootstrap=true", rf.oobScore)
	}
	if rf.nJobs == 0 {
		return werrors.NewValidationError("n_jobs", "must be positive or -1", rf.nJobs)
	}
	// Tree-level parameters are checked by the same rules the trees apply.
	probe := tree.NewDecisionTreeClassifier(rf.treeOptions(0)...)
	return probe.SetParams(map[string]interface{}{})
}

// Clone returns an unfitted forest with the same hyperparameters and logger
func (rf *RandomForestClassifier) Clone() *RandomForestClassifier {
	clone := NewRandomForestClassifier(WithLogger(rf.logger))
	clone.nEstimators = rf.nEstimators
	clone.criterion = rf.criterion
	clone.maxDepth = rf.maxDepth
	clone.minSamplesSplit = rf.minSamplesSplit
	clone.minSamplesLeaf = rf.minSamplesLeaf
	clone.maxFeatures = rf.maxFeatures
	clone.maxFeaturesN = rf.maxFeaturesN
	clone.bootstrap = rf.bootstrap
	clone.oobScore = rf.oobScore
	clone.randomState = rf.randomState
	clone.nJobs = rf.nJobs
	return clone
}

// ExportWeights summarizes the fitted forest
func (rf *RandomForestClassifier) ExportWeights() (*model.ModelWeights, error) {
	if err := rf.state.RequireFitted(modelName, "ExportWeights"); err != nil {
		return nil, err
	}
	hash, err := model.GetWeightHash(rf)
	if err != nil {
		return nil, err
	}

	depths := make([]int, len(rf.estimators_))
	leaves := 0
	for i, dt := range rf.estimators_ {
		depths[i] = dt.GetDepth()
		leaves += dt.GetNLeaves()
	}
	metadata := map[string]interface{}{
		"tree_depths":  depths,
		"total_leaves": leaves,
	}
	if rf.oobScore {
		metadata["oob_score"] = rf.oobScore_
	}

	return &model.ModelWeights{
		ModelType:          modelName,
		Version:            model.WeightsVersion,
		Classes:            rf.Classes(),
		NFeatures:          rf.nFeatures_,
		FeatureImportances: rf.FeatureImportances(),
		Hyperparameters:    rf.GetParams(),
		Metadata:           metadata,
		IsFitted:           true,
		Hash:               hash,
	}, nil
}
