package ensemble

import (
	"bytes"
	"encoding/gob"

	"github.com/YuminosukeSato/winefit/core/model"
	werrors "github.com/YuminosukeSato/winefit/pkg/errors"
	"github.com/YuminosukeSato/winefit/pkg/log"
	"github.com/YuminosukeSato/winefit/sklearn/tree"
)

// forestSnapshot is the gob wire form of a RandomForestClassifier. Trees
// encode themselves through their own GobEncode.
type forestSnapshot struct {
	NEstimators     int
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     string
	MaxFeaturesN    int
	Bootstrap       bool
	OOBScore        bool
	RandomState     int64
	NJobs           int

	State       model.ModelState
	Classes     []int
	NFeatures   int
	Importances []float64
	OOBValue    float64
	Trees       []*tree.DecisionTreeClassifier
}

// GobEncode implements gob.GobEncoder
func (rf *RandomForestClassifier) GobEncode() ([]byte, error) {
	snap := forestSnapshot{
		NEstimators:     rf.nEstimators,
		Criterion:       rf.criterion,
		MaxDepth:        rf.maxDepth,
		MinSamplesSplit: rf.minSamplesSplit,
		MinSamplesLeaf:  rf.minSamplesLeaf,
		MaxFeatures:     rf.maxFeatures,
		MaxFeaturesN:    rf.maxFeaturesN,
		Bootstrap:       rf.bootstrap,
		OOBScore:        rf.oobScore,
		RandomState:     rf.randomState,
		NJobs:           rf.nJobs,
		State:           rf.state.GetState(),
		Classes:         rf.classes_,
		NFeatures:       rf.nFeatures_,
		Importances:     rf.featureImportances_,
		OOBValue:        rf.oobScore_,
		Trees:           rf.estimators_,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, werrors.NewModelError(modelName+".GobEncode", "encode", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder
func (rf *RandomForestClassifier) GobDecode(data []byte) error {
	var snap forestSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return werrors.NewModelError(modelName+".GobDecode", "decode", err)
	}
	if snap.State.Fitted {
		if len(snap.Trees) == 0 || len(snap.Trees) != snap.NEstimators {
			return werrors.NewModelError(modelName+".GobDecode", "validate", werrors.ErrInvalidArtifact)
		}
		for _, dt := range snap.Trees {
			if dt == nil || !dt.IsFitted() || dt.NFeatures() != snap.NFeatures ||
				len(dt.Classes()) != len(snap.Classes) {
				return werrors.NewModelError(modelName+".GobDecode", "validate", werrors.ErrInvalidArtifact)
			}
		}
	}

	if rf.state == nil {
		rf.state = model.NewStateManager()
	}
	if rf.logger == nil {
		rf.logger = log.GetLogger()
	}
	rf.nEstimators = snap.NEstimators
	rf.criterion = snap.Criterion
	rf.maxDepth = snap.MaxDepth
	rf.minSamplesSplit = snap.MinSamplesSplit
	rf.minSamplesLeaf = snap.MinSamplesLeaf
	rf.maxFeatures = snap.MaxFeatures
	rf.maxFeaturesN = snap.MaxFeaturesN
	rf.bootstrap = snap.Bootstrap
	rf.oobScore = snap.OOBScore
	rf.randomState = snap.RandomState
	rf.nJobs = snap.NJobs
	rf.state.SetState(snap.State)
	rf.classes_ = snap.Classes
	rf.nClasses_ = len(snap.Classes)
	rf.nFeatures_ = snap.NFeatures
	rf.featureImportances_ = snap.Importances
	rf.oobScore_ = snap.OOBValue
	rf.estimators_ = snap.Trees
	return nil
}
