package tree

import (
	"bytes"
	"encoding/gob"

	"github.com/YuminosukeSato/winefit/core/model"
	werrors "github.com/YuminosukeSato/winefit/pkg/errors"
)

// treeSnapshot is the gob wire form of a DecisionTreeClassifier.
type treeSnapshot struct {
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     string
	MaxFeaturesN    int
	RandomState     int64

	State       model.ModelState
	Classes     []int
	NFeatures   int
	Importances []float64
	Depth       int
	NLeaves     int
	Nodes       []nodeRecord
}

type nodeRecord struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     []float64
	Impurity  float64
	NSamples  int
	WeightedN float64
}

// GobEncode implements gob.GobEncoder
func (dt *DecisionTreeClassifier) GobEncode() ([]byte, error) {
	snap := treeSnapshot{
		Criterion:       dt.criterion,
		MaxDepth:        dt.maxDepth,
		MinSamplesSplit: dt.minSamplesSplit,
		MinSamplesLeaf:  dt.minSamplesLeaf,
		MaxFeatures:     dt.maxFeatures,
		MaxFeaturesN:    dt.maxFeaturesN,
		RandomState:     dt.randomState,
		State:           dt.state.GetState(),
		Classes:         dt.classes_,
		NFeatures:       dt.nFeatures_,
		Importances:     dt.featureImportances_,
		Depth:           dt.depth_,
		NLeaves:         dt.nLeaves_,
		Nodes:           make([]nodeRecord, len(dt.nodes)),
	}
	for i, n := range dt.nodes {
		snap.Nodes[i] = nodeRecord{
			Feature:   n.feature,
			Threshold: n.threshold,
			Left:      n.left,
			Right:     n.right,
			Value:     n.value,
			Impurity:  n.impurity,
			NSamples:  n.nSamples,
			WeightedN: n.weightedN,
		}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, werrors.NewModelError(modelName+".GobEncode", "encode", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder
func (dt *DecisionTreeClassifier) GobDecode(data []byte) error {
	var snap treeSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return werrors.NewModelError(modelName+".GobDecode", "decode", err)
	}
	if err := snap.validate(); err != nil {
		return err
	}

	if dt.state == nil {
		dt.state = model.NewStateManager()
	}
	dt.criterion = snap.Criterion
	dt.maxDepth = snap.MaxDepth
	dt.minSamplesSplit = snap.MinSamplesSplit
	dt.minSamplesLeaf = snap.MinSamplesLeaf
	dt.maxFeatures = snap.MaxFeatures
	dt.maxFeaturesN = snap.MaxFeaturesN
	dt.randomState = snap.RandomState
	dt.state.SetState(snap.State)
	dt.classes_ = snap.Classes
	dt.nClasses_ = len(snap.Classes)
	dt.nFeatures_ = snap.NFeatures
	dt.featureImportances_ = snap.Importances
	dt.depth_ = snap.Depth
	dt.nLeaves_ = snap.NLeaves
	dt.nodes = make([]node, len(snap.Nodes))
	for i, r := range snap.Nodes {
		dt.nodes[i] = node{
			feature:   r.Feature,
			threshold: r.Threshold,
			left:      r.Left,
			right:     r.Right,
			value:     r.Value,
			impurity:  r.Impurity,
			nSamples:  r.NSamples,
			weightedN: r.WeightedN,
		}
	}
	return nil
}

// validate rejects node tables that would index out of range or loop when
// traversed.
func (s *treeSnapshot) validate() error {
	if !s.State.Fitted {
		return nil
	}
	if len(s.Nodes) == 0 || len(s.Classes) == 0 {
		return werrors.NewModelError(modelName+".GobDecode", "validate", werrors.ErrInvalidArtifact)
	}
	for i, n := range s.Nodes {
		if len(n.Value) != len(s.Classes) {
			return werrors.NewModelError(modelName+".GobDecode", "validate", werrors.ErrInvalidArtifact)
		}
		if n.Feature < 0 {
			continue
		}
		if n.Feature >= s.NFeatures || n.Left <= i || n.Right <= i ||
			n.Left >= len(s.Nodes) || n.Right >= len(s.Nodes) {
			return werrors.NewModelError(modelName+".GobDecode", "validate", werrors.ErrInvalidArtifact)
		}
	}
	return nil
}
