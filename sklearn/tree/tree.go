// Package tree implements CART decision trees with scikit-learn compatible
// hyperparameters.
package tree

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/winefit/core/model"
	werrors "github.com/YuminosukeSato/winefit/pkg/errors"
)

const modelName = "DecisionTreeClassifier"

// Supported split criteria.
const (
	CriterionGini    = "gini"
	CriterionEntropy = "entropy"
)

// Supported symbolic max_features values. An empty string or "all" uses every
// feature at every split.
const (
	MaxFeaturesAll  = "all"
	MaxFeaturesSqrt = "sqrt"
	MaxFeaturesLog2 = "log2"
)

// DecisionTreeClassifier is a CART classification tree.
// Compatible with scikit-learn's DecisionTreeClassifier
type DecisionTreeClassifier struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	criterion       string // "gini" or "entropy"
	maxDepth        int    // <= 0 means unlimited
	minSamplesSplit int    // Minimum samples required to split a node
	minSamplesLeaf  int    // Minimum samples required in each child
	maxFeatures     string // "", "all", "sqrt", "log2"
	maxFeaturesN    int    // Explicit feature count, overrides maxFeatures when > 0
	randomState     int64  // Random seed, negative for nondeterministic

	// Model parameters
	nodes               []node    // Pre-order node table, nodes[0] is the root
	classes_            []int     // Unique class labels
	nClasses_           int       // Number of classes
	nFeatures_          int       // Number of features
	featureImportances_ []float64 // Normalized impurity decrease per feature
	depth_              int       // Depth of the deepest leaf
	nLeaves_            int       // Number of leaves
}

// node is one entry of the fitted tree. Leaves have feature == -1.
type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     []float64 // Class probabilities at this node
	impurity  float64
	nSamples  int
	weightedN float64
}

func (n *node) isLeaf() bool {
	return n.feature < 0
}

// DecisionTreeOption is a functional option for DecisionTreeClassifier
type DecisionTreeOption func(*DecisionTreeClassifier)

// NewDecisionTreeClassifier creates a new DecisionTreeClassifier
func NewDecisionTreeClassifier(opts ...DecisionTreeOption) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       CriterionGini,
		maxDepth:        0,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "",
		randomState:     -1,
	}

	for _, opt := range opts {
		opt(dt)
	}

	return dt
}

// WithCriterion sets the split quality measure ("gini" or "entropy")
func WithCriterion(criterion string) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.criterion = criterion
	}
}

// WithMaxDepth sets the maximum depth of the tree (<= 0 for unlimited)
func WithMaxDepth(depth int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.maxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum number of samples needed to split a node
func WithMinSamplesSplit(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf
func WithMinSamplesLeaf(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesLeaf = n
	}
}

// WithMaxFeatures sets how many features are considered per split:
// "", "all", "sqrt" or "log2"
func WithMaxFeatures(maxFeatures string) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.maxFeatures = maxFeatures
		dt.maxFeaturesN = 0
	}
}

// WithMaxFeaturesN considers exactly n randomly chosen features per split
func WithMaxFeaturesN(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.maxFeaturesN = n
	}
}

// WithRandomState sets the random seed used for feature sampling
func WithRandomState(seed int64) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.randomState = seed
	}
}

// Fit builds the tree from the training set (X, y)
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted builds the tree with per-sample weights. A nil sampleWeight
// weights every sample equally. Samples with zero weight take no part in
// split search, but the class set is taken from all of y so that every tree
// of a forest reports the same classes.
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	if err := dt.validateParams(); err != nil {
		return err
	}

	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()

	if nSamples == 0 || nFeatures == 0 {
		return werrors.NewValueError(modelName+".Fit", werrors.ErrEmptyData.Error())
	}
	if nSamples != yRows {
		return werrors.NewDimensionError(modelName+".Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return werrors.NewDimensionError(modelName+".Fit", 1, yCols, 1)
	}
	if sampleWeight != nil && len(sampleWeight) != nSamples {
		return werrors.NewDimensionError(modelName+".Fit", nSamples, len(sampleWeight), 0)
	}
	if err := werrors.CheckMatrix(modelName+".Fit", X, nSamples, nFeatures); err != nil {
		return err
	}

	dt.state.Reset()
	if err := dt.extractClasses(y); err != nil {
		return err
	}
	dt.nFeatures_ = nFeatures

	classIndex := make(map[int]int, dt.nClasses_)
	for i, c := range dt.classes_ {
		classIndex[c] = i
	}

	b := &builder{
		tree:       dt,
		columns:    make([][]float64, nFeatures),
		labels:     make([]int, nSamples),
		weights:    make([]float64, nSamples),
		maxFeature: resolveMaxFeatures(dt.maxFeatures, dt.maxFeaturesN, nFeatures),
		rand:       newRand(dt.randomState),
		importance: make([]float64, nFeatures),
		criterion:  impurityFunc(dt.criterion),
	}
	for j := 0; j < nFeatures; j++ {
		b.columns[j] = mat.Col(nil, j, X)
	}

	samples := make([]int, 0, nSamples)
	for i := 0; i < nSamples; i++ {
		b.labels[i] = classIndex[int(y.At(i, 0))]
		w := 1.0
		if sampleWeight != nil {
			w = sampleWeight[i]
			if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
				return werrors.NewValidationError("sample_weight", "must be finite and non-negative", w)
			}
		}
		b.weights[i] = w
		if w > 0 {
			samples = append(samples, i)
		}
	}
	if len(samples) == 0 {
		return werrors.NewValueError(modelName+".Fit", "sample weights sum to zero")
	}

	dt.nodes = dt.nodes[:0]
	b.build(samples, 0)

	dt.featureImportances_ = normalize(b.importance)
	dt.depth_, dt.nLeaves_ = 0, 0
	for i := range dt.nodes {
		if dt.nodes[i].isLeaf() {
			dt.nLeaves_++
		}
	}
	dt.depth_ = dt.subtreeDepth(0)

	dt.state.SetDimensions(nFeatures, nSamples)
	dt.state.SetFitted()
	return nil
}

// ClassLabels returns the sorted distinct class labels of the column vector y.
// Labels must be finite integers; a fractional label would otherwise be
// truncated into a class it was never given.
func ClassLabels(op string, y mat.Matrix) ([]int, error) {
	rows, _ := y.Dims()
	classMap := make(map[int]bool)

	for i := 0; i < rows; i++ {
		v := y.At(i, 0)
		if math.IsInf(v, 0) || v != math.Trunc(v) {
			return nil, werrors.NewValueError(op, fmt.Sprintf("y[%d] = %v is not an integer class label", i, v))
		}
		classMap[int(v)] = true
	}

	classes := make([]int, 0, len(classMap))
	for class := range classMap {
		classes = append(classes, class)
	}
	sort.Ints(classes)
	return classes, nil
}

// extractClasses identifies unique class labels
func (dt *DecisionTreeClassifier) extractClasses(y mat.Matrix) error {
	classes, err := ClassLabels(modelName+".Fit", y)
	if err != nil {
		return err
	}
	dt.classes_ = classes
	dt.nClasses_ = len(classes)
	return nil
}

func (dt *DecisionTreeClassifier) subtreeDepth(idx int) int {
	n := &dt.nodes[idx]
	if n.isLeaf() {
		return 0
	}
	return 1 + max(dt.subtreeDepth(n.left), dt.subtreeDepth(n.right))
}

// apply returns the leaf reached by row i of X.
func (dt *DecisionTreeClassifier) apply(X mat.Matrix, i int) *node {
	n := &dt.nodes[0]
	for !n.isLeaf() {
		if X.At(i, n.feature) <= n.threshold {
			n = &dt.nodes[n.left]
		} else {
			n = &dt.nodes[n.right]
		}
	}
	return n
}

func (dt *DecisionTreeClassifier) checkPredict(X mat.Matrix, method string) error {
	if err := dt.state.RequireFitted(modelName, method); err != nil {
		return err
	}
	_, nFeatures := X.Dims()
	return dt.state.CheckFeatures(modelName+"."+method, nFeatures)
}

// Predict returns the predicted class label for each row of X
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkPredict(X, "Predict"); err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		leaf := dt.apply(X, i)
		predictions.Set(i, 0, float64(dt.classes_[argmax(leaf.value)]))
	}
	return predictions, nil
}

// PredictProba returns class probabilities (n_samples x n_classes), columns
// ordered as Classes()
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkPredict(X, "PredictProba"); err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	probas := mat.NewDense(nSamples, dt.nClasses_, nil)
	for i := 0; i < nSamples; i++ {
		probas.SetRow(i, dt.apply(X, i).value)
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	predictions, err := dt.Predict(X)
	if err != nil {
		return 0.0
	}

	nSamples, _ := X.Dims()
	if yRows, yCols := y.Dims(); yRows != nSamples || yCols != 1 {
		return 0.0
	}
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}

	return float64(correct) / float64(nSamples)
}

// IsFitted reports whether Fit has completed successfully
func (dt *DecisionTreeClassifier) IsFitted() bool {
	return dt.state.IsFitted()
}

// Classes returns the sorted class labels seen during Fit
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.classes_...)
}

// NFeatures returns the number of features seen during Fit
func (dt *DecisionTreeClassifier) NFeatures() int {
	return dt.nFeatures_
}

// GetFeatureImportances returns the normalized total impurity decrease
// contributed by each feature. The values sum to 1 unless the tree is a
// single leaf, in which case they are all zero.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.featureImportances_...)
}

// GetDepth returns the depth of the fitted tree (a single leaf has depth 0)
func (dt *DecisionTreeClassifier) GetDepth() int {
	return dt.depth_
}

// GetNLeaves returns the number of leaves of the fitted tree
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	return dt.nLeaves_
}

// argmax returns the first index of the largest value, so ties go to the
// smallest class label
func argmax(values []float64) int {
	return floats.MaxIdx(values)
}

func normalize(values []float64) []float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	out := make([]float64, len(values))
	if total <= 0 {
		return out
	}
	for i, v := range values {
		out[i] = v / total
	}
	return out
}

func newRand(seed int64) *rand.Rand {
	if seed >= 0 {
		return rand.New(rand.NewSource(seed))
	}
	return rand.New(rand.NewSource(rand.Int63()))
}

var _ model.Classifier = (*DecisionTreeClassifier)(nil)
