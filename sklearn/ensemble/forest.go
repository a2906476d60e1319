// Package ensemble implements bagged tree ensembles.
package ensemble

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/winefit/core/model"
	"github.com/YuminosukeSato/winefit/core/parallel"
	werrors "github.com/YuminosukeSato/winefit/pkg/errors"
	"github.com/YuminosukeSato/winefit/pkg/log"
	"github.com/YuminosukeSato/winefit/sklearn/tree"
)

const modelName = "RandomForestClassifier"

// RandomForestClassifier fits decision trees on bootstrap samples and
// averages their class probabilities.
// Compatible with scikit-learn's RandomForestClassifier
type RandomForestClassifier struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	nEstimators     int    // Number of trees
	criterion       string // "gini" or "entropy"
	maxDepth        int    // <= 0 means unlimited
	minSamplesSplit int    // Minimum samples required to split a node
	minSamplesLeaf  int    // Minimum samples required in each child
	maxFeatures     string // "", "all", "sqrt", "log2"
	maxFeaturesN    int    // Explicit feature count, overrides maxFeatures when > 0
	bootstrap       bool   // Draw a bootstrap sample per tree
	oobScore        bool   // Estimate accuracy on out-of-bag samples
	randomState     int64  // Random seed, negative for nondeterministic
	nJobs           int    // Parallel workers, -1 for all cores

	logger log.Logger

	// Model parameters
	estimators_         []*tree.DecisionTreeClassifier
	classes_            []int
	nClasses_           int
	nFeatures_          int
	featureImportances_ []float64
	oobScore_           float64
}

// RandomForestOption is a functional option for RandomForestClassifier
type RandomForestOption func(*RandomForestClassifier)

// NewRandomForestClassifier creates a new RandomForestClassifier
func NewRandomForestClassifier(opts ...RandomForestOption) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		criterion:       tree.CriterionGini,
		maxDepth:        0,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     tree.MaxFeaturesSqrt,
		bootstrap:       true,
		oobScore:        false,
		randomState:     -1,
		nJobs:           1,
		logger:          log.GetLogger(),
	}

	for _, opt := range opts {
		opt(rf)
	}

	return rf
}

// WithNEstimators sets the number of trees in the forest
func WithNEstimators(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.nEstimators = n
	}
}

// WithCriterion sets the split quality measure ("gini" or "entropy")
func WithCriterion(criterion string) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.criterion = criterion
	}
}

// WithMaxDepth sets the maximum depth of each tree (<= 0 for unlimited)
func WithMaxDepth(depth int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.maxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum number of samples needed to split a node
func WithMinSamplesSplit(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf
func WithMinSamplesLeaf(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.minSamplesLeaf = n
	}
}

// WithMaxFeatures sets how many features are considered per split:
// "", "all", "sqrt" or "log2"
func WithMaxFeatures(maxFeatures string) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.maxFeatures = maxFeatures
		rf.maxFeaturesN = 0
	}
}

// WithMaxFeaturesN considers exactly n randomly chosen features per split
func WithMaxFeaturesN(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.maxFeaturesN = n
	}
}

// WithBootstrap sets whether each tree sees a bootstrap sample
func WithBootstrap(bootstrap bool) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.bootstrap = bootstrap
	}
}

// WithOOBScore enables the out-of-bag accuracy estimate
func WithOOBScore(enabled bool) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.oobScore = enabled
	}
}

// WithRandomState sets the random seed
func WithRandomState(seed int64) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.randomState = seed
	}
}

// WithNJobs sets the number of trees fitted concurrently (-1 for all cores)
func WithNJobs(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.nJobs = n
	}
}

// WithLogger sets the logger used for per-tree debug output
func WithLogger(logger log.Logger) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.logger = logger
	}
}

// Fit builds the forest from the training set (X, y)
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	if err := rf.validateParams(); err != nil {
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
	if err := werrors.CheckMatrix(modelName+".Fit", X, nSamples, nFeatures); err != nil {
		return err
	}

	rf.state.Reset()
	if err := rf.extractClasses(y); err != nil {
		return err
	}
	rf.nFeatures_ = nFeatures

	// Seeds are drawn before any tree is fitted so the result does not depend
	// on how trees are spread over workers.
	rng := newRand(rf.randomState)
	treeSeeds := make([]int64, rf.nEstimators)
	sampleSeeds := make([]int64, rf.nEstimators)
	for i := range treeSeeds {
		treeSeeds[i] = rng.Int63()
		sampleSeeds[i] = rng.Int63()
	}

	estimators := make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	inBag := make([][]float64, rf.nEstimators)
	errs := make([]error, rf.nEstimators)

	parallel.ParallelizeN(rf.nEstimators, parallel.Workers(rf.nJobs), func(start, end int) {
		for i := start; i < end; i++ {
			errs[i] = werrors.SafeExecute(fmt.Sprintf("%s.Fit[%d]", modelName, i), func() error {
				weights := rf.sampleWeights(nSamples, sampleSeeds[i])
				dt := tree.NewDecisionTreeClassifier(rf.treeOptions(treeSeeds[i])...)
				if err := dt.FitWeighted(X, y, weights); err != nil {
					return err
				}
				estimators[i] = dt
				inBag[i] = weights
				return nil
			})
		}
	})

	for i, err := range errs {
		if err != nil {
			return werrors.Wrapf(err, "%s.Fit: tree %d", modelName, i)
		}
	}

	for i, dt := range estimators {
		rf.logger.Debug("tree fitted",
			log.ModelNameKey, modelName,
			log.TreeIndexKey, i,
			log.DepthKey, dt.GetDepth(),
			log.LeavesKey, dt.GetNLeaves(),
		)
	}

	rf.estimators_ = estimators
	rf.featureImportances_ = meanImportances(estimators, nFeatures)
	rf.oobScore_ = 0
	if rf.oobScore {
		rf.oobScore_ = rf.computeOOBScore(X, y, inBag)
	}

	rf.state.SetDimensions(nFeatures, nSamples)
	rf.state.SetFitted()
	return nil
}

// sampleWeights returns the bootstrap draw count of every sample, or all
// ones when bootstrap is disabled.
func (rf *RandomForestClassifier) sampleWeights(nSamples int, seed int64) []float64 {
	weights := make([]float64, nSamples)
	if !rf.bootstrap {
		for i := range weights {
			weights[i] = 1
		}
		return weights
	}
	r := rand.New(rand.NewSource(seed))
	for k := 0; k < nSamples; k++ {
		weights[r.Intn(nSamples)]++
	}
	return weights
}

func (rf *RandomForestClassifier) treeOptions(seed int64) []tree.DecisionTreeOption {
	opts := []tree.DecisionTreeOption{
		tree.WithCriterion(rf.criterion),
		tree.WithMaxDepth(rf.maxDepth),
		tree.WithMinSamplesSplit(rf.minSamplesSplit),
		tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
		tree.WithMaxFeatures(rf.maxFeatures),
		tree.WithRandomState(seed),
	}
	if rf.maxFeaturesN > 0 {
		opts = append(opts, tree.WithMaxFeaturesN(rf.maxFeaturesN))
	}
	return opts
}

// computeOOBScore scores every sample with the trees that did not see it.
// Samples that were in every bootstrap sample are left out.
func (rf *RandomForestClassifier) computeOOBScore(X, y mat.Matrix, inBag [][]float64) float64 {
	nSamples, nFeatures := X.Dims()
	votes := mat.NewDense(nSamples, rf.nClasses_, nil)
	seen := make([]bool, nSamples)

	for t, dt := range rf.estimators_ {
		for i := 0; i < nSamples; i++ {
			if inBag[t][i] > 0 {
				continue
			}
			row := mat.NewDense(1, nFeatures, mat.Row(nil, i, X))
			proba, err := dt.PredictProba(row)
			if err != nil {
				continue
			}
			for k := 0; k < rf.nClasses_; k++ {
				votes.Set(i, k, votes.At(i, k)+proba.At(0, k))
			}
			seen[i] = true
		}
	}

	correct, counted := 0, 0
	for i := 0; i < nSamples; i++ {
		if !seen[i] {
			continue
		}
		counted++
		if float64(rf.classes_[argmax(votes.RawRowView(i))]) == y.At(i, 0) {
			correct++
		}
	}

	if counted < nSamples {
		werrors.Warn(werrors.NewUndefinedMetricWarning("oob_score",
			fmt.Sprintf("%d samples were never out of bag", nSamples-counted), 0))
	}
	if counted == 0 {
		return 0
	}
	return float64(correct) / float64(counted)
}

// extractClasses identifies unique class labels
func (rf *RandomForestClassifier) extractClasses(y mat.Matrix) error {
	classes, err := tree.ClassLabels(modelName+".Fit", y)
	if err != nil {
		return err
	}
	rf.classes_ = classes
	rf.nClasses_ = len(classes)
	return nil
}

func (rf *RandomForestClassifier) checkPredict(X mat.Matrix, method string) error {
	if err := rf.state.RequireFitted(modelName, method); err != nil {
		return err
	}
	_, nFeatures := X.Dims()
	return rf.state.CheckFeatures(modelName+"."+method, nFeatures)
}

// PredictProba returns the mean class probabilities of the trees
// (n_samples x n_classes), columns ordered as Classes()
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.checkPredict(X, "PredictProba"); err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	probas := mat.NewDense(nSamples, rf.nClasses_, nil)
	for _, dt := range rf.estimators_ {
		p, err := dt.PredictProba(X)
		if err != nil {
			return nil, err
		}
		probas.Add(probas, p)
	}
	probas.Scale(1/float64(len(rf.estimators_)), probas)
	return probas, nil
}

// Predict returns the class with the highest mean probability for each row of X
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	dense := probas.(*mat.Dense)
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		predictions.Set(i, 0, float64(rf.classes_[argmax(dense.RawRowView(i))]))
	}
	return predictions, nil
}

// Score returns the mean accuracy on the given test data and labels
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) float64 {
	predictions, err := rf.Predict(X)
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
func (rf *RandomForestClassifier) IsFitted() bool {
	return rf.state.IsFitted()
}

// Classes returns the sorted class labels seen during Fit
func (rf *RandomForestClassifier) Classes() []int {
	return append([]int(nil), rf.classes_...)
}

// NFeatures returns the number of features seen during Fit
func (rf *RandomForestClassifier) NFeatures() int {
	return rf.nFeatures_
}

// Estimators returns the fitted trees
func (rf *RandomForestClassifier) Estimators() []*tree.DecisionTreeClassifier {
	return append([]*tree.DecisionTreeClassifier(nil), rf.estimators_...)
}

// FeatureImportances returns the mean of the trees' feature importances,
// renormalized to sum to 1
func (rf *RandomForestClassifier) FeatureImportances() []float64 {
	return append([]float64(nil), rf.featureImportances_...)
}

// OOBScore returns the out-of-bag accuracy computed during Fit
func (rf *RandomForestClassifier) OOBScore() (float64, error) {
	if err := rf.state.RequireFitted(modelName, "OOBScore"); err != nil {
		return 0, err
	}
	if !rf.oobScore {
		return 0, werrors.NewValueError(modelName+".OOBScore", "oob_score is disabled; enable it with WithOOBScore(true)")
	}
	return rf.oobScore_, nil
}

func meanImportances(estimators []*tree.DecisionTreeClassifier, nFeatures int) []float64 {
	sum := make([]float64, nFeatures)
	for _, dt := range estimators {
		floats.Add(sum, dt.GetFeatureImportances())
	}
	if total := floats.Sum(sum); total > 0 {
		floats.Scale(1/total, sum)
	}
	return sum
}

// argmax returns the first index of the largest value
func argmax(values []float64) int {
	return floats.MaxIdx(values)
}

func newRand(seed int64) *rand.Rand {
	if seed >= 0 {
		return rand.New(rand.NewSource(seed))
	}
	return rand.New(rand.NewSource(rand.Int63()))
}

var _ model.Classifier = (*RandomForestClassifier)(nil)
