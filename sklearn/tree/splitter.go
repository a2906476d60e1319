package tree

import (
	"math"
	"math/rand"
	"sort"
)

// featureThreshold is the smallest gap between two feature values that is
// treated as distinct.
const featureThreshold = 1e-7

// builder grows a tree depth first. Nodes are appended in pre-order.
type builder struct {
	tree       *DecisionTreeClassifier
	columns    [][]float64 // Feature-major copy of X
	labels     []int       // Class index per sample
	weights    []float64
	maxFeature int
	rand       *rand.Rand
	importance []float64
	criterion  func(counts []float64, total float64) float64
}

type split struct {
	feature     int
	threshold   float64
	improvement float64
}

// build creates the subtree for samples and returns its node index.
func (b *builder) build(samples []int, depth int) int {
	dt := b.tree
	counts, total := b.classCounts(samples)
	impurity := b.criterion(counts, total)

	idx := len(dt.nodes)
	dt.nodes = append(dt.nodes, node{
		feature:   -1,
		value:     probabilities(counts, total),
		impurity:  impurity,
		nSamples:  len(samples),
		weightedN: total,
	})

	n := len(samples)
	if (dt.maxDepth > 0 && depth >= dt.maxDepth) ||
		n < dt.minSamplesSplit ||
		n < 2*dt.minSamplesLeaf ||
		impurity <= 1e-12 {
		return idx
	}

	best, ok := b.bestSplit(samples, counts, total, impurity)
	if !ok {
		return idx
	}

	left := make([]int, 0, n)
	right := make([]int, 0, n)
	column := b.columns[best.feature]
	for _, s := range samples {
		if column[s] <= best.threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	leftCounts, leftTotal := b.classCounts(left)
	rightCounts, rightTotal := b.classCounts(right)
	b.importance[best.feature] += total*impurity -
		leftTotal*b.criterion(leftCounts, leftTotal) -
		rightTotal*b.criterion(rightCounts, rightTotal)

	leftIdx := b.build(left, depth+1)
	rightIdx := b.build(right, depth+1)

	nd := &dt.nodes[idx]
	nd.feature = best.feature
	nd.threshold = best.threshold
	nd.left = leftIdx
	nd.right = rightIdx
	return idx
}

// bestSplit scans candidate features and returns the split with the largest
// impurity decrease. Features are visited in random order when max_features
// limits the search; constant features do not count toward the limit.
func (b *builder) bestSplit(samples []int, counts []float64, total, impurity float64) (split, bool) {
	nFeatures := len(b.columns)
	var order []int
	if b.maxFeature < nFeatures {
		order = b.rand.Perm(nFeatures)
	} else {
		order = make([]int, nFeatures)
		for i := range order {
			order[i] = i
		}
	}

	best := split{improvement: math.Inf(-1)}
	found := false
	visited := 0
	sorted := make([]int, len(samples))
	leftCounts := make([]float64, len(counts))
	rightCounts := make([]float64, len(counts))
	minLeaf := b.tree.minSamplesLeaf

	for _, feature := range order {
		if visited >= b.maxFeature {
			break
		}
		column := b.columns[feature]

		copy(sorted, samples)
		sort.SliceStable(sorted, func(i, j int) bool {
			return column[sorted[i]] < column[sorted[j]]
		})
		if column[sorted[len(sorted)-1]] <= column[sorted[0]]+featureThreshold {
			continue
		}
		visited++

		for k := range leftCounts {
			leftCounts[k] = 0
		}
		leftTotal := 0.0
		n := len(sorted)

		for p := 1; p < n; p++ {
			prev := sorted[p-1]
			leftCounts[b.labels[prev]] += b.weights[prev]
			leftTotal += b.weights[prev]

			if p < minLeaf || n-p < minLeaf {
				continue
			}
			lo, hi := column[prev], column[sorted[p]]
			if hi <= lo+featureThreshold {
				continue
			}

			rightTotal := total - leftTotal
			for k := range rightCounts {
				rightCounts[k] = counts[k] - leftCounts[k]
			}
			improvement := impurity -
				(leftTotal/total)*b.criterion(leftCounts, leftTotal) -
				(rightTotal/total)*b.criterion(rightCounts, rightTotal)

			if improvement > best.improvement {
				threshold := lo/2 + hi/2
				if threshold >= hi || math.IsInf(threshold, 0) {
					threshold = lo
				}
				best = split{feature: feature, threshold: threshold, improvement: improvement}
				found = true
			}
		}
	}

	return best, found
}

func (b *builder) classCounts(samples []int) ([]float64, float64) {
	counts := make([]float64, b.tree.nClasses_)
	total := 0.0
	for _, s := range samples {
		counts[b.labels[s]] += b.weights[s]
		total += b.weights[s]
	}
	return counts, total
}

func probabilities(counts []float64, total float64) []float64 {
	proba := make([]float64, len(counts))
	if total <= 0 {
		return proba
	}
	for k, c := range counts {
		proba[k] = c / total
	}
	return proba
}

// gini computes the Gini impurity 1 - sum(p_k^2).
func gini(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := c / total
		sum += p * p
	}
	return 1 - sum
}

// entropy computes the Shannon entropy in bits.
func entropy(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	h := 0.0
	for _, c := range counts {
		if c > 0 {
			p := c / total
			h -= p * math.Log2(p)
		}
	}
	return h
}

func impurityFunc(criterion string) func([]float64, float64) float64 {
	if criterion == CriterionEntropy {
		return entropy
	}
	return gini
}

// resolveMaxFeatures converts the max_features setting into a feature count
// in [1, nFeatures].
func resolveMaxFeatures(maxFeatures string, explicit, nFeatures int) int {
	k := nFeatures
	switch {
	case explicit > 0:
		k = explicit
	case maxFeatures == MaxFeaturesSqrt:
		k = int(math.Sqrt(float64(nFeatures)))
	case maxFeatures == MaxFeaturesLog2:
		k = int(math.Log2(float64(nFeatures)))
	}
	return max(1, min(k, nFeatures))
}
