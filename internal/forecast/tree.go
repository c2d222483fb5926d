package forecast

import "sort"

// treeNode is one node of a regression tree. Leaves carry the mean target
// of their samples; internal nodes route on feature <= threshold.
type treeNode struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
	leaf      bool
}

// regressionTree is a depth-bounded CART regressor fit by exact greedy
// variance-reduction splits.
type regressionTree struct {
	nodes    []treeNode
	maxDepth int
	minLeaf  int
}

func newRegressionTree(maxDepth, minLeaf int) *regressionTree {
	if minLeaf < 1 {
		minLeaf = 1
	}
	return &regressionTree{maxDepth: maxDepth, minLeaf: minLeaf}
}

func (t *regressionTree) fit(features [][]float64, targets []float64, indices []int) {
	t.nodes = t.nodes[:0]
	t.grow(features, targets, indices, 0)
}

// grow appends the subtree for the given samples and returns its node index.
func (t *regressionTree) grow(features [][]float64, targets []float64, indices []int, depth int) int {
	node := treeNode{value: meanAt(targets, indices), leaf: true}
	idx := len(t.nodes)
	t.nodes = append(t.nodes, node)

	if depth >= t.maxDepth || len(indices) < 2*t.minLeaf {
		return idx
	}

	feature, threshold, ok := t.bestSplit(features, targets, indices)
	if !ok {
		return idx
	}

	left := make([]int, 0, len(indices))
	right := make([]int, 0, len(indices))
	for _, i := range indices {
		if features[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	leftIdx := t.grow(features, targets, left, depth+1)
	rightIdx := t.grow(features, targets, right, depth+1)

	t.nodes[idx].leaf = false
	t.nodes[idx].feature = feature
	t.nodes[idx].threshold = threshold
	t.nodes[idx].left = leftIdx
	t.nodes[idx].right = rightIdx
	return idx
}

// bestSplit scans every feature for the threshold that maximizes the
// reduction in sum of squared errors, honoring the min-leaf constraint.
func (t *regressionTree) bestSplit(features [][]float64, targets []float64, indices []int) (int, float64, bool) {
	n := len(indices)
	numFeatures := len(features[indices[0]])

	var totalSum float64
	for _, i := range indices {
		totalSum += targets[i]
	}
	baseScore := totalSum * totalSum / float64(n)

	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0

	order := make([]int, n)
	for f := 0; f < numFeatures; f++ {
		copy(order, indices)
		sort.Slice(order, func(a, b int) bool {
			return features[order[a]][f] < features[order[b]][f]
		})

		leftSum := 0.0
		for pos := 0; pos < n-1; pos++ {
			leftSum += targets[order[pos]]
			// Only split between distinct feature values.
			cur := features[order[pos]][f]
			next := features[order[pos+1]][f]
			if cur == next {
				continue
			}
			nLeft := pos + 1
			nRight := n - nLeft
			if nLeft < t.minLeaf || nRight < t.minLeaf {
				continue
			}
			rightSum := totalSum - leftSum
			score := leftSum*leftSum/float64(nLeft) + rightSum*rightSum/float64(nRight)
			gain := score - baseScore
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (cur + next) / 2
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

func (t *regressionTree) predict(features []float64) float64 {
	idx := 0
	for {
		node := t.nodes[idx]
		if node.leaf {
			return node.value
		}
		if features[node.feature] <= node.threshold {
			idx = node.left
		} else {
			idx = node.right
		}
	}
}

func meanAt(values []float64, indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range indices {
		sum += values[i]
	}
	return sum / float64(len(indices))
}
