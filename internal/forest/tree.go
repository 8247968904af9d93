package forest

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// leafFeature marks a leaf node.
const leafFeature = -1

// Node is one node of a fitted tree. Samples with x[Feature] <= Threshold go
// left. Leaves carry the class distribution of their training samples.
type Node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t,omitempty"`
	Left      int       `json:"l,omitempty"`
	Right     int       `json:"r,omitempty"`
	Value     []float64 `json:"v,omitempty"`
}

// IsLeaf reports whether the node is terminal.
func (n *Node) IsLeaf() bool { return n.Feature == leafFeature }

// Tree is a binary decision tree stored as a flat node array; node 0 is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// leaf returns the distribution of the leaf reached by row.
func (t *Tree) leaf(row []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return n.Value
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth returns the number of edges on the longest root to leaf path.
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// treeBuilder grows a single CART tree with Gini impurity.
type treeBuilder struct {
	x           [][]float64
	y           []int
	nClasses    int
	maxFeatures int
	params      Params
	rng         *rand.Rand

	nodes       []Node
	importances []float64
	totalWeight float64
	sorted      []int
}

// gini returns the Gini impurity of a class count vector with n samples.
func gini(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := c / n
		sum += p * p
	}
	return 1 - sum
}

func (b *treeBuilder) classCounts(idx []int) []float64 {
	counts := make([]float64, b.nClasses)
	for _, i := range idx {
		counts[b.y[i]]++
	}
	return counts
}

// fitTree grows a tree on a bootstrap sample and returns it with its
// unnormalised impurity decrease per feature.
func fitTree(x [][]float64, y []int, nClasses, maxFeatures int, p Params, seed uint64) (*Tree, []float64) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	n := len(x)
	sample := make([]int, n)
	for i := range sample {
		sample[i] = rng.IntN(n)
	}

	b := &treeBuilder{
		x:           x,
		y:           y,
		nClasses:    nClasses,
		maxFeatures: maxFeatures,
		params:      p,
		rng:         rng,
		importances: make([]float64, len(x[0])),
		totalWeight: float64(n),
		sorted:      make([]int, n),
	}
	b.grow(sample, 0)

	return &Tree{Nodes: b.nodes}, b.importances
}

func (b *treeBuilder) makeLeaf(id int, counts []float64, n float64) int {
	value := make([]float64, len(counts))
	copy(value, counts)
	floats.Scale(1/n, value)
	b.nodes[id].Value = value
	return id
}

// grow adds the node for idx and its subtree, returning the node id.
func (b *treeBuilder) grow(idx []int, depth int) int {
	counts := b.classCounts(idx)
	n := float64(len(idx))
	impurity := gini(counts, n)

	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: leafFeature})

	if impurity == 0 ||
		len(idx) < b.params.MinSamplesSplit ||
		len(idx) < 2*b.params.MinSamplesLeaf ||
		(b.params.MaxDepth > 0 && depth >= b.params.MaxDepth) {
		return b.makeLeaf(id, counts, n)
	}

	s, ok := b.bestSplit(idx, counts)
	if !ok {
		return b.makeLeaf(id, counts, n)
	}

	left := make([]int, 0, s.nLeft)
	right := make([]int, 0, len(idx)-s.nLeft)
	for _, i := range idx {
		if b.x[i][s.feature] <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	b.importances[s.feature] += (n*impurity - s.weightedImpurity) / b.totalWeight

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)

	node := &b.nodes[id]
	node.Feature = s.feature
	node.Threshold = s.threshold
	node.Left = l
	node.Right = r
	return id
}

type split struct {
	feature          int
	threshold        float64
	nLeft            int
	weightedImpurity float64 // nLeft*gini(left) + nRight*gini(right)
}

// bestSplit examines up to maxFeatures non-constant features in random order
// and returns the threshold with the lowest weighted child impurity.
func (b *treeBuilder) bestSplit(idx []int, counts []float64) (split, bool) {
	nFeatures := len(b.x[0])
	features := b.rng.Perm(nFeatures)
	minLeaf := b.params.MinSamplesLeaf

	best := split{weightedImpurity: math.Inf(1)}
	found := false
	visited := 0

	sorted := b.sorted[:len(idx)]
	leftCounts := make([]float64, b.nClasses)
	rightCounts := make([]float64, b.nClasses)

	for _, f := range features {
		if visited >= b.maxFeatures {
			break
		}

		copy(sorted, idx)
		slices.SortFunc(sorted, func(a, c int) int { return cmp.Compare(b.x[a][f], b.x[c][f]) })
		if b.x[sorted[0]][f] == b.x[sorted[len(sorted)-1]][f] {
			continue
		}
		visited++

		clear(leftCounts)
		copy(rightCounts, counts)
		total := len(sorted)

		for i := 0; i < total-1; i++ {
			c := b.y[sorted[i]]
			leftCounts[c]++
			rightCounts[c]--

			v, next := b.x[sorted[i]][f], b.x[sorted[i+1]][f]
			if v == next {
				continue
			}
			nLeft := i + 1
			nRight := total - nLeft
			if nLeft < minLeaf || nRight < minLeaf {
				continue
			}

			weighted := float64(nLeft)*gini(leftCounts, float64(nLeft)) +
				float64(nRight)*gini(rightCounts, float64(nRight))
			if weighted < best.weightedImpurity {
				threshold := v + (next-v)/2
				if threshold >= next {
					threshold = v
				}
				best = split{feature: f, threshold: threshold, nLeft: nLeft, weightedImpurity: weighted}
				found = true
			}
		}
	}

	return best, found
}
