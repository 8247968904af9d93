package forest

import (
	"math"
	"runtime"
	"strconv"
	"strings"

	"github.com/tphakala/myconet/internal/errors"
)

// Params are the forest hyperparameters.
type Params struct {
	Trees           int    // number of trees
	MaxFeatures     string // sqrt, log2, all or a positive integer
	MaxDepth        int    // 0 grows until leaves are pure
	MinSamplesSplit int    // smallest node that may be split
	MinSamplesLeaf  int    // smallest allowed child
	Seed            uint64 // master seed; tree seeds are drawn from it
	Workers         int    // concurrent tree fits, 0 = GOMAXPROCS
}

// DefaultParams returns 100 fully grown trees with sqrt feature sampling and seed 42.
func DefaultParams() Params {
	return Params{
		Trees:           100,
		MaxFeatures:     "sqrt",
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Seed:            42,
	}
}

// resolveMaxFeatures turns the MaxFeatures setting into a count for nFeatures.
func (p Params) resolveMaxFeatures(nFeatures int) (int, error) {
	var k int
	switch strings.ToLower(p.MaxFeatures) {
	case "", "sqrt":
		k = int(math.Sqrt(float64(nFeatures)))
	case "log2":
		k = int(math.Log2(float64(nFeatures)))
	case "all":
		k = nFeatures
	default:
		n, err := strconv.Atoi(p.MaxFeatures)
		if err != nil || n < 1 {
			return 0, errors.Newf("invalid max features %q", p.MaxFeatures).
				Component("forest").
				Category(errors.CategoryValidation).
				Build()
		}
		k = n
	}
	return max(1, min(k, nFeatures)), nil
}

func (p Params) workers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (p Params) validate() error {
	switch {
	case p.Trees < 1:
		return errors.Newf("forest needs at least one tree, got %d", p.Trees).
			Component("forest").Category(errors.CategoryValidation).Build()
	case p.MaxDepth < 0:
		return errors.Newf("max depth must be >= 0, got %d", p.MaxDepth).
			Component("forest").Category(errors.CategoryValidation).Build()
	case p.MinSamplesSplit < 2:
		return errors.Newf("min samples split must be >= 2, got %d", p.MinSamplesSplit).
			Component("forest").Category(errors.CategoryValidation).Build()
	case p.MinSamplesLeaf < 1:
		return errors.Newf("min samples leaf must be >= 1, got %d", p.MinSamplesLeaf).
			Component("forest").Category(errors.CategoryValidation).Build()
	}
	return nil
}
