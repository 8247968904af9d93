package dataset

import (
	"math"
	"math/rand/v2"
)

// TrainTestSplit shuffles row indices 0..n-1 with a seeded source and holds
// out ceil(testFraction*n) of them for testing. At least one row is always
// kept for training.
func TrainTestSplit(n int, testFraction float64, seed uint64) (train, test []int) {
	if n <= 0 {
		return nil, nil
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)

	nTest := int(math.Ceil(testFraction * float64(n)))
	nTest = max(0, min(nTest, n-1))

	return perm[nTest:], perm[:nTest]
}
