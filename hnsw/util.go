package hnsw

import "math/rand"

// GenerateRandomVectors returns num random vectors of the given
// dimension, for property and recall tests that need synthetic data
// rather than a fixture file.
func GenerateRandomVectors(num int, dimensions int, seed int64) [][]float32 {
	r := rand.New(rand.NewSource(seed))

	vectors := make([][]float32, num)
	for i := 0; i < num; i++ {
		vectors[i] = make([]float32, dimensions)
		for d := 0; d < dimensions; d++ {
			vectors[i][d] = r.Float32()
		}
	}

	return vectors
}
