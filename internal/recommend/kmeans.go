package recommend

// kmeansIterations is fixed; Lloyd's algorithm converges long before
// this on photo-sized corpora.
const kmeansIterations = 50

// kmeansAssign clusters the vectors into n groups and returns the
// cluster label per vector. Centroids are seeded deterministically by
// even spacing over the input order.
func kmeansAssign(vecs [][]float32, n int) []int {
	if len(vecs) == 0 || n <= 0 {
		return nil
	}
	if n > len(vecs) {
		n = len(vecs)
	}
	dim := len(vecs[0])

	centroids := make([][]float32, n)
	for i := range centroids {
		centroids[i] = make([]float32, dim)
		copy(centroids[i], vecs[i*len(vecs)/n])
	}

	labels := make([]int, len(vecs))
	counts := make([]int, n)

	for iter := 0; iter < kmeansIterations; iter++ {
		changed := false
		for i, v := range vecs {
			best := nearestCentroid(v, centroids)
			if best != labels[i] || iter == 0 {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		// Recompute centroids as member means.
		for c := range centroids {
			counts[c] = 0
			for d := range centroids[c] {
				centroids[c][d] = 0
			}
		}
		for i, v := range vecs {
			c := labels[i]
			counts[c]++
			for d, f := range v {
				centroids[c][d] += f
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			inv := 1 / float32(counts[c])
			for d := range centroids[c] {
				centroids[c][d] *= inv
			}
		}
	}

	return labels
}

func nearestCentroid(v []float32, centroids [][]float32) int {
	best := 0
	bestDist := float32(0)
	for c, centroid := range centroids {
		var dist float32
		for d := range v {
			diff := v[d] - centroid[d]
			dist += diff * diff
		}
		if c == 0 || dist < bestDist {
			best = c
			bestDist = dist
		}
	}
	return best
}
