package vector

import (
	"math"
	"sort"
)

// Cosine returns the cosine similarity of a and b. Vectors of different
// length, empty vectors and zero vectors score 0.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank scores every doc vector against query and sorts them by descending
// similarity. Ties keep input order.
func Rank(query []float64, texts []string, vectors [][]float64) []Scored {
	out := make([]Scored, len(vectors))
	for i, v := range vectors {
		var text string
		if i < len(texts) {
			text = texts[i]
		}
		out[i] = Scored{Index: i, Text: text, Similarity: Cosine(query, v)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	return out
}

// Coherence is the mean similarity over all ordered pairs i != j. Fewer than
// two vectors yield 0.
func Coherence(vectors [][]float64) float64 {
	n := len(vectors)
	if n < 2 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				sum += Cosine(vectors[i], vectors[j])
			}
		}
	}
	return sum / float64(n*(n-1))
}
