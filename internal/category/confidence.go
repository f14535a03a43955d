package category

// Blend weights for the final per-transaction confidence.
const (
	resolverWeight     = 0.6
	canonicalWeight    = 0.4
	conservatismFactor = 0.95
)

// BlendConfidence combines resolver and canonicalizer confidence into the
// confidence stored on a transaction.
func BlendConfidence(resolver, canonical float64) float64 {
	return (resolverWeight*resolver + canonicalWeight*canonical) * conservatismFactor
}

// NeedsReview reports whether a blended confidence falls below the review threshold.
func NeedsReview(confidence, threshold float64) bool {
	return confidence < threshold
}
