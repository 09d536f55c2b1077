package cells

import "github.com/cellarium-cloud/cas-api/internal/domain"

// ValidateMatches checks a search response against the query batch before
// anything downstream consumes it. The match list must be parallel to the
// batch and every query cell must have at least one neighbor. An empty batch
// with an empty result is valid.
func ValidateMatches(batch domain.QueryBatch, res domain.MatchResult) error {
	if batch.Len() != len(res.Matches) {
		return domain.NewVectorSearchError(
			"Number of query ids (%d) and knn matches (%d) does not match.", batch.Len(), len(res.Matches))
	}
	for _, m := range res.Matches {
		if len(m.Neighbors) == 0 {
			return domain.NewVectorSearchError("Vector Search returned a match with 0 neighbors.")
		}
	}
	return nil
}
