package domain

// QueryBatch is the ordered result of embedding one uploaded dataset:
// CellIDs[i] identifies the cell whose embedding is Embeddings[i].
// Lives for a single request.
type QueryBatch struct {
	CellIDs    []string
	Embeddings [][]float32
}

// Len returns the number of query cells in the batch.
func (b QueryBatch) Len() int { return len(b.CellIDs) }

// Neighbor is one vector search hit for a query cell.
type Neighbor struct {
	CasCellIndex  int64
	Distance      float64
	FeatureVector []float32 // populated only when the index returns raw vectors
}

// NearestNeighbors is the neighbor list for one query cell.
type NearestNeighbors struct {
	Neighbors []Neighbor
}

// MatchResult is the per-query neighbor response, parallel to the query batch.
// Never persisted beyond the request's transient match table.
type MatchResult struct {
	Matches []NearestNeighbors
}

// MatchRow is one flattened (query, neighbor, distance) triple staged for the aggregator.
type MatchRow struct {
	QueryID      string  `json:"query_id"`
	CasCellIndex int64   `json:"match_cas_cell_index"`
	MatchScore   float64 `json:"match_score"`
}

// SearchNeighbor is a raw neighbor hit in a nearest-neighbor-search response.
type SearchNeighbor struct {
	CasCellIndex int64   `json:"cas_cell_index"`
	Distance     float64 `json:"distance"`
}

// SearchQueryCellResult is the raw per-cell response of the search workflow.
type SearchQueryCellResult struct {
	QueryCellID string           `json:"query_cell_id"`
	Neighbors   []SearchNeighbor `json:"neighbors"`
}
