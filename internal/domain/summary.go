package domain

// DatasetSummary is the per-dataset distance breakdown under one cell type.
// Present only when dev details were requested.
type DatasetSummary struct {
	DatasetID       string  `json:"dataset_id"`
	CountPerDataset int     `json:"count_per_dataset"`
	MinDistance     float64 `json:"min_distance"`
	MaxDistance     float64 `json:"max_distance"`
	MeanDistance    float64 `json:"mean_distance"`
	MedianDistance  float64 `json:"median_distance"`
}

// CellTypeSummary aggregates neighbor distances of one cell type for one query cell.
type CellTypeSummary struct {
	CellType       string           `json:"cell_type"`
	CellCount      int              `json:"cell_count"`
	MinDistance    float64          `json:"min_distance"`
	P25Distance    float64          `json:"p25_distance"`
	MedianDistance float64          `json:"median_distance"`
	P75Distance    float64          `json:"p75_distance"`
	MaxDistance    float64          `json:"max_distance"`
	DatasetCounts  []DatasetSummary `json:"dataset_ids_with_counts,omitempty"`
}

// QueryCellSummary is the annotation response entry for one query cell,
// ordered by query id appearance. Computed fresh per request.
type QueryCellSummary struct {
	QueryCellID string            `json:"query_cell_id"`
	Matches     []CellTypeSummary `json:"matches"`
}

// CellMetadataRow is one warehouse row keyed by feature name.
type CellMetadataRow map[string]any
