package cells

import (
	"math"
	"sort"

	"github.com/cellarium-cloud/cas-api/internal/domain"
)

// neighborMeta is the warehouse metadata joined onto one neighbor cell.
type neighborMeta struct {
	CellType  string
	DatasetID string
}

// summarizeRows joins staged match rows with neighbor metadata and builds the
// per-query-cell annotation summaries. Summaries follow the query batch order;
// within a query cell, cell types are ordered by descending neighbor count,
// then name. Neighbors missing from the metadata map are dropped.
func summarizeRows(queryIDs []string, rows []domain.MatchRow, meta map[int64]neighborMeta, devDetails bool) []domain.QueryCellSummary {
	type group struct {
		distances []float64
		byDataset map[string][]float64
	}

	perQuery := make(map[string]map[string]*group, len(queryIDs))
	for _, row := range rows {
		nm, ok := meta[row.CasCellIndex]
		if !ok {
			continue
		}
		byType, ok := perQuery[row.QueryID]
		if !ok {
			byType = make(map[string]*group)
			perQuery[row.QueryID] = byType
		}
		g, ok := byType[nm.CellType]
		if !ok {
			g = &group{}
			if devDetails {
				g.byDataset = make(map[string][]float64)
			}
			byType[nm.CellType] = g
		}
		g.distances = append(g.distances, row.MatchScore)
		if devDetails {
			g.byDataset[nm.DatasetID] = append(g.byDataset[nm.DatasetID], row.MatchScore)
		}
	}

	summaries := make([]domain.QueryCellSummary, 0, len(perQuery))
	for _, qid := range queryIDs {
		byType, ok := perQuery[qid]
		if !ok {
			continue
		}

		matches := make([]domain.CellTypeSummary, 0, len(byType))
		for cellType, g := range byType {
			sort.Float64s(g.distances)
			m := domain.CellTypeSummary{
				CellType:       cellType,
				CellCount:      len(g.distances),
				MinDistance:    g.distances[0],
				P25Distance:    quantile(g.distances, 0.25),
				MedianDistance: quantile(g.distances, 0.5),
				P75Distance:    quantile(g.distances, 0.75),
				MaxDistance:    g.distances[len(g.distances)-1],
			}
			if devDetails {
				m.DatasetCounts = datasetSummaries(g.byDataset)
			}
			matches = append(matches, m)
		}

		sort.Slice(matches, func(i, j int) bool {
			if matches[i].CellCount != matches[j].CellCount {
				return matches[i].CellCount > matches[j].CellCount
			}
			return matches[i].CellType < matches[j].CellType
		})

		summaries = append(summaries, domain.QueryCellSummary{QueryCellID: qid, Matches: matches})
	}
	return summaries
}

func datasetSummaries(byDataset map[string][]float64) []domain.DatasetSummary {
	out := make([]domain.DatasetSummary, 0, len(byDataset))
	for datasetID, distances := range byDataset {
		sort.Float64s(distances)
		sum := 0.0
		for _, d := range distances {
			sum += d
		}
		out = append(out, domain.DatasetSummary{
			DatasetID:       datasetID,
			CountPerDataset: len(distances),
			MinDistance:     distances[0],
			MaxDistance:     distances[len(distances)-1],
			MeanDistance:    sum / float64(len(distances)),
			MedianDistance:  quantile(distances, 0.5),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CountPerDataset != out[j].CountPerDataset {
			return out[i].CountPerDataset > out[j].CountPerDataset
		}
		return out[i].DatasetID < out[j].DatasetID
	})
	return out
}

// quantile computes the q-th quantile of sorted values with linear
// interpolation between the closest ranks.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := q * float64(n-1)
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
