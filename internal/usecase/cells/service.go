// Package cells orchestrates the annotation workflows: embed an uploaded
// dataset, search the deployed index, stage matches, join warehouse metadata,
// and build per-cell summaries.
package cells

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/cellarium-cloud/cas-api/internal/domain"
	"github.com/cellarium-cloud/cas-api/internal/metrics"
)

// Service runs the annotate, search, and metadata query workflows.
type Service struct {
	authz    Authorizer
	embedder Embedder
	matcher  Matcher
	matches  MatchStore
	metadata MetadataSource
	logger   *zap.Logger
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Authz    Authorizer
	Embedder Embedder
	Matcher  Matcher
	Matches  MatchStore
	Metadata MetadataSource
	Logger   *zap.Logger
}

// NewService creates the cell annotation orchestrator.
func NewService(cfg *Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		authz:    cfg.Authz,
		embedder: cfg.Embedder,
		matcher:  cfg.Matcher,
		matches:  cfg.Matches,
		metadata: cfg.Metadata,
		logger:   logger,
	}
}

// Annotate runs the full annotation workflow for an uploaded dataset file.
// An empty embedding batch short-circuits to an empty response without
// recording usage. Usage is recorded only after the summaries are built, so
// a failed request never counts.
func (s *Service) Annotate(ctx context.Context, user domain.User, file io.Reader, modelName string, includeDevMetadata bool) ([]domain.QueryCellSummary, error) {
	model, err := s.authz.AuthorizeModelForUser(ctx, user, modelName)
	if err != nil {
		return nil, err
	}
	idx, err := s.authz.ResolveIndex(ctx, modelName)
	if err != nil {
		return nil, err
	}

	batch, err := s.embedder.Embed(ctx, file, modelName)
	if err != nil {
		return nil, err
	}
	if batch.Len() == 0 {
		return []domain.QueryCellSummary{}, nil
	}

	res, err := s.matcher.Search(ctx, idx, batch.Embeddings)
	if err != nil {
		return nil, err
	}
	if err := ValidateMatches(batch, res); err != nil {
		return nil, err
	}

	handle, err := s.matches.Persist(ctx, batch.CellIDs, res)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("staged match table",
		zap.String("handle", handle),
		zap.Int("query_cells", batch.Len()),
	)

	summaries, err := s.summarize(ctx, model, batch.CellIDs, handle, includeDevMetadata)
	if err != nil {
		return nil, err
	}

	if err := s.authz.RecordUsage(ctx, user.ID, modelName, "annotate", batch.Len()); err != nil {
		return nil, fmt.Errorf("record usage: %w", err)
	}
	metrics.CellsProcessedTotal.WithLabelValues("annotate", modelName).Add(float64(batch.Len()))

	return summaries, nil
}

// Search runs the raw nearest-neighbor workflow: same pipeline as Annotate up
// to validation, but returns per-cell neighbor hits directly. Nothing is
// staged and no usage is recorded.
func (s *Service) Search(ctx context.Context, user domain.User, file io.Reader, modelName string) ([]domain.SearchQueryCellResult, error) {
	if _, err := s.authz.AuthorizeModelForUser(ctx, user, modelName); err != nil {
		return nil, err
	}
	idx, err := s.authz.ResolveIndex(ctx, modelName)
	if err != nil {
		return nil, err
	}

	batch, err := s.embedder.Embed(ctx, file, modelName)
	if err != nil {
		return nil, err
	}
	if batch.Len() == 0 {
		return []domain.SearchQueryCellResult{}, nil
	}

	res, err := s.matcher.Search(ctx, idx, batch.Embeddings)
	if err != nil {
		return nil, err
	}
	if err := ValidateMatches(batch, res); err != nil {
		return nil, err
	}

	results := make([]domain.SearchQueryCellResult, batch.Len())
	for i, m := range res.Matches {
		neighbors := make([]domain.SearchNeighbor, len(m.Neighbors))
		for j, n := range m.Neighbors {
			neighbors[j] = domain.SearchNeighbor{CasCellIndex: n.CasCellIndex, Distance: n.Distance}
		}
		results[i] = domain.SearchQueryCellResult{QueryCellID: batch.CellIDs[i], Neighbors: neighbors}
	}
	return results, nil
}

// CellsByIDs fetches metadata columns for known cell indexes. Every requested
// feature must be in the queryable whitelist; the identifier column is always
// included. No usage is recorded.
func (s *Service) CellsByIDs(ctx context.Context, user domain.User, cellIDs []int64, modelName string, featureNames []string) ([]domain.CellMetadataRow, error) {
	model, err := s.authz.AuthorizeModelForUser(ctx, user, modelName)
	if err != nil {
		return nil, err
	}

	columns := []string{domain.CellIDColumn}
	for _, f := range featureNames {
		if f == domain.CellIDColumn {
			continue
		}
		if _, ok := domain.QueryableFeatures[f]; !ok {
			return nil, domain.NewColumnNotQueryable(f)
		}
		columns = append(columns, f)
	}

	rows, err := s.metadata.CellMetadata(ctx, model.Dataset, columns, cellIDs)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []domain.CellMetadataRow{}
	}
	return rows, nil
}

// summarize loads the staged match rows, fetches neighbor metadata from the
// warehouse, and aggregates distances per query cell.
func (s *Service) summarize(ctx context.Context, model domain.Model, queryIDs []string, handle string, devDetails bool) ([]domain.QueryCellSummary, error) {
	rows, err := s.matches.Rows(ctx, handle)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.CasCellIndex]; ok {
			continue
		}
		seen[row.CasCellIndex] = struct{}{}
		ids = append(ids, row.CasCellIndex)
	}

	columns := []string{domain.CellIDColumn, "cell_type"}
	if devDetails {
		columns = append(columns, "dataset_id")
	}
	metaRows, err := s.metadata.CellMetadata(ctx, model.Dataset, columns, ids)
	if err != nil {
		return nil, err
	}

	meta := make(map[int64]neighborMeta, len(metaRows))
	for _, row := range metaRows {
		id, err := cellIndexOf(row)
		if err != nil {
			return nil, err
		}
		meta[id] = neighborMeta{
			CellType:  stringField(row, "cell_type"),
			DatasetID: stringField(row, "dataset_id"),
		}
	}

	return summarizeRows(queryIDs, rows, meta, devDetails), nil
}

// cellIndexOf extracts the identifier column from a warehouse row. JSON
// decoding yields float64 or json.Number depending on the decoder.
func cellIndexOf(row domain.CellMetadataRow) (int64, error) {
	switch v := row[domain.CellIDColumn].(type) {
	case float64:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case int64:
		return v, nil
	default:
		return 0, fmt.Errorf("metadata row missing %s: %w", domain.CellIDColumn, domain.ErrUpstream)
	}
}

func stringField(row domain.CellMetadataRow, name string) string {
	s, _ := row[name].(string)
	return s
}
