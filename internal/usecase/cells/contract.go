package cells

import (
	"context"
	"io"

	"github.com/cellarium-cloud/cas-api/internal/domain"
)

// Embedder produces an ordered query batch from an uploaded dataset file.
type Embedder interface {
	Embed(ctx context.Context, file io.Reader, modelName string) (domain.QueryBatch, error)
}

// Matcher runs nearest-neighbor search on a deployed index.
type Matcher interface {
	Search(ctx context.Context, idx domain.Index, queries [][]float32) (domain.MatchResult, error)
}

// MatchStore stages flattened match rows in a transient table.
type MatchStore interface {
	Persist(ctx context.Context, queryIDs []string, res domain.MatchResult) (string, error)
	Rows(ctx context.Context, handle string) ([]domain.MatchRow, error)
}

// MetadataSource fetches cell metadata columns from the warehouse.
type MetadataSource interface {
	CellMetadata(ctx context.Context, dataset string, columns []string, ids []int64) ([]domain.CellMetadataRow, error)
}

// Authorizer guards model access and records usage.
type Authorizer interface {
	AuthorizeModelForUser(ctx context.Context, user domain.User, modelName string) (domain.Model, error)
	ResolveIndex(ctx context.Context, modelName string) (domain.Index, error)
	RecordUsage(ctx context.Context, userID int64, modelName, method string, cellCount int) error
}
