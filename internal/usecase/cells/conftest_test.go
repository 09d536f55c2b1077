package cells

import (
	"context"
	"io"

	"github.com/cellarium-cloud/cas-api/internal/domain"
)

// mockAuthorizer implements Authorizer for tests.
type mockAuthorizer struct {
	authorizeFn    func(ctx context.Context, user domain.User, modelName string) (domain.Model, error)
	resolveIndexFn func(ctx context.Context, modelName string) (domain.Index, error)
	recordUsageFn  func(ctx context.Context, userID int64, modelName, method string, cellCount int) error
}

func (m *mockAuthorizer) AuthorizeModelForUser(ctx context.Context, user domain.User, modelName string) (domain.Model, error) {
	if m.authorizeFn != nil {
		return m.authorizeFn(ctx, user, modelName)
	}
	return domain.Model{Name: modelName, Dataset: "test_dataset"}, nil
}

func (m *mockAuthorizer) ResolveIndex(ctx context.Context, modelName string) (domain.Index, error) {
	if m.resolveIndexFn != nil {
		return m.resolveIndexFn(ctx, modelName)
	}
	return domain.Index{ModelName: modelName, Transport: domain.TransportJSON, NumNeighbors: 10}, nil
}

func (m *mockAuthorizer) RecordUsage(ctx context.Context, userID int64, modelName, method string, cellCount int) error {
	if m.recordUsageFn != nil {
		return m.recordUsageFn(ctx, userID, modelName, method, cellCount)
	}
	return nil
}

// mockEmbedder implements Embedder for tests.
type mockEmbedder struct {
	embedFn func(ctx context.Context, file io.Reader, modelName string) (domain.QueryBatch, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, file io.Reader, modelName string) (domain.QueryBatch, error) {
	if m.embedFn != nil {
		return m.embedFn(ctx, file, modelName)
	}
	return domain.QueryBatch{}, nil
}

// mockMatcher implements Matcher for tests.
type mockMatcher struct {
	searchFn func(ctx context.Context, idx domain.Index, queries [][]float32) (domain.MatchResult, error)
}

func (m *mockMatcher) Search(ctx context.Context, idx domain.Index, queries [][]float32) (domain.MatchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, idx, queries)
	}
	return domain.MatchResult{}, nil
}

// mockMatchStore implements MatchStore for tests.
type mockMatchStore struct {
	persistFn func(ctx context.Context, queryIDs []string, res domain.MatchResult) (string, error)
	rowsFn    func(ctx context.Context, handle string) ([]domain.MatchRow, error)
}

func (m *mockMatchStore) Persist(ctx context.Context, queryIDs []string, res domain.MatchResult) (string, error) {
	if m.persistFn != nil {
		return m.persistFn(ctx, queryIDs, res)
	}
	return "test_dataset.api_request_matches_deadbeef", nil
}

func (m *mockMatchStore) Rows(ctx context.Context, handle string) ([]domain.MatchRow, error) {
	if m.rowsFn != nil {
		return m.rowsFn(ctx, handle)
	}
	return nil, nil
}

// mockMetadataSource implements MetadataSource for tests.
type mockMetadataSource struct {
	cellMetadataFn func(ctx context.Context, dataset string, columns []string, ids []int64) ([]domain.CellMetadataRow, error)
}

func (m *mockMetadataSource) CellMetadata(ctx context.Context, dataset string, columns []string, ids []int64) ([]domain.CellMetadataRow, error) {
	if m.cellMetadataFn != nil {
		return m.cellMetadataFn(ctx, dataset, columns, ids)
	}
	return nil, nil
}

func newTestService(
	authz *mockAuthorizer,
	embedder *mockEmbedder,
	matcher *mockMatcher,
	matches *mockMatchStore,
	metadata *mockMetadataSource,
) *Service {
	if authz == nil {
		authz = &mockAuthorizer{}
	}
	if embedder == nil {
		embedder = &mockEmbedder{}
	}
	if matcher == nil {
		matcher = &mockMatcher{}
	}
	if matches == nil {
		matches = &mockMatchStore{}
	}
	if metadata == nil {
		metadata = &mockMetadataSource{}
	}
	return NewService(&Config{
		Authz:    authz,
		Embedder: embedder,
		Matcher:  matcher,
		Matches:  matches,
		Metadata: metadata,
	})
}
