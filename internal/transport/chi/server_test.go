package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/cellarium-cloud/cas-api/internal/domain"
)

// mockModelLister implements modelLister for tests.
type mockModelLister struct {
	listModelsFn func(ctx context.Context) ([]domain.Model, error)
}

func (m *mockModelLister) ListModels(ctx context.Context) ([]domain.Model, error) {
	if m.listModelsFn != nil {
		return m.listModelsFn(ctx)
	}
	return nil, nil
}

func TestHandleDomainError_StatusMapping(t *testing.T) {
	srv := NewServer(nil, nil, nil, zap.NewNop())

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"invalid input", domain.ErrInvalidInput, http.StatusBadRequest, "invalid input"},
		{"access denied", domain.NewAccessDenied("pca-512"), http.StatusForbidden, "pca-512 model is not available."},
		{"feature not queryable", domain.NewColumnNotQueryable("foo"),
			http.StatusUnprocessableEntity, "Feature foo is not available for querying."},
		{"vector search invariant", domain.NewVectorSearchError("Vector Search returned a match with 0 neighbors."),
			http.StatusInternalServerError, "Vector Search returned a match with 0 neighbors."},
		{"upstream failure", domain.ErrUpstream, http.StatusBadGateway, "upstream service error"},
		{"unmapped error", errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.handleDomainError(rec, c.err)

			if rec.Code != c.wantStatus {
				t.Errorf("expected status %d, got %d", c.wantStatus, rec.Code)
			}

			var resp errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if resp.Message != c.wantMsg {
				t.Errorf("unexpected message:\ngot:  %q\nwant: %q", resp.Message, c.wantMsg)
			}
		})
	}
}

func TestHandleDomainError_WrappedSentinel(t *testing.T) {
	srv := NewServer(nil, nil, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.handleDomainError(rec, errors.New("model \"x\": "+domain.ErrInvalidInput.Error()))

	// A plain error that merely resembles a sentinel stays internal.
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for non-wrapped error, got %d", rec.Code)
	}
}

func TestListModels(t *testing.T) {
	models := &mockModelLister{
		listModelsFn: func(_ context.Context) ([]domain.Model, error) {
			return []domain.Model{
				{Name: "pca-512", SchemaName: "refdata-gex", IsDefault: true, EmbeddingDim: 512},
				{Name: "scvi-64", SchemaName: "refdata-gex", EmbeddingDim: 64},
			}, nil
		},
	}
	srv := NewServer(nil, models, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/list-models", nil)
	rec := httptest.NewRecorder()
	srv.ListModels(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var items []listModelItem
	if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 models, got %d", len(items))
	}
	if items[0].ModelName != "pca-512" || !items[0].IsDefaultModel || items[0].EmbeddingDimension != 512 {
		t.Errorf("unexpected item %+v", items[0])
	}
}

func TestApplicationInfo_DefaultSchema(t *testing.T) {
	models := &mockModelLister{
		listModelsFn: func(_ context.Context) ([]domain.Model, error) {
			return []domain.Model{
				{Name: "scvi-64", SchemaName: "other-schema"},
				{Name: "pca-512", SchemaName: "refdata-gex", IsDefault: true},
			}, nil
		},
	}
	srv := NewServer(nil, models, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/application-info", nil)
	rec := httptest.NewRecorder()
	srv.ApplicationInfo(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var info applicationInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if info.DefaultFeatureSchema != "refdata-gex" {
		t.Errorf("expected default schema refdata-gex, got %q", info.DefaultFeatureSchema)
	}
}

func TestQueryCellsByIDs_Unauthenticated(t *testing.T) {
	srv := NewServer(nil, nil, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/cellarium-cas/query-cells-by-ids", nil)
	rec := httptest.NewRecorder()
	srv.QueryCellsByIDs(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestQueryCellsByIDs_MissingModelName(t *testing.T) {
	srv := NewServer(nil, nil, nil, zap.NewNop())

	body := `{"cas_cell_ids": [1, 2], "metadata_feature_names": ["cell_type"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/cellarium-cas/query-cells-by-ids", strings.NewReader(body))
	req = req.WithContext(contextWithUser(req.Context(), domain.User{ID: 1, Active: true}))
	rec := httptest.NewRecorder()
	srv.QueryCellsByIDs(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
