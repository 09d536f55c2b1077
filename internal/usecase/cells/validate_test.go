package cells

import (
	"errors"
	"testing"

	"github.com/cellarium-cloud/cas-api/internal/domain"
)

func TestValidateMatches_OK(t *testing.T) {
	batch := domain.QueryBatch{
		CellIDs:    []string{"c1", "c2"},
		Embeddings: [][]float32{{0.1}, {0.2}},
	}
	res := domain.MatchResult{Matches: []domain.NearestNeighbors{
		{Neighbors: []domain.Neighbor{{CasCellIndex: 1, Distance: 0.5}}},
		{Neighbors: []domain.Neighbor{{CasCellIndex: 2, Distance: 0.6}}},
	}}

	if err := ValidateMatches(batch, res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateMatches_CountMismatch(t *testing.T) {
	batch := domain.QueryBatch{
		CellIDs:    []string{"c1", "c2"},
		Embeddings: [][]float32{{0.1}, {0.2}},
	}
	res := domain.MatchResult{Matches: []domain.NearestNeighbors{
		{Neighbors: []domain.Neighbor{{CasCellIndex: 1}}},
	}}

	err := ValidateMatches(batch, res)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, domain.ErrVectorSearchResponse) {
		t.Errorf("expected ErrVectorSearchResponse, got %v", err)
	}

	want := "Number of query ids (2) and knn matches (1) does not match."
	var vse *domain.VectorSearchError
	if !errors.As(err, &vse) {
		t.Fatalf("expected VectorSearchError, got %T", err)
	}
	if vse.Error() != want {
		t.Errorf("unexpected message:\ngot:  %q\nwant: %q", vse.Error(), want)
	}
}

func TestValidateMatches_EmptyNeighbors(t *testing.T) {
	batch := domain.QueryBatch{
		CellIDs:    []string{"c1", "c2"},
		Embeddings: [][]float32{{0.1}, {0.2}},
	}
	res := domain.MatchResult{Matches: []domain.NearestNeighbors{
		{Neighbors: []domain.Neighbor{{CasCellIndex: 1}}},
		{Neighbors: nil},
	}}

	err := ValidateMatches(batch, res)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, domain.ErrVectorSearchResponse) {
		t.Errorf("expected ErrVectorSearchResponse, got %v", err)
	}

	want := "Vector Search returned a match with 0 neighbors."
	var vse *domain.VectorSearchError
	if !errors.As(err, &vse) {
		t.Fatalf("expected VectorSearchError, got %T", err)
	}
	if vse.Error() != want {
		t.Errorf("unexpected message:\ngot:  %q\nwant: %q", vse.Error(), want)
	}
}

func TestValidateMatches_BothEmpty(t *testing.T) {
	if err := ValidateMatches(domain.QueryBatch{}, domain.MatchResult{}); err != nil {
		t.Fatalf("empty batch with empty result must be valid, got %v", err)
	}
}
