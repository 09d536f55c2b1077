package matches

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cellarium-cloud/cas-api/internal/domain"
)

func testConfig() Config {
	return Config{
		Dataset:     "cas_api_requests",
		Expiration:  30 * time.Minute,
		ChunkSize:   2,
		MaxParallel: 2,
	}
}

func sampleResult() ([]string, domain.MatchResult) {
	queryIDs := []string{"q1", "q2"}
	res := domain.MatchResult{Matches: []domain.NearestNeighbors{
		{Neighbors: []domain.Neighbor{
			{CasCellIndex: 10, Distance: 0.1},
			{CasCellIndex: 11, Distance: 0.2},
		}},
		{Neighbors: []domain.Neighbor{
			{CasCellIndex: 12, Distance: 0.3},
		}},
	}}
	return queryIDs, res
}

func TestFlattenMatches(t *testing.T) {
	queryIDs, res := sampleResult()

	rows, err := FlattenMatches(queryIDs, res)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].QueryID != "q1" || rows[0].CasCellIndex != 10 {
		t.Errorf("unexpected first row %+v", rows[0])
	}
	if rows[2].QueryID != "q2" || rows[2].MatchScore != 0.3 {
		t.Errorf("unexpected last row %+v", rows[2])
	}
}

func TestFlattenMatches_LengthMismatch(t *testing.T) {
	_, res := sampleResult()

	_, err := FlattenMatches([]string{"q1"}, res)
	if err == nil {
		t.Fatal("expected error for length mismatch")
	}
}

func TestPersist_StagesRowsAndSetsTTL(t *testing.T) {
	store := newMockStore()
	repo := New(store, "cas:", testConfig())
	queryIDs, res := sampleResult()

	handle, err := repo.Persist(context.Background(), queryIDs, res)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(handle, "cas_api_requests.api_request_matches_") {
		t.Errorf("unexpected handle %s", handle)
	}
	suffix := strings.TrimPrefix(handle, "cas_api_requests.api_request_matches_")
	if len(suffix) != 8 {
		t.Errorf("expected 8-char id suffix, got %q", suffix)
	}

	// 3 rows at chunk size 2 means 2 bulk loads.
	if store.rpushCalls != 2 {
		t.Errorf("expected 2 chunk loads, got %d", store.rpushCalls)
	}
	if store.expireCalls != 1 {
		t.Errorf("expected 1 expire call, got %d", store.expireCalls)
	}
	if store.expiredTTL != 30*time.Minute {
		t.Errorf("expected 30m TTL, got %v", store.expiredTTL)
	}
	if store.expiredKey != "cas:matches:"+handle {
		t.Errorf("unexpected expired key %s", store.expiredKey)
	}

	rows, err := repo.Rows(context.Background(), handle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows back, got %d", len(rows))
	}
}

func TestPersist_FailedChunkFailsRequest(t *testing.T) {
	store := newMockStore()
	store.rpushFn = func(_ context.Context, _ string, _ []string) error {
		return errors.New("load failed")
	}
	repo := New(store, "cas:", testConfig())
	queryIDs, res := sampleResult()

	_, err := repo.Persist(context.Background(), queryIDs, res)
	if err == nil {
		t.Fatal("expected error when a chunk load fails")
	}
	if store.expireCalls != 0 {
		t.Error("expire must not run after a failed load")
	}
}

func TestPersist_LengthMismatch(t *testing.T) {
	repo := New(newMockStore(), "cas:", testConfig())
	_, res := sampleResult()

	_, err := repo.Persist(context.Background(), []string{"q1", "q2", "q3"}, res)
	if err == nil {
		t.Fatal("expected error for length mismatch")
	}
}

func TestRows_RoundTrip(t *testing.T) {
	store := newMockStore()
	repo := New(store, "cas:", testConfig())
	queryIDs, res := sampleResult()

	handle, err := repo.Persist(context.Background(), queryIDs, res)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows, err := repo.Rows(context.Background(), handle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	total := 0.0
	for _, row := range rows {
		total += row.MatchScore
	}
	if total < 0.59 || total > 0.61 {
		t.Errorf("expected scores to survive the round trip, total %v", total)
	}
}
