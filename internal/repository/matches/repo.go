// Package matches stages flattened vector-search matches for one request in
// a transient, auto-expiring table. The handle keeps the warehouse-style
// fully-qualified name <dataset>.api_request_matches_<id>; rows live under a
// derived redis key whose TTL is the only cleanup mechanism.
package matches

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cellarium-cloud/cas-api/internal/domain"
	"github.com/cellarium-cloud/cas-api/internal/domain/batch"
)

// store is the consumer interface for staged row loads (ISP).
type store interface {
	RPush(ctx context.Context, key string, values []string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Config holds transient table settings.
type Config struct {
	Dataset     string        // namespace the table name is qualified with
	Expiration  time.Duration // retention window; expiry is the sole cleanup
	ChunkSize   int           // rows per bulk-load chunk
	MaxParallel int           // concurrent chunk loads per request
}

// Repo creates and reads transient match tables.
type Repo struct {
	store  store
	prefix string
	cfg    Config
}

// New creates a transient match table repository.
func New(s store, keyPrefix string, cfg Config) *Repo {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	return &Repo{store: s, prefix: keyPrefix, cfg: cfg}
}

// Persist flattens every (query id, neighbor, distance) triple into row form
// and bulk-loads the rows in bounded-parallel chunks. It returns the
// fully-qualified table name once every chunk load has completed; a failed
// chunk fails the whole request. Row grouping downstream does not depend on
// inter-chunk ordering.
func (r *Repo) Persist(ctx context.Context, queryIDs []string, res domain.MatchResult) (string, error) {
	handle := fmt.Sprintf("%s.api_request_matches_%s", r.cfg.Dataset, uuid.NewString()[:8])
	key := r.tableKey(handle)

	rows, err := FlattenMatches(queryIDs, res)
	if err != nil {
		return "", err
	}

	encoded := make([]string, len(rows))
	for i, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return "", fmt.Errorf("marshal match row: %w", err)
		}
		encoded[i] = string(data)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxParallel)
	for _, chunk := range batch.Chunk(encoded, r.cfg.ChunkSize) {
		chunk := chunk
		g.Go(func() error {
			return r.store.RPush(gctx, key, chunk)
		})
	}
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("load match rows %s: %w", handle, err)
	}

	if err := r.store.Expire(ctx, key, r.cfg.Expiration, false); err != nil {
		return "", fmt.Errorf("expire match table %s: %w", handle, err)
	}

	return handle, nil
}

// Rows reads back every staged row of a transient table.
func (r *Repo) Rows(ctx context.Context, handle string) ([]domain.MatchRow, error) {
	values, err := r.store.LRange(ctx, r.tableKey(handle), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read match table %s: %w", handle, err)
	}

	rows := make([]domain.MatchRow, len(values))
	for i, v := range values {
		if err := json.Unmarshal([]byte(v), &rows[i]); err != nil {
			return nil, fmt.Errorf("unmarshal match row %d of %s: %w", i, handle, err)
		}
	}
	return rows, nil
}

// FlattenMatches turns the per-query neighbor lists into flat rows, one per
// (query id, neighbor) pair, in query order.
func FlattenMatches(queryIDs []string, res domain.MatchResult) ([]domain.MatchRow, error) {
	if len(queryIDs) != len(res.Matches) {
		return nil, fmt.Errorf("query ids (%d) and matches (%d) length mismatch", len(queryIDs), len(res.Matches))
	}

	total := 0
	for _, m := range res.Matches {
		total += len(m.Neighbors)
	}

	rows := make([]domain.MatchRow, 0, total)
	for i, m := range res.Matches {
		for _, n := range m.Neighbors {
			rows = append(rows, domain.MatchRow{
				QueryID:      queryIDs[i],
				CasCellIndex: n.CasCellIndex,
				MatchScore:   n.Distance,
			})
		}
	}
	return rows, nil
}

func (r *Repo) tableKey(handle string) string {
	return fmt.Sprintf("%smatches:%s", r.prefix, handle)
}
