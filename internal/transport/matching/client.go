// Package matching is the client for the external nearest-neighbor search
// service. A deployed index is reachable over one endpoint with two wire
// codecs (JSON and msgpack); the index registration selects which one.
package matching

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cellarium-cloud/cas-api/internal/domain"
	"github.com/cellarium-cloud/cas-api/internal/metrics"
)

const service = "matching"

// Client calls a deployed vector search index.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds vector search client settings.
type Config struct {
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates a vector search client.
func NewClient(cfg *Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// matchRequest is the wire request shared by both codecs.
type matchRequest struct {
	DeployedIndexID string      `json:"deployed_index_id" msgpack:"deployed_index_id"`
	NumNeighbors    int         `json:"num_neighbors" msgpack:"num_neighbors"`
	Queries         [][]float32 `json:"queries" msgpack:"queries"`
}

// wireNeighbor is one neighbor hit on the wire.
type wireNeighbor struct {
	CasCellIndex  int64     `json:"cas_cell_index" msgpack:"cas_cell_index"`
	Distance      float64   `json:"distance" msgpack:"distance"`
	FeatureVector []float32 `json:"feature_vector,omitempty" msgpack:"feature_vector,omitempty"`
}

// wireMatch is the neighbor list for one query on the wire.
type wireMatch struct {
	Neighbors []wireNeighbor `json:"neighbors" msgpack:"neighbors"`
}

// matchResponse is the wire response shared by both codecs.
type matchResponse struct {
	Matches []wireMatch `json:"matches" msgpack:"matches"`
}

// Search sends the query vectors to the index endpoint using the codec the
// index registration selects, preserving query order. Transport failures
// wrap domain.ErrUpstream.
func (c *Client) Search(ctx context.Context, idx domain.Index, queries [][]float32) (domain.MatchResult, error) {
	cdc, err := codecFor(idx.Transport)
	if err != nil {
		return domain.MatchResult{}, err
	}

	payload, err := cdc.marshal(matchRequest{
		DeployedIndexID: idx.DeployedID,
		NumNeighbors:    idx.NumNeighbors,
		Queries:         queries,
	})
	if err != nil {
		return domain.MatchResult{}, fmt.Errorf("encode match request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, idx.Endpoint+"/match", bytes.NewReader(payload))
	if err != nil {
		return domain.MatchResult{}, fmt.Errorf("build match request: %w", err)
	}
	req.Header.Set("Content-Type", cdc.contentType())
	req.Header.Set("Accept", cdc.contentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(service, "error").Inc()
		return domain.MatchResult{}, fmt.Errorf("vector search request failed: %w", domain.ErrUpstream)
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.UpstreamRequestDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.UpstreamRequestsTotal.WithLabelValues(service, "error").Inc()
		c.logger.Warn("vector search returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("deployed_index", idx.DeployedID),
		)
		return domain.MatchResult{}, fmt.Errorf("vector search status %d: %w", resp.StatusCode, domain.ErrUpstream)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(service, "error").Inc()
		return domain.MatchResult{}, fmt.Errorf("read match response: %w", domain.ErrUpstream)
	}

	var wire matchResponse
	if err := cdc.unmarshal(body, &wire); err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(service, "error").Inc()
		return domain.MatchResult{}, fmt.Errorf("decode match response: %w", domain.ErrUpstream)
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(service, "success").Inc()
	return resultFromWire(wire), nil
}

func resultFromWire(wire matchResponse) domain.MatchResult {
	matches := make([]domain.NearestNeighbors, len(wire.Matches))
	for i, m := range wire.Matches {
		neighbors := make([]domain.Neighbor, len(m.Neighbors))
		for j, n := range m.Neighbors {
			neighbors[j] = domain.Neighbor{
				CasCellIndex:  n.CasCellIndex,
				Distance:      n.Distance,
				FeatureVector: n.FeatureVector,
			}
		}
		matches[i] = domain.NearestNeighbors{Neighbors: neighbors}
	}
	return domain.MatchResult{Matches: matches}
}
