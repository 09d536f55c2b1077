// Package embedding is the HTTP client for the external model inference
// service: it uploads a raw dataset file and decodes the returned embedding
// matrix into an ordered query batch.
package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cellarium-cloud/cas-api/internal/domain"
	"github.com/cellarium-cloud/cas-api/internal/metrics"
)

const service = "embedding"

// Client calls the model inference service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds inference service settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates an inference service client.
func NewClient(cfg *Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// embedResponse is the inference service wire format: record ids parallel to
// a base64-encoded little-endian float32 row-major matrix.
type embedResponse struct {
	ObsIDs        []string `json:"obs_ids"`
	EmbeddingsB64 string   `json:"embeddings_b64"`
}

// Embed sends the dataset file and model name to the inference service and
// decodes the response into an ordered query batch. Any transport, timeout,
// or shape failure wraps domain.ErrUpstream.
func (c *Client) Embed(ctx context.Context, file io.Reader, modelName string) (domain.QueryBatch, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "adata.h5ad")
	if err != nil {
		return domain.QueryBatch{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, file); err != nil {
		return domain.QueryBatch{}, fmt.Errorf("copy file: %w", err)
	}
	if err := mw.WriteField("model_name", modelName); err != nil {
		return domain.QueryBatch{}, fmt.Errorf("write model_name field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return domain.QueryBatch{}, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", &body)
	if err != nil {
		return domain.QueryBatch{}, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(service, "error").Inc()
		return domain.QueryBatch{}, fmt.Errorf("embedding request failed: %w", domain.ErrUpstream)
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.UpstreamRequestDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.UpstreamRequestsTotal.WithLabelValues(service, "error").Inc()
		c.logger.Warn("embedding service returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("model", modelName),
		)
		return domain.QueryBatch{}, fmt.Errorf("embedding service status %d: %w", resp.StatusCode, domain.ErrUpstream)
	}

	var wire embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(service, "error").Inc()
		return domain.QueryBatch{}, fmt.Errorf("decode embedding response: %w", domain.ErrUpstream)
	}

	batch, err := decodeBatch(wire)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(service, "error").Inc()
		return domain.QueryBatch{}, err
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(service, "success").Inc()
	return batch, nil
}

// HealthCheck verifies inference service availability.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("embedding health: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding health status %d", resp.StatusCode)
	}
	return nil
}

// decodeBatch decodes the base64 float32 matrix and pairs rows with record ids.
func decodeBatch(wire embedResponse) (domain.QueryBatch, error) {
	raw, err := base64.StdEncoding.DecodeString(wire.EmbeddingsB64)
	if err != nil {
		return domain.QueryBatch{}, fmt.Errorf("decode embedding matrix: %w", domain.ErrUpstream)
	}

	rows := len(wire.ObsIDs)
	if rows == 0 {
		if len(raw) != 0 {
			return domain.QueryBatch{}, fmt.Errorf("embedding matrix without record ids: %w", domain.ErrUpstream)
		}
		return domain.QueryBatch{}, nil
	}

	if len(raw)%4 != 0 {
		return domain.QueryBatch{}, fmt.Errorf("embedding matrix size %d not float32-aligned: %w", len(raw), domain.ErrUpstream)
	}
	floats := len(raw) / 4
	if floats%rows != 0 {
		return domain.QueryBatch{}, fmt.Errorf(
			"embedding matrix of %d values does not divide across %d records: %w", floats, rows, domain.ErrUpstream)
	}
	dim := floats / rows

	embeddings := make([][]float32, rows)
	for i := 0; i < rows; i++ {
		vec := make([]float32, dim)
		for j := 0; j < dim; j++ {
			bits := binary.LittleEndian.Uint32(raw[(i*dim+j)*4:])
			vec[j] = math.Float32frombits(bits)
		}
		embeddings[i] = vec
	}

	return domain.QueryBatch{CellIDs: wire.ObsIDs, Embeddings: embeddings}, nil
}
