// Package warehouse is the client for the analytical metadata warehouse.
// Queries are declarative SQL rendered from templates and shipped to the
// warehouse's HTTP query endpoint; the client never concatenates caller
// input into SQL outside the rendered id list.
package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/cellarium-cloud/cas-api/internal/domain"
	"github.com/cellarium-cloud/cas-api/internal/domain/batch"
	"github.com/cellarium-cloud/cas-api/internal/metrics"
)

const service = "warehouse"

// cellInfoTable is the metadata table name inside every model dataset.
const cellInfoTable = "cas_cell_info"

// maxIDsPerQuery bounds the IN-filter length of a single rendered query.
const maxIDsPerQuery = 10000

var cellMetadataTmpl = template.Must(template.New("cell_metadata").Parse(
	"SELECT {{.Columns}}\n" +
		"FROM `{{.Project}}.{{.Dataset}}.{{.Table}}`\n" +
		"WHERE {{.IDColumn}} IN ({{.IDs}})",
))

// Client runs templated queries against the warehouse query endpoint.
type Client struct {
	baseURL    string
	project    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds warehouse client settings.
type Config struct {
	BaseURL string
	Project string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates a warehouse client.
func NewClient(cfg *Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		project:    cfg.Project,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// queryRequest is the warehouse wire request.
type queryRequest struct {
	SQL string `json:"sql"`
}

// queryResponse is the warehouse wire response.
type queryResponse struct {
	Rows []domain.CellMetadataRow `json:"rows"`
}

type tmplParams struct {
	Columns  string
	Project  string
	Dataset  string
	Table    string
	IDColumn string
	IDs      string
}

// CellMetadata fetches the requested metadata columns for the given cell
// indexes from a model's dataset. Long id lists are split across multiple
// queries; row order across splits is not significant. Failures wrap
// domain.ErrUpstream.
func (c *Client) CellMetadata(ctx context.Context, dataset string, columns []string, ids []int64) ([]domain.CellMetadataRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows := make([]domain.CellMetadataRow, 0, len(ids))
	for _, chunk := range batch.Chunk(ids, maxIDsPerQuery) {
		sql, err := c.renderCellMetadata(dataset, columns, chunk)
		if err != nil {
			return nil, err
		}
		part, err := c.query(ctx, sql)
		if err != nil {
			return nil, err
		}
		rows = append(rows, part...)
	}
	return rows, nil
}

// HealthCheck verifies warehouse availability.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("warehouse health: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("warehouse health status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) renderCellMetadata(dataset string, columns []string, ids []int64) (string, error) {
	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = strconv.FormatInt(id, 10)
	}

	var sql bytes.Buffer
	err := cellMetadataTmpl.Execute(&sql, tmplParams{
		Columns:  strings.Join(columns, ", "),
		Project:  c.project,
		Dataset:  dataset,
		Table:    cellInfoTable,
		IDColumn: domain.CellIDColumn,
		IDs:      strings.Join(idStrs, ", "),
	})
	if err != nil {
		return "", fmt.Errorf("render cell metadata query: %w", err)
	}
	return sql.String(), nil
}

func (c *Client) query(ctx context.Context, sql string) ([]domain.CellMetadataRow, error) {
	payload, err := json.Marshal(queryRequest{SQL: sql})
	if err != nil {
		return nil, fmt.Errorf("encode warehouse request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build warehouse request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(service, "error").Inc()
		return nil, fmt.Errorf("warehouse request failed: %w", domain.ErrUpstream)
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.UpstreamRequestDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.UpstreamRequestsTotal.WithLabelValues(service, "error").Inc()
		c.logger.Warn("warehouse returned error status", zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("warehouse status %d: %w", resp.StatusCode, domain.ErrUpstream)
	}

	var wire queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(service, "error").Inc()
		return nil, fmt.Errorf("decode warehouse response: %w", domain.ErrUpstream)
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(service, "success").Inc()
	return wire.Rows, nil
}
