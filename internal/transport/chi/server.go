// Package chi exposes the annotation workflows over HTTP: multipart upload
// endpoints for annotate and nearest-neighbor search, a JSON endpoint for
// metadata queries, and the public model listing.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cellarium-cloud/cas-api/internal/domain"
	"github.com/cellarium-cloud/cas-api/internal/version"
	cellsuc "github.com/cellarium-cloud/cas-api/internal/usecase/cells"
	healthuc "github.com/cellarium-cloud/cas-api/internal/usecase/health"
)

// maxUploadBytes caps the uploaded dataset file size.
const maxUploadBytes = 200 << 20

// multipartMemoryBytes is the in-memory buffer for multipart parsing; the
// rest spills to temp files.
const multipartMemoryBytes = 32 << 20

type errorCode string

const (
	codeBadRequest          errorCode = "bad_request"
	codeUnauthorized        errorCode = "unauthorized"
	codeInvalidInput        errorCode = "invalid_input"
	codeAccessDenied        errorCode = "access_denied"
	codeFeatureNotQueryable errorCode = "feature_not_queryable"
	codeVectorSearchError   errorCode = "vector_search_error"
	codeUpstreamError       errorCode = "upstream_error"
	codeInternalError       errorCode = "internal_error"
)

// errorResponse is the JSON error body of every non-2xx response.
type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// modelLister is the consumer interface for the public model listing (ISP).
type modelLister interface {
	ListModels(ctx context.Context) ([]domain.Model, error)
}

// Server wires the HTTP handlers onto the use case services.
type Server struct {
	cells         *cellsuc.Service
	models        modelLister
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(cells *cellsuc.Service, models modelLister, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		cells:  cells,
		models: models,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, codeInvalidInput),
		sentinelHandler(domain.ErrAccessDenied, http.StatusForbidden, codeAccessDenied),
		sentinelHandler(domain.ErrColumnNotQueryable, http.StatusUnprocessableEntity, codeFeatureNotQueryable),
		sentinelHandler(domain.ErrVectorSearchResponse, http.StatusInternalServerError, codeVectorSearchError),
		sentinelHandler(domain.ErrUpstream, http.StatusBadGateway, codeUpstreamError),
	}
	return s
}

// Register mounts all routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Post("/api/cellarium-cas/annotate", s.Annotate)
	r.Post("/api/cellarium-cas/nearest-neighbor-search", s.NearestNeighborSearch)
	r.Post("/api/cellarium-cas/query-cells-by-ids", s.QueryCellsByIDs)
	r.Get("/api/list-models", s.ListModels)
	r.Get("/api/application-info", s.ApplicationInfo)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Annotate handles POST /api/cellarium-cas/annotate.
func (s *Server) Annotate(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
		return
	}

	file, modelName, err := parseUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	defer func() { _ = file.Close() }()

	includeDev := false
	if v := r.FormValue("include_dev_metadata"); v != "" {
		includeDev, err = strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "include_dev_metadata must be a boolean")
			return
		}
	}

	summaries, err := s.cells.Annotate(r.Context(), user, file, modelName, includeDev)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summaries)
}

// NearestNeighborSearch handles POST /api/cellarium-cas/nearest-neighbor-search.
func (s *Server) NearestNeighborSearch(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
		return
	}

	file, modelName, err := parseUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	defer func() { _ = file.Close() }()

	results, err := s.cells.Search(r.Context(), user, file, modelName)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, results)
}

// queryCellsByIDsRequest is the JSON body of the metadata query endpoint.
type queryCellsByIDsRequest struct {
	CasCellIDs           []int64  `json:"cas_cell_ids"`
	ModelName            string   `json:"model_name"`
	MetadataFeatureNames []string `json:"metadata_feature_names"`
}

// QueryCellsByIDs handles POST /api/cellarium-cas/query-cells-by-ids.
func (s *Server) QueryCellsByIDs(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
		return
	}

	var req queryCellsByIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.ModelName == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "model_name is required")
		return
	}
	if len(req.CasCellIDs) == 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest, "cas_cell_ids must not be empty")
		return
	}

	rows, err := s.cells.CellsByIDs(r.Context(), user, req.CasCellIDs, req.ModelName, req.MetadataFeatureNames)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rows)
}

// listModelItem is the public projection of a model registration.
type listModelItem struct {
	ModelName          string `json:"model_name"`
	SchemaName         string `json:"schema_name"`
	IsDefaultModel     bool   `json:"is_default_model"`
	EmbeddingDimension int    `json:"embedding_dimension"`
}

// ListModels handles GET /api/list-models.
func (s *Server) ListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.models.ListModels(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]listModelItem, len(models))
	for i, m := range models {
		items[i] = listModelItem{
			ModelName:          m.Name,
			SchemaName:         m.SchemaName,
			IsDefaultModel:     m.IsDefault,
			EmbeddingDimension: m.EmbeddingDim,
		}
	}

	writeJSON(w, http.StatusOK, items)
}

// applicationInfo is the GET /api/application-info response.
type applicationInfo struct {
	ApplicationVersion   string `json:"application_version"`
	DefaultFeatureSchema string `json:"default_feature_schema"`
}

// ApplicationInfo handles GET /api/application-info.
func (s *Server) ApplicationInfo(w http.ResponseWriter, r *http.Request) {
	info := applicationInfo{ApplicationVersion: version.Version}

	models, err := s.models.ListModels(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	for _, m := range models {
		if m.IsDefault {
			info.DefaultFeatureSchema = m.SchemaName
			break
		}
	}

	writeJSON(w, http.StatusOK, info)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// parseUpload extracts the dataset file and model name from a multipart body.
func parseUpload(r *http.Request) (file multipart.File, modelName string, err error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		return nil, "", errors.New("invalid multipart body: " + err.Error())
	}

	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, "", errors.New("file field is required")
	}

	modelName = r.FormValue("model_name")
	if modelName == "" {
		_ = f.Close()
		return nil, "", errors.New("model_name is required")
	}
	return f, modelName, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a client-facing error message without exposing internals.
func safeDomainMessage(err error) string {
	var accessDenied *domain.AccessDeniedError
	if errors.As(err, &accessDenied) {
		return accessDenied.Error()
	}
	var notQueryable *domain.ColumnNotQueryableError
	if errors.As(err, &notQueryable) {
		return notQueryable.Error()
	}
	var vectorSearch *domain.VectorSearchError
	if errors.As(err, &vectorSearch) {
		return vectorSearch.Error()
	}

	sentinels := []error{
		domain.ErrInvalidInput,
		domain.ErrAccessDenied,
		domain.ErrColumnNotQueryable,
		domain.ErrVectorSearchResponse,
		domain.ErrUpstream,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
