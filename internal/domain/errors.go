package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput signals an unknown model, unknown index, or malformed input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAccessDenied signals an authenticated but unauthorized caller.
	ErrAccessDenied = errors.New("access denied")
	// ErrVectorSearchResponse signals a structurally invalid vector search response.
	ErrVectorSearchResponse = errors.New("vector search response invalid")
	// ErrColumnNotQueryable signals a metadata feature outside the queryable whitelist.
	ErrColumnNotQueryable = errors.New("metadata column not queryable")
	// ErrUpstream signals a transport, timeout, or protocol failure against an upstream service.
	ErrUpstream = errors.New("upstream service error")
)

// AccessDeniedError wraps ErrAccessDenied with the restricted model name.
type AccessDeniedError struct {
	Model string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("%s model is not available.", e.Model)
}

func (e *AccessDeniedError) Unwrap() error { return ErrAccessDenied }

// NewAccessDenied creates an access denied error for a restricted model.
func NewAccessDenied(model string) error {
	return &AccessDeniedError{Model: model}
}

// ColumnNotQueryableError wraps ErrColumnNotQueryable with the offending feature name.
type ColumnNotQueryableError struct {
	Feature string
}

func (e *ColumnNotQueryableError) Error() string {
	return fmt.Sprintf("Feature %s is not available for querying.", e.Feature)
}

func (e *ColumnNotQueryableError) Unwrap() error { return ErrColumnNotQueryable }

// NewColumnNotQueryable creates an error for an unknown metadata feature.
func NewColumnNotQueryable(feature string) error {
	return &ColumnNotQueryableError{Feature: feature}
}

// VectorSearchError wraps ErrVectorSearchResponse with an invariant description.
type VectorSearchError struct {
	Reason string
}

func (e *VectorSearchError) Error() string { return e.Reason }

func (e *VectorSearchError) Unwrap() error { return ErrVectorSearchResponse }

// NewVectorSearchError creates an invariant violation error for a search response.
func NewVectorSearchError(format string, args ...any) error {
	return &VectorSearchError{Reason: fmt.Sprintf(format, args...)}
}
