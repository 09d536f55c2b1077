package registry

import (
	"fmt"
	"strconv"

	"github.com/cellarium-cloud/cas-api/internal/domain"
)

// modelToHash converts a domain Model to a map for HSET.
func modelToHash(m domain.Model) map[string]string {
	return map[string]string{
		"model_name":          m.Name,
		"admin_use_only":      strconv.FormatBool(m.AdminOnly),
		"embedding_dimension": strconv.Itoa(m.EmbeddingDim),
		"is_default_model":    strconv.FormatBool(m.IsDefault),
		"schema_name":         m.SchemaName,
		"dataset":             m.Dataset,
		"created_at":          strconv.FormatInt(m.CreatedAt, 10),
	}
}

// modelFromHash hydrates a domain Model from an HGETALL result map.
func modelFromHash(h map[string]string) (domain.Model, error) {
	dim, err := strconv.Atoi(h["embedding_dimension"])
	if err != nil {
		return domain.Model{}, fmt.Errorf("invalid embedding_dimension: %w", err)
	}

	createdAt := int64(0)
	if v := h["created_at"]; v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			createdAt = parsed
		}
	}

	return domain.Model{
		Name:         h["model_name"],
		AdminOnly:    h["admin_use_only"] == "true",
		EmbeddingDim: dim,
		IsDefault:    h["is_default_model"] == "true",
		SchemaName:   h["schema_name"],
		Dataset:      h["dataset"],
		CreatedAt:    createdAt,
	}, nil
}

// indexToHash converts a domain Index to a map for HSET.
func indexToHash(idx domain.Index) map[string]string {
	return map[string]string{
		"model_name":    idx.ModelName,
		"transport":     string(idx.Transport),
		"num_neighbors": strconv.Itoa(idx.NumNeighbors),
		"endpoint":      idx.Endpoint,
		"deployed_id":   idx.DeployedID,
	}
}

// indexFromHash hydrates a domain Index from an HGETALL result map.
func indexFromHash(h map[string]string) (domain.Index, error) {
	neighbors, err := strconv.Atoi(h["num_neighbors"])
	if err != nil {
		return domain.Index{}, fmt.Errorf("invalid num_neighbors: %w", err)
	}

	transport := domain.TransportMode(h["transport"])
	switch transport {
	case domain.TransportJSON, domain.TransportMsgpack:
	default:
		return domain.Index{}, fmt.Errorf("invalid transport %q", h["transport"])
	}

	return domain.Index{
		ModelName:    h["model_name"],
		Transport:    transport,
		NumNeighbors: neighbors,
		Endpoint:     h["endpoint"],
		DeployedID:   h["deployed_id"],
	}, nil
}

// userToHash converts a domain User to a map for HSET.
func userToHash(u domain.User) map[string]string {
	return map[string]string{
		"id":                 strconv.FormatInt(u.ID, 10),
		"email":              u.Email,
		"active":             strconv.FormatBool(u.Active),
		"is_admin":           strconv.FormatBool(u.Admin),
		"cells_processed":    strconv.FormatInt(u.CellsProcessed, 10),
		"requests_processed": strconv.FormatInt(u.RequestsProcessed, 10),
	}
}

// userFromHash hydrates a domain User from an HGETALL result map.
func userFromHash(h map[string]string) (domain.User, error) {
	id, err := strconv.ParseInt(h["id"], 10, 64)
	if err != nil {
		return domain.User{}, fmt.Errorf("invalid user id: %w", err)
	}

	cells, _ := strconv.ParseInt(h["cells_processed"], 10, 64)
	requests, _ := strconv.ParseInt(h["requests_processed"], 10, 64)

	return domain.User{
		ID:                id,
		Email:             h["email"],
		Active:            h["active"] == "true",
		Admin:             h["is_admin"] == "true",
		CellsProcessed:    cells,
		RequestsProcessed: requests,
	}, nil
}
