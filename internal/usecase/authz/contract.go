package authz

import (
	"context"

	"github.com/cellarium-cloud/cas-api/internal/domain"
)

// registry is the consumer interface for model/index lookups (ISP).
type registry interface {
	GetModelByName(ctx context.Context, name string) (domain.Model, error)
	GetIndexForModel(ctx context.Context, modelName string) (domain.Index, error)
}

// activityLog is the consumer interface for usage recording (ISP).
type activityLog interface {
	LogUserActivity(ctx context.Context, rec domain.ActivityRecord) error
}
