// Package authz guards model access and records per-user usage.
package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cellarium-cloud/cas-api/internal/domain"
	registryrepo "github.com/cellarium-cloud/cas-api/internal/repository/registry"
)

// Service enforces model access control and tracks usage.
type Service struct {
	registry registry
	activity activityLog
	logger   *zap.Logger
}

// New creates an authorization service.
func New(reg registry, act activityLog, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{registry: reg, activity: act, logger: logger}
}

// AuthorizeModelForUser resolves a model and checks the caller may use it.
// An unknown model wraps domain.ErrInvalidInput; an admin-only model for a
// non-admin caller returns domain.AccessDeniedError.
func (s *Service) AuthorizeModelForUser(ctx context.Context, user domain.User, modelName string) (domain.Model, error) {
	model, err := s.registry.GetModelByName(ctx, modelName)
	if err != nil {
		if errors.Is(err, registryrepo.ErrNotFound) {
			return domain.Model{}, fmt.Errorf("model %q: %w", modelName, domain.ErrInvalidInput)
		}
		return domain.Model{}, fmt.Errorf("lookup model %q: %w", modelName, err)
	}

	if model.AdminOnly && !user.Admin {
		s.logger.Info("model access denied",
			zap.String("model", modelName),
			zap.Int64("user_id", user.ID),
		)
		return domain.Model{}, domain.NewAccessDenied(modelName)
	}
	return model, nil
}

// ResolveIndex returns the deployed index bound to a model. A model without
// a deployed index wraps domain.ErrInvalidInput.
func (s *Service) ResolveIndex(ctx context.Context, modelName string) (domain.Index, error) {
	idx, err := s.registry.GetIndexForModel(ctx, modelName)
	if err != nil {
		if errors.Is(err, registryrepo.ErrNotFound) {
			return domain.Index{}, fmt.Errorf("no deployed index for model %q: %w", modelName, domain.ErrInvalidInput)
		}
		return domain.Index{}, fmt.Errorf("lookup index for model %q: %w", modelName, err)
	}
	return idx, nil
}

// RecordUsage appends one activity record and bumps the caller's counters.
// A zero cell count records nothing.
func (s *Service) RecordUsage(ctx context.Context, userID int64, modelName, method string, cellCount int) error {
	if cellCount == 0 {
		return nil
	}
	return s.activity.LogUserActivity(ctx, domain.ActivityRecord{
		UserID:    userID,
		ModelName: modelName,
		Method:    method,
		CellCount: cellCount,
		Finished:  time.Now().UnixMilli(),
	})
}
