package authz

import (
	"context"

	"github.com/cellarium-cloud/cas-api/internal/domain"
	registryrepo "github.com/cellarium-cloud/cas-api/internal/repository/registry"
)

// mockRegistry implements the registry consumer interface for tests.
type mockRegistry struct {
	getModelFn func(ctx context.Context, name string) (domain.Model, error)
	getIndexFn func(ctx context.Context, modelName string) (domain.Index, error)
}

func (m *mockRegistry) GetModelByName(ctx context.Context, name string) (domain.Model, error) {
	if m.getModelFn != nil {
		return m.getModelFn(ctx, name)
	}
	return domain.Model{}, registryrepo.ErrNotFound
}

func (m *mockRegistry) GetIndexForModel(ctx context.Context, modelName string) (domain.Index, error) {
	if m.getIndexFn != nil {
		return m.getIndexFn(ctx, modelName)
	}
	return domain.Index{}, registryrepo.ErrNotFound
}

// mockActivityLog implements the activity consumer interface for tests.
type mockActivityLog struct {
	logFn func(ctx context.Context, rec domain.ActivityRecord) error
	recs  []domain.ActivityRecord
}

func (m *mockActivityLog) LogUserActivity(ctx context.Context, rec domain.ActivityRecord) error {
	m.recs = append(m.recs, rec)
	if m.logFn != nil {
		return m.logFn(ctx, rec)
	}
	return nil
}
