// Package registry stores the model, index, and user records the gateway
// reads on every request. Records live in redis hashes under
// <prefix>model:{name}, <prefix>index:{model}, <prefix>user:{id}, and
// <prefix>token:{token}.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/cellarium-cloud/cas-api/internal/db"
	"github.com/cellarium-cloud/cas-api/internal/domain"
)

// ErrNotFound signals a missing registry record.
var ErrNotFound = errors.New("registry: not found")

// store is the consumer interface for registry operations (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo provides CRUD access to the model/index/user registry.
type Repo struct {
	store  store
	prefix string
}

// New creates a registry repository.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix}
}

// GetModelByName retrieves a model registration.
func (r *Repo) GetModelByName(ctx context.Context, name string) (domain.Model, error) {
	m, err := r.store.HGetAll(ctx, r.modelKey(name))
	if err != nil {
		return domain.Model{}, fmt.Errorf("hgetall model %s: %w", name, err)
	}
	if len(m) == 0 {
		return domain.Model{}, ErrNotFound
	}
	return modelFromHash(m)
}

// ListModels returns all registered models sorted by name.
func (r *Repo) ListModels(ctx context.Context) ([]domain.Model, error) {
	keys, err := r.store.Scan(ctx, r.modelKey("*"))
	if err != nil {
		return nil, fmt.Errorf("scan models: %w", err)
	}
	if len(keys) == 0 {
		return []domain.Model{}, nil
	}

	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi models: %w", err)
	}

	models := make([]domain.Model, 0, len(results))
	for i, m := range results {
		if len(m) == 0 {
			continue
		}
		model, err := modelFromHash(m)
		if err != nil {
			return nil, fmt.Errorf("parse model %s: %w", keys[i], err)
		}
		models = append(models, model)
	}

	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}

// PutModel stores a model registration.
func (r *Repo) PutModel(ctx context.Context, model domain.Model) error {
	if err := r.store.HSet(ctx, r.modelKey(model.Name), modelToHash(model)); err != nil {
		return fmt.Errorf("hset model %s: %w", model.Name, err)
	}
	return nil
}

// GetIndexForModel retrieves the deployed index bound to a model.
func (r *Repo) GetIndexForModel(ctx context.Context, modelName string) (domain.Index, error) {
	m, err := r.store.HGetAll(ctx, r.indexKey(modelName))
	if err != nil {
		return domain.Index{}, fmt.Errorf("hgetall index %s: %w", modelName, err)
	}
	if len(m) == 0 {
		return domain.Index{}, ErrNotFound
	}
	return indexFromHash(m)
}

// PutIndex stores the deployed index for a model.
func (r *Repo) PutIndex(ctx context.Context, idx domain.Index) error {
	if err := r.store.HSet(ctx, r.indexKey(idx.ModelName), indexToHash(idx)); err != nil {
		return fmt.Errorf("hset index %s: %w", idx.ModelName, err)
	}
	return nil
}

// GetUser retrieves a user by id.
func (r *Repo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	m, err := r.store.HGetAll(ctx, r.userKey(id))
	if err != nil {
		return domain.User{}, fmt.Errorf("hgetall user %d: %w", id, err)
	}
	if len(m) == 0 {
		return domain.User{}, ErrNotFound
	}
	return userFromHash(m)
}

// GetUserByToken resolves an API token to its user record.
func (r *Repo) GetUserByToken(ctx context.Context, token string) (domain.User, error) {
	data, err := r.store.Get(ctx, r.tokenKey(token))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get token: %w", err)
	}

	id, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return domain.User{}, fmt.Errorf("parse token user id: %w", err)
	}
	return r.GetUser(ctx, id)
}

// PutUser stores a user record and, when token is non-empty, its token mapping.
func (r *Repo) PutUser(ctx context.Context, user domain.User, token string) error {
	if err := r.store.HSet(ctx, r.userKey(user.ID), userToHash(user)); err != nil {
		return fmt.Errorf("hset user %d: %w", user.ID, err)
	}
	if token != "" {
		if err := r.store.Set(ctx, r.tokenKey(token), []byte(strconv.FormatInt(user.ID, 10))); err != nil {
			return fmt.Errorf("set token for user %d: %w", user.ID, err)
		}
	}
	return nil
}

func (r *Repo) modelKey(name string) string {
	return fmt.Sprintf("%smodel:%s", r.prefix, name)
}

func (r *Repo) indexKey(modelName string) string {
	return fmt.Sprintf("%sindex:%s", r.prefix, modelName)
}

func (r *Repo) userKey(id int64) string {
	return fmt.Sprintf("%suser:%d", r.prefix, id)
}

func (r *Repo) tokenKey(token string) string {
	return fmt.Sprintf("%stoken:%s", r.prefix, token)
}
