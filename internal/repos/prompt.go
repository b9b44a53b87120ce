package repos

import (
  "context"
  "fmt"
  "gorm.io/gorm"
  "github.com/lumira/lumira-backend/internal/cache"
  "github.com/lumira/lumira-backend/internal/logger"
  "github.com/lumira/lumira-backend/internal/store"
  "github.com/lumira/lumira-backend/internal/types"
)

var promptColumns = map[string]bool{
  "id": true, "name": true, "text": true, "active": true,
}

type PromptRepo interface {
  Create(ctx context.Context, tx *gorm.DB, row *types.Prompt) (*types.Prompt, error)
  GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Prompt, error)
  List(ctx context.Context, tx *gorm.DB, page, pageSize int) (*store.Paginated[types.Prompt], error)
  Patch(ctx context.Context, tx *gorm.DB, id uint, updates map[string]any) (*types.Prompt, error)
}

type promptRepo struct {
  db  *gorm.DB
  kv  cache.Cache
  log *logger.Logger
}

func NewPromptRepo(db *gorm.DB, kv cache.Cache, baseLog *logger.Logger) PromptRepo {
  repoLog := baseLog.With("repo", "PromptRepo")
  return &promptRepo{db: db, kv: kv, log: repoLog}
}

func promptNameKey(name string) string { return fmt.Sprintf("prompt:name:%s", name) }

const promptsListKey = "prompts"

func (r *promptRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Prompt) (*types.Prompt, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  created, err := store.Create(ctx, transaction, r.kv, store.Query{
    CacheKey: promptNameKey(row.Name),
  }, row)
  if err != nil {
    return nil, err
  }
  _ = r.kv.DeleteByPrefix(ctx, promptsListKey)
  return created, nil
}

func (r *promptRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Prompt, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchOne[types.Prompt](ctx, transaction, r.kv, store.Query{
    CacheKey: promptNameKey(name),
    Columns:  promptColumns,
    Filters:  []store.Filter{store.Eq("name", name), store.Eq("active", true)},
  })
}

func (r *promptRepo) List(ctx context.Context, tx *gorm.DB, page, pageSize int) (*store.Paginated[types.Prompt], error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchPage[types.Prompt](ctx, transaction, r.kv, store.Query{
    CacheKey: promptsListKey,
    Columns:  promptColumns,
  }, page, pageSize)
}

func (r *promptRepo) Patch(ctx context.Context, tx *gorm.DB, id uint, updates map[string]any) (*types.Prompt, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  updated, err := store.Patch[types.Prompt](ctx, transaction, r.kv, store.Query{
    Columns: promptColumns,
    Filters: []store.Filter{store.Eq("id", id)},
  }, updates)
  if err != nil {
    return nil, err
  }
  _ = r.kv.Delete(ctx, promptNameKey(updated.Name))
  _ = r.kv.DeleteByPrefix(ctx, promptsListKey)
  return updated, nil
}
