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

var gptModelColumns = map[string]bool{
  "id": true, "name": true, "input_price": true, "output_price": true, "active": true,
}

type GPTModelRepo interface {
  Create(ctx context.Context, tx *gorm.DB, row *types.GPTModel) (*types.GPTModel, error)
  GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.GPTModel, error)
  List(ctx context.Context, tx *gorm.DB, page, pageSize int) (*store.Paginated[types.GPTModel], error)
}

type gptModelRepo struct {
  db  *gorm.DB
  kv  cache.Cache
  log *logger.Logger
}

func NewGPTModelRepo(db *gorm.DB, kv cache.Cache, baseLog *logger.Logger) GPTModelRepo {
  repoLog := baseLog.With("repo", "GPTModelRepo")
  return &gptModelRepo{db: db, kv: kv, log: repoLog}
}

func gptModelNameKey(name string) string { return fmt.Sprintf("gpt_model:name:%s", name) }

const gptModelsListKey = "gpt_models"

func (r *gptModelRepo) Create(ctx context.Context, tx *gorm.DB, row *types.GPTModel) (*types.GPTModel, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  created, err := store.Create(ctx, transaction, r.kv, store.Query{
    CacheKey: gptModelNameKey(row.Name),
  }, row)
  if err != nil {
    return nil, err
  }
  _ = r.kv.DeleteByPrefix(ctx, gptModelsListKey)
  return created, nil
}

func (r *gptModelRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.GPTModel, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchOne[types.GPTModel](ctx, transaction, r.kv, store.Query{
    CacheKey: gptModelNameKey(name),
    Columns:  gptModelColumns,
    Filters:  []store.Filter{store.Eq("name", name), store.Eq("active", true)},
  })
}

func (r *gptModelRepo) List(ctx context.Context, tx *gorm.DB, page, pageSize int) (*store.Paginated[types.GPTModel], error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchPage[types.GPTModel](ctx, transaction, r.kv, store.Query{
    CacheKey: gptModelsListKey,
    Columns:  gptModelColumns,
  }, page, pageSize)
}
