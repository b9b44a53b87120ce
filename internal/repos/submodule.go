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

var subModuleColumns = map[string]bool{
  "id": true, "module_id": true, "title": true, "description": true, "order_number": true,
}

type SubModuleRepo interface {
  CreateBatch(ctx context.Context, tx *gorm.DB, rows []*types.SubModule) ([]*types.SubModule, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.SubModule, error)
  GetByModuleAndOrder(ctx context.Context, tx *gorm.DB, moduleID uint, orderNumber int) (*types.SubModule, error)
  ListByModule(ctx context.Context, tx *gorm.DB, moduleID uint) ([]types.SubModule, error)
}

type subModuleRepo struct {
  db  *gorm.DB
  kv  cache.Cache
  log *logger.Logger
}

func NewSubModuleRepo(db *gorm.DB, kv cache.Cache, baseLog *logger.Logger) SubModuleRepo {
  repoLog := baseLog.With("repo", "SubModuleRepo")
  return &subModuleRepo{db: db, kv: kv, log: repoLog}
}

func subModuleKey(id uint) string { return fmt.Sprintf("sub_module:id:%d", id) }
func subModuleOrderKey(moduleID uint, order int) string {
  return fmt.Sprintf("sub_module:module_id:%d:order:%d", moduleID, order)
}

func (r *subModuleRepo) CreateBatch(ctx context.Context, tx *gorm.DB, rows []*types.SubModule) ([]*types.SubModule, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(rows) == 0 {
    return []*types.SubModule{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
    return nil, err
  }
  return rows, nil
}

func (r *subModuleRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.SubModule, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchOne[types.SubModule](ctx, transaction, r.kv, store.Query{
    CacheKey: subModuleKey(id),
    Columns:  subModuleColumns,
    Filters:  []store.Filter{store.Eq("id", id)},
  })
}

func (r *subModuleRepo) GetByModuleAndOrder(ctx context.Context, tx *gorm.DB, moduleID uint, orderNumber int) (*types.SubModule, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchOne[types.SubModule](ctx, transaction, r.kv, store.Query{
    CacheKey:     subModuleOrderKey(moduleID, orderNumber),
    Columns:      subModuleColumns,
    Filters:      []store.Filter{store.Eq("module_id", moduleID), store.Eq("order_number", orderNumber)},
    AllowMissing: true,
  })
}

func (r *subModuleRepo) ListByModule(ctx context.Context, tx *gorm.DB, moduleID uint) ([]types.SubModule, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []types.SubModule
  if err := transaction.WithContext(ctx).
    Where("module_id = ?", moduleID).
    Order("order_number ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
