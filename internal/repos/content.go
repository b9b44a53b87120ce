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

var contentColumns = map[string]bool{
  "id": true, "sub_module_id": true, "content_type": true, "content": true,
  "image_url": true, "order_number": true,
}

type ContentRepo interface {
  CreateBatch(ctx context.Context, tx *gorm.DB, rows []*types.ModuleContent) ([]*types.ModuleContent, error)
  GetBySubModuleAndOrder(ctx context.Context, tx *gorm.DB, subModuleID uint, contentType types.ContentType, orderNumber int) (*types.ModuleContent, error)
  ListBySubModule(ctx context.Context, tx *gorm.DB, subModuleID uint) ([]types.ModuleContent, error)
  CountBySubModule(ctx context.Context, tx *gorm.DB, subModuleID uint) (int64, error)
  Patch(ctx context.Context, tx *gorm.DB, id uint, subModuleID uint, contentType types.ContentType, orderNumber int, patch types.ModuleContentPatch) (*types.ModuleContent, error)
  DeleteBySubModuleAndType(ctx context.Context, tx *gorm.DB, subModuleID uint, contentType types.ContentType) error
}

type contentRepo struct {
  db  *gorm.DB
  kv  cache.Cache
  log *logger.Logger
}

func NewContentRepo(db *gorm.DB, kv cache.Cache, baseLog *logger.Logger) ContentRepo {
  repoLog := baseLog.With("repo", "ContentRepo")
  return &contentRepo{db: db, kv: kv, log: repoLog}
}

func contentOrderKey(subModuleID uint, contentType types.ContentType, order int) string {
  return fmt.Sprintf("module_content:sub_module_id:%d:type:%s:order:%d", subModuleID, contentType, order)
}

func (r *contentRepo) CreateBatch(ctx context.Context, tx *gorm.DB, rows []*types.ModuleContent) ([]*types.ModuleContent, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(rows) == 0 {
    return []*types.ModuleContent{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
    return nil, err
  }
  return rows, nil
}

func (r *contentRepo) GetBySubModuleAndOrder(ctx context.Context, tx *gorm.DB, subModuleID uint, contentType types.ContentType, orderNumber int) (*types.ModuleContent, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchOne[types.ModuleContent](ctx, transaction, r.kv, store.Query{
    CacheKey: contentOrderKey(subModuleID, contentType, orderNumber),
    Columns:  contentColumns,
    Filters: []store.Filter{
      store.Eq("sub_module_id", subModuleID),
      store.Eq("content_type", contentType),
      store.Eq("order_number", orderNumber),
    },
    AllowMissing: true,
  })
}

func (r *contentRepo) ListBySubModule(ctx context.Context, tx *gorm.DB, subModuleID uint) ([]types.ModuleContent, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []types.ModuleContent
  if err := transaction.WithContext(ctx).
    Where("sub_module_id = ?", subModuleID).
    Order("order_number ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *contentRepo) CountBySubModule(ctx context.Context, tx *gorm.DB, subModuleID uint) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var count int64
  if err := transaction.WithContext(ctx).
    Model(&types.ModuleContent{}).
    Where("sub_module_id = ?", subModuleID).
    Count(&count).Error; err != nil {
    return 0, err
  }
  return count, nil
}

func (r *contentRepo) Patch(ctx context.Context, tx *gorm.DB, id uint, subModuleID uint, contentType types.ContentType, orderNumber int, patch types.ModuleContentPatch) (*types.ModuleContent, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.Patch[types.ModuleContent](ctx, transaction, r.kv, store.Query{
    CacheKey: contentOrderKey(subModuleID, contentType, orderNumber),
    Columns:  contentColumns,
    Filters:  []store.Filter{store.Eq("id", id)},
  }, patch.Updates())
}

// DeleteBySubModuleAndType removes every row of one content type from the
// sub-module and drops the sub-module's cached content keys. Generation
// uses it to clear image rows left by an interrupted attempt; text slots
// survive because a rerun patches them in place.
func (r *contentRepo) DeleteBySubModuleAndType(ctx context.Context, tx *gorm.DB, subModuleID uint, contentType types.ContentType) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if err := transaction.WithContext(ctx).
    Where("sub_module_id = ? AND content_type = ?", subModuleID, contentType).
    Delete(&types.ModuleContent{}).Error; err != nil {
    return err
  }
  if err := r.kv.DeleteByPrefix(ctx, fmt.Sprintf("module_content:sub_module_id:%d:", subModuleID)); err != nil {
    r.log.Warn("failed to drop content keys", "sub_module_id", subModuleID, "error", err)
  }
  return nil
}
