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

var moduleColumns = map[string]bool{
  "id": true, "course_id": true, "title": true, "description": true, "order_number": true,
}

type ModuleRepo interface {
  CreateBatch(ctx context.Context, tx *gorm.DB, rows []*types.Module) ([]*types.Module, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Module, error)
  GetByCourseAndOrder(ctx context.Context, tx *gorm.DB, courseID uint, orderNumber int) (*types.Module, error)
  ListByCourse(ctx context.Context, tx *gorm.DB, courseID uint) ([]types.Module, error)
  CountByCourse(ctx context.Context, tx *gorm.DB, courseID uint) (int64, error)
}

type moduleRepo struct {
  db  *gorm.DB
  kv  cache.Cache
  log *logger.Logger
}

func NewModuleRepo(db *gorm.DB, kv cache.Cache, baseLog *logger.Logger) ModuleRepo {
  repoLog := baseLog.With("repo", "ModuleRepo")
  return &moduleRepo{db: db, kv: kv, log: repoLog}
}

func moduleKey(id uint) string { return fmt.Sprintf("module:id:%d", id) }
func moduleOrderKey(courseID uint, order int) string {
  return fmt.Sprintf("module:course_id:%d:order:%d", courseID, order)
}

func (r *moduleRepo) CreateBatch(ctx context.Context, tx *gorm.DB, rows []*types.Module) ([]*types.Module, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(rows) == 0 {
    return []*types.Module{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
    return nil, err
  }
  return rows, nil
}

func (r *moduleRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Module, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchOne[types.Module](ctx, transaction, r.kv, store.Query{
    CacheKey: moduleKey(id),
    Columns:  moduleColumns,
    Filters:  []store.Filter{store.Eq("id", id)},
  })
}

func (r *moduleRepo) GetByCourseAndOrder(ctx context.Context, tx *gorm.DB, courseID uint, orderNumber int) (*types.Module, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchOne[types.Module](ctx, transaction, r.kv, store.Query{
    CacheKey:     moduleOrderKey(courseID, orderNumber),
    Columns:      moduleColumns,
    Filters:      []store.Filter{store.Eq("course_id", courseID), store.Eq("order_number", orderNumber)},
    AllowMissing: true,
  })
}

func (r *moduleRepo) ListByCourse(ctx context.Context, tx *gorm.DB, courseID uint) ([]types.Module, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []types.Module
  if err := transaction.WithContext(ctx).
    Where("course_id = ?", courseID).
    Order("order_number ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *moduleRepo) CountByCourse(ctx context.Context, tx *gorm.DB, courseID uint) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var count int64
  if err := transaction.WithContext(ctx).
    Model(&types.Module{}).
    Where("course_id = ?", courseID).
    Count(&count).Error; err != nil {
    return 0, err
  }
  return count, nil
}
