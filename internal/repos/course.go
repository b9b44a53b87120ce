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

var courseColumns = map[string]bool{
  "id": true, "title": true, "description": true, "summary": true,
  "language_code": true, "available": true, "is_generated": true,
  "is_personalized": true, "owner_id": true, "start_module_id": true,
  "start_sub_module_id": true, "created_at": true,
}

type CourseRepo interface {
  Create(ctx context.Context, tx *gorm.DB, row *types.Course) (*types.Course, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Course, error)
  ListAvailable(ctx context.Context, tx *gorm.DB, page, pageSize int) (*store.Paginated[types.Course], error)
  List(ctx context.Context, tx *gorm.DB, filters []store.Filter, page, pageSize int) (*store.Paginated[types.Course], error)
  Patch(ctx context.Context, tx *gorm.DB, id uint, patch types.CoursePatch) (*types.Course, error)
  InvalidateListings(ctx context.Context) error
}

type courseRepo struct {
  db  *gorm.DB
  kv  cache.Cache
  log *logger.Logger
}

func NewCourseRepo(db *gorm.DB, kv cache.Cache, baseLog *logger.Logger) CourseRepo {
  repoLog := baseLog.With("repo", "CourseRepo")
  return &courseRepo{db: db, kv: kv, log: repoLog}
}

func courseKey(id uint) string { return fmt.Sprintf("course:id:%d", id) }

const availableCoursesKey = "courses:available"

func (r *courseRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Course) (*types.Course, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  created, err := store.Create(ctx, transaction, r.kv, store.Query{}, row)
  if err != nil {
    return nil, err
  }
  _ = r.kv.Set(ctx, courseKey(created.ID), *created, store.DefaultTTL)
  _ = r.kv.DeleteByPrefix(ctx, availableCoursesKey)
  return created, nil
}

func (r *courseRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Course, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchOne[types.Course](ctx, transaction, r.kv, store.Query{
    CacheKey: courseKey(id),
    Columns:  courseColumns,
    Filters:  []store.Filter{store.Eq("id", id)},
  })
}

func (r *courseRepo) ListAvailable(ctx context.Context, tx *gorm.DB, page, pageSize int) (*store.Paginated[types.Course], error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchPage[types.Course](ctx, transaction, r.kv, store.Query{
    CacheKey: availableCoursesKey,
    Columns:  courseColumns,
    Filters:  []store.Filter{store.Eq("available", true)},
  }, page, pageSize)
}

func (r *courseRepo) List(ctx context.Context, tx *gorm.DB, filters []store.Filter, page, pageSize int) (*store.Paginated[types.Course], error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchPage[types.Course](ctx, transaction, r.kv, store.Query{
    Columns: courseColumns,
    Filters: filters,
  }, page, pageSize)
}

func (r *courseRepo) Patch(ctx context.Context, tx *gorm.DB, id uint, patch types.CoursePatch) (*types.Course, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  updated, err := store.Patch[types.Course](ctx, transaction, r.kv, store.Query{
    CacheKey: courseKey(id),
    Columns:  courseColumns,
    Filters:  []store.Filter{store.Eq("id", id)},
  }, patch.Updates())
  if err != nil {
    return nil, err
  }
  // Availability flips change what the catalog pages contain.
  if patch.Available != nil || patch.Title != nil || patch.Description != nil {
    _ = r.kv.DeleteByPrefix(ctx, availableCoursesKey)
  }
  return updated, nil
}

func (r *courseRepo) InvalidateListings(ctx context.Context) error {
  return r.kv.DeleteByPrefix(ctx, availableCoursesKey)
}
