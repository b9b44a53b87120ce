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

var userCourseColumns = map[string]bool{
  "id": true, "user_id": true, "course_id": true, "stage": true,
  "active": true, "archived": true, "finished": true, "paused": true,
  "current_module_id": true, "current_sub_module_id": true, "current_order_number": true,
  "prompt_tokens": true, "completion_tokens": true, "spent_amount": true,
  "usage_count": true, "rating": true, "created_at": true,
}

type UserCourseRepo interface {
  Create(ctx context.Context, tx *gorm.DB, row *types.UserCourse) (*types.UserCourse, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.UserCourse, error)
  GetActiveByUser(ctx context.Context, tx *gorm.DB, userID uint) (*types.UserCourse, error)
  GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID uint) (*types.UserCourse, error)
  ListByUser(ctx context.Context, tx *gorm.DB, userID uint, page, pageSize int) (*store.Paginated[types.UserCourse], error)
  ListUnfinishedByUser(ctx context.Context, tx *gorm.DB, userID uint, page, pageSize int) (*store.Paginated[types.UserCourse], error)
  ListArchivedByUser(ctx context.Context, tx *gorm.DB, userID uint, page, pageSize int) (*store.Paginated[types.UserCourse], error)
  Patch(ctx context.Context, tx *gorm.DB, id uint, patch types.UserCoursePatch) (*types.UserCourse, error)
  DeactivateAllForUser(ctx context.Context, tx *gorm.DB, userID uint) error
  InvalidateUserViews(ctx context.Context, userID uint) error
}

type userCourseRepo struct {
  db  *gorm.DB
  kv  cache.Cache
  log *logger.Logger
}

func NewUserCourseRepo(db *gorm.DB, kv cache.Cache, baseLog *logger.Logger) UserCourseRepo {
  repoLog := baseLog.With("repo", "UserCourseRepo")
  return &userCourseRepo{db: db, kv: kv, log: repoLog}
}

func userCourseKey(id uint) string { return fmt.Sprintf("user_course:id:%d", id) }
func activeUserCourseKey(userID uint) string {
  return fmt.Sprintf("active_user_course:user_id:%d", userID)
}
func userCoursesKey(userID uint) string {
  return fmt.Sprintf("user_courses:user_id:%d", userID)
}
func unfinishedUserCoursesKey(userID uint) string {
  return fmt.Sprintf("unfinished_user_courses:user_id:%d", userID)
}
func archivedUserCoursesKey(userID uint) string {
  return fmt.Sprintf("archived_user_courses:user_id:%d", userID)
}

func (r *userCourseRepo) Create(ctx context.Context, tx *gorm.DB, row *types.UserCourse) (*types.UserCourse, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  created, err := store.Create(ctx, transaction, r.kv, store.Query{}, row)
  if err != nil {
    return nil, err
  }
  _ = r.kv.Set(ctx, userCourseKey(created.ID), *created, store.DefaultTTL)
  if err := r.InvalidateUserViews(ctx, created.UserID); err != nil {
    r.log.Warn("failed to invalidate user course views", "user_id", created.UserID, "error", err)
  }
  return created, nil
}

func (r *userCourseRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.UserCourse, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchOne[types.UserCourse](ctx, transaction, r.kv, store.Query{
    CacheKey: userCourseKey(id),
    Columns:  userCourseColumns,
    Filters:  []store.Filter{store.Eq("id", id)},
  })
}

func (r *userCourseRepo) GetActiveByUser(ctx context.Context, tx *gorm.DB, userID uint) (*types.UserCourse, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchOne[types.UserCourse](ctx, transaction, r.kv, store.Query{
    CacheKey: activeUserCourseKey(userID),
    Columns:  userCourseColumns,
    Filters: []store.Filter{
      store.Eq("user_id", userID),
      store.Eq("active", true),
      store.Eq("archived", false),
    },
    AllowMissing: true,
  })
}

func (r *userCourseRepo) GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID uint) (*types.UserCourse, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchOne[types.UserCourse](ctx, transaction, r.kv, store.Query{
    Columns: userCourseColumns,
    Filters: []store.Filter{
      store.Eq("user_id", userID),
      store.Eq("course_id", courseID),
    },
    AllowMissing: true,
  })
}

func (r *userCourseRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uint, page, pageSize int) (*store.Paginated[types.UserCourse], error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchPage[types.UserCourse](ctx, transaction, r.kv, store.Query{
    CacheKey: userCoursesKey(userID),
    Columns:  userCourseColumns,
    Filters:  []store.Filter{store.Eq("user_id", userID)},
  }, page, pageSize)
}

func (r *userCourseRepo) ListUnfinishedByUser(ctx context.Context, tx *gorm.DB, userID uint, page, pageSize int) (*store.Paginated[types.UserCourse], error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchPage[types.UserCourse](ctx, transaction, r.kv, store.Query{
    CacheKey: unfinishedUserCoursesKey(userID),
    Columns:  userCourseColumns,
    Filters: []store.Filter{
      store.Eq("user_id", userID),
      store.Eq("archived", false),
      store.Eq("finished", false),
    },
  }, page, pageSize)
}

func (r *userCourseRepo) ListArchivedByUser(ctx context.Context, tx *gorm.DB, userID uint, page, pageSize int) (*store.Paginated[types.UserCourse], error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchPage[types.UserCourse](ctx, transaction, r.kv, store.Query{
    CacheKey: archivedUserCoursesKey(userID),
    Columns:  userCourseColumns,
    Filters: []store.Filter{
      store.Eq("user_id", userID),
      store.Eq("archived", true),
    },
  }, page, pageSize)
}

func (r *userCourseRepo) Patch(ctx context.Context, tx *gorm.DB, id uint, patch types.UserCoursePatch) (*types.UserCourse, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  updated, err := store.Patch[types.UserCourse](ctx, transaction, r.kv, store.Query{
    CacheKey: userCourseKey(id),
    Columns:  userCourseColumns,
    Filters:  []store.Filter{store.Eq("id", id)},
  }, patch.Updates())
  if err != nil {
    return nil, err
  }
  if err := r.InvalidateUserViews(ctx, updated.UserID); err != nil {
    r.log.Warn("failed to invalidate user course views", "user_id", updated.UserID, "error", err)
  }
  return updated, nil
}

// DeactivateAllForUser clears the active flag on every enrollment of the
// user. Runs before activating a new one so at most one stays active.
func (r *userCourseRepo) DeactivateAllForUser(ctx context.Context, tx *gorm.DB, userID uint) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if err := transaction.WithContext(ctx).
    Model(&types.UserCourse{}).
    Where("user_id = ? AND active = ?", userID, true).
    Update("active", false).Error; err != nil {
    return err
  }
  // The per-row keys are unknown here; dropping the whole user_course
  // prefix covers them.
  _ = r.kv.DeleteByPrefix(ctx, "user_course:")
  return r.InvalidateUserViews(ctx, userID)
}

// InvalidateUserViews drops every cached per-user listing in one sweep.
func (r *userCourseRepo) InvalidateUserViews(ctx context.Context, userID uint) error {
  if err := r.kv.Delete(ctx, activeUserCourseKey(userID)); err != nil {
    return err
  }
  // Page keys append ":page:N:size:M"; the trailing colon keeps user 1's
  // sweep away from user 12's keys.
  prefixes := []string{
    userCoursesKey(userID) + ":",
    unfinishedUserCoursesKey(userID) + ":",
    archivedUserCoursesKey(userID) + ":",
  }
  for _, p := range prefixes {
    if err := r.kv.DeleteByPrefix(ctx, p); err != nil {
      return err
    }
  }
  return nil
}
