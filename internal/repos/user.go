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

var userColumns = map[string]bool{
  "id": true, "external_id": true, "username": true, "chat_id": true,
  "active": true, "blocked": true, "created_at": true,
}

type UserRepo interface {
  Create(ctx context.Context, tx *gorm.DB, row *types.User) (*types.User, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.User, error)
  GetByExternalID(ctx context.Context, tx *gorm.DB, externalID int64) (*types.User, error)
  List(ctx context.Context, tx *gorm.DB, filters []store.Filter, page, pageSize int) (*store.Paginated[types.User], error)
  Patch(ctx context.Context, tx *gorm.DB, id uint, patch types.UserPatch) (*types.User, error)
}

type userRepo struct {
  db  *gorm.DB
  kv  cache.Cache
  log *logger.Logger
}

func NewUserRepo(db *gorm.DB, kv cache.Cache, baseLog *logger.Logger) UserRepo {
  repoLog := baseLog.With("repo", "UserRepo")
  return &userRepo{db: db, kv: kv, log: repoLog}
}

func userIDKey(id uint) string            { return fmt.Sprintf("user:id:%d", id) }
func userExternalKey(eid int64) string    { return fmt.Sprintf("user:external_id:%d", eid) }

func (r *userRepo) Create(ctx context.Context, tx *gorm.DB, row *types.User) (*types.User, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  created, err := store.Create(ctx, transaction, r.kv, store.Query{
    CacheKey: userExternalKey(row.ExternalID),
  }, row)
  if err != nil {
    return nil, err
  }
  _ = r.kv.Set(ctx, userIDKey(created.ID), *created, store.DefaultTTL)
  return created, nil
}

func (r *userRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.User, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchOne[types.User](ctx, transaction, r.kv, store.Query{
    CacheKey: userIDKey(id),
    Columns:  userColumns,
    Filters:  []store.Filter{store.Eq("id", id)},
  })
}

func (r *userRepo) GetByExternalID(ctx context.Context, tx *gorm.DB, externalID int64) (*types.User, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchOne[types.User](ctx, transaction, r.kv, store.Query{
    CacheKey: userExternalKey(externalID),
    Columns:  userColumns,
    Filters:  []store.Filter{store.Eq("external_id", externalID)},
  })
}

func (r *userRepo) List(ctx context.Context, tx *gorm.DB, filters []store.Filter, page, pageSize int) (*store.Paginated[types.User], error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  // Filtered listings bypass the cache: the filter combinations are
  // unbounded and would never be invalidated precisely.
  return store.FetchPage[types.User](ctx, transaction, r.kv, store.Query{
    Columns: userColumns,
    Filters: filters,
  }, page, pageSize)
}

func (r *userRepo) Patch(ctx context.Context, tx *gorm.DB, id uint, patch types.UserPatch) (*types.User, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  updated, err := store.Patch[types.User](ctx, transaction, r.kv, store.Query{
    CacheKey: userIDKey(id),
    Columns:  userColumns,
    Filters:  []store.Filter{store.Eq("id", id)},
  }, patch.Updates())
  if err != nil {
    return nil, err
  }
  _ = r.kv.Set(ctx, userExternalKey(updated.ExternalID), *updated, store.DefaultTTL)
  return updated, nil
}
