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

var balanceColumns = map[string]bool{
  "id": true, "user_id": true, "count_course": true,
}

type BalanceRepo interface {
  Create(ctx context.Context, tx *gorm.DB, row *types.UserBalance) (*types.UserBalance, error)
  GetByUserID(ctx context.Context, tx *gorm.DB, userID uint) (*types.UserBalance, error)
  SetCount(ctx context.Context, tx *gorm.DB, userID uint, count int) (*types.UserBalance, error)
}

type balanceRepo struct {
  db  *gorm.DB
  kv  cache.Cache
  log *logger.Logger
}

func NewBalanceRepo(db *gorm.DB, kv cache.Cache, baseLog *logger.Logger) BalanceRepo {
  repoLog := baseLog.With("repo", "BalanceRepo")
  return &balanceRepo{db: db, kv: kv, log: repoLog}
}

func balanceKey(userID uint) string { return fmt.Sprintf("user_balance:user_id:%d", userID) }

func (r *balanceRepo) Create(ctx context.Context, tx *gorm.DB, row *types.UserBalance) (*types.UserBalance, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.Create(ctx, transaction, r.kv, store.Query{
    CacheKey: balanceKey(row.UserID),
  }, row)
}

func (r *balanceRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uint) (*types.UserBalance, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchOne[types.UserBalance](ctx, transaction, r.kv, store.Query{
    CacheKey: balanceKey(userID),
    Columns:  balanceColumns,
    Filters:  []store.Filter{store.Eq("user_id", userID)},
  })
}

func (r *balanceRepo) SetCount(ctx context.Context, tx *gorm.DB, userID uint, count int) (*types.UserBalance, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.Patch[types.UserBalance](ctx, transaction, r.kv, store.Query{
    CacheKey: balanceKey(userID),
    Columns:  balanceColumns,
    Filters:  []store.Filter{store.Eq("user_id", userID)},
  }, map[string]any{"count_course": count})
}
