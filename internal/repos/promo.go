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

var promoColumns = map[string]bool{
  "id": true, "code": true, "discount_type": true, "amount": true,
  "active": true, "expires_at": true,
}

type PromoRepo interface {
  Create(ctx context.Context, tx *gorm.DB, row *types.PromoCode) (*types.PromoCode, error)
  GetByCode(ctx context.Context, tx *gorm.DB, code string) (*types.PromoCode, error)
  RecordRedemption(ctx context.Context, tx *gorm.DB, userID, promoCodeID uint) (*types.UserPromoCode, error)
}

type promoRepo struct {
  db  *gorm.DB
  kv  cache.Cache
  log *logger.Logger
}

func NewPromoRepo(db *gorm.DB, kv cache.Cache, baseLog *logger.Logger) PromoRepo {
  repoLog := baseLog.With("repo", "PromoRepo")
  return &promoRepo{db: db, kv: kv, log: repoLog}
}

func promoCodeKey(code string) string { return fmt.Sprintf("promo_code:code:%s", code) }

func (r *promoRepo) Create(ctx context.Context, tx *gorm.DB, row *types.PromoCode) (*types.PromoCode, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.Create(ctx, transaction, r.kv, store.Query{
    CacheKey: promoCodeKey(row.Code),
  }, row)
}

func (r *promoRepo) GetByCode(ctx context.Context, tx *gorm.DB, code string) (*types.PromoCode, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchOne[types.PromoCode](ctx, transaction, r.kv, store.Query{
    CacheKey: promoCodeKey(code),
    Columns:  promoColumns,
    Filters:  []store.Filter{store.Eq("code", code), store.Eq("active", true)},
  })
}

// RecordRedemption relies on the unique (user_id, promo_code_id) index; a
// second redemption surfaces as ErrDuplicateKey.
func (r *promoRepo) RecordRedemption(ctx context.Context, tx *gorm.DB, userID, promoCodeID uint) (*types.UserPromoCode, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  row := &types.UserPromoCode{UserID: userID, PromoCodeID: promoCodeID}
  return store.Create(ctx, transaction, r.kv, store.Query{}, row)
}
