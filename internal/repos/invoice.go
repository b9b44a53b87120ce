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

var invoiceColumns = map[string]bool{
  "id": true, "user_id": true, "paid_at": true,
}

type InvoiceRepo interface {
  Create(ctx context.Context, tx *gorm.DB, row *types.Invoice) (*types.Invoice, error)
  ListByUser(ctx context.Context, tx *gorm.DB, userID uint, page, pageSize int) (*store.Paginated[types.Invoice], error)
}

type invoiceRepo struct {
  db  *gorm.DB
  kv  cache.Cache
  log *logger.Logger
}

func NewInvoiceRepo(db *gorm.DB, kv cache.Cache, baseLog *logger.Logger) InvoiceRepo {
  repoLog := baseLog.With("repo", "InvoiceRepo")
  return &invoiceRepo{db: db, kv: kv, log: repoLog}
}

func invoiceListKey(userID uint) string { return fmt.Sprintf("invoices:user_id:%d", userID) }

func (r *invoiceRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Invoice) (*types.Invoice, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  created, err := store.Create(ctx, transaction, r.kv, store.Query{}, row)
  if err != nil {
    return nil, err
  }
  _ = r.kv.DeleteByPrefix(ctx, invoiceListKey(created.UserID)+":")
  return created, nil
}

func (r *invoiceRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uint, page, pageSize int) (*store.Paginated[types.Invoice], error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchPage[types.Invoice](ctx, transaction, r.kv, store.Query{
    CacheKey: invoiceListKey(userID),
    Columns:  invoiceColumns,
    Filters:  []store.Filter{store.Eq("user_id", userID)},
  }, page, pageSize)
}
