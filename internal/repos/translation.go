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

var translationColumns = map[string]bool{
  "id": true, "message_key": true, "language_code": true, "text": true,
}

type TranslationRepo interface {
  Create(ctx context.Context, tx *gorm.DB, row *types.Translation) (*types.Translation, error)
  Get(ctx context.Context, tx *gorm.DB, messageKey, languageCode string) (*types.Translation, error)
  ListByLanguage(ctx context.Context, tx *gorm.DB, languageCode string, page, pageSize int) (*store.Paginated[types.Translation], error)
  Patch(ctx context.Context, tx *gorm.DB, id uint, updates map[string]any) (*types.Translation, error)
}

type translationRepo struct {
  db  *gorm.DB
  kv  cache.Cache
  log *logger.Logger
}

func NewTranslationRepo(db *gorm.DB, kv cache.Cache, baseLog *logger.Logger) TranslationRepo {
  repoLog := baseLog.With("repo", "TranslationRepo")
  return &translationRepo{db: db, kv: kv, log: repoLog}
}

func translationKey(messageKey, languageCode string) string {
  return fmt.Sprintf("translation:key:%s:lang:%s", messageKey, languageCode)
}
func translationListKey(languageCode string) string {
  return fmt.Sprintf("translations:lang:%s", languageCode)
}

func (r *translationRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Translation) (*types.Translation, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  created, err := store.Create(ctx, transaction, r.kv, store.Query{
    CacheKey: translationKey(row.MessageKey, row.LanguageCode),
  }, row)
  if err != nil {
    return nil, err
  }
  _ = r.kv.DeleteByPrefix(ctx, translationListKey(created.LanguageCode))
  return created, nil
}

func (r *translationRepo) Get(ctx context.Context, tx *gorm.DB, messageKey, languageCode string) (*types.Translation, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchOne[types.Translation](ctx, transaction, r.kv, store.Query{
    CacheKey: translationKey(messageKey, languageCode),
    Columns:  translationColumns,
    Filters: []store.Filter{
      store.Eq("message_key", messageKey),
      store.Eq("language_code", languageCode),
    },
  })
}

func (r *translationRepo) ListByLanguage(ctx context.Context, tx *gorm.DB, languageCode string, page, pageSize int) (*store.Paginated[types.Translation], error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchPage[types.Translation](ctx, transaction, r.kv, store.Query{
    CacheKey: translationListKey(languageCode),
    Columns:  translationColumns,
    Filters:  []store.Filter{store.Eq("language_code", languageCode)},
  }, page, pageSize)
}

func (r *translationRepo) Patch(ctx context.Context, tx *gorm.DB, id uint, updates map[string]any) (*types.Translation, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  updated, err := store.Patch[types.Translation](ctx, transaction, r.kv, store.Query{
    Columns: translationColumns,
    Filters: []store.Filter{store.Eq("id", id)},
  }, updates)
  if err != nil {
    return nil, err
  }
  _ = r.kv.Delete(ctx, translationKey(updated.MessageKey, updated.LanguageCode))
  _ = r.kv.DeleteByPrefix(ctx, translationListKey(updated.LanguageCode))
  return updated, nil
}
