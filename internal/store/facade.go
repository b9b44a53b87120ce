package store

import (
  "context"
  "fmt"
  "time"

  "gorm.io/gorm"

  "github.com/lumira/lumira-backend/internal/cache"
  perrors "github.com/lumira/lumira-backend/internal/pkg/errors"
)

// DefaultTTL is the cache lifetime used when a Query does not set one.
const DefaultTTL = 3600 * time.Second

// Query describes one cached lookup. CacheKey follows the
// "<entity>:<field>:<value>" convention; an empty key skips the cache
// entirely. AllowMissing turns a no-row result into (nil, nil) instead of
// ErrNotFound.
type Query struct {
  CacheKey     string
  Columns      map[string]bool
  Filters      []Filter
  AllowMissing bool
  TTL          time.Duration
}

func (q Query) ttl() time.Duration {
  if q.TTL > 0 {
    return q.TTL
  }
  return DefaultTTL
}

// Paginated is the wire shape of a list page. TotalRecords counts every row
// matching the filters, not just this page.
type Paginated[T any] struct {
  TotalRecords int64 `json:"total_records"`
  Page         int   `json:"page"`
  PageSize     int   `json:"page_size"`
  Data         []T   `json:"data"`
}

// PageKey derives the cache key of one page from the list's base key.
func PageKey(base string, page, pageSize int) string {
  return fmt.Sprintf("%s:page:%d:size:%d", base, page, pageSize)
}

// FetchOne reads through the cache: hit returns the cached row untouched; a
// miss queries the store and fills the cache. Cache transport errors degrade
// to a store read rather than failing the call.
func FetchOne[T any](ctx context.Context, tx *gorm.DB, kv cache.Cache, q Query) (*T, error) {
  if q.CacheKey != "" && kv != nil {
    var cached T
    if ok, err := kv.Get(ctx, q.CacheKey, &cached); err == nil && ok {
      return &cached, nil
    }
  }

  scoped, err := ApplyFilters(tx.WithContext(ctx).Model(new(T)), q.Columns, q.Filters)
  if err != nil {
    return nil, err
  }

  var rows []T
  if err := scoped.Limit(1).Find(&rows).Error; err != nil {
    return nil, perrors.MapStoreError(err)
  }
  if len(rows) == 0 {
    if q.AllowMissing {
      return nil, nil
    }
    return nil, perrors.ErrNotFound
  }

  row := rows[0]
  if q.CacheKey != "" && kv != nil {
    _ = kv.Set(ctx, q.CacheKey, row, q.ttl())
  }
  return &row, nil
}

// FetchPage reads one page through the cache. Pages order by id descending
// so freshly created rows surface on page 1. TotalRecords is counted with
// the same filters as the page itself.
func FetchPage[T any](ctx context.Context, tx *gorm.DB, kv cache.Cache, q Query, page, pageSize int) (*Paginated[T], error) {
  if page <= 0 || pageSize <= 0 {
    return nil, fmt.Errorf("%w: page and page_size must be positive", perrors.ErrInvalidArgument)
  }

  key := ""
  if q.CacheKey != "" {
    key = PageKey(q.CacheKey, page, pageSize)
  }
  if key != "" && kv != nil {
    var cached Paginated[T]
    if ok, err := kv.Get(ctx, key, &cached); err == nil && ok {
      return &cached, nil
    }
  }

  scoped, err := ApplyFilters(tx.WithContext(ctx).Model(new(T)), q.Columns, q.Filters)
  if err != nil {
    return nil, err
  }
  // Session makes the scoped query reusable for both the count and the page.
  scoped = scoped.Session(&gorm.Session{})

  var total int64
  if err := scoped.Count(&total).Error; err != nil {
    return nil, perrors.MapStoreError(err)
  }

  rows := []T{}
  if err := scoped.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
    return nil, perrors.MapStoreError(err)
  }

  result := &Paginated[T]{
    TotalRecords: total,
    Page:         page,
    PageSize:     pageSize,
    Data:         rows,
  }
  if key != "" && kv != nil {
    _ = kv.Set(ctx, key, result, q.ttl())
  }
  return result, nil
}

// Patch applies a partial update to the rows matching the filters, then
// invalidates and refills the entity's cache key from the store so the next
// read sees the committed state. A patch that matches no row is ErrNotFound.
func Patch[T any](ctx context.Context, tx *gorm.DB, kv cache.Cache, q Query, updates map[string]any) (*T, error) {
  if len(updates) == 0 {
    return nil, fmt.Errorf("%w: empty update set", perrors.ErrInvalidArgument)
  }

  scoped, err := ApplyFilters(tx.WithContext(ctx).Model(new(T)), q.Columns, q.Filters)
  if err != nil {
    return nil, err
  }

  res := scoped.Updates(updates)
  if res.Error != nil {
    return nil, perrors.MapStoreError(res.Error)
  }
  if res.RowsAffected == 0 {
    if q.AllowMissing {
      return nil, nil
    }
    return nil, perrors.ErrNotFound
  }

  if q.CacheKey != "" && kv != nil {
    _ = kv.Delete(ctx, q.CacheKey)
  }

  refresh := q
  refresh.AllowMissing = false
  return FetchOne[T](ctx, tx, kv, refresh)
}

// Create inserts the record and, when the Query carries a key, primes the
// cache with the stored row.
func Create[T any](ctx context.Context, tx *gorm.DB, kv cache.Cache, q Query, record *T) (*T, error) {
  if record == nil {
    return nil, fmt.Errorf("%w: nil record", perrors.ErrInvalidArgument)
  }
  if err := tx.WithContext(ctx).Create(record).Error; err != nil {
    return nil, perrors.MapStoreError(err)
  }
  if q.CacheKey != "" && kv != nil {
    _ = kv.Set(ctx, q.CacheKey, *record, q.ttl())
  }
  return record, nil
}

// Delete removes matching rows and drops the entity's cache key.
func Delete[T any](ctx context.Context, tx *gorm.DB, kv cache.Cache, q Query) error {
  scoped, err := ApplyFilters(tx.WithContext(ctx).Model(new(T)), q.Columns, q.Filters)
  if err != nil {
    return err
  }
  res := scoped.Delete(new(T))
  if res.Error != nil {
    return perrors.MapStoreError(res.Error)
  }
  if res.RowsAffected == 0 && !q.AllowMissing {
    return perrors.ErrNotFound
  }
  if q.CacheKey != "" && kv != nil {
    _ = kv.Delete(ctx, q.CacheKey)
  }
  return nil
}
