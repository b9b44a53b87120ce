package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lumira/lumira-backend/internal/cache"
	perrors "github.com/lumira/lumira-backend/internal/pkg/errors"
)

type facadeRecord struct {
	ID    uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name  string `gorm:"column:name;uniqueIndex" json:"name"`
	Score int    `gorm:"column:score" json:"score"`
}

func (facadeRecord) TableName() string { return "facade_records" }

var facadeRecordColumns = map[string]bool{
	"id": true, "name": true, "score": true,
}

// newFacadeDB returns a seeded sqlite handle plus a pointer to a counter
// incremented on every executed query, so tests can prove the store was not
// consulted on a cache hit.
func newFacadeDB(t *testing.T) (*gorm.DB, *int) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, dbErr := db.DB(); dbErr == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&facadeRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	queries := 0
	if err := db.Callback().Query().After("gorm:query").Register("test_count_queries", func(*gorm.DB) {
		queries++
	}); err != nil {
		t.Fatalf("register callback: %v", err)
	}
	return db, &queries
}

func TestFetchOne_CacheAside(t *testing.T) {
	db, queries := newFacadeDB(t)
	kv := cache.NewMemory()
	ctx := context.Background()

	if err := db.Create(&facadeRecord{Name: "alpha", Score: 1}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	q := Query{
		CacheKey: "facade_record:name:alpha",
		Columns:  facadeRecordColumns,
		Filters:  []Filter{Eq("name", "alpha")},
	}

	first, err := FetchOne[facadeRecord](ctx, db, kv, q)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if first.Name != "alpha" {
		t.Fatalf("unexpected row: %+v", first)
	}
	if *queries != 1 {
		t.Fatalf("expected 1 store query, got %d", *queries)
	}

	second, err := FetchOne[facadeRecord](ctx, db, kv, q)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if second.Name != "alpha" || second.ID != first.ID {
		t.Fatalf("cache returned different row: %+v", second)
	}
	if *queries != 1 {
		t.Fatalf("cache hit still queried the store: %d queries", *queries)
	}
}

func TestFetchOne_MissingRow(t *testing.T) {
	db, _ := newFacadeDB(t)
	kv := cache.NewMemory()
	ctx := context.Background()

	_, err := FetchOne[facadeRecord](ctx, db, kv, Query{
		Columns: facadeRecordColumns,
		Filters: []Filter{Eq("name", "ghost")},
	})
	if !errors.Is(err, perrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	row, err := FetchOne[facadeRecord](ctx, db, kv, Query{
		Columns:      facadeRecordColumns,
		Filters:      []Filter{Eq("name", "ghost")},
		AllowMissing: true,
	})
	if err != nil {
		t.Fatalf("allow_missing fetch: %v", err)
	}
	if row != nil {
		t.Fatalf("expected nil row, got %+v", row)
	}
}

func TestFetchPage_PagesSumToTotal(t *testing.T) {
	db, _ := newFacadeDB(t)
	kv := cache.NewMemory()
	ctx := context.Background()

	for i := 1; i <= 23; i++ {
		if err := db.Create(&facadeRecord{Name: fmt.Sprintf("row-%02d", i), Score: i}).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	q := Query{
		CacheKey: "facade_records",
		Columns:  facadeRecordColumns,
	}

	seen := 0
	var lastTotal int64 = -1
	for page := 1; ; page++ {
		result, err := FetchPage[facadeRecord](ctx, db, kv, q, page, 5)
		if err != nil {
			t.Fatalf("page %d: %v", page, err)
		}
		if result.Page != page || result.PageSize != 5 {
			t.Fatalf("page metadata wrong: %+v", result)
		}
		if lastTotal >= 0 && result.TotalRecords != lastTotal {
			t.Fatalf("total changed across pages: %d vs %d", result.TotalRecords, lastTotal)
		}
		lastTotal = result.TotalRecords
		seen += len(result.Data)
		if len(result.Data) == 0 {
			break
		}
	}
	if int64(seen) != lastTotal || seen != 23 {
		t.Fatalf("expected 23 rows across pages, got %d (total %d)", seen, lastTotal)
	}
}

func TestFetchPage_OrdersByIDDescending(t *testing.T) {
	db, _ := newFacadeDB(t)
	kv := cache.NewMemory()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := db.Create(&facadeRecord{Name: fmt.Sprintf("row-%d", i)}).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	result, err := FetchPage[facadeRecord](ctx, db, kv, Query{Columns: facadeRecordColumns}, 1, 10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if result.Data[0].Name != "row-3" || result.Data[2].Name != "row-1" {
		t.Fatalf("expected newest first, got %+v", result.Data)
	}
}

func TestFetchPage_RejectsNonPositivePages(t *testing.T) {
	db, _ := newFacadeDB(t)
	kv := cache.NewMemory()
	ctx := context.Background()

	for _, page := range []int{0, -1} {
		_, err := FetchPage[facadeRecord](ctx, db, kv, Query{Columns: facadeRecordColumns}, page, 10)
		if !errors.Is(err, perrors.ErrInvalidArgument) {
			t.Fatalf("page %d: expected ErrInvalidArgument, got %v", page, err)
		}
	}
	_, err := FetchPage[facadeRecord](ctx, db, kv, Query{Columns: facadeRecordColumns}, 1, 0)
	if !errors.Is(err, perrors.ErrInvalidArgument) {
		t.Fatalf("page_size 0: expected ErrInvalidArgument, got %v", err)
	}
}

func TestPatch_PartialUpdateAndCacheRefill(t *testing.T) {
	db, queries := newFacadeDB(t)
	kv := cache.NewMemory()
	ctx := context.Background()

	if err := db.Create(&facadeRecord{Name: "alpha", Score: 1}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	q := Query{
		CacheKey: "facade_record:id:1",
		Columns:  facadeRecordColumns,
		Filters:  []Filter{Eq("id", 1)},
	}

	updated, err := Patch[facadeRecord](ctx, db, kv, q, map[string]any{"score": 42})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if updated.Score != 42 || updated.Name != "alpha" {
		t.Fatalf("patch touched unexpected fields: %+v", updated)
	}

	// The refilled cache must serve the patched row without a store read.
	before := *queries
	again, err := FetchOne[facadeRecord](ctx, db, kv, q)
	if err != nil {
		t.Fatalf("fetch after patch: %v", err)
	}
	if again.Score != 42 {
		t.Fatalf("cache served stale row: %+v", again)
	}
	if *queries != before {
		t.Fatalf("fetch after patch hit the store")
	}
}

func TestPatch_MissingRowIsNotFound(t *testing.T) {
	db, _ := newFacadeDB(t)
	kv := cache.NewMemory()
	ctx := context.Background()

	_, err := Patch[facadeRecord](ctx, db, kv, Query{
		Columns: facadeRecordColumns,
		Filters: []Filter{Eq("id", 999)},
	}, map[string]any{"score": 1})
	if !errors.Is(err, perrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreate_DuplicateKeyConflict(t *testing.T) {
	db, _ := newFacadeDB(t)
	kv := cache.NewMemory()
	ctx := context.Background()

	if _, err := Create(ctx, db, kv, Query{}, &facadeRecord{Name: "alpha"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := Create(ctx, db, kv, Query{}, &facadeRecord{Name: "alpha"})
	if !errors.Is(err, perrors.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	var count int64
	if err := db.Model(&facadeRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("duplicate insert left %d rows", count)
	}
}

func TestCreate_PrimesCache(t *testing.T) {
	db, queries := newFacadeDB(t)
	kv := cache.NewMemory()
	ctx := context.Background()

	created, err := Create(ctx, db, kv, Query{CacheKey: "facade_record:name:alpha"}, &facadeRecord{Name: "alpha", Score: 7})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	row, err := FetchOne[facadeRecord](ctx, db, kv, Query{
		CacheKey: "facade_record:name:alpha",
		Columns:  facadeRecordColumns,
		Filters:  []Filter{Eq("name", "alpha")},
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if row.ID != created.ID || row.Score != 7 {
		t.Fatalf("unexpected row: %+v", row)
	}
	if *queries != 0 {
		t.Fatalf("fetch after create hit the store: %d queries", *queries)
	}
}
