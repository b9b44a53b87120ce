package store

import (
	"errors"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	perrors "github.com/lumira/lumira-backend/internal/pkg/errors"
)

type filterRecord struct {
	ID     uint   `gorm:"primaryKey;autoIncrement"`
	Name   string `gorm:"column:name"`
	Score  int    `gorm:"column:score"`
	Active bool   `gorm:"column:active"`
}

func (filterRecord) TableName() string { return "filter_records" }

var filterRecordColumns = map[string]bool{
	"id": true, "name": true, "score": true, "active": true,
}

func newFilterDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, dbErr := db.DB(); dbErr == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&filterRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	rows := []filterRecord{
		{Name: "alpha", Score: 10, Active: true},
		{Name: "beta", Score: 20, Active: true},
		{Name: "gamma", Score: 30, Active: false},
		{Name: "delta", Score: 40, Active: false},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	return db
}

func queryNames(t *testing.T, db *gorm.DB, filters []Filter) []string {
	t.Helper()
	scoped, err := ApplyFilters(db.Model(&filterRecord{}), filterRecordColumns, filters)
	if err != nil {
		t.Fatalf("ApplyFilters: %v", err)
	}
	var out []filterRecord
	if err := scoped.Order("id ASC").Find(&out).Error; err != nil {
		t.Fatalf("query: %v", err)
	}
	names := make([]string, 0, len(out))
	for _, r := range out {
		names = append(names, r.Name)
	}
	return names
}

func TestApplyFilters_Operators(t *testing.T) {
	db := newFilterDB(t)

	cases := []struct {
		name    string
		filters []Filter
		want    []string
	}{
		{"eq", []Filter{Eq("name", "alpha")}, []string{"alpha"}},
		{"ne", []Filter{Ne("name", "alpha")}, []string{"beta", "gamma", "delta"}},
		{"lt", []Filter{{Field: "score", Value: 20, Op: OpLt}}, []string{"alpha"}},
		{"le", []Filter{{Field: "score", Value: 20, Op: OpLe}}, []string{"alpha", "beta"}},
		{"gt", []Filter{{Field: "score", Value: 30, Op: OpGt}}, []string{"delta"}},
		{"ge", []Filter{{Field: "score", Value: 30, Op: OpGe}}, []string{"gamma", "delta"}},
		{"in", []Filter{In("name", []string{"alpha", "gamma"})}, []string{"alpha", "gamma"}},
		{"not_in", []Filter{NotIn("name", []string{"alpha", "gamma"})}, []string{"beta", "delta"}},
		{"like", []Filter{{Field: "name", Value: "%et%", Op: OpLike}}, []string{"beta"}},
		{"conjunction", []Filter{Eq("active", true), {Field: "score", Value: 15, Op: OpGt}}, []string{"beta"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := queryNames(t, db, tc.filters)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("expected %v got %v", tc.want, got)
				}
			}
		})
	}
}

// ILIKE only executes on Postgres, so the built SQL is checked without
// running it.
func TestApplyFilters_ILikeBuildsCaseInsensitiveMatch(t *testing.T) {
	db := newFilterDB(t)

	scoped, err := ApplyFilters(
		db.Session(&gorm.Session{DryRun: true}).Model(&filterRecord{}),
		filterRecordColumns,
		[]Filter{{Field: "name", Value: "%ALPHA%", Op: OpILike}},
	)
	if err != nil {
		t.Fatalf("ApplyFilters: %v", err)
	}

	var out []filterRecord
	stmt := scoped.Find(&out).Statement
	if !strings.Contains(stmt.SQL.String(), "name ILIKE ?") {
		t.Fatalf("expected an ILIKE clause, got %q", stmt.SQL.String())
	}
	if len(stmt.Vars) != 1 || stmt.Vars[0] != "%ALPHA%" {
		t.Fatalf("unexpected bind vars: %v", stmt.Vars)
	}
}

func TestApplyFilters_UnknownFieldIsInvalidFilter(t *testing.T) {
	db := newFilterDB(t)

	_, err := ApplyFilters(db.Model(&filterRecord{}), filterRecordColumns, []Filter{Eq("nope", 1)})
	if !errors.Is(err, perrors.ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestApplyFilters_UnknownOpIsInvalidFilter(t *testing.T) {
	db := newFilterDB(t)

	_, err := ApplyFilters(db.Model(&filterRecord{}), filterRecordColumns, []Filter{{Field: "name", Value: "x", Op: Op("between")}})
	if !errors.Is(err, perrors.ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestApplyFilters_MembershipNeedsList(t *testing.T) {
	db := newFilterDB(t)

	for _, op := range []Op{OpIn, OpNotIn} {
		_, err := ApplyFilters(db.Model(&filterRecord{}), filterRecordColumns, []Filter{{Field: "name", Value: "alpha", Op: op}})
		if !errors.Is(err, perrors.ErrInvalidFilterValue) {
			t.Fatalf("op %s: expected ErrInvalidFilterValue, got %v", op, err)
		}
	}
}
