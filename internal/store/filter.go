package store

import (
  "fmt"
  "reflect"
  "strings"

  "gorm.io/gorm"

  perrors "github.com/lumira/lumira-backend/internal/pkg/errors"
)

type Op string

const (
  OpEq    Op = "eq"
  OpNe    Op = "ne"
  OpLt    Op = "lt"
  OpGt    Op = "gt"
  OpLe    Op = "le"
  OpGe    Op = "ge"
  OpIn    Op = "in"
  OpNotIn Op = "not_in"
  OpLike  Op = "like"
  OpILike Op = "ilike"
)

// Filter is one conjunctive condition. Field must name a real column of the
// queried table; repos declare their column sets explicitly rather than
// reflecting over the schema.
type Filter struct {
  Field string `json:"field"`
  Value any    `json:"value"`
  Op    Op     `json:"op"`
}

func Eq(field string, value any) Filter    { return Filter{Field: field, Value: value, Op: OpEq} }
func Ne(field string, value any) Filter    { return Filter{Field: field, Value: value, Op: OpNe} }
func In(field string, value any) Filter    { return Filter{Field: field, Value: value, Op: OpIn} }
func NotIn(field string, value any) Filter { return Filter{Field: field, Value: value, Op: OpNotIn} }

var opSQL = map[Op]string{
  OpEq: "=",
  OpNe: "<>",
  OpLt: "<",
  OpGt: ">",
  OpLe: "<=",
  OpGe: ">=",
}

// ApplyFilters validates every filter against the column set and chains the
// resulting WHERE clauses. All filters AND together.
func ApplyFilters(tx *gorm.DB, columns map[string]bool, filters []Filter) (*gorm.DB, error) {
  for _, f := range filters {
    field := strings.TrimSpace(f.Field)
    if field == "" || !columns[field] {
      return nil, fmt.Errorf("%w: unknown field %q", perrors.ErrInvalidFilter, f.Field)
    }
    switch f.Op {
    case OpEq, OpNe, OpLt, OpGt, OpLe, OpGe:
      tx = tx.Where(fmt.Sprintf("%s %s ?", field, opSQL[f.Op]), f.Value)
    case OpIn, OpNotIn:
      if !isList(f.Value) {
        return nil, fmt.Errorf("%w: %s on %q requires a list", perrors.ErrInvalidFilterValue, f.Op, field)
      }
      if f.Op == OpIn {
        tx = tx.Where(fmt.Sprintf("%s IN ?", field), f.Value)
      } else {
        tx = tx.Where(fmt.Sprintf("%s NOT IN ?", field), f.Value)
      }
    case OpLike:
      tx = tx.Where(fmt.Sprintf("%s LIKE ?", field), f.Value)
    case OpILike:
      // ILIKE is Postgres syntax; other drivers reject it at query time.
      tx = tx.Where(fmt.Sprintf("%s ILIKE ?", field), f.Value)
    default:
      return nil, fmt.Errorf("%w: unsupported op %q", perrors.ErrInvalidFilter, f.Op)
    }
  }
  return tx, nil
}

func isList(v any) bool {
  if v == nil {
    return false
  }
  switch reflect.TypeOf(v).Kind() {
  case reflect.Slice, reflect.Array:
    return true
  default:
    return false
  }
}
