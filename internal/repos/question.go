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

var questionColumns = map[string]bool{
  "id": true, "sub_module_id": true, "question_type": true, "question_text": true,
  "options": true, "correct_answer": true, "explanation": true, "order_number": true,
}

type QuestionRepo interface {
  CreateBatch(ctx context.Context, tx *gorm.DB, rows []*types.Question) ([]*types.Question, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Question, error)
  GetBySubModuleAndOrder(ctx context.Context, tx *gorm.DB, subModuleID uint, orderNumber int) (*types.Question, error)
  ListBySubModule(ctx context.Context, tx *gorm.DB, subModuleID uint) ([]types.Question, error)
  CountBySubModule(ctx context.Context, tx *gorm.DB, subModuleID uint) (int64, error)
  DeleteBySubModule(ctx context.Context, tx *gorm.DB, subModuleID uint) error
}

type questionRepo struct {
  db  *gorm.DB
  kv  cache.Cache
  log *logger.Logger
}

func NewQuestionRepo(db *gorm.DB, kv cache.Cache, baseLog *logger.Logger) QuestionRepo {
  repoLog := baseLog.With("repo", "QuestionRepo")
  return &questionRepo{db: db, kv: kv, log: repoLog}
}

func questionKey(id uint) string { return fmt.Sprintf("question:id:%d", id) }
func questionOrderKey(subModuleID uint, order int) string {
  return fmt.Sprintf("question:sub_module_id:%d:order:%d", subModuleID, order)
}

func (r *questionRepo) CreateBatch(ctx context.Context, tx *gorm.DB, rows []*types.Question) ([]*types.Question, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(rows) == 0 {
    return []*types.Question{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
    return nil, err
  }
  return rows, nil
}

func (r *questionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Question, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchOne[types.Question](ctx, transaction, r.kv, store.Query{
    CacheKey: questionKey(id),
    Columns:  questionColumns,
    Filters:  []store.Filter{store.Eq("id", id)},
  })
}

func (r *questionRepo) GetBySubModuleAndOrder(ctx context.Context, tx *gorm.DB, subModuleID uint, orderNumber int) (*types.Question, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchOne[types.Question](ctx, transaction, r.kv, store.Query{
    CacheKey:     questionOrderKey(subModuleID, orderNumber),
    Columns:      questionColumns,
    Filters:      []store.Filter{store.Eq("sub_module_id", subModuleID), store.Eq("order_number", orderNumber)},
    AllowMissing: true,
  })
}

func (r *questionRepo) ListBySubModule(ctx context.Context, tx *gorm.DB, subModuleID uint) ([]types.Question, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []types.Question
  if err := transaction.WithContext(ctx).
    Where("sub_module_id = ?", subModuleID).
    Order("order_number ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *questionRepo) CountBySubModule(ctx context.Context, tx *gorm.DB, subModuleID uint) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var count int64
  if err := transaction.WithContext(ctx).
    Model(&types.Question{}).
    Where("sub_module_id = ?", subModuleID).
    Count(&count).Error; err != nil {
    return 0, err
  }
  return count, nil
}

// DeleteBySubModule removes every question of the sub-module together with
// its cached copies. Generation uses it to clear a half-written attempt
// before writing a fresh set.
func (r *questionRepo) DeleteBySubModule(ctx context.Context, tx *gorm.DB, subModuleID uint) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  existing, err := r.ListBySubModule(ctx, tx, subModuleID)
  if err != nil {
    return err
  }
  if len(existing) == 0 {
    return nil
  }

  if err := transaction.WithContext(ctx).
    Where("sub_module_id = ?", subModuleID).
    Delete(&types.Question{}).Error; err != nil {
    return err
  }

  keys := make([]string, 0, len(existing))
  for _, q := range existing {
    keys = append(keys, questionKey(q.ID))
  }
  if err := r.kv.Delete(ctx, keys...); err != nil {
    r.log.Warn("failed to drop question keys", "sub_module_id", subModuleID, "error", err)
  }
  if err := r.kv.DeleteByPrefix(ctx, fmt.Sprintf("question:sub_module_id:%d:", subModuleID)); err != nil {
    r.log.Warn("failed to drop question order keys", "sub_module_id", subModuleID, "error", err)
  }
  return nil
}
