package repos

import (
  "context"
  "fmt"
  "time"
  "gorm.io/gorm"
  "github.com/lumira/lumira-backend/internal/cache"
  "github.com/lumira/lumira-backend/internal/logger"
  "github.com/lumira/lumira-backend/internal/store"
  "github.com/lumira/lumira-backend/internal/types"
)

var answerColumns = map[string]bool{
  "id": true, "user_id": true, "question_id": true, "answer": true,
  "score": true, "is_correct": true, "feedback": true, "created_at": true,
}

// Answers churn fast during a question stage, so their listings get a short
// lifetime instead of the default hour.
const answerTTL = 600 * time.Second

type AnswerRepo interface {
  Create(ctx context.Context, tx *gorm.DB, row *types.UserAnswer) (*types.UserAnswer, error)
  GetByUserAndQuestion(ctx context.Context, tx *gorm.DB, userID, questionID uint) (*types.UserAnswer, error)
  ListByUser(ctx context.Context, tx *gorm.DB, userID uint, page, pageSize int) (*store.Paginated[types.UserAnswer], error)
}

type answerRepo struct {
  db  *gorm.DB
  kv  cache.Cache
  log *logger.Logger
}

func NewAnswerRepo(db *gorm.DB, kv cache.Cache, baseLog *logger.Logger) AnswerRepo {
  repoLog := baseLog.With("repo", "AnswerRepo")
  return &answerRepo{db: db, kv: kv, log: repoLog}
}

func answerListKey(userID uint) string { return fmt.Sprintf("user_answers:user_id:%d", userID) }
func answerLatestKey(userID, questionID uint) string {
  return fmt.Sprintf("user_answer:user_id:%d:question_id:%d", userID, questionID)
}

func (r *answerRepo) Create(ctx context.Context, tx *gorm.DB, row *types.UserAnswer) (*types.UserAnswer, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  created, err := store.Create(ctx, transaction, r.kv, store.Query{
    CacheKey: answerLatestKey(row.UserID, row.QuestionID),
    TTL:      answerTTL,
  }, row)
  if err != nil {
    return nil, err
  }
  _ = r.kv.DeleteByPrefix(ctx, answerListKey(created.UserID)+":")
  return created, nil
}

func (r *answerRepo) GetByUserAndQuestion(ctx context.Context, tx *gorm.DB, userID, questionID uint) (*types.UserAnswer, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchOne[types.UserAnswer](ctx, transaction, r.kv, store.Query{
    CacheKey: answerLatestKey(userID, questionID),
    Columns:  answerColumns,
    Filters: []store.Filter{
      store.Eq("user_id", userID),
      store.Eq("question_id", questionID),
    },
    AllowMissing: true,
    TTL:          answerTTL,
  })
}

func (r *answerRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uint, page, pageSize int) (*store.Paginated[types.UserAnswer], error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return store.FetchPage[types.UserAnswer](ctx, transaction, r.kv, store.Query{
    CacheKey: answerListKey(userID),
    Columns:  answerColumns,
    Filters:  []store.Filter{store.Eq("user_id", userID)},
    TTL:      answerTTL,
  }, page, pageSize)
}
