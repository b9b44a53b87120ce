package types

// Stage is the learner's position in the course lifecycle and the
// education/question loop inside it.
type Stage string

const (
  StageNotGenerated    Stage = "not_generated"
  StageGenerating      Stage = "generating"
  StageGenerated       Stage = "generated"
  StageEducation       Stage = "education"
  StageQuestion        Stage = "question"
  StageAskQuestion     Stage = "ask_question"
  StageWaitingResponse Stage = "waiting_user_response"
  StageCompleted       Stage = "completed"
)

type ContentType string

const (
  ContentTypeText  ContentType = "text"
  ContentTypeImage ContentType = "image"
)

type QuestionType string

const (
  QuestionTypeOpen           QuestionType = "open"
  QuestionTypeMultipleChoice QuestionType = "multiple_choice"
)

type BalanceAction string

const (
  BalanceActionDeposit  BalanceAction = "deposit"
  BalanceActionWithdraw BalanceAction = "withdraw"
)

type DiscountType string

const (
  DiscountTypePercent DiscountType = "percent"
  DiscountTypeCourses DiscountType = "courses"
)
