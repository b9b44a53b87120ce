package types

import (
  "time"

  "gorm.io/datatypes"
)

// UserCourse is the per-user enrollment cursor. CurrentModuleID /
// CurrentSubModuleID / CurrentOrderNumber together with Stage encode the
// user's position in the course walk.
type UserCourse struct {
  ID                uint           `gorm:"primaryKey;autoIncrement" json:"id"`
  UserID            uint           `gorm:"column:user_id;not null;index:idx_user_courses_user_course" json:"user_id"`
  CourseID          uint           `gorm:"column:course_id;not null;index:idx_user_courses_user_course" json:"course_id"`
  Stage             Stage          `gorm:"column:stage;size:32;not null;default:'not_generated'" json:"stage"`
  Active            bool           `gorm:"column:active;not null;default:true" json:"active"`
  Archived          bool           `gorm:"column:archived;not null;default:false" json:"archived"`
  Finished          bool           `gorm:"column:finished;not null;default:false" json:"finished"`
  Paused            bool           `gorm:"column:paused;not null;default:false" json:"paused"`
  CurrentModuleID   *uint          `gorm:"column:current_module_id" json:"current_module_id,omitempty"`
  CurrentSubModuleID *uint         `gorm:"column:current_sub_module_id" json:"current_sub_module_id,omitempty"`
  CurrentOrderNumber int           `gorm:"column:current_order_number;not null;default:0" json:"current_order_number"`
  Plan              datatypes.JSON `gorm:"column:plan;type:jsonb" json:"plan"`
  PromptTokens      int            `gorm:"column:prompt_tokens;not null;default:0" json:"prompt_tokens"`
  CompletionTokens  int            `gorm:"column:completion_tokens;not null;default:0" json:"completion_tokens"`
  SpentAmount       float64        `gorm:"column:spent_amount;not null;default:0" json:"spent_amount"`
  UsageCount        int            `gorm:"column:usage_count;not null;default:0" json:"usage_count"`
  Rating            *int           `gorm:"column:rating" json:"rating,omitempty"`
  CreatedAt         time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (UserCourse) TableName() string { return "user_courses" }

type UserCoursePatch struct {
  Stage              *Stage          `json:"stage,omitempty"`
  Active             *bool           `json:"active,omitempty"`
  Archived           *bool           `json:"archived,omitempty"`
  Finished           *bool           `json:"finished,omitempty"`
  Paused             *bool           `json:"paused,omitempty"`
  CurrentModuleID    *uint           `json:"current_module_id,omitempty"`
  CurrentSubModuleID *uint           `json:"current_sub_module_id,omitempty"`
  CurrentOrderNumber *int            `json:"current_order_number,omitempty"`
  Plan               *datatypes.JSON `json:"plan,omitempty"`
  PromptTokens       *int            `json:"prompt_tokens,omitempty"`
  CompletionTokens   *int            `json:"completion_tokens,omitempty"`
  SpentAmount        *float64        `json:"spent_amount,omitempty"`
  UsageCount         *int            `json:"usage_count,omitempty"`
  Rating             *int            `json:"rating,omitempty"`
}

func (p UserCoursePatch) Updates() map[string]any {
  m := map[string]any{}
  if p.Stage != nil {
    m["stage"] = *p.Stage
  }
  if p.Active != nil {
    m["active"] = *p.Active
  }
  if p.Archived != nil {
    m["archived"] = *p.Archived
  }
  if p.Finished != nil {
    m["finished"] = *p.Finished
  }
  if p.Paused != nil {
    m["paused"] = *p.Paused
  }
  if p.CurrentModuleID != nil {
    m["current_module_id"] = *p.CurrentModuleID
  }
  if p.CurrentSubModuleID != nil {
    m["current_sub_module_id"] = *p.CurrentSubModuleID
  }
  if p.CurrentOrderNumber != nil {
    m["current_order_number"] = *p.CurrentOrderNumber
  }
  if p.Plan != nil {
    m["plan"] = *p.Plan
  }
  if p.PromptTokens != nil {
    m["prompt_tokens"] = *p.PromptTokens
  }
  if p.CompletionTokens != nil {
    m["completion_tokens"] = *p.CompletionTokens
  }
  if p.SpentAmount != nil {
    m["spent_amount"] = *p.SpentAmount
  }
  if p.UsageCount != nil {
    m["usage_count"] = *p.UsageCount
  }
  if p.Rating != nil {
    m["rating"] = *p.Rating
  }
  return m
}

// UserAnswer records a single graded reply to a question. Score is on a
// 1..5 scale; IsCorrect is derived from it for quick checks.
type UserAnswer struct {
  ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
  UserID     uint      `gorm:"column:user_id;not null;index:idx_user_answers_user_question" json:"user_id"`
  QuestionID uint      `gorm:"column:question_id;not null;index:idx_user_answers_user_question" json:"question_id"`
  Answer     string    `gorm:"column:answer;type:text;not null" json:"answer"`
  Score      int       `gorm:"column:score;not null;default:0" json:"score"`
  IsCorrect  bool      `gorm:"column:is_correct;not null;default:false" json:"is_correct"`
  Feedback   string    `gorm:"column:feedback;type:text" json:"feedback"`
  CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (UserAnswer) TableName() string { return "user_answers" }
