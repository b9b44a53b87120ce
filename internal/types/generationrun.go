package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
)

const (
  RunStatusQueued    = "queued"
  RunStatusRunning   = "running"
  RunStatusSucceeded = "succeeded"
  RunStatusFailed    = "failed"
)

// CourseGenerationRun is one supervised generation attempt for a course.
// Workers claim queued rows, heartbeat while running, and stale rows get
// requeued until Attempts runs out.
type CourseGenerationRun struct {
  ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  UserID       uint           `gorm:"column:user_id;not null;index" json:"user_id"`
  CourseID     uint           `gorm:"column:course_id;not null;index" json:"course_id"`
  UserCourseID uint           `gorm:"column:user_course_id;not null;index" json:"user_course_id"`
  LanguageCode string         `gorm:"column:language_code;size:8;not null;default:'en'" json:"language_code"`
  Status       string         `gorm:"column:status;not null;index" json:"status"` // queued|running|succeeded|failed
  Attempts     int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
  Error        string         `gorm:"column:error" json:"error"`
  LastErrorAt  *time.Time     `gorm:"column:last_error_at" json:"last_error_at,omitempty"`
  LockedAt     *time.Time     `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
  HeartbeatAt  *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
  Metadata     datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`
  CreatedAt    time.Time      `gorm:"not null;autoCreateTime;index" json:"created_at"`
  UpdatedAt    time.Time      `gorm:"not null;autoUpdateTime;index" json:"updated_at"`
}

func (CourseGenerationRun) TableName() string { return "course_generation_run" }
