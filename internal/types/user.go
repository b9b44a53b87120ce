package types

import (
  "time"

  "gorm.io/datatypes"
)

type User struct {
  ID         uint           `gorm:"primaryKey;autoIncrement" json:"id"`
  ExternalID int64          `gorm:"column:external_id;uniqueIndex;not null" json:"external_id"`
  Username   string         `gorm:"column:username;size:255" json:"username"`
  ChatID     int64          `gorm:"column:chat_id;not null" json:"chat_id"`
  Active     bool           `gorm:"column:active;not null;default:true" json:"active"`
  Blocked    bool           `gorm:"column:blocked;not null;default:false" json:"blocked"`
  CreatedAt  time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (User) TableName() string { return "users" }

// UserPatch carries nullable slots for partial updates; nil means "leave unchanged".
type UserPatch struct {
  Username *string `json:"username,omitempty"`
  Active   *bool   `json:"active,omitempty"`
  Blocked  *bool   `json:"blocked,omitempty"`
  ChatID   *int64  `json:"chat_id,omitempty"`
}

func (p UserPatch) Updates() map[string]any {
  m := map[string]any{}
  if p.Username != nil {
    m["username"] = *p.Username
  }
  if p.Active != nil {
    m["active"] = *p.Active
  }
  if p.Blocked != nil {
    m["blocked"] = *p.Blocked
  }
  if p.ChatID != nil {
    m["chat_id"] = *p.ChatID
  }
  return m
}

type UserBalance struct {
  ID          uint `gorm:"primaryKey;autoIncrement" json:"id"`
  UserID      uint `gorm:"column:user_id;uniqueIndex;not null" json:"user_id"`
  CountCourse int  `gorm:"column:count_course;not null;default:0" json:"count_course"`
}

func (UserBalance) TableName() string { return "user_balances" }

type Invoice struct {
  ID          uint           `gorm:"primaryKey;autoIncrement" json:"id"`
  UserID      uint           `gorm:"column:user_id;not null;index" json:"user_id"`
  PaidAt      time.Time      `gorm:"column:paid_at;not null;autoCreateTime" json:"paid_at"`
  PaymentInfo datatypes.JSON `gorm:"column:payment_info;type:jsonb" json:"payment_info"`
}

func (Invoice) TableName() string { return "invoices" }
