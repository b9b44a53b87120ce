package types

import "time"

// GPTModel holds per-model pricing in dollars per token. SpentAmount math in
// the generation pipeline multiplies these against reported usage.
type GPTModel struct {
  ID          uint    `gorm:"primaryKey;autoIncrement" json:"id"`
  Name        string  `gorm:"column:name;size:128;uniqueIndex;not null" json:"name"`
  InputPrice  float64 `gorm:"column:input_price;not null;default:0" json:"input_price"`
  OutputPrice float64 `gorm:"column:output_price;not null;default:0" json:"output_price"`
  Active      bool    `gorm:"column:active;not null;default:true" json:"active"`
}

func (GPTModel) TableName() string { return "gpt_models" }

// Prompt is a named template. Text may contain {placeholder} slots filled at
// call time.
type Prompt struct {
  ID     uint   `gorm:"primaryKey;autoIncrement" json:"id"`
  Name   string `gorm:"column:name;size:128;uniqueIndex;not null" json:"name"`
  Text   string `gorm:"column:text;type:text;not null" json:"text"`
  Active bool   `gorm:"column:active;not null;default:true" json:"active"`
}

func (Prompt) TableName() string { return "prompts" }

type Translation struct {
  ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
  MessageKey   string `gorm:"column:message_key;size:255;not null;uniqueIndex:idx_translations_key_lang" json:"message_key"`
  LanguageCode string `gorm:"column:language_code;size:8;not null;uniqueIndex:idx_translations_key_lang" json:"language_code"`
  Text         string `gorm:"column:text;type:text;not null" json:"text"`
}

func (Translation) TableName() string { return "translations" }

type PromoCode struct {
  ID           uint         `gorm:"primaryKey;autoIncrement" json:"id"`
  Code         string       `gorm:"column:code;size:64;uniqueIndex;not null" json:"code"`
  DiscountType DiscountType `gorm:"column:discount_type;size:32;not null" json:"discount_type"`
  Amount       int          `gorm:"column:amount;not null;default:0" json:"amount"`
  Active       bool         `gorm:"column:active;not null;default:true" json:"active"`
  ExpiresAt    *time.Time   `gorm:"column:expires_at" json:"expires_at,omitempty"`
}

func (PromoCode) TableName() string { return "promo_codes" }

// UserPromoCode marks a redemption; the unique index keeps a code
// single-use per user.
type UserPromoCode struct {
  ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
  UserID      uint      `gorm:"column:user_id;not null;uniqueIndex:idx_user_promo_codes_user_code" json:"user_id"`
  PromoCodeID uint      `gorm:"column:promo_code_id;not null;uniqueIndex:idx_user_promo_codes_user_code" json:"promo_code_id"`
  UsedAt      time.Time `gorm:"column:used_at;not null;autoCreateTime" json:"used_at"`
}

func (UserPromoCode) TableName() string { return "user_promo_codes" }
