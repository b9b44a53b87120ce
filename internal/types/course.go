package types

import (
  "time"

  "gorm.io/datatypes"
)

type Course struct {
  ID               uint           `gorm:"primaryKey;autoIncrement" json:"id"`
  Title            string         `gorm:"column:title;size:512;not null" json:"title"`
  Description      string         `gorm:"column:description;type:text" json:"description"`
  Summary          string         `gorm:"column:summary;type:text" json:"summary"`
  LanguageCode     string         `gorm:"column:language_code;size:8;not null;default:'en'" json:"language_code"`
  Available        bool           `gorm:"column:available;not null;default:false" json:"available"`
  IsGenerated      bool           `gorm:"column:is_generated;not null;default:false" json:"is_generated"`
  IsPersonalized   bool           `gorm:"column:is_personalized;not null;default:false" json:"is_personalized"`
  OwnerID          *uint          `gorm:"column:owner_id;index" json:"owner_id,omitempty"`
  StartModuleID    *uint          `gorm:"column:start_module_id" json:"start_module_id,omitempty"`
  StartSubModuleID *uint          `gorm:"column:start_sub_module_id" json:"start_sub_module_id,omitempty"`
  DefaultPlan      datatypes.JSON `gorm:"column:default_plan;type:jsonb" json:"default_plan"`
  CreatedAt        time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (Course) TableName() string { return "courses" }

type CoursePatch struct {
  Title            *string         `json:"title,omitempty"`
  Description      *string         `json:"description,omitempty"`
  Summary          *string         `json:"summary,omitempty"`
  Available        *bool           `json:"available,omitempty"`
  IsGenerated      *bool           `json:"is_generated,omitempty"`
  StartModuleID    *uint           `json:"start_module_id,omitempty"`
  StartSubModuleID *uint           `json:"start_sub_module_id,omitempty"`
  DefaultPlan      *datatypes.JSON `json:"default_plan,omitempty"`
}

func (p CoursePatch) Updates() map[string]any {
  m := map[string]any{}
  if p.Title != nil {
    m["title"] = *p.Title
  }
  if p.Description != nil {
    m["description"] = *p.Description
  }
  if p.Summary != nil {
    m["summary"] = *p.Summary
  }
  if p.Available != nil {
    m["available"] = *p.Available
  }
  if p.IsGenerated != nil {
    m["is_generated"] = *p.IsGenerated
  }
  if p.StartModuleID != nil {
    m["start_module_id"] = *p.StartModuleID
  }
  if p.StartSubModuleID != nil {
    m["start_sub_module_id"] = *p.StartSubModuleID
  }
  if p.DefaultPlan != nil {
    m["default_plan"] = *p.DefaultPlan
  }
  return m
}

// Module is a top-level chapter of a course. OrderNumber is dense and
// starts at 1 within the course.
type Module struct {
  ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
  CourseID    uint   `gorm:"column:course_id;not null;index:idx_modules_course_order" json:"course_id"`
  Title       string `gorm:"column:title;size:512;not null" json:"title"`
  Description string `gorm:"column:description;type:text" json:"description"`
  OrderNumber int    `gorm:"column:order_number;not null;index:idx_modules_course_order" json:"order_number"`
}

func (Module) TableName() string { return "modules" }

type SubModule struct {
  ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
  ModuleID    uint   `gorm:"column:module_id;not null;index:idx_sub_modules_module_order" json:"module_id"`
  Title       string `gorm:"column:title;size:512;not null" json:"title"`
  Description string `gorm:"column:description;type:text" json:"description"`
  OrderNumber int    `gorm:"column:order_number;not null;index:idx_sub_modules_module_order" json:"order_number"`
}

func (SubModule) TableName() string { return "sub_modules" }

// ModuleContent is one teaching slot inside a sub-module. A generated slot
// has non-empty Content; ImageURL is set when the slot carries an
// illustration.
type ModuleContent struct {
  ID          uint        `gorm:"primaryKey;autoIncrement" json:"id"`
  SubModuleID uint        `gorm:"column:sub_module_id;not null;index:idx_module_contents_sub_module_order" json:"sub_module_id"`
  ContentType ContentType `gorm:"column:content_type;size:32;not null;default:'text'" json:"content_type"`
  Content     string      `gorm:"column:content;type:text" json:"content"`
  ImageURL    string      `gorm:"column:image_url;size:1024" json:"image_url"`
  OrderNumber int         `gorm:"column:order_number;not null;index:idx_module_contents_sub_module_order" json:"order_number"`
}

func (ModuleContent) TableName() string { return "module_contents" }

type ModuleContentPatch struct {
  ContentType *ContentType `json:"content_type,omitempty"`
  Content     *string      `json:"content,omitempty"`
  ImageURL    *string      `json:"image_url,omitempty"`
}

func (p ModuleContentPatch) Updates() map[string]any {
  m := map[string]any{}
  if p.ContentType != nil {
    m["content_type"] = *p.ContentType
  }
  if p.Content != nil {
    m["content"] = *p.Content
  }
  if p.ImageURL != nil {
    m["image_url"] = *p.ImageURL
  }
  return m
}

// Question belongs to a sub-module and is keyed to a content slot by
// OrderNumber. Options holds the multiple-choice variants as a JSON array;
// open questions leave it empty.
type Question struct {
  ID            uint           `gorm:"primaryKey;autoIncrement" json:"id"`
  SubModuleID   uint           `gorm:"column:sub_module_id;not null;index:idx_questions_sub_module_order" json:"sub_module_id"`
  QuestionType  QuestionType   `gorm:"column:question_type;size:32;not null" json:"question_type"`
  QuestionText  string         `gorm:"column:question_text;type:text;not null" json:"question_text"`
  Options       datatypes.JSON `gorm:"column:options;type:jsonb" json:"options"`
  CorrectAnswer string         `gorm:"column:correct_answer;type:text" json:"correct_answer"`
  Explanation   string         `gorm:"column:explanation;type:text" json:"explanation"`
  OrderNumber   int            `gorm:"column:order_number;not null;index:idx_questions_sub_module_order" json:"order_number"`
}

func (Question) TableName() string { return "questions" }
