package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Token 是聊天用户在网页端使用的凭证，每个 UserID 仅保留一条。
type Token struct {
	ID       uint       `gorm:"primaryKey" json:"-"`
	UserID   string     `gorm:"uniqueIndex;size:64;not null" json:"userId"`
	UserName string     `gorm:"size:128" json:"userName"`
	Token    string     `gorm:"uniqueIndex;size:128;not null" json:"token"`
	Date     *time.Time `json:"date"`
	Admin    bool       `gorm:"not null;default:false" json:"admin"`
}

// Prompt 是用户提交的待审核内容，Posted 为 true 表示已发布。
type Prompt struct {
	ID        string    `gorm:"primaryKey;size:36" json:"_id"`
	UserID    string    `gorm:"index;size:64;not null" json:"userId"`
	UserName  string    `gorm:"size:128" json:"userName"`
	Prompt    string    `gorm:"type:text;not null" json:"prompt"`
	Duration  string    `gorm:"size:64" json:"duration"`
	Anonymous bool      `gorm:"not null;default:false" json:"anonymous"`
	Posted    bool      `gorm:"index;not null;default:false" json:"posted"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// BeforeCreate 在写入前分配 ID。
func (p *Prompt) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
