package store

import (
	"context"
	"errors"

	"promptbot/internal/models"
)

// ErrNotFound 表示记录不存在。
var ErrNotFound = errors.New("record not found")

// TokenStore 保存每个聊天用户唯一的一条 Token 记录。
type TokenStore interface {
	// Upsert 以 UserID 为键替换或创建记录，旧 token 随即失效。
	Upsert(ctx context.Context, t *models.Token) error
	// FindByToken 按 token 值查找，不存在时返回 ErrNotFound。
	FindByToken(ctx context.Context, token string) (*models.Token, error)
}

// PromptStore 保存提交的 Prompt 记录。
type PromptStore interface {
	Create(ctx context.Context, p *models.Prompt) error
	// List 按插入顺序返回全部记录。
	List(ctx context.Context) ([]models.Prompt, error)
	// FindByIDs 按 ids 的顺序返回找到的记录，缺失的 id 被跳过。
	FindByIDs(ctx context.Context, ids []string) ([]models.Prompt, error)
	// SetPosted 更新单条记录的 posted 标记，id 不存在时不报错。
	SetPosted(ctx context.Context, id string, posted bool) error
}
