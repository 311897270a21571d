package store

import (
	"context"
	"errors"

	"promptbot/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTokens 是基于 gorm 的 TokenStore 实现。
type GormTokens struct {
	db *gorm.DB
}

func NewGormTokens(db *gorm.DB) *GormTokens {
	return &GormTokens{db: db}
}

// Upsert 使用 INSERT ... ON CONFLICT (user_id) DO UPDATE，一条语句完成替换，
// 并发重新签发同一用户时最终只剩一个有效 token。
func (s *GormTokens) Upsert(ctx context.Context, t *models.Token) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_name", "token", "date", "admin"}),
	}).Create(t).Error
}

func (s *GormTokens) FindByToken(ctx context.Context, token string) (*models.Token, error) {
	var t models.Token
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// GormPrompts 是基于 gorm 的 PromptStore 实现。
type GormPrompts struct {
	db *gorm.DB
}

func NewGormPrompts(db *gorm.DB) *GormPrompts {
	return &GormPrompts{db: db}
}

func (s *GormPrompts) Create(ctx context.Context, p *models.Prompt) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *GormPrompts) List(ctx context.Context) ([]models.Prompt, error) {
	var out []models.Prompt
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormPrompts) FindByIDs(ctx context.Context, ids []string) ([]models.Prompt, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []models.Prompt
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.Prompt, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]models.Prompt, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *GormPrompts) SetPosted(ctx context.Context, id string, posted bool) error {
	return s.db.WithContext(ctx).Model(&models.Prompt{}).Where("id = ?", id).Update("posted", posted).Error
}
