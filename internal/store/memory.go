package store

import (
	"context"
	"sync"
	"time"

	"promptbot/internal/models"

	"github.com/google/uuid"
)

// Memory 是进程内的 TokenStore/PromptStore 实现，用于本地开发与测试。
type Memory struct {
	mu      sync.RWMutex
	tokens  map[string]models.Token // userID -> token
	prompts []models.Prompt
	nextID  uint
}

func NewMemory() *Memory {
	return &Memory{tokens: make(map[string]models.Token)}
}

// Tokens 返回 TokenStore 视图。
func (m *Memory) Tokens() TokenStore { return memTokens{m} }

// Prompts 返回 PromptStore 视图。
func (m *Memory) Prompts() PromptStore { return memPrompts{m} }

type memTokens struct{ m *Memory }

func (s memTokens) Upsert(_ context.Context, t *models.Token) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if prev, ok := s.m.tokens[t.UserID]; ok {
		t.ID = prev.ID
	} else {
		s.m.nextID++
		t.ID = s.m.nextID
	}
	s.m.tokens[t.UserID] = *t
	return nil
}

func (s memTokens) FindByToken(_ context.Context, token string) (*models.Token, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, t := range s.m.tokens {
		if t.Token == token {
			out := t
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

type memPrompts struct{ m *Memory }

func (s memPrompts) Create(_ context.Context, p *models.Prompt) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.m.prompts = append(s.m.prompts, *p)
	return nil
}

func (s memPrompts) List(_ context.Context) ([]models.Prompt, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := make([]models.Prompt, len(s.m.prompts))
	copy(out, s.m.prompts)
	return out, nil
}

func (s memPrompts) FindByIDs(_ context.Context, ids []string) ([]models.Prompt, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := make([]models.Prompt, 0, len(ids))
	for _, id := range ids {
		for _, p := range s.m.prompts {
			if p.ID == id {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

func (s memPrompts) SetPosted(_ context.Context, id string, posted bool) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for i := range s.m.prompts {
		if s.m.prompts[i].ID == id {
			s.m.prompts[i].Posted = posted
			return nil
		}
	}
	return nil
}
