package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"promptbot/internal/auth"
	"promptbot/internal/metrics"
	"promptbot/internal/models"
	"promptbot/internal/store"
)

// MaxPromptLength 限制单条 prompt 的字符数。
const MaxPromptLength = 2000

// Submission 是网页表单提交的数据，不包含任何身份字段。
type Submission struct {
	Token     string
	Prompt    string
	Duration  string
	Anonymous bool
}

// SubmissionService 处理 prompt 提交。
type SubmissionService struct {
	authz   *auth.Authorizer
	prompts store.PromptStore
}

func NewSubmissionService(authz *auth.Authorizer, prompts store.PromptStore) *SubmissionService {
	return &SubmissionService{authz: authz, prompts: prompts}
}

// Submit 校验 token 后创建 Prompt。提交者身份只取自 token 记录。
func (s *SubmissionService) Submit(ctx context.Context, in Submission) (*models.Prompt, error) {
	id, err := authorize(ctx, s.authz, in.Token, false)
	if err != nil {
		return nil, err
	}
	body := strings.TrimSpace(in.Prompt)
	if body == "" {
		return nil, fmt.Errorf("%w: empty prompt", ErrInvalidRequest)
	}
	if utf8.RuneCountInString(body) > MaxPromptLength {
		return nil, fmt.Errorf("%w: prompt too long", ErrInvalidRequest)
	}
	p := &models.Prompt{
		UserID:    id.UserID,
		UserName:  id.UserName,
		Prompt:    body,
		Duration:  strings.TrimSpace(in.Duration),
		Anonymous: in.Anonymous,
		Posted:    false,
	}
	if err := s.prompts.Create(ctx, p); err != nil {
		return nil, storeErr(err)
	}
	metrics.PromptsSubmitted.Inc()
	return p, nil
}
