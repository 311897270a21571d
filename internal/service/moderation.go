package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"promptbot/internal/auth"
	"promptbot/internal/broadcast"
	"promptbot/internal/metrics"
	"promptbot/internal/models"
	"promptbot/internal/store"

	"github.com/rs/zerolog/log"
)

// BatchSize 是一次公告必须包含的 prompt 数量。
const BatchSize = 5

// Dispatcher 负责把公告发送到各频道。
type Dispatcher interface {
	Dispatch(ctx context.Context, message string, prompts []models.Prompt) []broadcast.Delivery
}

// ModerationService 封装管理员的审核与发布操作，所有操作都要求管理员 token。
type ModerationService struct {
	authz      *auth.Authorizer
	prompts    store.PromptStore
	dispatcher Dispatcher
}

func NewModerationService(authz *auth.Authorizer, prompts store.PromptStore, dispatcher Dispatcher) *ModerationService {
	return &ModerationService{authz: authz, prompts: prompts, dispatcher: dispatcher}
}

// List 按插入顺序返回全部 prompt。
func (s *ModerationService) List(ctx context.Context, token string) ([]models.Prompt, error) {
	if _, err := authorize(ctx, s.authz, token, true); err != nil {
		return nil, err
	}
	out, err := s.prompts.List(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	if out == nil {
		out = []models.Prompt{}
	}
	return out, nil
}

// UpdateStatus 逐条更新 posted 标记。ids 与 statuses 长度必须相等且非零。
// 更新不在同一事务内：某条失败不会回滚之前的更新，其余条目继续执行，
// 最终只返回一个汇总错误。
func (s *ModerationService) UpdateStatus(ctx context.Context, token string, ids []string, statuses []bool) error {
	if _, err := authorize(ctx, s.authz, token, true); err != nil {
		return err
	}
	if len(ids) == 0 || len(ids) != len(statuses) {
		return fmt.Errorf("%w: ids and statuses must be non-empty and of equal length", ErrInvalidRequest)
	}
	return s.applyStatus(ctx, ids, statuses)
}

func (s *ModerationService) applyStatus(ctx context.Context, ids []string, statuses []bool) error {
	failed := 0
	for i, id := range ids {
		if err := s.prompts.SetPosted(ctx, id, statuses[i]); err != nil {
			failed++
			log.Error().Err(err).Str("prompt_id", id).Bool("posted", statuses[i]).Msg("update prompt status")
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d status updates failed", ErrStoreUnavailable, failed, len(ids))
	}
	return nil
}

// PublishResult 是一次发布的结果。
type PublishResult struct {
	Prompts    []models.Prompt      `json:"prompts"`
	Deliveries []broadcast.Delivery `json:"deliveries"`
}

// DeliveryErr 在任一频道发送失败时返回 ErrDeliveryFailure。
func (r *PublishResult) DeliveryErr() error {
	var failed []string
	for _, d := range r.Deliveries {
		if !d.OK() {
			failed = append(failed, d.ChannelID)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: channels %s", ErrDeliveryFailure, strings.Join(failed, ","))
}

// Publish 发布恰好 BatchSize 条 prompt：先从存储重新读取，再发送公告，最后标记为已发布。
// 发送与标记不是原子的，部分频道发送失败时仍会标记。
func (s *ModerationService) Publish(ctx context.Context, token, message string, ids []string) (*PublishResult, error) {
	if _, err := authorize(ctx, s.authz, token, true); err != nil {
		return nil, err
	}
	if len(ids) != BatchSize {
		return nil, ErrInvalidBatchSize
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("%w: empty prompt id", ErrInvalidRequest)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate prompt id %s", ErrInvalidBatchSize, id)
		}
		seen[id] = struct{}{}
	}
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: missing message", ErrInvalidRequest)
	}

	prompts, err := s.prompts.FindByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr(err)
	}
	if len(prompts) != BatchSize {
		return nil, ErrPromptNotFound
	}

	deliveries := s.dispatcher.Dispatch(ctx, message, prompts)

	trues := make([]bool, len(ids))
	for i := range trues {
		trues[i] = true
	}
	if err := s.applyStatus(ctx, ids, trues); err != nil {
		return nil, err
	}
	metrics.PromptsPosted.Add(float64(len(ids)))
	return &PublishResult{Prompts: prompts, Deliveries: deliveries}, nil
}

// IsAuthError 判断错误是否属于鉴权失败。
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrForbidden)
}
