package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"promptbot/internal/auth"
	"promptbot/internal/metrics"
	"promptbot/internal/models"
	"promptbot/internal/store"
)

// TokenIssuer 为聊天用户签发或重新签发 token。
type TokenIssuer struct {
	tokens     store.TokenStore
	tokenBytes int
}

func NewTokenIssuer(tokens store.TokenStore, tokenBytes int) *TokenIssuer {
	return &TokenIssuer{tokens: tokens, tokenBytes: tokenBytes}
}

// Issue 生成新 token 并替换该用户的旧记录。admin 只在签发时计算一次，
// 之后角色变化要等用户重新签发才生效。
func (s *TokenIssuer) Issue(ctx context.Context, userID, userName string, admin bool) (*models.Token, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidRequest)
	}
	tok, err := auth.GenerateToken(s.tokenBytes)
	if err != nil {
		return nil, err
	}
	rec := &models.Token{
		UserID:   userID,
		UserName: userName,
		Token:    tok,
		Date:     nil,
		Admin:    admin,
	}
	if err := s.tokens.Upsert(ctx, rec); err != nil {
		return nil, storeErr(err)
	}
	metrics.TokensIssued.WithLabelValues(strconv.FormatBool(admin)).Inc()
	return rec, nil
}

// authorize 把 auth 包的错误转换为业务错误。
func authorize(ctx context.Context, a *auth.Authorizer, token string, requireAdmin bool) (*auth.Identity, error) {
	id, err := a.Authorize(ctx, token, requireAdmin)
	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, auth.ErrNoToken):
		return nil, ErrUnauthenticated
	case errors.Is(err, auth.ErrNotAdmin):
		return nil, ErrForbidden
	default:
		return nil, storeErr(err)
	}
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
