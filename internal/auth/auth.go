package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"promptbot/internal/models"
	"promptbot/internal/store"

	"github.com/gin-gonic/gin"
)

var (
	// ErrNoToken 表示未找到与 token 匹配的记录。
	ErrNoToken = errors.New("unknown token")
	// ErrNotAdmin 表示 token 有效但不具备管理员权限。
	ErrNotAdmin = errors.New("admin privilege required")
)

// DefaultTokenBytes 是随机字节数，hex 编码后长度翻倍。
const DefaultTokenBytes = 16

// GenerateToken 使用 crypto/rand 生成定长 hex token。
func GenerateToken(n int) (string, error) {
	if n <= 0 {
		n = DefaultTokenBytes
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Identity 是 token 解析出的用户身份。
type Identity struct {
	UserID   string
	UserName string
	Admin    bool
}

// Authorizer 每次请求都回查 TokenStore，不保存会话。
type Authorizer struct {
	tokens store.TokenStore
}

func NewAuthorizer(tokens store.TokenStore) *Authorizer {
	return &Authorizer{tokens: tokens}
}

// Authorize 解析 token；requireAdmin 为 true 时非管理员返回 ErrNotAdmin。
// 存储层错误原样返回，由调用方区分。
func (a *Authorizer) Authorize(ctx context.Context, token string, requireAdmin bool) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNoToken
	}
	rec, err := a.tokens.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoToken
		}
		return nil, err
	}
	id := &Identity{UserID: rec.UserID, UserName: rec.UserName, Admin: rec.Admin}
	if requireAdmin && !id.Admin {
		return id, ErrNotAdmin
	}
	return id, nil
}

// Lookup 返回 token 对应的原始记录，不存在时返回 nil。
func (a *Authorizer) Lookup(ctx context.Context, token string) (*models.Token, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	rec, err := a.tokens.FindByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// BearerToken 从 Authorization 头中取出 Bearer token，没有则返回空串。
func BearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[len("Bearer "):])
}
