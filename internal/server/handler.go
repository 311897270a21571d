package server

import (
	"errors"
	"net/http"

	"promptbot/internal/auth"
	"promptbot/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Handler 聚合所有 API handler，依赖注入 service 层。
type Handler struct {
	authz      *auth.Authorizer
	submit     *service.SubmissionService
	moderation *service.ModerationService
}

func NewHandler(authz *auth.Authorizer, submit *service.SubmissionService, moderation *service.ModerationService) *Handler {
	return &Handler{authz: authz, submit: submit, moderation: moderation}
}

// tokenOf 优先使用请求体中的 token，其次是 Authorization: Bearer 头。
func tokenOf(c *gin.Context, body string) string {
	if body != "" {
		return body
	}
	return auth.BearerToken(c)
}

// bind 解析 JSON 请求体，失败时返回 400。
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return false
	}
	return true
}

// fail 把业务错误映射为 HTTP 状态码；存储错误只返回不透明信息。
func fail(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "admin privilege required"})
	case errors.Is(err, service.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("op", op).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// AuthToken 返回 token 对应的记录，不存在时返回 null。
func (h *Handler) AuthToken(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if !bind(c, &req) {
		return
	}
	rec, err := h.authz.Lookup(c.Request.Context(), tokenOf(c, req.Token))
	if err != nil {
		fail(c, "auth token", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// SubmitPrompt 处理 prompt 提交。请求体中的身份字段会被忽略。
func (h *Handler) SubmitPrompt(c *gin.Context) {
	var req struct {
		Token    string `json:"token"`
		Prompt   string `json:"prompt"`
		Duration string `json:"duration"`
		Anon     bool   `json:"anon"`
	}
	if !bind(c, &req) {
		return
	}
	_, err := h.submit.Submit(c.Request.Context(), service.Submission{
		Token:     tokenOf(c, req.Token),
		Prompt:    req.Prompt,
		Duration:  req.Duration,
		Anonymous: req.Anon,
	})
	if err != nil {
		fail(c, "submit prompt", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// FetchPrompts 返回全部 prompt（仅管理员）。
func (h *Handler) FetchPrompts(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if !bind(c, &req) {
		return
	}
	prompts, err := h.moderation.List(c.Request.Context(), tokenOf(c, req.Token))
	if err != nil {
		fail(c, "fetch prompts", err)
		return
	}
	c.JSON(http.StatusOK, prompts)
}

// UpdatePromptsStatus 批量更新 posted 标记（仅管理员）。
func (h *Handler) UpdatePromptsStatus(c *gin.Context) {
	var req struct {
		Token    string   `json:"token"`
		Prompts  []string `json:"prompts"`
		Statuses []bool   `json:"statuses"`
	}
	if !bind(c, &req) {
		return
	}
	if err := h.moderation.UpdateStatus(c.Request.Context(), tokenOf(c, req.Token), req.Prompts, req.Statuses); err != nil {
		fail(c, "update prompts status", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PostPrompts 发布五条 prompt 并广播公告（仅管理员）。
func (h *Handler) PostPrompts(c *gin.Context) {
	var req struct {
		Token   string   `json:"token"`
		Prompts []string `json:"prompts"`
		Message string   `json:"message"`
	}
	if !bind(c, &req) {
		return
	}
	res, err := h.moderation.Publish(c.Request.Context(), tokenOf(c, req.Token), req.Message, req.Prompts)
	if err != nil {
		fail(c, "post prompts", err)
		return
	}
	if derr := res.DeliveryErr(); derr != nil {
		log.Warn().Err(derr).Msg("post prompts")
	}
	c.JSON(http.StatusOK, res)
}
