package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"promptbot/internal/config"
	clog "promptbot/internal/log"
	"promptbot/internal/metrics"
	"promptbot/internal/mw"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// SetupRouter 统一初始化 Gin 中间件、API 路由与表单页面。limiter 为 nil 时不限速，
// 其生命周期由调用方负责。
func SetupRouter(cfg config.Config, h *Handler, limiter *mw.RL) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(clog.GinLogger())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.SecureHeaders())
	if limiter != nil {
		r.Use(limiter.Middleware())
	}
	r.Use(timeout(cfg.RequestTimeout))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group(cfg.APIBasePath)
	api.POST("/authToken", h.AuthToken)
	api.POST("/submitPrompt", h.SubmitPrompt)
	api.POST("/fetchPrompts", h.FetchPrompts)
	api.POST("/postPrompts", h.PostPrompts)
	api.POST("/updatePromptsStatus", h.UpdatePromptsStatus)

	r.GET("/", homepage(cfg.HomepageURL))
	r.NoRoute(pages(cfg))
	return r
}

// timeout 为每个请求的 context 设置超时，存储与聊天平台调用都会继承它。
func timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// homepage 代理 HOMEPAGE_URL 的内容，未配置时返回固定文本。
func homepage(url string) gin.HandlerFunc {
	client := &http.Client{Timeout: 10 * time.Second}
	return func(c *gin.Context) {
		if url == "" {
			c.String(http.StatusOK, "Hello world")
			return
		}
		req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, url, nil)
		if err != nil {
			c.Status(http.StatusBadGateway)
			return
		}
		resp, err := client.Do(req)
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("fetch homepage")
			c.Status(http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("read homepage")
			c.Status(http.StatusBadGateway)
			return
		}
		ct := resp.Header.Get("Content-Type")
		if ct == "" {
			ct = "text/html; charset=utf-8"
		}
		c.Data(http.StatusOK, ct, body)
	}
}

// pages 为两个表单路径返回各自的 index.html，其余 GET 请求按静态文件处理。
func pages(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Status(http.StatusNotFound)
			return
		}
		rel := strings.TrimPrefix(filepath.Clean("/"+c.Request.URL.Path), "/")
		first := strings.SplitN(rel, "/", 2)[0]
		if first != "" && (first == cfg.PromptFormPath || first == cfg.ManagePromptsPath) {
			if serveIfFile(c, filepath.Join(cfg.PublicDir, first, "index.html")) {
				return
			}
		}
		if rel != "" && serveIfFile(c, filepath.Join(cfg.PublicDir, rel)) {
			return
		}
		c.Status(http.StatusNotFound)
	}
}

func serveIfFile(c *gin.Context, path string) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return false
	}
	c.File(path)
	return true
}
