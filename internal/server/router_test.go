package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"promptbot/internal/auth"
	"promptbot/internal/broadcast"
	"promptbot/internal/config"
	"promptbot/internal/models"
	"promptbot/internal/mw"
	"promptbot/internal/service"
	"promptbot/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type captureSender struct {
	mu   sync.Mutex
	sent map[string]string
}

func (s *captureSender) SendChannel(_ context.Context, channelID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[channelID] = content
	return nil
}

type testEnv struct {
	engine    *gin.Engine
	mem       *store.Memory
	sender    *captureSender
	adminTok  string
	memberTok string
}

func newTestEnv(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	mem := store.NewMemory()
	require.NoError(t, mem.Tokens().Upsert(ctx, &models.Token{UserID: "u1", UserName: "admin#0001", Token: "ab12cd", Admin: true}))
	require.NoError(t, mem.Tokens().Upsert(ctx, &models.Token{UserID: "u2", UserName: "member#0002", Token: "ef34gh"}))

	sender := &captureSender{sent: make(map[string]string)}
	disp := broadcast.NewDispatcher(sender, "archive", []string{"p1", "p2", "p3", "p4", "p5"}, time.UTC, time.Second)
	authz := auth.NewAuthorizer(mem.Tokens())
	h := NewHandler(authz,
		service.NewSubmissionService(authz, mem.Prompts()),
		service.NewModerationService(authz, mem.Prompts(), disp),
	)
	limiter := mw.NewRateLimiter(rate.Inf, 1, time.Minute)
	t.Cleanup(limiter.Stop)

	return &testEnv{
		engine:    SetupRouter(cfg, h, limiter),
		mem:       mem,
		sender:    sender,
		adminTok:  "ab12cd",
		memberTok: "ef34gh",
	}
}

func defaultCfg() config.Config {
	return config.Config{
		APIBasePath:       "/api",
		PromptFormPath:    "promptForm",
		ManagePromptsPath: "managePrompts",
		PublicDir:         "./public",
		RequestTimeout:    5 * time.Second,
	}
}

func (e *testEnv) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *testEnv) submitN(t *testing.T, n int) []string {
	t.Helper()
	for i := 0; i < n; i++ {
		w := e.post(t, "/api/submitPrompt", gin.H{"token": e.memberTok, "prompt": "prompt", "duration": "1d"})
		require.Equal(t, http.StatusOK, w.Code)
	}
	all, err := e.mem.Prompts().List(context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, p := range all {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t, defaultCfg())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAuthToken(t *testing.T) {
	e := newTestEnv(t, defaultCfg())

	w := e.post(t, "/api/authToken", gin.H{"token": "ab12cd"})
	require.Equal(t, http.StatusOK, w.Code)
	var rec models.Token
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "u1", rec.UserID)
	assert.True(t, rec.Admin)

	w = e.post(t, "/api/authToken", gin.H{"token": "bad"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", strings.TrimSpace(w.Body.String()))

	w = e.post(t, "/api/authToken", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitPrompt_IgnoresSpoofedIdentity(t *testing.T) {
	e := newTestEnv(t, defaultCfg())

	w := e.post(t, "/api/submitPrompt", gin.H{
		"token":    "ab12cd",
		"prompt":   "What is X?",
		"duration": "1d",
		"anon":     true,
		"userId":   "spoofed",
		"userName": "spoofed#9999",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	all, err := e.mem.Prompts().List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "u1", all[0].UserID)
	assert.Equal(t, "admin#0001", all[0].UserName)
	assert.True(t, all[0].Anonymous)
	assert.False(t, all[0].Posted)
}

func TestSubmitPrompt_Errors(t *testing.T) {
	e := newTestEnv(t, defaultCfg())

	assert.Equal(t, http.StatusUnauthorized, e.post(t, "/api/submitPrompt", gin.H{"token": "bad", "prompt": "x"}).Code)
	assert.Equal(t, http.StatusBadRequest, e.post(t, "/api/submitPrompt", gin.H{"token": e.memberTok, "prompt": ""}).Code)
	assert.Equal(t, http.StatusBadRequest, e.post(t, "/api/submitPrompt", nil).Code)
}

func TestSubmitPrompt_BearerHeader(t *testing.T) {
	e := newTestEnv(t, defaultCfg())

	req := httptest.NewRequest(http.MethodPost, "/api/submitPrompt", strings.NewReader(`{"prompt":"via header","duration":"2h"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.memberTok)
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFetchPrompts(t *testing.T) {
	e := newTestEnv(t, defaultCfg())
	ids := e.submitN(t, 2)

	w := e.post(t, "/api/fetchPrompts", gin.H{"token": "ab12cd"})
	require.Equal(t, http.StatusOK, w.Code)
	var got []models.Prompt
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, ids[0], got[0].ID)

	assert.Equal(t, http.StatusUnauthorized, e.post(t, "/api/fetchPrompts", gin.H{"token": "bad"}).Code)
	assert.Equal(t, http.StatusForbidden, e.post(t, "/api/fetchPrompts", gin.H{"token": e.memberTok}).Code)
}

func TestUpdatePromptsStatus(t *testing.T) {
	e := newTestEnv(t, defaultCfg())
	ids := e.submitN(t, 2)

	w := e.post(t, "/api/updatePromptsStatus", gin.H{"token": e.adminTok, "prompts": ids, "statuses": []bool{true}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.post(t, "/api/updatePromptsStatus", gin.H{"token": e.memberTok, "prompts": ids, "statuses": []bool{true, true}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.post(t, "/api/updatePromptsStatus", gin.H{"token": e.adminTok, "prompts": ids, "statuses": []bool{true, false}})
	require.Equal(t, http.StatusOK, w.Code)

	all, err := e.mem.Prompts().List(context.Background())
	require.NoError(t, err)
	assert.True(t, all[0].Posted)
	assert.False(t, all[1].Posted)
}

func TestPostPrompts(t *testing.T) {
	e := newTestEnv(t, defaultCfg())
	ids := e.submitN(t, 6)
	batch := ids[:5]

	w := e.post(t, "/api/postPrompts", gin.H{"token": e.adminTok, "prompts": ids[:4], "message": "Header"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, e.sender.sent)

	w = e.post(t, "/api/postPrompts", gin.H{"token": e.adminTok, "prompts": batch, "message": "Header"})
	require.Equal(t, http.StatusOK, w.Code)

	var res service.PublishResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Len(t, res.Prompts, 5)
	assert.Len(t, res.Deliveries, 6)

	require.Contains(t, e.sender.sent, "archive")
	assert.Contains(t, e.sender.sent["archive"], "Header\n**Prompt 1 (Submitted by <@u2>):** prompt [1d]")
	for _, ch := range []string{"p1", "p2", "p3", "p4", "p5"} {
		assert.True(t, strings.HasSuffix(e.sender.sent[ch], "**\n\nHeader"), ch)
		assert.NotContains(t, e.sender.sent[ch], "Prompt 1")
	}

	all, err := e.mem.Prompts().List(context.Background())
	require.NoError(t, err)
	for i, p := range all {
		assert.Equal(t, i < 5, p.Posted, p.ID)
	}
}

func TestPages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "promptForm"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "promptForm", "index.html"), []byte("form page"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "style.css"), []byte("body{}"), 0o644))

	cfg := defaultCfg()
	cfg.PublicDir = dir
	e := newTestEnv(t, cfg)

	tests := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{"/promptForm/ab12cd", http.StatusOK, "form page"},
		{"/style.css", http.StatusOK, "body{}"},
		{"/managePrompts/ab12cd", http.StatusNotFound, ""},
		{"/nothing/here", http.StatusNotFound, ""},
		{"/", http.StatusOK, "Hello world"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			e.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestHomepageProxy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<h1>home</h1>"))
	}))
	defer upstream.Close()

	cfg := defaultCfg()
	cfg.HomepageURL = upstream.URL
	e := newTestEnv(t, cfg)

	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<h1>home</h1>", w.Body.String())
}

func TestSetupRouter_NilLimiterDisablesRateLimit(t *testing.T) {
	cfg := defaultCfg()
	mem := store.NewMemory()
	authz := auth.NewAuthorizer(mem.Tokens())
	disp := broadcast.NewDispatcher(&captureSender{sent: make(map[string]string)}, "archive", nil, time.UTC, time.Second)
	h := NewHandler(authz,
		service.NewSubmissionService(authz, mem.Prompts()),
		service.NewModerationService(authz, mem.Prompts(), disp),
	)
	engine := SetupRouter(cfg, h, nil)

	for i := 0; i < 100; i++ {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
	}
}
