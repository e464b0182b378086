package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forestpark/assistant/backend/internal/database"
	"github.com/forestpark/assistant/backend/internal/model/preset"
	"github.com/forestpark/assistant/backend/internal/service/auth"
	chatService "github.com/forestpark/assistant/backend/internal/service/chat"
	"github.com/forestpark/assistant/backend/internal/service/conversation"
	"github.com/forestpark/assistant/backend/internal/service/history"
	"github.com/forestpark/assistant/backend/internal/service/relay"
	"github.com/forestpark/assistant/backend/internal/storage"
)

type echoRelay struct{}

func (echoRelay) Run(_ context.Context, req relay.Request, onUpdate func(string)) (string, error) {
	answer := "收到：" + req.Question
	onUpdate(answer)
	return answer, nil
}

type testEnv struct {
	router  http.Handler
	authSvc *auth.Service
}

func setupRouter(t *testing.T) testEnv {
	t.Helper()
	db, err := database.Open("sqlite", "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	authSvc := auth.NewService(db, auth.NewTokenIssuer("secret", time.Hour), "session")
	require.NoError(t, authSvc.EnsureAdmin(context.Background(), "admin", "admin@park.cn", "admin-pw"))

	historySvc := history.NewService(database.NewExecutor(db))
	chatSvc := chatService.NewService(
		conversation.NewStore(storage.NewGorm(db)),
		echoRelay{},
		chatService.WithArchive(historySvc),
	)

	return testEnv{
		router: NewRouter(Deps{
			Auth:           authSvc,
			Chat:           chatSvc,
			History:        historySvc,
			Presets:        preset.NewMemoryStore(preset.Seed()),
			AllowedOrigins: []string{"http://localhost:3000"},
		}),
		authSvc: authSvc,
	}
}

func (e testEnv) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e testEnv) login(t *testing.T, email, password string) *http.Cookie {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", `{"email":"`+email+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

func TestHealthIsPublic(t *testing.T) {
	env := setupRouter(t)
	rec := env.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChatRequiresLogin(t *testing.T) {
	env := setupRouter(t)
	rec := env.do(t, http.MethodGet, "/api/chat/conversation", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"未登录"}`, rec.Body.String())
}

func TestLoginRejectsBadPassword(t *testing.T) {
	env := setupRouter(t)
	rec := env.do(t, http.MethodPost, "/api/auth/login", `{"email":"admin@park.cn","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterIsAdminOnly(t *testing.T) {
	env := setupRouter(t)
	admin := env.login(t, "admin@park.cn", "admin-pw")

	rec := env.do(t, http.MethodPost, "/api/auth/register",
		`{"username":"alice","email":"alice@park.cn","password":"pw"}`, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	visitor := env.login(t, "alice@park.cn", "pw")
	rec = env.do(t, http.MethodPost, "/api/auth/register",
		`{"username":"eve","email":"eve@park.cn","password":"pw"}`, visitor)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/auth/me", "", visitor)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)
}

func TestChatFlow(t *testing.T) {
	env := setupRouter(t)
	cookie := env.login(t, "admin@park.cn", "admin-pw")

	rec := env.do(t, http.MethodGet, "/api/chat/presets", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var presets []preset.Question
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &presets))
	assert.Len(t, presets, 5)

	rec = env.do(t, http.MethodGet, "/api/chat/conversation", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap chatService.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Messages, 1)

	rec = env.do(t, http.MethodPost, "/api/chat/messages", `{"text":"`+presets[0].Text+`"}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "event: done")

	rec = env.do(t, http.MethodGet, "/api/chat/conversation", "", cookie)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, "收到："+presets[0].Text, snap.Messages[2].Content)

	rec = env.do(t, http.MethodGet, "/api/chat/history?limit=10", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var archived struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &archived))
	require.Len(t, archived.Messages, 2)
	assert.Equal(t, "user", archived.Messages[0].Role)

	rec = env.do(t, http.MethodGet, "/api/chat/history?limit=abc", "", cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/chat/conversation", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Len(t, snap.Messages, 1)

	rec = env.do(t, http.MethodDelete, "/api/chat/turn", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cancelled":false}`, rec.Body.String())
}

func TestLogoutExpiresCookie(t *testing.T) {
	env := setupRouter(t)
	rec := env.do(t, http.MethodPost, "/api/auth/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
}
