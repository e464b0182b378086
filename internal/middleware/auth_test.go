package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forestpark/assistant/backend/internal/model/auth"
)

type staticResolver struct {
	p *auth.Principal
}

func (s staticResolver) CurrentPrincipal(*http.Request) *auth.Principal { return s.p }

func okHandler(w http.ResponseWriter, r *http.Request) {
	if p := auth.FromContext(r.Context()); p != nil {
		w.Header().Set("X-User", p.Username)
	}
	w.WriteHeader(http.StatusNoContent)
}

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	h := Authenticate(staticResolver{})(RequireAuth(http.HandlerFunc(okHandler)))

	rec := serve(h, "/api/chat/conversation")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "未登录", body["error"])

	assert.Equal(t, http.StatusNoContent, serve(h, "/api/auth/login").Code)
	assert.Equal(t, http.StatusNoContent, serve(h, "/api/health").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "/api/healthcheck").Code)
}

func TestRequireAuthAttachesPrincipal(t *testing.T) {
	h := Authenticate(staticResolver{p: &auth.Principal{ID: "1", Username: "alice"}})(RequireAuth(http.HandlerFunc(okHandler)))

	rec := serve(h, "/api/chat/conversation")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "alice", rec.Header().Get("X-User"))
}

func TestRequireRole(t *testing.T) {
	guarded := RequireRole(auth.RoleAdmin)(http.HandlerFunc(okHandler))

	admin := Authenticate(staticResolver{p: &auth.Principal{ID: "1", Role: auth.RoleAdmin}})(guarded)
	assert.Equal(t, http.StatusNoContent, serve(admin, "/api/auth/register").Code)

	visitor := Authenticate(staticResolver{p: &auth.Principal{ID: "2", Role: auth.RoleVisitor}})(guarded)
	assert.Equal(t, http.StatusForbidden, serve(visitor, "/api/auth/register").Code)

	anonymous := Authenticate(staticResolver{})(guarded)
	assert.Equal(t, http.StatusUnauthorized, serve(anonymous, "/api/auth/register").Code)
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"http://localhost:3000"})(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodOptions, "/api/chat/messages", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
