package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forestpark/assistant/backend/internal/database"
	"github.com/forestpark/assistant/backend/internal/model/auth"
)

func newService(t *testing.T) *Service {
	t.Helper()
	db, err := database.Open("sqlite", "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return NewService(db, NewTokenIssuer("test-secret", time.Hour), "session")
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, NewUser{Username: "alice", Email: "alice@park.cn", Password: "123456"})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleVisitor, created.Role)
	assert.NotEmpty(t, created.ID)

	p, err := svc.Login(ctx, "alice@park.cn", "123456")
	require.NoError(t, err)
	assert.Equal(t, created.ID, p.ID)
	assert.Equal(t, "alice", p.Username)

	_, err = svc.Login(ctx, "alice@park.cn", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@park.cn", "123456")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, NewUser{Username: "a"})
	assert.ErrorIs(t, err, ErrInvalidUser)

	_, err = svc.Register(ctx, NewUser{Username: "a", Email: "a@x", Password: "p", Role: "ranger"})
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.Register(ctx, NewUser{Username: "a", Email: "a@x", Password: "p"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, NewUser{Username: "a", Email: "b@x", Password: "p"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestInactiveUserCannotLogin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, NewUser{Username: "old", Email: "old@park.cn", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, svc.db.Model(&database.User{}).Where("username = ?", "old").Update("is_active", false).Error)

	_, err = svc.Login(ctx, "old@park.cn", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "admin", "admin@park.cn", "pw"))
	require.NoError(t, svc.EnsureAdmin(ctx, "admin", "admin@park.cn", "pw"))

	p, err := svc.Login(ctx, "admin@park.cn", "pw")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, p.Role)
}

func TestSessionCookieRoundTrip(t *testing.T) {
	svc := newService(t)
	p := &auth.Principal{ID: "7", Username: "bob", Role: auth.RoleStaff}

	rec := httptest.NewRecorder()
	require.NoError(t, svc.StartSession(rec, p))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(cookies[0])
	assert.Equal(t, p, svc.CurrentPrincipal(req))

	assert.Nil(t, svc.CurrentPrincipal(httptest.NewRequest(http.MethodGet, "/", nil)))

	forged := httptest.NewRequest(http.MethodGet, "/", nil)
	forged.AddCookie(&http.Cookie{Name: "session", Value: cookies[0].Value + "x"})
	assert.Nil(t, svc.CurrentPrincipal(forged))

	rec = httptest.NewRecorder()
	svc.EndSession(rec)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}

func TestTokenExpiry(t *testing.T) {
	issuer := NewTokenIssuer("s", time.Minute)
	start := time.Now()
	issuer.now = func() time.Time { return start }

	token, _, err := issuer.Issue(&auth.Principal{ID: "1", Username: "u", Role: auth.RoleVisitor})
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	require.NoError(t, err)

	issuer.now = func() time.Time { return start.Add(2 * time.Minute) }
	_, err = issuer.Verify(token)
	assert.Error(t, err)

	_, err = NewTokenIssuer("other", time.Minute).Verify(token)
	assert.Error(t, err)
}
