package middleware

import (
	"net/http"
	"strings"

	"github.com/forestpark/assistant/backend/internal/model/auth"
	"github.com/forestpark/assistant/backend/pkg/utils"
)

// PublicPaths 无需登录即可访问。
var PublicPaths = []string{
	"/api/auth/login",
	"/api/auth/logout",
	"/api/health",
}

// PrincipalResolver 从请求中解析当前用户。
type PrincipalResolver interface {
	CurrentPrincipal(r *http.Request) *auth.Principal
}

// Authenticate attaches the session principal, if any, to the request context.
func Authenticate(resolver PrincipalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p := resolver.CurrentPrincipal(r); p != nil {
				r = r.WithContext(auth.WithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects anonymous requests outside PublicPaths.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublic(r.URL.Path) || auth.FromContext(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}
		utils.RespondError(w, http.StatusUnauthorized, "未登录")
	})
}

// RequireRole allows only principals holding one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := auth.FromContext(r.Context())
			if p == nil {
				utils.RespondError(w, http.StatusUnauthorized, "未登录")
				return
			}
			if !p.HasRole(roles...) {
				utils.RespondError(w, http.StatusForbidden, "权限不足")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isPublic(path string) bool {
	for _, prefix := range PublicPaths {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
