package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/irissociety/irisportal/internal/model"
)

// NewAdminTokenMiddleware はAuthorization: Bearer <token>を検証するミドルウェアを返す。
// tokenが空の場合は全てのリクエストを拒否する。
func NewAdminTokenMiddleware(token string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			given, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" || subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
				slog.Warn("admin token rejected",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidAdminTokenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
