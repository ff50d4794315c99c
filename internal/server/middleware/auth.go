package middleware

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/tokenauth/internal/server/handlers"
	"github.com/iudanet/tokenauth/internal/server/jwt"
	"github.com/iudanet/tokenauth/internal/server/metrics"
)

// unauthenticatedBody - единый ответ на любой отказ строгой проверки
const unauthenticatedBody = `{"error":"Unauthorized","message":"unauthenticated"}`

// AuthMiddleware создает middleware строгой проверки access токена.
// Любой отказ дает 401 с одинаковым телом, причина только в логе и метриках.
// При успехе claims кладутся в контекст запроса.
func AuthMiddleware(logger *slog.Logger, tokens *jwt.Service, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			tokenString, err := handlers.ExtractBearerToken(r)
			if err != nil {
				kind := "malformed"
				if err == handlers.ErrMissingAuthorization {
					kind = "missing"
				}
				logger.WarnContext(ctx, "request rejected: no bearer token",
					slog.String("kind", kind),
					slog.String("path", r.URL.Path))
				m.RecordVerificationFailure(metrics.TokenAccess, kind)
				writeUnauthenticated(w)
				return
			}

			claims, err := tokens.VerifyAccess(tokenString)
			if err != nil {
				kind := jwt.Kind(err)
				logger.WarnContext(ctx, "request rejected: invalid access token",
					slog.String("kind", kind),
					slog.String("path", r.URL.Path),
					slog.Any("error", err))
				m.RecordVerificationFailure(metrics.TokenAccess, kind)
				writeUnauthenticated(w)
				return
			}

			logger.DebugContext(ctx, "user authenticated", slog.Int64("user_id", claims.UserID))

			next.ServeHTTP(w, r.WithContext(handlers.WithAccessClaims(ctx, claims)))
		})
	}
}

func writeUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(unauthenticatedBody))
}
