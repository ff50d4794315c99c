package handlers

import (
	"context"

	"github.com/iudanet/tokenauth/internal/server/jwt"
)

type contextKey string

// ClaimsKey ключ контекста для claims проверенного access токена
const ClaimsKey contextKey = "access_claims"

// WithAccessClaims кладет claims в контекст запроса
func WithAccessClaims(ctx context.Context, claims *jwt.AccessClaims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// AccessClaimsFrom возвращает claims из контекста
func AccessClaimsFrom(ctx context.Context) (*jwt.AccessClaims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*jwt.AccessClaims)
	return claims, ok && claims != nil
}

// GetUserID возвращает id аутентифицированного пользователя
func GetUserID(ctx context.Context) (int64, bool) {
	claims, ok := AccessClaimsFrom(ctx)
	if !ok {
		return 0, false
	}
	return claims.UserID, true
}
