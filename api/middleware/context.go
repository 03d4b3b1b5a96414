package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgAuth "github.com/angelmondragon/hotelbooker-backend/pkg/auth"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxClaims contextKey = "claims"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

// UserUUIDFromContext returns the authenticated user, or uuid.Nil.
func UserUUIDFromContext(ctx context.Context) uuid.UUID {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithClaims stores verified token claims along with the user they name.
func WithClaims(ctx context.Context, claims *pkgAuth.AccessTokenClaims) context.Context {
	if claims == nil {
		return ctx
	}
	ctx = WithUserID(ctx, claims.UserID.String())
	return context.WithValue(ctx, ctxClaims, claims)
}

func ClaimsFromContext(ctx context.Context) *pkgAuth.AccessTokenClaims {
	if ctx == nil {
		return nil
	}
	claims, _ := ctx.Value(ctxClaims).(*pkgAuth.AccessTokenClaims)
	return claims
}
