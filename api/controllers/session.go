package controllers

import (
	"net/http"
	"time"

	"github.com/angelmondragon/hotelbooker-backend/api/middleware"
	"github.com/angelmondragon/hotelbooker-backend/api/responses"
	pkgerrors "github.com/angelmondragon/hotelbooker-backend/pkg/errors"
	"github.com/angelmondragon/hotelbooker-backend/pkg/logger"
)

type sessionResponse struct {
	UserID    string     `json:"user_id"`
	Email     string     `json:"email,omitempty"`
	TokenID   string     `json:"token_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Session echoes the authenticated guest behind the bearer token.
func Session(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		resp := sessionResponse{
			UserID:  claims.UserID.String(),
			Email:   claims.Email,
			TokenID: claims.ID,
		}
		if claims.ExpiresAt != nil {
			exp := claims.ExpiresAt.UTC()
			resp.ExpiresAt = &exp
		}
		responses.WriteSuccess(w, resp)
	}
}
