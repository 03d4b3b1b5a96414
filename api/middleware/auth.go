package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/angelmondragon/hotelbooker-backend/api/responses"
	pkgAuth "github.com/angelmondragon/hotelbooker-backend/pkg/auth"
	"github.com/angelmondragon/hotelbooker-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/hotelbooker-backend/pkg/errors"
	"github.com/angelmondragon/hotelbooker-backend/pkg/logger"
)

var (
	errNoCredentials = errors.New("missing credentials")
	errBadScheme     = errors.New("authorization scheme must be Bearer")
)

// Auth requires a valid guest access token and stores its claims on the
// request context.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r.Header.Get("Authorization"))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, err.Error()))
				return
			}
			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithClaims(r.Context(), claims)
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, error) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	switch {
	case scheme == "":
		return "", errNoCredentials
	case !found || !strings.EqualFold(scheme, "bearer"):
		return "", errBadScheme
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errNoCredentials
	}
	return token, nil
}
