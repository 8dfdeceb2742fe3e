package echoapi

import (
	"github.com/labstack/echo/v4"
)

// sessionMiddleware requires a valid session token of the given role.
func sessionMiddleware(sessions *Sessions, role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			token := bearerToken(ctx)
			if token == "" {
				return errMissingToken
			}
			claims, err := sessions.Parse(token)
			if err != nil {
				return errInvalidToken.WithInternal(err)
			}
			if claims.Role != role {
				return errForbidden
			}
			ctx.Set(contextClaimsKey, claims)
			return next(ctx)
		}
	}
}

// optionalSessionMiddleware loads the session of a valid token, if any.
// Requests without a usable token go through anonymously.
func optionalSessionMiddleware(sessions *Sessions) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if token := bearerToken(ctx); token != "" {
				if claims, err := sessions.Parse(token); err == nil {
					ctx.Set(contextClaimsKey, claims)
				}
			}
			return next(ctx)
		}
	}
}
