package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"marketchat/internal/domain/entity"
	"marketchat/pkg/logger"
)

// Context keys set by Authenticate.
const (
	ContextUID     = "uid"
	ContextSession = "session"
)

// TokenVerifier turns a bearer token into the caller's session.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*entity.Session, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is required")
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
		}

		return m.verify(c, next, parts[1])
	}
}

// AuthenticateQuery accepts the token as ?token=, for websocket upgrades
// where browsers cannot set headers. A bearer header still wins.
func (m *AuthMiddleware) AuthenticateQuery(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get("Authorization") != "" {
			return m.Authenticate(next)(c)
		}

		token := c.QueryParam("token")
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Token is required")
		}
		return m.verify(c, next, token)
	}
}

func (m *AuthMiddleware) verify(c echo.Context, next echo.HandlerFunc, token string) error {
	session, err := m.verifier.Verify(c.Request().Context(), token)
	if err != nil {
		logger.Debug("Token rejected: %v", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
	}

	c.Set(ContextUID, session.UserID)
	c.Set(ContextSession, session)
	return next(c)
}

// SessionFrom returns the session stored by Authenticate, or nil.
func SessionFrom(c echo.Context) *entity.Session {
	session, _ := c.Get(ContextSession).(*entity.Session)
	return session
}
