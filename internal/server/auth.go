package server

import (
	"strings"

	"github.com/labstack/echo/v4"

	"spot-exchange/internal/apperr"
	"spot-exchange/internal/models"
)

// userContextKey stores the authenticated user on the echo context.
const userContextKey = "exchange.user"

// extractAPIKey pulls the credential out of an Authorization header.
// Accepted forms: "TOKEN <key>", "Bearer <key>", or the raw key.
func extractAPIKey(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", apperr.New(apperr.Unauthenticated, "missing Authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) == 1 {
		return parts[0], nil
	}
	return parts[1], nil
}

// requireUser authenticates the caller by api key and stashes the user
// on the context.
func (s *Server) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key, err := extractAPIKey(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return err
		}

		user, err := s.engine.UserByAPIKey(c.Request().Context(), key)
		if err != nil {
			return err
		}

		c.Set(userContextKey, user)
		return next(c)
	}
}

// requireAdmin gates admin routes. Runs after requireUser.
func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if currentUser(c).Role != models.RoleAdmin {
			return apperr.New(apperr.Forbidden, "admin privileges required")
		}
		return next(c)
	}
}

// currentUser returns the authenticated user set by requireUser.
func currentUser(c echo.Context) *models.User {
	return c.Get(userContextKey).(*models.User)
}
