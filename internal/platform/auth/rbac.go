package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
// Admins pass every check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, required := range roles {
				if hasRole(userRoles, required) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

func hasRole(userRoles []string, role string) bool {
	for _, has := range userRoles {
		if has == role || has == RoleAdmin {
			return true
		}
	}
	return false
}

// HasRole reports whether the caller holds role (or is an admin).
func HasRole(ctx context.Context, role string) bool {
	return hasRole(RolesFromContext(ctx), role)
}

// IsAdmin reports whether the caller is an administrator.
func IsAdmin(ctx context.Context) bool {
	for _, r := range RolesFromContext(ctx) {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}

// CanActAs reports whether the caller may act on behalf of userID: admins
// always, everyone else only for themselves.
func CanActAs(ctx context.Context, userID string) bool {
	return IsAdmin(ctx) || UserIDFromContext(ctx) == userID
}
