package db

import (
	"context"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	// FamilyGroupKey carries the resolved family group through the
	// request context. Every repository read and write is scoped by it.
	FamilyGroupKey contextKey = "family_group"

	// DBConnKey carries a transaction-scoped connection; see WithTx.
	DBConnKey contextKey = "db_conn"
)

var familyGroupPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// FamilyMiddleware resolves the family group for a request. The core
// trusts the resolved value: authentication decides which groups a
// token may claim, this middleware only pins the claim to the context.
func FamilyMiddleware(defaultFamily string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			group := extractFamilyGroup(c, defaultFamily)

			if !familyGroupPattern.MatchString(group) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid family group identifier")
			}

			ctx := context.WithValue(c.Request().Context(), FamilyGroupKey, group)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("family_group", group)

			return next(c)
		}
	}
}

func extractFamilyGroup(c echo.Context, defaultFamily string) string {
	// 1. JWT claim (set by auth middleware)
	if g, ok := c.Get("jwt_family_group").(string); ok && g != "" {
		return g
	}

	// 2. X-Family-Group header
	if g := c.Request().Header.Get("X-Family-Group"); g != "" {
		return g
	}

	// 3. Query parameter
	if g := c.QueryParam("family_group"); g != "" {
		return g
	}

	return defaultFamily
}

// FamilyFromContext retrieves the family group from context.
func FamilyFromContext(ctx context.Context) string {
	g, _ := ctx.Value(FamilyGroupKey).(string)
	return g
}
