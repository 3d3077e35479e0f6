package api

import (
	echo "github.com/labstack/echo/v5"
)

// requestUser resolves the requester identity for audit logging.
// Priority: X-Forwarded-User (oauth proxy) > X-Remote-User
// (kube-rbac-proxy) > "api-client". The API itself is unauthenticated;
// the identity is informational only.
func requestUser(c *echo.Context) string {
	if user := c.Request().Header.Get("X-Forwarded-User"); user != "" {
		return user
	}
	if user := c.Request().Header.Get("X-Remote-User"); user != "" {
		return user
	}
	return "api-client"
}
