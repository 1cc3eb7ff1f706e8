package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// userKey is the caller id as a string for rate limit and cache keys, or
// "anon" when the request is unauthenticated.
func userKey(c echo.Context) string {
	if id, ok := c.Get(UserIDKey).(uint64); ok && id != 0 {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
