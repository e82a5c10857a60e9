package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// WebhookKey rejects callbacks whose ?key= query parameter does not match the
// shared secret configured on the PayPal side.
func WebhookKey(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := c.QueryParam("key")
			if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				return c.NoContent(http.StatusBadRequest)
			}
			return next(c)
		}
	}
}
