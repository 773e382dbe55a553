// Package utils has small helpers shared by the echo handlers.
package utils

import "github.com/labstack/echo/v4"

// GetRequestID returns the ID set by the request ID middleware
func GetRequestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}
