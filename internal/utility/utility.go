package utility

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Context keys set by the server middleware.
const (
	ContextKeyIdentity  = "identity"
	ContextKeyLogger    = "logger"
	ContextKeyRequestID = "request_id"
)

// GetRealIP is a helper function to get the user's real IP address
// It checks proxy headers first.
func GetRealIP(c echo.Context) string {
	// This header can be a list: "client, proxy1, proxy2"
	if xForwardedFor := c.Request().Header.Get("X-Forwarded-For"); xForwardedFor != "" {
		ips := strings.Split(xForwardedFor, ",")
		return strings.TrimSpace(ips[0])
	}

	if xRealIP := c.Request().Header.Get("X-Real-IP"); xRealIP != "" {
		return xRealIP
	}

	return c.RealIP()
}

// NewIdentity returns a fresh opaque user token.
func NewIdentity() string {
	return uuid.New().String()
}

// GetIdentityFromContext safely retrieves the session identity from Echo context
func GetIdentityFromContext(c echo.Context) (string, error) {
	identity, ok := c.Get(ContextKeyIdentity).(string)
	if !ok || identity == "" {
		return "", fmt.Errorf("identity not found in context")
	}
	return identity, nil
}

// LoggerFromContext returns the request-scoped logger, or the global one.
func LoggerFromContext(c echo.Context) *zerolog.Logger {
	if logger, ok := c.Get(ContextKeyLogger).(*zerolog.Logger); ok && logger != nil {
		return logger
	}
	return &log.Logger
}

func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
