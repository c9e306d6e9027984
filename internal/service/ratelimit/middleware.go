package ratelimit

import (
	xhttp "WalletScore/pkg/http"
	"WalletScore/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Middleware rejects requests over budget with 429, keyed by client IP.
// A limiter error lets the request through.
func Middleware(l Limiter, lgr *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ok, err := l.Allow(c.Request().Context(), c.RealIP())
			if err != nil {
				lgr.Warn("rate limiter unavailable", logger.Error(err))
				return next(c)
			}
			if !ok {
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded"))
			}
			return next(c)
		}
	}
}
