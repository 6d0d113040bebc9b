package api

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/imageclassifier-go/internal/conf"
	"github.com/tphakala/imageclassifier-go/internal/logger"
)

// requestIDKey is the echo context key holding the request ID.
const requestIDKey = "request_id"

// RequestIDMiddleware assigns every request an ID, taken from X-Request-ID
// when the client sends one, and attaches it to the request context for
// trace-aware logging.
func RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" || len(requestID) > 64 {
				requestID = uuid.NewString()
			}

			c.Set(requestIDKey, requestID)
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)
			c.SetRequest(req.WithContext(logger.WithTraceID(req.Context(), requestID)))

			return next(c)
		}
	}
}

// requestID returns the ID assigned by RequestIDMiddleware.
func requestID(c echo.Context) string {
	if id, ok := c.Get(requestIDKey).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// LoggingMiddleware logs each request at debug level.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			if err := next(ctx); err != nil {
				ctx.Error(err)
			}

			c.log.WithContext(ctx.Request().Context()).Debug("request",
				logger.String("method", ctx.Request().Method),
				logger.String("path", ctx.Request().URL.Path),
				logger.Int("status", ctx.Response().Status),
				logger.Duration("duration", time.Since(start)),
				logger.String("ip", ctx.RealIP()))
			return nil
		}
	}
}

// MetricsMiddleware records request counts and latencies by route.
func (c *Controller) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			if err := next(ctx); err != nil {
				ctx.Error(err)
			}

			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			c.metrics.HTTP.RecordRequest(ctx.Request().Method, route, ctx.Response().Status, time.Since(start))
			return nil
		}
	}
}

// uploadLimit bounds the classify request body.
func (c *Controller) uploadLimit() echo.MiddlewareFunc {
	limitMB := conf.DefaultMaxUploadMB
	if c.Settings != nil && c.Settings.WebServer.MaxUploadMB > 0 {
		limitMB = c.Settings.WebServer.MaxUploadMB
	}
	return middleware.BodyLimit(strconv.Itoa(limitMB) + "M")
}
