// Package api serves the classifier over HTTP.
package api

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/imageclassifier-go/internal/classifier"
	"github.com/tphakala/imageclassifier-go/internal/conf"
	"github.com/tphakala/imageclassifier-go/internal/datastore"
	"github.com/tphakala/imageclassifier-go/internal/labelinfo"
	"github.com/tphakala/imageclassifier-go/internal/logger"
	"github.com/tphakala/imageclassifier-go/internal/mqtt"
	"github.com/tphakala/imageclassifier-go/internal/observability"
)

// apiPrefix is the route prefix of every endpoint.
const apiPrefix = "/api/v1"

// Controller holds the dependencies of the HTTP handlers.
type Controller struct {
	Echo       *echo.Echo
	Group      *echo.Group
	Settings   *conf.Settings
	Provider   *classifier.Provider
	Recognizer classifier.Recognizer
	Labels     *labelinfo.Store
	DS         datastore.Interface
	Publisher  *mqtt.Publisher

	metrics   *observability.Metrics
	queue     queueDepther
	log       logger.Logger
	startTime time.Time
}

// queueDepther reports pending recognitions.
type queueDepther interface {
	QueueDepth() int
}

// Option configures a Controller.
type Option func(*Controller)

// WithLabelStore enables the label detail endpoints.
func WithLabelStore(s *labelinfo.Store) Option {
	return func(c *Controller) { c.Labels = s }
}

// WithDatastore enables history recording and the history endpoints.
func WithDatastore(ds datastore.Interface) Option {
	return func(c *Controller) { c.DS = ds }
}

// WithPublisher publishes every recognition to MQTT.
func WithPublisher(p *mqtt.Publisher) Option {
	return func(c *Controller) { c.Publisher = p }
}

// WithMetrics exposes /metrics and records request metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// New registers the API routes on e. recognizer runs the recognitions,
// usually a classifier.Scheduler in front of provider.
func New(e *echo.Echo, settings *conf.Settings, provider *classifier.Provider, recognizer classifier.Recognizer, opts ...Option) *Controller {
	c := &Controller{
		Echo:       e,
		Settings:   settings,
		Provider:   provider,
		Recognizer: recognizer,
		log:        GetLogger(),
		startTime:  time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if q, ok := recognizer.(queueDepther); ok {
		c.queue = q
	}

	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Echo.Use(middleware.Recover())
	c.Echo.Use(RequestIDMiddleware())
	c.Echo.Use(c.LoggingMiddleware())
	c.Echo.Use(newCORS())
	c.Echo.Use(newSecureHeaders())
	if c.metrics != nil {
		c.Echo.Use(c.MetricsMiddleware())
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}

	c.Group = c.Echo.Group(apiPrefix)
	c.Group.GET("/health", c.HealthCheck)
	c.Group.GET("/status", c.GetStatus)
	c.Group.GET("/system", c.GetSystemInfo)
	c.Group.POST("/classify", c.Classify, c.uploadLimit())

	c.Group.GET("/labels", c.ListLabels)
	c.Group.GET("/labels/:label", c.GetLabelInfo)
	c.Group.GET("/labels/:label/image", c.GetLabelImage)

	c.Group.GET("/history", c.ListHistory)
	c.Group.GET("/history/stats", c.HistoryStats)
	c.Group.GET("/history/:id", c.GetHistoryEntry)
	c.Group.DELETE("/history/:id", c.DeleteHistoryEntry)
}

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// HandleError logs err and writes an ErrorResponse.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)

	log := c.log.WithContext(ctx.Request().Context())
	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("ip", ctx.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if code >= http.StatusInternalServerError {
		log.Error("API error", fields...)
	} else {
		log.Debug("API error", fields...)
	}

	return ctx.JSON(code, resp)
}

// generateCorrelationID returns 8 random hex characters.
func generateCorrelationID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(b)
}

var (
	apiLogger     logger.Logger
	apiLoggerOnce sync.Once
)

// GetLogger returns the api package logger
func GetLogger() logger.Logger {
	apiLoggerOnce.Do(func() {
		apiLogger = logger.Global().Module("api")
	})
	return apiLogger
}
