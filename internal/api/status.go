package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/imageclassifier-go/internal/classifier"
)

// StatusResponse is the reply of GET /status.
type StatusResponse struct {
	Classifier    classifier.Status `json:"classifier"`
	QueueDepth    int               `json:"queue_depth"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Goroutines    int               `json:"goroutines"`
	History       bool              `json:"history"`
	MQTT          bool              `json:"mqtt"`
}

// HealthCheck reports whether the server can classify photos.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	state := classifier.StateUnloaded
	if c.Provider != nil {
		state = c.Provider.State()
	}

	code := http.StatusOK
	status := "healthy"
	if state != classifier.StateReady {
		code = http.StatusServiceUnavailable
		status = "degraded"
	}
	return ctx.JSON(code, map[string]string{
		"status":     status,
		"classifier": state.String(),
	})
}

// GetStatus returns the classifier state and server counters.
func (c *Controller) GetStatus(ctx echo.Context) error {
	resp := StatusResponse{
		UptimeSeconds: int64(time.Since(c.startTime).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		History:       c.DS != nil,
		MQTT:          c.Publisher != nil,
	}
	if c.Provider != nil {
		resp.Classifier = c.Provider.Status()
	}
	if c.queue != nil {
		resp.QueueDepth = c.queue.QueueDepth()
	}
	return ctx.JSON(http.StatusOK, resp)
}
