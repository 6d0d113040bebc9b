package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/imageclassifier-go/internal/logger"
)

const (
	readTimeout  = 30 * time.Second
	writeTimeout = 30 * time.Second
	idleTimeout  = 120 * time.Second
	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 10 * time.Second
)

// NewEcho returns an Echo instance configured for the API.
func NewEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpErrorHandler
	e.Server.ReadTimeout = readTimeout
	e.Server.WriteTimeout = writeTimeout
	e.Server.IdleTimeout = idleTimeout
	return e
}

// httpErrorHandler renders echo errors as ErrorResponse.
func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, NewErrorResponse(nil, message, code))
}

// Serve runs e on addr until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, e *echo.Echo, addr string) error {
	log := GetLogger()
	errCh := make(chan error, 1)

	go func() {
		log.Info("HTTP server listening", logger.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	log.Info("shutting down HTTP server")
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
