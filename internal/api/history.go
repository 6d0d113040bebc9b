package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/imageclassifier-go/internal/errors"
)

// defaultStatsWindow is used when /history/stats has no since parameter.
const defaultStatsWindow = 24 * time.Hour

// ListHistory returns stored captures, optionally filtered by top label.
func (c *Controller) ListHistory(ctx echo.Context) error {
	if c.DS == nil {
		return c.HandleError(ctx, nil, "history is disabled", http.StatusNotFound)
	}

	limit, err := intParam(ctx, "limit")
	if err != nil {
		return c.HandleError(ctx, err, "limit must be an integer", http.StatusBadRequest)
	}
	offset, err := intParam(ctx, "offset")
	if err != nil {
		return c.HandleError(ctx, err, "offset must be an integer", http.StatusBadRequest)
	}

	if label := ctx.QueryParam("label"); label != "" {
		captures, err := c.DS.SearchByLabel(label, limit, offset)
		if err != nil {
			return c.HandleError(ctx, err, "failed to search history", http.StatusInternalServerError)
		}
		return ctx.JSON(http.StatusOK, captures)
	}

	captures, err := c.DS.Latest(limit, offset)
	if err != nil {
		return c.HandleError(ctx, err, "failed to read history", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, captures)
}

// GetHistoryEntry returns one capture with its results.
func (c *Controller) GetHistoryEntry(ctx echo.Context) error {
	if c.DS == nil {
		return c.HandleError(ctx, nil, "history is disabled", http.StatusNotFound)
	}
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		return c.HandleError(ctx, err, "invalid id", http.StatusBadRequest)
	}

	capture, err := c.DS.Get(uint(id))
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "capture not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "failed to read capture", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, capture)
}

// DeleteHistoryEntry removes a capture.
func (c *Controller) DeleteHistoryEntry(ctx echo.Context) error {
	if c.DS == nil {
		return c.HandleError(ctx, nil, "history is disabled", http.StatusNotFound)
	}
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		return c.HandleError(ctx, err, "invalid id", http.StatusBadRequest)
	}

	if err := c.DS.Delete(uint(id)); err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "capture not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "failed to delete capture", http.StatusInternalServerError)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// HistoryStats returns top-label counts over a window, e.g. ?since=72h.
func (c *Controller) HistoryStats(ctx echo.Context) error {
	if c.DS == nil {
		return c.HandleError(ctx, nil, "history is disabled", http.StatusNotFound)
	}

	window := defaultStatsWindow
	if v := ctx.QueryParam("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return c.HandleError(ctx, err, "since must be a positive duration such as 24h", http.StatusBadRequest)
		}
		window = d
	}

	counts, err := c.DS.LabelCounts(time.Now().Add(-window))
	if err != nil {
		return c.HandleError(ctx, err, "failed to compute statistics", http.StatusInternalServerError)
	}
	total, err := c.DS.Count()
	if err != nil {
		return c.HandleError(ctx, err, "failed to compute statistics", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"since":  window.String(),
		"labels": counts,
		"total":  total,
	})
}

func intParam(ctx echo.Context, name string) (int, error) {
	v := ctx.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
