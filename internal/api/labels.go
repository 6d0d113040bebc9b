package api

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/imageclassifier-go/internal/errors"
	"github.com/tphakala/imageclassifier-go/internal/labelinfo"
)

// ListLabels returns the labels of the loaded model in class index order.
func (c *Controller) ListLabels(ctx echo.Context) error {
	if c.Provider == nil {
		return c.HandleError(ctx, nil, "classifier is not available", http.StatusServiceUnavailable)
	}
	cls, err := c.Provider.Classifier()
	if err != nil {
		return c.HandleError(ctx, err, "classifier is not available", http.StatusServiceUnavailable)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"labels": cls.Labels(),
		"count":  len(cls.Labels()),
	})
}

// GetLabelInfo returns the description of a label.
func (c *Controller) GetLabelInfo(ctx echo.Context) error {
	if c.Labels == nil {
		return c.HandleError(ctx, nil, "label details are not configured", http.StatusNotFound)
	}
	label, err := url.PathUnescape(ctx.Param("label"))
	if err != nil {
		return c.HandleError(ctx, err, "invalid label", http.StatusBadRequest)
	}

	entry, err := c.Labels.Lookup(label)
	if err != nil {
		return c.labelError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, entry)
}

// GetLabelImage serves the picture of a label.
func (c *Controller) GetLabelImage(ctx echo.Context) error {
	if c.Labels == nil {
		return c.HandleError(ctx, nil, "label details are not configured", http.StatusNotFound)
	}
	label, err := url.PathUnescape(ctx.Param("label"))
	if err != nil {
		return c.HandleError(ctx, err, "invalid label", http.StatusBadRequest)
	}

	img, err := c.Labels.Image(label)
	if err != nil {
		return c.labelError(ctx, err)
	}
	ctx.Response().Header().Set("Cache-Control", "public, max-age=3600")
	return ctx.Blob(http.StatusOK, img.ContentType, img.Data)
}

func (c *Controller) labelError(ctx echo.Context, err error) error {
	switch {
	case errors.Is(err, labelinfo.ErrInvalidLabel):
		return c.HandleError(ctx, err, "invalid label", http.StatusBadRequest)
	case errors.IsNotFound(err):
		return c.HandleError(ctx, err, "label not found", http.StatusNotFound)
	default:
		return c.HandleError(ctx, err, "failed to load label details", http.StatusInternalServerError)
	}
}
