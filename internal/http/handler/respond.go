// Package handler provides the HTTP handlers for the camera API.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/picamctl/picamctl/internal/camera"
	"github.com/picamctl/picamctl/internal/media"
	"github.com/picamctl/picamctl/internal/schedule"
	"github.com/picamctl/picamctl/internal/service"
	"github.com/picamctl/picamctl/pkg/fmtt"
)

// respondErr maps domain errors to status codes and records the error on
// the Gin context for the access log. The full chain is dumped at debug
// level on server faults so subprocess diagnostics survive.
func respondErr(c *gin.Context, log *zap.Logger, err error) {
	c.Error(err)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, camera.ErrDeviceBusy),
		errors.Is(err, camera.ErrAlreadyRecording),
		errors.Is(err, camera.ErrTimelapseActive),
		errors.Is(err, media.ErrCompileRunning):
		status = http.StatusConflict
	case errors.Is(err, camera.ErrNotRecording),
		errors.Is(err, camera.ErrTimelapseInactive),
		errors.Is(err, media.ErrUnknownFormat),
		errors.Is(err, schedule.ErrInvalidTask):
		status = http.StatusBadRequest
	case errors.Is(err, media.ErrSessionNotFound),
		errors.Is(err, media.ErrCompileNotFound),
		errors.Is(err, service.ErrNotInGallery):
		status = http.StatusNotFound
	case errors.Is(err, camera.ErrToolTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, media.ErrSpawnRejected):
		status = http.StatusServiceUnavailable
	}

	if status >= 500 {
		log.Debug("handler error chain", zap.String("chain", fmtt.ErrChainDebug(err)))
	}
	c.JSON(status, gin.H{"message": err.Error()})
}
