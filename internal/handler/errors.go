package handler

import (
	"errors"
	"net/http"

	"backoffice/internal/service"
	"backoffice/pkg/response"

	"github.com/gin-gonic/gin"
)

// respondError maps workflow error kinds to distinct HTTP statuses and codes.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"

	switch {
	case errors.Is(err, service.ErrExecutor):
		status, code = http.StatusInternalServerError, "executor_failed"
	case errors.Is(err, service.ErrStorage):
		status, code = http.StatusBadGateway, "storage_failed"
	case errors.Is(err, service.ErrValidation):
		status, code = http.StatusBadRequest, "validation_failed"
	case errors.Is(err, service.ErrConflict):
		status, code = http.StatusConflict, "pending_request_exists"
	case errors.Is(err, service.ErrNoChanges):
		status, code = http.StatusUnprocessableEntity, "no_changes"
	case errors.Is(err, service.ErrStaleState):
		status, code = http.StatusConflict, "stale_state"
	case errors.Is(err, service.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	}

	_ = c.Error(err)
	c.JSON(status, response.Error(status, code, err.Error()))
}
