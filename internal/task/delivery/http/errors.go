package http

import (
	"errors"

	"taskmirror/internal/task"
	pkgErrors "taskmirror/pkg/errors"
)

// mapError translates domain errors into HTTP errors from pkg/errors.
func (h *handler) mapError(err error) error {
	switch {
	case errors.Is(err, task.ErrTaskNotFound):
		return pkgErrors.NewHTTPError(404, "task not found")
	case errors.Is(err, task.ErrInstanceNotFound):
		return pkgErrors.NewHTTPError(404, "instance not found")
	case errors.Is(err, task.ErrTaskArchived):
		return pkgErrors.NewHTTPError(409, "task is archived")
	case errors.Is(err, task.ErrInvalidRule):
		return pkgErrors.NewHTTPError(400, "invalid recurrence rule")
	case errors.Is(err, task.ErrInvalidRange):
		return pkgErrors.NewHTTPError(400, "invalid date range")
	case errors.Is(err, task.ErrMissingTokens):
		return pkgErrors.NewHTTPError(400, "calendar tokens are required")
	default:
		return pkgErrors.NewHTTPError(500, "internal server error")
	}
}
