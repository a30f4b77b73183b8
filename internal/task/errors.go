package task

import "errors"

// Domain-specific errors for the task package.
var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrInstanceNotFound = errors.New("instance not found")
	ErrTaskArchived     = errors.New("task is archived")
	ErrInvalidRule      = errors.New("invalid recurrence rule")
	ErrInvalidRange     = errors.New("invalid date range")
	ErrMissingTokens    = errors.New("calendar tokens are required")
)
