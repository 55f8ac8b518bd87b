package notification

import "errors"

var (
	ErrInvalidState        = errors.New("notification: transition not allowed from current status")
	ErrNotFound            = errors.New("notification: update notification not found")
	ErrInvalidID           = errors.New("notification: invalid id")
	ErrParentNotProcessed  = errors.New("notification: employee record is not processed")
	ErrMissingParent       = errors.New("notification: employee record is required")
	ErrEmptyApprovalPeriod = errors.New("notification: approval period is empty")
)
