// Package notification carries approval date changes to ASP after the
// original employee record was integrated.
//
// An update notification goes through a reduced lifecycle:
//
//	NEW ──► SENT ──► PROCESSED
//	                  │
//	                  └──► REJECTED
//
// There is at most one NEW notification per employee record: a second date
// change before transmission refreshes the pending one instead of queueing
// another.
package notification

import (
	"fmt"
	"time"

	"github.com/gip-inclusion/employee-records/internal/core/employeerecord"
)

// Status is the lifecycle state of an update notification.
type Status string

const (
	StatusNew       Status = "NEW"
	StatusSent      Status = "SENT"
	StatusProcessed Status = "PROCESSED"
	StatusRejected  Status = "REJECTED"
)

var validTransitions = map[Status][]Status{
	StatusNew:       {StatusSent},
	StatusSent:      {StatusProcessed, StatusRejected},
	StatusProcessed: {},
	StatusRejected:  {},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UpdateNotification tells ASP the approval period of an integrated record
// changed. StartAt and EndAt are the corrected period as it will be
// transmitted.
type UpdateNotification struct {
	ID               string
	Status           Status
	EmployeeRecordID string

	StartAt time.Time
	EndAt   time.Time

	ASPBatchFile       *string
	ASPBatchLineNumber *int
	ASPProcessingCode  *string
	ASPProcessingLabel *string

	CreatedAt time.Time
	UpdatedAt time.Time

	// EmployeeRecord is the PROCESSED parent the notification amends.
	EmployeeRecord *employeerecord.EmployeeRecord
}

func (n *UpdateNotification) transitionTo(to Status, now time.Time) error {
	if !CanTransition(n.Status, to) {
		return fmt.Errorf("%s → %s: %w", n.Status, to, ErrInvalidState)
	}
	n.Status = to
	n.UpdatedAt = now
	return nil
}

// UpdateAsSent records the batch file and line the notification left in.
func (n *UpdateNotification) UpdateAsSent(filename string, lineNumber int, now time.Time) error {
	if n.Status != StatusNew {
		return fmt.Errorf("%s → %s: %w", n.Status, StatusSent, ErrInvalidState)
	}
	if err := employeerecord.ValidateBatchFilename(filename); err != nil {
		return err
	}
	if lineNumber < 1 {
		return employeerecord.ErrInvalidLineNumber
	}

	n.ASPBatchFile = &filename
	n.ASPBatchLineNumber = &lineNumber
	return n.transitionTo(StatusSent, now)
}

// UpdateAsProcessed applies a successful ASP outcome.
func (n *UpdateNotification) UpdateAsProcessed(code, label string, now time.Time) error {
	if n.Status != StatusSent {
		return fmt.Errorf("%s → %s: %w", n.Status, StatusProcessed, ErrInvalidState)
	}
	n.ASPProcessingCode = &code
	n.ASPProcessingLabel = &label
	return n.transitionTo(StatusProcessed, now)
}

// UpdateAsRejected applies a failed ASP outcome. Rejected notifications are
// terminal: the next date change creates a fresh one.
func (n *UpdateNotification) UpdateAsRejected(code, label string, now time.Time) error {
	if n.Status != StatusSent {
		return fmt.Errorf("%s → %s: %w", n.Status, StatusRejected, ErrInvalidState)
	}
	n.ASPProcessingCode = &code
	n.ASPProcessingLabel = &label
	return n.transitionTo(StatusRejected, now)
}
