// Package employeerecord implements the "fiche salarié" (employee record)
// lifecycle: the record created for an accepted hiring, serialized into ASP
// batch files and reconciled against ASP feedback.
//
// Valid status graph:
//
//	NEW ──► READY ──► SENT ──► PROCESSED ──► ARCHIVED
//	          ▲         │           ▲
//	          └────── REJECTED ─────┘ (duplicate forcing only)
//
// DISABLED is reachable from every state but ARCHIVED, and leads back to NEW
// on reactivation. PROCESSED and ARCHIVED are otherwise terminal.
package employeerecord

import "fmt"

// Status values mirror the employee_record_status enum in PostgreSQL.
type Status string

const (
	StatusNew       Status = "NEW"
	StatusReady     Status = "READY"
	StatusSent      Status = "SENT"
	StatusRejected  Status = "REJECTED"
	StatusProcessed Status = "PROCESSED"
	StatusDisabled  Status = "DISABLED"
	StatusArchived  Status = "ARCHIVED"
)

// validTransitions lists every allowed (from → to) pair.
// REJECTED → READY is the resubmission path after correction, and
// REJECTED → PROCESSED only exists for the ASP duplicate forcing case.
var validTransitions = map[Status][]Status{
	StatusNew:       {StatusReady, StatusDisabled},
	StatusReady:     {StatusSent, StatusDisabled},
	StatusSent:      {StatusProcessed, StatusRejected, StatusDisabled},
	StatusRejected:  {StatusReady, StatusProcessed, StatusDisabled},
	StatusProcessed: {StatusArchived, StatusDisabled},
	StatusDisabled:  {StatusNew},
	// ARCHIVED is terminal, no outgoing transitions.
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusNew, StatusReady, StatusSent, StatusRejected, StatusProcessed, StatusDisabled, StatusArchived:
		return st, nil
	}
	return "", fmt.Errorf("unknown employee record status %q", s)
}

// CanTransition returns true when moving from → to is permitted by the
// state machine.
func CanTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsLive reports whether the record counts against the one-live-record-per-
// job-application invariant. Disabled records do not.
func (s Status) IsLive() bool {
	return s != StatusDisabled
}

// HasBatchInfo reports whether a record in this status is expected to carry
// a batch filename and line number.
func (s Status) HasBatchInfo() bool {
	switch s {
	case StatusSent, StatusProcessed, StatusRejected, StatusArchived:
		return true
	default:
		return false
	}
}
