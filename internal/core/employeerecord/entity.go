package employeerecord

import (
	"fmt"
	"time"

	"github.com/gip-inclusion/employee-records/internal/core/jobapplication"
)

const (
	// ASPProcessingSuccessCode is the return code ASP uses for an
	// integrated record.
	ASPProcessingSuccessCode = "0000"

	// ASPDuplicateErrorCode marks a record ASP rejected because it already
	// knows it. Such rejections are force-promoted to PROCESSED.
	ASPDuplicateErrorCode = "3436"

	// ASPDuplicateProcessingLabel is stored when a duplicate rejection is
	// forced to PROCESSED.
	ASPDuplicateProcessingLabel = "Statut forcé suite à doublon ASP"

	// ASPCloneMessage is stored on records created by the orphan
	// reconciliation command.
	ASPCloneMessage = "Fiche salarié clonée"

	// MovementTypeCreate and MovementTypeUpdate are the ASP "typeMouvement"
	// codes for initial records and update notifications.
	MovementTypeCreate = "C"
	MovementTypeUpdate = "M"

	// ArchivingDelayInDays is how long a PROCESSED record is kept before it
	// may age into ARCHIVED.
	ArchivingDelayInDays = 13 * 30
)

// EmployeeRecord is one "fiche salarié": the durable row tracking a hiring
// across ASP submission batches.
//
// ASPID is captured from the company convention at creation time and does
// not track later convention changes: the clone-orphans command is the only
// sanctioned way to correct it.
type EmployeeRecord struct {
	ID     string
	Status Status

	JobApplicationID string
	ASPID            int64
	ApprovalNumber   string
	SIRET            string

	ASPBatchFile       *string
	ASPBatchLineNumber *int
	ASPProcessingCode  *string
	ASPProcessingLabel *string

	// ArchivedPayload is the serialized record as acknowledged by ASP,
	// kept as proof once the record is PROCESSED.
	ArchivedPayload []byte

	ProcessedAsDuplicate bool

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProcessedAt *time.Time

	// JobApplication is the read snapshot the record was created from.
	JobApplication *jobapplication.JobApplication
}

func (er *EmployeeRecord) String() string {
	return fmt.Sprintf("%d - %s", er.ASPID, er.ApprovalNumber)
}

// IsOrphan reports whether the snapshot ASP id no longer matches the owning
// company's current convention.
func (er *EmployeeRecord) IsOrphan() bool {
	if er.JobApplication == nil || er.JobApplication.Company == nil || er.JobApplication.Company.Convention == nil {
		return false
	}
	return er.JobApplication.Company.Convention.ASPID != er.ASPID
}

func (er *EmployeeRecord) transitionTo(to Status, now time.Time) error {
	if !CanTransition(er.Status, to) {
		return fmt.Errorf("%s → %s: %w", er.Status, to, ErrInvalidState)
	}
	er.Status = to
	er.UpdatedAt = now
	return nil
}

// UpdateAsReady prepares the record for transmission. The linked job seeker
// profile must be complete; NEW and REJECTED (resubmission after correction)
// are the only accepted source states.
func (er *EmployeeRecord) UpdateAsReady(now time.Time) error {
	if er.Status != StatusNew && er.Status != StatusRejected {
		return fmt.Errorf("%s → %s: %w", er.Status, StatusReady, ErrInvalidState)
	}
	if er.JobApplication == nil {
		return ErrMissingJobApplication
	}
	if err := er.JobApplication.ValidateForEmployeeRecord(); err != nil {
		return err
	}
	return er.transitionTo(StatusReady, now)
}

// UpdateAsSent records in which batch file and at which line the record was
// transmitted. The archive parameter keeps the exact payload sent, for audit.
func (er *EmployeeRecord) UpdateAsSent(filename string, lineNumber int, archive []byte, now time.Time) error {
	if er.Status != StatusReady {
		return fmt.Errorf("%s → %s: %w", er.Status, StatusSent, ErrInvalidState)
	}
	if err := ValidateBatchFilename(filename); err != nil {
		return err
	}
	if lineNumber < 1 {
		return ErrInvalidLineNumber
	}

	er.ASPBatchFile = &filename
	er.ASPBatchLineNumber = &lineNumber
	if archive != nil {
		er.ArchivedPayload = archive
	}
	return er.transitionTo(StatusSent, now)
}

// UpdateAsProcessed applies a successful ASP outcome. The response code and
// label are stored verbatim, the acknowledged payload replaces the archive.
func (er *EmployeeRecord) UpdateAsProcessed(code, label string, archive []byte, now time.Time) error {
	if er.Status != StatusSent {
		return fmt.Errorf("%s → %s: %w", er.Status, StatusProcessed, ErrInvalidState)
	}

	er.ASPProcessingCode = &code
	er.ASPProcessingLabel = &label
	er.ArchivedPayload = archive
	er.ProcessedAt = &now
	er.ProcessedAsDuplicate = false
	return er.transitionTo(StatusProcessed, now)
}

// UpdateAsRejected applies a failed ASP outcome. The record stays correctable:
// UpdateAsReady accepts REJECTED records for resubmission.
func (er *EmployeeRecord) UpdateAsRejected(code, label string, archive []byte, now time.Time) error {
	if er.Status != StatusSent {
		return fmt.Errorf("%s → %s: %w", er.Status, StatusRejected, ErrInvalidState)
	}

	er.ASPProcessingCode = &code
	er.ASPProcessingLabel = &label
	if archive != nil {
		er.ArchivedPayload = archive
	}
	return er.transitionTo(StatusRejected, now)
}

// UpdateAsProcessedAsDuplicate forces a REJECTED record carrying the ASP
// duplicate error code to PROCESSED: ASP already knows the record, there is
// nothing to resubmit.
func (er *EmployeeRecord) UpdateAsProcessedAsDuplicate(archive []byte, now time.Time) error {
	if er.Status != StatusRejected || er.ASPProcessingCode == nil || *er.ASPProcessingCode != ASPDuplicateErrorCode {
		return fmt.Errorf("%w: %w", ErrNotADuplicateRejection, ErrInvalidState)
	}

	label := ASPDuplicateProcessingLabel
	er.ASPProcessingLabel = &label
	er.ArchivedPayload = archive
	er.ProcessedAt = &now
	er.ProcessedAsDuplicate = true
	return er.transitionTo(StatusProcessed, now)
}

// UpdateAsDisabled takes the record out of the live set. Disabled records are
// never extracted for transmission and late ASP feedback for them is ignored.
func (er *EmployeeRecord) UpdateAsDisabled(now time.Time) error {
	return er.transitionTo(StatusDisabled, now)
}

// UpdateAsNew reactivates a DISABLED record. Transmission history is kept as
// audit trail but the record goes through the full cycle again.
func (er *EmployeeRecord) UpdateAsNew(now time.Time) error {
	return er.transitionTo(StatusNew, now)
}

// UpdateAsArchived ages a PROCESSED record into ARCHIVED once the archiving
// delay has elapsed. The stored payload is dropped.
func (er *EmployeeRecord) UpdateAsArchived(now time.Time) error {
	if er.Status != StatusProcessed {
		return fmt.Errorf("%s → %s: %w", er.Status, StatusArchived, ErrInvalidState)
	}
	if er.ProcessedAt == nil || now.Sub(*er.ProcessedAt) < ArchivingDelayInDays*24*time.Hour {
		return ErrTooRecentToArchive
	}

	er.ArchivedPayload = nil
	return er.transitionTo(StatusArchived, now)
}
