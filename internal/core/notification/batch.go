package notification

import (
	"encoding/json"
	"fmt"

	"github.com/gip-inclusion/employee-records/internal/core/employeerecord"
)

// Batch is one upload file of update notifications. Notifications and
// employee records never share a file.
type Batch struct {
	Filename      string
	Notifications []*UpdateNotification
}

// NewBatch assigns line numbers in slice order and enforces the per-file
// record cap.
func NewBatch(filename string, notifications []*UpdateNotification) (*Batch, error) {
	if err := employeerecord.ValidateBatchFilename(filename); err != nil {
		return nil, err
	}
	if len(notifications) > employeerecord.MaxRecordsPerBatch {
		return nil, fmt.Errorf("%w: %d notifications", employeerecord.ErrBatchTooManyRecords, len(notifications))
	}

	for i, n := range notifications {
		line := i + 1
		n.ASPBatchLineNumber = &line
		n.ASPProcessingCode = nil
		n.ASPProcessingLabel = nil
	}
	return &Batch{Filename: filename, Notifications: notifications}, nil
}

// Serialize renders the batch as the ASP upload document.
func (b *Batch) Serialize() ([]byte, error) {
	lines := make([]employeerecord.Record, 0, len(b.Notifications))
	for _, n := range b.Notifications {
		lineNumber := 1
		if n.ASPBatchLineNumber != nil {
			lineNumber = *n.ASPBatchLineNumber
		}
		record, err := employeerecord.BuildUpdateRecord(n.EmployeeRecord, n.StartAt, n.EndAt, lineNumber)
		if err != nil {
			return nil, fmt.Errorf("notification %s: %w", n.ID, err)
		}
		lines = append(lines, *record)
	}

	payload, err := json.Marshal(employeerecord.BatchFile{LignesTelechargement: lines})
	if err != nil {
		return nil, fmt.Errorf("marshal batch %s: %w", b.Filename, err)
	}
	if len(payload) > employeerecord.MaxBatchSizeBytes {
		return nil, fmt.Errorf("%w: %d bytes", employeerecord.ErrBatchFileTooLarge, len(payload))
	}
	return payload, nil
}
