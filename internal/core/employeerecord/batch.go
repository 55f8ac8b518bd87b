package employeerecord

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MaxRecordsPerBatch is the ASP cap on records per upload file.
	MaxRecordsPerBatch = 700

	// MaxBatchSizeBytes is the ASP cap on the serialized upload file.
	MaxBatchSizeBytes = 2048 * 1024

	batchFilenamePrefix  = "RIAE_FS_"
	batchFilenameSuffix  = ".json"
	batchFilenameLength  = 27
	batchTimestampLayout = "20060102150405"

	// feedbackFileSuffix terminates the name of ASP response files.
	feedbackFileSuffix = "_FichierRetour"
)

// ValidateBatchFilename checks the exact ASP upload filename format:
// "RIAE_FS_" + AAAAMMJJHHMMSS + ".json", 27 characters. The ASP backend is
// picky about it.
func ValidateBatchFilename(filename string) error {
	if len(filename) == batchFilenameLength &&
		strings.HasPrefix(filename, batchFilenamePrefix) &&
		strings.HasSuffix(filename, batchFilenameSuffix) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidBatchFilename, filename)
}

// BatchFilename builds the upload filename for a batch generated at the
// given instant.
func BatchFilename(now time.Time) string {
	return batchFilenamePrefix + now.UTC().Format(batchTimestampLayout) + batchFilenameSuffix
}

// FeedbackFilename returns the name of the ASP response file matching an
// upload filename.
func FeedbackFilename(filename string) (string, error) {
	if err := ValidateBatchFilename(filename); err != nil {
		return "", err
	}
	stem, ext, _ := strings.Cut(filename, ".")
	return stem + feedbackFileSuffix + "." + ext, nil
}

// BatchFilenameFromFeedback recovers the original upload filename from an
// ASP response filename.
func BatchFilenameFromFeedback(feedback string) (string, error) {
	stem, ext, found := strings.Cut(feedback, ".")
	if !found || !strings.HasSuffix(stem, feedbackFileSuffix) {
		return "", fmt.Errorf("%w: %q", ErrBadFeedbackFilename, feedback)
	}
	return strings.TrimSuffix(stem, feedbackFileSuffix) + "." + ext, nil
}

// Batch is the transient wrapper around the records of one upload file.
// Line numbers are assigned here, in slice order, starting at 1: callers
// must hand records in a stable order (creation order) so the recorded
// line numbers are reproducible.
type Batch struct {
	Filename string
	Records  []*EmployeeRecord
}

// NewBatch wraps up to MaxRecordsPerBatch records into a named batch and
// assigns their line numbers. Processing code and label are cleared: they
// belong to the forthcoming ASP response, not to the upload.
func NewBatch(records []*EmployeeRecord, now time.Time) (*Batch, error) {
	if len(records) > MaxRecordsPerBatch {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooManyRecords, len(records), MaxRecordsPerBatch)
	}

	for i, er := range records {
		line := i + 1
		er.ASPBatchLineNumber = &line
		er.ASPProcessingCode = nil
		er.ASPProcessingLabel = nil
	}

	return &Batch{
		Filename: BatchFilename(now),
		Records:  records,
	}, nil
}
