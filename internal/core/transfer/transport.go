// Package transfer drives the exchange cycles with the ASP SFTP gateway:
// uploading batches of ready records, downloading feedback files and
// applying their verdicts, and pushing approval update notifications.
package transfer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gip-inclusion/employee-records/internal/core/employeerecord"
)

// Transport moves files to and from the remote gateway. Implementations
// must tolerate being pointed at an empty remote.
type Transport interface {
	// Upload writes payload under filename in the remote upload directory.
	Upload(ctx context.Context, filename string, payload []byte) error
	// ListFeedback names the files waiting in the remote feedback directory.
	ListFeedback(ctx context.Context) ([]string, error)
	// DownloadFeedback reads one feedback file.
	DownloadFeedback(ctx context.Context, filename string) ([]byte, error)
	// DeleteFeedback removes a fully processed feedback file.
	DeleteFeedback(ctx context.Context, filename string) error
	// Check verifies connectivity and directory access without moving data.
	Check(ctx context.Context) error
}

// FeedbackLine is one processed line of a feedback file. Only the fields
// needed for correlation and verdicts are read; the rest of the echoed
// record is ignored.
type FeedbackLine struct {
	NumLigne          int     `json:"numLigne"`
	TypeMouvement     string  `json:"typeMouvement"`
	CodeTraitement    *string `json:"codeTraitement"`
	LibelleTraitement *string `json:"libelleTraitement"`
}

type feedbackFile struct {
	LignesTelechargement []FeedbackLine `json:"lignesTelechargement"`
}

// ParseFeedback decodes a feedback file and returns its lines.
func ParseFeedback(payload []byte) ([]FeedbackLine, error) {
	var file feedbackFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return nil, fmt.Errorf("transfer: decode feedback: %w", err)
	}
	return file.LignesTelechargement, nil
}

// UploadFilenameFromFeedback maps a feedback filename back to the upload
// file it answers.
func UploadFilenameFromFeedback(feedbackFilename string) (string, error) {
	return employeerecord.BatchFilenameFromFeedback(feedbackFilename)
}
