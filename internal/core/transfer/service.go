package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gip-inclusion/employee-records/internal/core/employeerecord"
	"github.com/gip-inclusion/employee-records/internal/core/jobapplication"
	"github.com/gip-inclusion/employee-records/internal/core/notification"
	"github.com/sirupsen/logrus"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager abstracts transaction control.
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// Publisher broadcasts lifecycle events to interested consumers. Publishing
// is best effort: a failed publish never fails the exchange cycle.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) error { return nil }

// Event names published during exchange cycles.
const (
	EventBatchUploaded    = "employee_record.batch_uploaded"
	EventRecordProcessed  = "employee_record.processed"
	EventRecordRejected   = "employee_record.rejected"
	EventNotificationSent = "employee_record.notification_sent"
)

// Service runs the exchange cycles against the ASP gateway.
type Service struct {
	records       employeerecord.Repository
	notifications notification.Repository
	notifier      *notification.Service
	transport     Transport
	clock         Clock
	tx            TransactionManager
	publisher     Publisher
	log           logrus.FieldLogger

	// DryRun serializes and reports without uploading or mutating.
	DryRun bool
}

// Options carries the optional collaborators of a Service.
type Options struct {
	Clock     Clock
	Publisher Publisher
	Logger    logrus.FieldLogger
	DryRun    bool
}

// NewService creates a Service.
func NewService(
	records employeerecord.Repository,
	notifications notification.Repository,
	notifier *notification.Service,
	transport Transport,
	tx TransactionManager,
	opts Options,
) *Service {
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Publisher == nil {
		opts.Publisher = noopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{
		records:       records,
		notifications: notifications,
		notifier:      notifier,
		transport:     transport,
		clock:         opts.Clock,
		tx:            tx,
		publisher:     opts.Publisher,
		log:           opts.Logger,
		DryRun:        opts.DryRun,
	}
}

// UploadResult reports one upload cycle.
type UploadResult struct {
	Filename string
	Sent     int
	Skipped  int
}

// Preflight runs the serialization of every READY record without touching
// the gateway, then checks gateway connectivity. It surfaces records that
// would fail at upload time.
func (s *Service) Preflight(ctx context.Context) error {
	var failed int
	err := s.tx.WithinReadOnly(ctx, func(ctx context.Context) error {
		ready, err := s.records.ListReadyForTransfer(ctx, employeerecord.MaxRecordsPerBatch)
		if err != nil {
			return err
		}
		for _, er := range ready {
			if _, err := employeerecord.BuildRecord(er); err != nil {
				failed++
				s.log.WithFields(logrus.Fields{
					"employee_record": er.ID,
					"error":           err,
				}).Warn("record would fail serialization")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("transfer: %d records would fail serialization", failed)
	}
	return s.transport.Check(ctx)
}

// Upload extracts READY records in creation order, wraps them in a batch
// file, pushes the file and marks each record SENT with its line number and
// the exact payload transmitted.
func (s *Service) Upload(ctx context.Context) (*UploadResult, error) {
	var ready []*employeerecord.EmployeeRecord
	err := s.tx.WithinReadOnly(ctx, func(ctx context.Context) error {
		var err error
		ready, err = s.records.ListReadyForTransfer(ctx, employeerecord.MaxRecordsPerBatch)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(ready) == 0 {
		s.log.Info("no records ready for transfer")
		return &UploadResult{}, nil
	}

	batch, err := employeerecord.NewBatch(ready, s.clock.Now())
	if err != nil {
		return nil, err
	}
	payload, err := batch.Serialize()
	if err != nil {
		return nil, err
	}

	if s.DryRun {
		s.log.WithFields(logrus.Fields{
			"filename": batch.Filename,
			"records":  len(batch.Records),
		}).Info("dry run, upload skipped")
		return &UploadResult{Filename: batch.Filename, Skipped: len(batch.Records)}, nil
	}

	if err := s.transport.Upload(ctx, batch.Filename, payload); err != nil {
		return nil, fmt.Errorf("transfer: upload %s: %w", batch.Filename, err)
	}

	result := &UploadResult{Filename: batch.Filename}
	for _, er := range batch.Records {
		if err := s.markSent(ctx, er, batch.Filename); err != nil {
			// The file is already on the gateway. Keep going so the other
			// records are correlated when feedback arrives.
			result.Skipped++
			s.log.WithFields(logrus.Fields{
				"employee_record": er.ID,
				"error":           err,
			}).Error("record uploaded but not marked sent")
			continue
		}
		result.Sent++
	}

	s.publish(ctx, EventBatchUploaded, map[string]any{
		"filename": batch.Filename,
		"records":  result.Sent,
	})
	return result, nil
}

func (s *Service) markSent(ctx context.Context, er *employeerecord.EmployeeRecord, filename string) error {
	archive, err := employeerecord.BuildRecord(er)
	if err != nil {
		return err
	}
	payload, err := marshalRecord(archive)
	if err != nil {
		return err
	}

	return s.tx.WithinReadWrite(ctx, func(ctx context.Context) error {
		locked, err := s.records.FindByIDForUpdate(ctx, er.ID)
		if err != nil {
			return err
		}
		lineNumber := 1
		if er.ASPBatchLineNumber != nil {
			lineNumber = *er.ASPBatchLineNumber
		}
		if err := locked.UpdateAsSent(filename, lineNumber, payload, s.clock.Now()); err != nil {
			return err
		}
		_, err = s.records.Update(ctx, locked)
		return err
	})
}

// DownloadResult reports one download cycle.
type DownloadResult struct {
	Files     int
	Processed int
	Rejected  int
	Skipped   int
}

// Download fetches the feedback files waiting on the gateway, applies each
// verdict to the matching record and deletes files that were fully applied.
// Applying the same feedback twice is a no-op.
func (s *Service) Download(ctx context.Context) (*DownloadResult, error) {
	filenames, err := s.transport.ListFeedback(ctx)
	if err != nil {
		return nil, fmt.Errorf("transfer: list feedback: %w", err)
	}

	result := &DownloadResult{}
	for _, feedbackName := range filenames {
		clean, err := s.applyFeedbackFile(ctx, feedbackName, result)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"filename": feedbackName,
				"error":    err,
			}).Error("feedback file not applied")
			continue
		}
		result.Files++
		if clean && !s.DryRun {
			if err := s.transport.DeleteFeedback(ctx, feedbackName); err != nil {
				s.log.WithFields(logrus.Fields{
					"filename": feedbackName,
					"error":    err,
				}).Warn("feedback file applied but not deleted")
			}
		}
	}
	return result, nil
}

// applyFeedbackFile reports whether every line of the file was applied.
func (s *Service) applyFeedbackFile(ctx context.Context, feedbackName string, result *DownloadResult) (bool, error) {
	uploadName, err := UploadFilenameFromFeedback(feedbackName)
	if err != nil {
		return false, err
	}
	payload, err := s.transport.DownloadFeedback(ctx, feedbackName)
	if err != nil {
		return false, err
	}
	lines, err := ParseFeedback(payload)
	if err != nil {
		return false, err
	}

	clean := true
	for _, line := range lines {
		if line.CodeTraitement == nil {
			clean = false
			continue
		}
		if s.DryRun {
			result.Skipped++
			continue
		}
		if err := s.applyLine(ctx, uploadName, line, result); err != nil {
			clean = false
			s.log.WithFields(logrus.Fields{
				"filename": uploadName,
				"line":     line.NumLigne,
				"error":    err,
			}).Error("feedback line not applied")
		}
	}
	return clean, nil
}

func (s *Service) applyLine(ctx context.Context, uploadName string, line FeedbackLine, result *DownloadResult) error {
	if line.TypeMouvement == employeerecord.MovementTypeUpdate {
		return s.applyNotificationLine(ctx, uploadName, line, result)
	}

	code := *line.CodeTraitement
	label := ""
	if line.LibelleTraitement != nil {
		label = *line.LibelleTraitement
	}

	return s.tx.WithinReadWrite(ctx, func(ctx context.Context) error {
		er, err := s.records.FindByBatch(ctx, uploadName, line.NumLigne)
		if err != nil {
			return err
		}

		switch er.Status {
		case employeerecord.StatusDisabled:
			// Late feedback for a record taken out of processing.
			result.Skipped++
			return nil
		case employeerecord.StatusProcessed, employeerecord.StatusRejected:
			// Feedback already applied, idempotent replay.
			result.Skipped++
			return nil
		case employeerecord.StatusSent:
		default:
			return fmt.Errorf("record %s: %w", er.ID, employeerecord.ErrInvalidState)
		}

		now := s.clock.Now()
		if code == employeerecord.ASPProcessingSuccessCode {
			archive, err := archivePayload(er)
			if err != nil {
				return err
			}
			if err := er.UpdateAsProcessed(code, label, archive, now); err != nil {
				return err
			}
			result.Processed++
			s.publish(ctx, EventRecordProcessed, map[string]any{"employee_record": er.ID})
		} else {
			if err := er.UpdateAsRejected(code, label, nil, now); err != nil {
				return err
			}
			result.Rejected++
			s.publish(ctx, EventRecordRejected, map[string]any{
				"employee_record": er.ID,
				"code":            code,
			})
		}

		if _, err := s.records.Update(ctx, er); err != nil {
			return err
		}

		if code == employeerecord.ASPDuplicateErrorCode {
			return s.forceDuplicate(ctx, er)
		}
		return nil
	})
}

// forceDuplicate promotes a rejection with the ASP duplicate code straight
// to PROCESSED, and queues an update notification when the approval carries
// date amendments ASP does not know about.
func (s *Service) forceDuplicate(ctx context.Context, er *employeerecord.EmployeeRecord) error {
	archive, err := archivePayload(er)
	if err != nil {
		archive = nil
	}
	if err := er.UpdateAsProcessedAsDuplicate(archive, s.clock.Now()); err != nil {
		return err
	}
	if _, err := s.records.Update(ctx, er); err != nil {
		return err
	}

	approval := approvalOf(er)
	if approval == nil || !approval.HasDateAmendments {
		return nil
	}
	_, err = s.notifier.NotifyApprovalUpdate(ctx, notification.NotifyInput{
		EmployeeRecord: er,
		StartAt:        approval.StartAt,
		EndAt:          approval.EndAt,
	})
	return err
}

func (s *Service) applyNotificationLine(ctx context.Context, uploadName string, line FeedbackLine, result *DownloadResult) error {
	code := *line.CodeTraitement
	label := ""
	if line.LibelleTraitement != nil {
		label = *line.LibelleTraitement
	}

	return s.tx.WithinReadWrite(ctx, func(ctx context.Context) error {
		n, err := s.notifications.FindByBatch(ctx, uploadName, line.NumLigne)
		if err != nil {
			return err
		}
		if n.Status == notification.StatusProcessed || n.Status == notification.StatusRejected {
			result.Skipped++
			return nil
		}

		now := s.clock.Now()
		if code == employeerecord.ASPProcessingSuccessCode {
			err = n.UpdateAsProcessed(code, label, now)
			result.Processed++
		} else {
			err = n.UpdateAsRejected(code, label, now)
			result.Rejected++
		}
		if err != nil {
			return err
		}
		_, err = s.notifications.Update(ctx, n)
		return err
	})
}

// UploadUpdates pushes pending approval update notifications in their own
// batch file. Notifications never share a file with employee records.
func (s *Service) UploadUpdates(ctx context.Context) (*UploadResult, error) {
	var pending []*notification.UpdateNotification
	err := s.tx.WithinReadOnly(ctx, func(ctx context.Context) error {
		var err error
		pending, err = s.notifications.ListNewForTransfer(ctx, employeerecord.MaxRecordsPerBatch)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		s.log.Info("no update notifications to transfer")
		return &UploadResult{}, nil
	}

	batch, err := notification.NewBatch(employeerecord.BatchFilename(s.clock.Now()), pending)
	if err != nil {
		return nil, err
	}
	payload, err := batch.Serialize()
	if err != nil {
		return nil, err
	}

	if s.DryRun {
		return &UploadResult{Filename: batch.Filename, Skipped: len(batch.Notifications)}, nil
	}

	if err := s.transport.Upload(ctx, batch.Filename, payload); err != nil {
		return nil, fmt.Errorf("transfer: upload %s: %w", batch.Filename, err)
	}

	result := &UploadResult{Filename: batch.Filename}
	for _, n := range batch.Notifications {
		err := s.tx.WithinReadWrite(ctx, func(ctx context.Context) error {
			locked, err := s.notifications.FindByIDForUpdate(ctx, n.ID)
			if err != nil {
				return err
			}
			lineNumber := 1
			if n.ASPBatchLineNumber != nil {
				lineNumber = *n.ASPBatchLineNumber
			}
			if err := locked.UpdateAsSent(batch.Filename, lineNumber, s.clock.Now()); err != nil {
				return err
			}
			_, err = s.notifications.Update(ctx, locked)
			return err
		})
		if err != nil {
			result.Skipped++
			s.log.WithFields(logrus.Fields{
				"notification": n.ID,
				"error":        err,
			}).Error("notification uploaded but not marked sent")
			continue
		}
		result.Sent++
	}

	s.publish(ctx, EventNotificationSent, map[string]any{
		"filename":      batch.Filename,
		"notifications": result.Sent,
	})
	return result, nil
}

func (s *Service) publish(ctx context.Context, event string, payload any) {
	if err := s.publisher.Publish(ctx, event, payload); err != nil {
		s.log.WithFields(logrus.Fields{
			"event": event,
			"error": err,
		}).Warn("event not published")
	}
}

func approvalOf(er *employeerecord.EmployeeRecord) *jobapplication.Approval {
	if er.JobApplication == nil {
		return nil
	}
	return er.JobApplication.Approval
}

func archivePayload(er *employeerecord.EmployeeRecord) ([]byte, error) {
	record, err := employeerecord.BuildRecord(er)
	if err != nil {
		return nil, err
	}
	return marshalRecord(record)
}

func marshalRecord(record *employeerecord.Record) ([]byte, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("transfer: marshal record: %w", err)
	}
	return payload, nil
}
