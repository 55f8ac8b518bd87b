package employeerecord

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gip-inclusion/employee-records/internal/core/jobapplication"
	"github.com/google/uuid"
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

// Service groups the employee record use cases.
type Service struct {
	repo  Repository
	clock Clock
	tx    TransactionManager
}

// UseCase is the public interface of the employee record use cases.
type UseCase interface {
	CreateFromJobApplication(ctx context.Context, in CreateInput) (*EmployeeRecord, error)
	Get(ctx context.Context, in GetInput) (*EmployeeRecord, error)
	Ready(ctx context.Context, in ReadyInput) (*EmployeeRecord, error)
	Disable(ctx context.Context, in DisableInput) (*EmployeeRecord, error)
	Reactivate(ctx context.Context, in ReactivateInput) (*EmployeeRecord, error)
	ProcessAsDuplicate(ctx context.Context, in ProcessAsDuplicateInput) (*EmployeeRecord, error)
	ArchiveStale(ctx context.Context, in ArchiveStaleInput) (*ArchiveStaleResult, error)
	CloneOrphans(ctx context.Context, in CloneOrphansInput) (*CloneOrphansResult, error)
}

// NewService creates a Service.
func NewService(repo Repository, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, clock: clock, tx: tx}
}

// CreateInput carries the accepted job application a record is built from.
type CreateInput struct {
	JobApplication *jobapplication.JobApplication
}

// GetInput identifies a record.
type GetInput struct {
	ID string
}

// ReadyInput identifies a record to submit for transfer.
type ReadyInput struct {
	ID string
}

// DisableInput identifies a record to take out of processing.
type DisableInput struct {
	ID string
}

// ReactivateInput identifies a disabled record to bring back to NEW.
type ReactivateInput struct {
	ID string
}

// ProcessAsDuplicateInput identifies a rejected record to force to PROCESSED.
type ProcessAsDuplicateInput struct {
	ID string
}

// ArchiveStaleInput bounds one archiving pass.
type ArchiveStaleInput struct {
	Limit int
}

// ArchiveStaleResult reports one archiving pass.
type ArchiveStaleResult struct {
	Archived int
	Skipped  int
}

// CloneOrphansInput drives one reconciliation run. WetRun false reports
// without mutating anything.
type CloneOrphansInput struct {
	OldASPID int64
	NewASPID int64
	WetRun   bool
}

// CloneOutcome is the per-record result of a reconciliation run.
type CloneOutcome struct {
	SourceID string
	CloneID  string
	Err      error
}

// CloneOrphansResult reports one reconciliation run.
type CloneOrphansResult struct {
	Candidates []*EmployeeRecord
	Outcomes   []CloneOutcome
}

// CreateFromJobApplication builds a new employee record from an accepted
// hiring, after the eligibility gate. The ASP attachment, SIRET and approval
// number are captured as they stand now and no longer track their sources.
func (s *Service) CreateFromJobApplication(ctx context.Context, in CreateInput) (*EmployeeRecord, error) {
	ja := in.JobApplication
	if ja == nil {
		return nil, ErrMissingJobApplication
	}
	if err := ja.CheckEligibility(); err != nil {
		return nil, err
	}

	var created *EmployeeRecord
	err := s.tx.WithinReadWrite(ctx, func(ctx context.Context) error {
		exists, err := s.repo.ExistsLive(ctx, ja.Company.Convention.ASPID, ja.Approval.Number)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicate
		}

		now := s.clock.Now()
		er := &EmployeeRecord{
			ID:               uuid.NewString(),
			Status:           StatusNew,
			JobApplicationID: ja.ID,
			ASPID:            ja.Company.Convention.ASPID,
			ApprovalNumber:   ja.Approval.Number,
			SIRET:            ja.Company.SIRET,
			CreatedAt:        now,
			UpdatedAt:        now,
			JobApplication:   ja,
		}

		created, err = s.repo.Create(ctx, er)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get loads a record by ID.
func (s *Service) Get(ctx context.Context, in GetInput) (*EmployeeRecord, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}
	var found *EmployeeRecord
	err := s.tx.WithinReadOnly(ctx, func(ctx context.Context) error {
		var err error
		found, err = s.repo.FindByID(ctx, in.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Ready submits a NEW or REJECTED record for the next upload, re-validating
// the profile snapshot first.
func (s *Service) Ready(ctx context.Context, in ReadyInput) (*EmployeeRecord, error) {
	return s.mutate(ctx, in.ID, func(er *EmployeeRecord, now time.Time) error {
		return er.UpdateAsReady(now)
	})
}

// Disable takes a live record out of processing.
func (s *Service) Disable(ctx context.Context, in DisableInput) (*EmployeeRecord, error) {
	return s.mutate(ctx, in.ID, func(er *EmployeeRecord, now time.Time) error {
		return er.UpdateAsDisabled(now)
	})
}

// Reactivate brings a disabled record back to NEW so it can be resubmitted.
func (s *Service) Reactivate(ctx context.Context, in ReactivateInput) (*EmployeeRecord, error) {
	return s.mutate(ctx, in.ID, func(er *EmployeeRecord, now time.Time) error {
		return er.UpdateAsNew(now)
	})
}

// ProcessAsDuplicate forces a record rejected as an ASP duplicate to the
// PROCESSED state.
func (s *Service) ProcessAsDuplicate(ctx context.Context, in ProcessAsDuplicateInput) (*EmployeeRecord, error) {
	return s.mutate(ctx, in.ID, func(er *EmployeeRecord, now time.Time) error {
		archive, err := marshalArchive(er)
		if err != nil {
			archive = nil
		}
		return er.UpdateAsProcessedAsDuplicate(archive, now)
	})
}

// ArchiveStale archives processed records that sat untouched for the full
// archiving delay, dropping their stored payloads. Records still too recent
// are counted and skipped.
func (s *Service) ArchiveStale(ctx context.Context, in ArchiveStaleInput) (*ArchiveStaleResult, error) {
	result := &ArchiveStaleResult{}
	err := s.tx.WithinReadWrite(ctx, func(ctx context.Context) error {
		candidates, err := s.repo.ListArchivable(ctx, in.Limit)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		for _, er := range candidates {
			if err := er.UpdateAsArchived(now); err != nil {
				result.Skipped++
				continue
			}
			if _, err := s.repo.Update(ctx, er); err != nil {
				return fmt.Errorf("archive %s: %w", er.ID, err)
			}
			result.Archived++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CloneOrphans re-associates records stranded on a superseded ASP
// attachment by cloning each one under the new attachment. Sources are left
// untouched so both rows stay auditable, and each clone is an independent
// unit of work: one failure does not roll back the others.
func (s *Service) CloneOrphans(ctx context.Context, in CloneOrphansInput) (*CloneOrphansResult, error) {
	if in.OldASPID <= 0 || in.NewASPID <= 0 || in.OldASPID == in.NewASPID {
		return nil, ErrInvalidASPID
	}

	var candidates []*EmployeeRecord
	err := s.tx.WithinReadOnly(ctx, func(ctx context.Context) error {
		orphans, err := s.repo.ListOrphans(ctx, in.OldASPID)
		if err != nil {
			return err
		}
		for _, er := range orphans {
			if currentASPID(er) != in.NewASPID {
				continue
			}
			candidates = append(candidates, er)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &CloneOrphansResult{Candidates: candidates}
	if !in.WetRun {
		return result, nil
	}

	for _, source := range candidates {
		cloneID, err := s.cloneOne(ctx, source, in.NewASPID)
		result.Outcomes = append(result.Outcomes, CloneOutcome{
			SourceID: source.ID,
			CloneID:  cloneID,
			Err:      err,
		})
	}
	return result, nil
}

// cloneOne copies one orphan under the new ASP attachment in its own
// transaction.
func (s *Service) cloneOne(ctx context.Context, source *EmployeeRecord, newASPID int64) (string, error) {
	if !source.IsOrphan() {
		return "", ErrNotAnOrphan
	}

	now := s.clock.Now()
	label := fmt.Sprintf("%s (copie de %s)", ASPCloneMessage, source.ID)
	clone := &EmployeeRecord{
		ID:                 uuid.NewString(),
		Status:             StatusNew,
		JobApplicationID:   source.JobApplicationID,
		ASPID:              newASPID,
		ApprovalNumber:     source.ApprovalNumber,
		SIRET:              source.SIRET,
		ASPProcessingLabel: &label,
		CreatedAt:          now,
		UpdatedAt:          now,
		JobApplication:     source.JobApplication,
	}

	err := s.tx.WithinReadWrite(ctx, func(ctx context.Context) error {
		_, err := s.repo.Create(ctx, clone)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("clone %s: %w", source.ID, err)
	}
	return clone.ID, nil
}

// mutate runs one lifecycle transition on a row locked for the duration of
// the transaction.
func (s *Service) mutate(ctx context.Context, id string, fn func(*EmployeeRecord, time.Time) error) (*EmployeeRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var updated *EmployeeRecord
	err := s.tx.WithinReadWrite(ctx, func(ctx context.Context) error {
		er, err := s.repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(er, s.clock.Now()); err != nil {
			return err
		}
		updated, err = s.repo.Update(ctx, er)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// currentASPID is the ASP attachment the record's company points to today,
// 0 when the snapshot chain is incomplete.
func currentASPID(er *EmployeeRecord) int64 {
	if er.JobApplication == nil || er.JobApplication.Company == nil || er.JobApplication.Company.Convention == nil {
		return 0
	}
	return er.JobApplication.Company.Convention.ASPID
}

// marshalArchive freezes the serialized form of a record before a forced
// transition, for later audit.
func marshalArchive(er *EmployeeRecord) (json.RawMessage, error) {
	record, err := BuildRecord(er)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("archive record %s: %w", er.ID, err)
	}
	return payload, nil
}
