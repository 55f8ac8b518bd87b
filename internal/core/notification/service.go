package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gip-inclusion/employee-records/internal/core/employeerecord"
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

// Service groups the update notification use cases.
type Service struct {
	repo  Repository
	clock Clock
	tx    TransactionManager
}

// UseCase is the public interface of the update notification use cases.
type UseCase interface {
	NotifyApprovalUpdate(ctx context.Context, in NotifyInput) (*UpdateNotification, error)
	Get(ctx context.Context, in GetInput) (*UpdateNotification, error)
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

// NotifyInput carries an approval period change for one employee record.
type NotifyInput struct {
	EmployeeRecord *employeerecord.EmployeeRecord
	StartAt        time.Time
	EndAt          time.Time
}

// GetInput identifies a notification.
type GetInput struct {
	ID string
}

// NotifyApprovalUpdate queues an update notification for an integrated
// employee record whose approval period changed. When a NEW notification is
// already pending for the record, its period is refreshed instead of
// creating a second one.
func (s *Service) NotifyApprovalUpdate(ctx context.Context, in NotifyInput) (*UpdateNotification, error) {
	er := in.EmployeeRecord
	if er == nil {
		return nil, ErrMissingParent
	}
	if er.Status != employeerecord.StatusProcessed {
		return nil, fmt.Errorf("%s: %w", er.Status, ErrParentNotProcessed)
	}
	if !in.EndAt.After(in.StartAt) {
		return nil, ErrEmptyApprovalPeriod
	}

	var saved *UpdateNotification
	err := s.tx.WithinReadWrite(ctx, func(ctx context.Context) error {
		now := s.clock.Now()

		pending, err := s.repo.FindPending(ctx, er.ID)
		switch {
		case err == nil:
			pending.StartAt = in.StartAt
			pending.EndAt = in.EndAt
			pending.UpdatedAt = now
			saved, err = s.repo.Update(ctx, pending)
			return err
		case errors.Is(err, ErrNotFound):
			saved, err = s.repo.Create(ctx, &UpdateNotification{
				ID:               uuid.NewString(),
				Status:           StatusNew,
				EmployeeRecordID: er.ID,
				StartAt:          in.StartAt,
				EndAt:            in.EndAt,
				CreatedAt:        now,
				UpdatedAt:        now,
				EmployeeRecord:   er,
			})
			return err
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// Get loads a notification by ID.
func (s *Service) Get(ctx context.Context, in GetInput) (*UpdateNotification, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}
	var found *UpdateNotification
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
