package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gip-inclusion/employee-records/internal/core/employeerecord"
)

type stubClock struct {
	now time.Time
}

func (s stubClock) Now() time.Time {
	return s.now
}

type fakeRepo struct {
	notifications map[string]*UpdateNotification
	order         []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{notifications: make(map[string]*UpdateNotification)}
}

func cloneNotification(n *UpdateNotification) *UpdateNotification {
	copy := *n
	return &copy
}

func (r *fakeRepo) Create(_ context.Context, n *UpdateNotification) (*UpdateNotification, error) {
	r.notifications[n.ID] = cloneNotification(n)
	r.order = append(r.order, n.ID)
	return cloneNotification(n), nil
}

func (r *fakeRepo) Update(_ context.Context, n *UpdateNotification) (*UpdateNotification, error) {
	if _, ok := r.notifications[n.ID]; !ok {
		return nil, ErrNotFound
	}
	r.notifications[n.ID] = cloneNotification(n)
	return cloneNotification(n), nil
}

func (r *fakeRepo) FindByID(_ context.Context, id string) (*UpdateNotification, error) {
	n, ok := r.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneNotification(n), nil
}

func (r *fakeRepo) FindByIDForUpdate(ctx context.Context, id string) (*UpdateNotification, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeRepo) FindPending(_ context.Context, employeeRecordID string) (*UpdateNotification, error) {
	for _, id := range r.order {
		n := r.notifications[id]
		if n.EmployeeRecordID == employeeRecordID && n.Status == StatusNew {
			return cloneNotification(n), nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakeRepo) FindByBatch(_ context.Context, filename string, lineNumber int) (*UpdateNotification, error) {
	for _, id := range r.order {
		n := r.notifications[id]
		if n.ASPBatchFile != nil && *n.ASPBatchFile == filename &&
			n.ASPBatchLineNumber != nil && *n.ASPBatchLineNumber == lineNumber {
			return cloneNotification(n), nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakeRepo) ListNewForTransfer(_ context.Context, limit int) ([]*UpdateNotification, error) {
	var out []*UpdateNotification
	for _, id := range r.order {
		if n := r.notifications[id]; n.Status == StatusNew {
			out = append(out, cloneNotification(n))
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func processedParent() *employeerecord.EmployeeRecord {
	processedAt := time.Date(2023, time.August, 1, 10, 0, 0, 0, time.UTC)
	return &employeerecord.EmployeeRecord{
		ID:             "er-1",
		Status:         employeerecord.StatusProcessed,
		ApprovalNumber: "999992100001",
		SIRET:          "33055039301440",
		ProcessedAt:    &processedAt,
	}
}

func TestNotifyApprovalUpdate_CreatesNotification(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	now := time.Date(2023, time.September, 1, 9, 0, 0, 0, time.UTC)
	svc := NewService(repo, stubClock{now: now}, nil)

	startAt := time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)
	endAt := time.Date(2026, time.May, 31, 0, 0, 0, 0, time.UTC)

	created, err := svc.NotifyApprovalUpdate(context.Background(), NotifyInput{
		EmployeeRecord: processedParent(),
		StartAt:        startAt,
		EndAt:          endAt,
	})
	if err != nil {
		t.Fatalf("NotifyApprovalUpdate: %v", err)
	}

	if created.Status != StatusNew {
		t.Fatalf("status = %s, want NEW", created.Status)
	}
	if created.EmployeeRecordID != "er-1" {
		t.Fatalf("employee record id = %q", created.EmployeeRecordID)
	}
	if !created.StartAt.Equal(startAt) || !created.EndAt.Equal(endAt) {
		t.Fatalf("period = %v / %v", created.StartAt, created.EndAt)
	}
}

func TestNotifyApprovalUpdate_DedupesPending(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)
	parent := processedParent()

	startAt := time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)
	first, err := svc.NotifyApprovalUpdate(context.Background(), NotifyInput{
		EmployeeRecord: parent,
		StartAt:        startAt,
		EndAt:          startAt.AddDate(2, 0, 0),
	})
	if err != nil {
		t.Fatalf("first notification: %v", err)
	}

	// A second date change before transmission refreshes the pending one.
	newEnd := startAt.AddDate(3, 0, 0)
	second, err := svc.NotifyApprovalUpdate(context.Background(), NotifyInput{
		EmployeeRecord: parent,
		StartAt:        startAt,
		EndAt:          newEnd,
	})
	if err != nil {
		t.Fatalf("second notification: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("a second pending notification was created: %q and %q", first.ID, second.ID)
	}
	if !second.EndAt.Equal(newEnd) {
		t.Fatalf("end at = %v, want %v", second.EndAt, newEnd)
	}
	if len(repo.notifications) != 1 {
		t.Fatalf("store holds %d notifications, want 1", len(repo.notifications))
	}
}

func TestNotifyApprovalUpdate_NewNotificationAfterTransmission(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)
	parent := processedParent()

	startAt := time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)
	first, err := svc.NotifyApprovalUpdate(context.Background(), NotifyInput{
		EmployeeRecord: parent,
		StartAt:        startAt,
		EndAt:          startAt.AddDate(2, 0, 0),
	})
	if err != nil {
		t.Fatalf("first notification: %v", err)
	}

	// Transmit the first one.
	stored := repo.notifications[first.ID]
	filename := employeerecord.BatchFilename(time.Now().UTC())
	if err := stored.UpdateAsSent(filename, 1, time.Now().UTC()); err != nil {
		t.Fatalf("UpdateAsSent: %v", err)
	}

	second, err := svc.NotifyApprovalUpdate(context.Background(), NotifyInput{
		EmployeeRecord: parent,
		StartAt:        startAt,
		EndAt:          startAt.AddDate(4, 0, 0),
	})
	if err != nil {
		t.Fatalf("second notification: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("a transmitted notification must not be refreshed")
	}
	if len(repo.notifications) != 2 {
		t.Fatalf("store holds %d notifications, want 2", len(repo.notifications))
	}
}

func TestNotifyApprovalUpdate_Guards(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeRepo(), nil, nil)
	startAt := time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)

	if _, err := svc.NotifyApprovalUpdate(context.Background(), NotifyInput{StartAt: startAt, EndAt: startAt.AddDate(1, 0, 0)}); !errors.Is(err, ErrMissingParent) {
		t.Fatalf("expected ErrMissingParent, got %v", err)
	}

	sent := processedParent()
	sent.Status = employeerecord.StatusSent
	if _, err := svc.NotifyApprovalUpdate(context.Background(), NotifyInput{EmployeeRecord: sent, StartAt: startAt, EndAt: startAt.AddDate(1, 0, 0)}); !errors.Is(err, ErrParentNotProcessed) {
		t.Fatalf("expected ErrParentNotProcessed, got %v", err)
	}

	if _, err := svc.NotifyApprovalUpdate(context.Background(), NotifyInput{EmployeeRecord: processedParent(), StartAt: startAt, EndAt: startAt}); !errors.Is(err, ErrEmptyApprovalPeriod) {
		t.Fatalf("expected ErrEmptyApprovalPeriod, got %v", err)
	}
}

func TestUpdateNotification_Lifecycle(t *testing.T) {
	t.Parallel()

	now := time.Date(2023, time.September, 1, 9, 0, 0, 0, time.UTC)
	n := &UpdateNotification{
		ID:               "n-1",
		Status:           StatusNew,
		EmployeeRecordID: "er-1",
		StartAt:          now,
		EndAt:            now.AddDate(2, 0, 0),
	}

	filename := employeerecord.BatchFilename(now)
	if err := n.UpdateAsSent(filename, 2, now); err != nil {
		t.Fatalf("UpdateAsSent: %v", err)
	}
	if n.Status != StatusSent {
		t.Fatalf("status = %s, want SENT", n.Status)
	}

	if err := n.UpdateAsProcessed("0000", "", now.Add(time.Hour)); err != nil {
		t.Fatalf("UpdateAsProcessed: %v", err)
	}
	if n.Status != StatusProcessed {
		t.Fatalf("status = %s, want PROCESSED", n.Status)
	}

	// Terminal states reject further transitions.
	if err := n.UpdateAsRejected("3308", "", now); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestUpdateNotification_SentRequiresValidBatch(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	n := &UpdateNotification{ID: "n-1", Status: StatusNew, StartAt: now, EndAt: now.AddDate(1, 0, 0)}

	if err := n.UpdateAsSent("bogus.json", 1, now); !errors.Is(err, employeerecord.ErrInvalidBatchFilename) {
		t.Fatalf("expected ErrInvalidBatchFilename, got %v", err)
	}
	if err := n.UpdateAsSent(employeerecord.BatchFilename(now), 0, now); !errors.Is(err, employeerecord.ErrInvalidLineNumber) {
		t.Fatalf("expected ErrInvalidLineNumber, got %v", err)
	}
}
