package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/gip-inclusion/employee-records/internal/core/notification"
)

func TestScanNotification_Success(t *testing.T) {
	t.Parallel()

	startAt := time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)
	endAt := startAt.AddDate(3, 0, 0)
	createdAt := time.Now().UTC()

	row := stubRow{scanFn: func(dest ...interface{}) error {
		if len(dest) != 11 {
			return errors.New("unexpected dest length")
		}
		*(dest[0].(*string)) = "n-1"
		*(dest[1].(*string)) = string(notification.StatusNew)
		*(dest[2].(*string)) = "er-1"
		*(dest[3].(*time.Time)) = startAt
		*(dest[4].(*time.Time)) = endAt
		*(dest[9].(*time.Time)) = createdAt
		*(dest[10].(*time.Time)) = createdAt
		return nil
	}}

	n, err := scanNotification(row)
	if err != nil {
		t.Fatalf("scanNotification returned error: %v", err)
	}

	if n.ID != "n-1" || n.Status != notification.StatusNew || n.EmployeeRecordID != "er-1" {
		t.Fatalf("unexpected notification %+v", n)
	}
	if !n.EndAt.Equal(endAt) {
		t.Fatalf("end_at = %v, want %v", n.EndAt, endAt)
	}
}

func TestScanNotification_NoRows(t *testing.T) {
	t.Parallel()

	row := stubRow{scanFn: func(dest ...interface{}) error {
		return pgx.ErrNoRows
	}}

	_, err := scanNotification(row)
	if !errors.Is(err, notification.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTranslateNotificationPgError(t *testing.T) {
	t.Parallel()

	unique := &pgconn.PgError{Code: uniqueViolationCode}
	if !errors.Is(translateNotificationPgError(unique), notification.ErrInvalidState) {
		t.Fatal("expected unique violation mapped to ErrInvalidState")
	}

	foreign := &pgconn.PgError{Code: foreignKeyViolationCode}
	if !errors.Is(translateNotificationPgError(foreign), notification.ErrMissingParent) {
		t.Fatal("expected foreign key violation mapped to ErrMissingParent")
	}

	otherErr := errors.New("random")
	if translateNotificationPgError(otherErr) != otherErr {
		t.Fatal("unexpected translation for generic error")
	}
}

func notificationRows(ids ...string) *pgxmock.Rows {
	startAt := time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "status", "employee_record_id", "start_at", "end_at",
		"asp_batch_file", "asp_batch_line_number", "asp_processing_code", "asp_processing_label",
		"created_at", "updated_at",
	})
	for _, id := range ids {
		rows.AddRow(
			id, string(notification.StatusNew), "er-1", startAt, startAt.AddDate(3, 0, 0),
			nil, nil, nil, nil,
			now, now,
		)
	}
	return rows
}

func TestNotificationRepository_ListNewForTransfer(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewNotificationRepository(mock)

	listQuery := regexp.QuoteMeta(`
        SELECT` + notificationColumns + `
          FROM employee_record_update_notifications
         WHERE status = 'NEW'
         ORDER BY created_at
         LIMIT $1
    `)
	mock.ExpectQuery(listQuery).
		WithArgs(700).
		WillReturnRows(notificationRows("n-1"))

	parentQuery := regexp.QuoteMeta(`
        SELECT` + employeeRecordColumns + `
          FROM employee_records
         WHERE id = $1
         LIMIT 1
    `)
	mock.ExpectQuery(parentQuery).
		WithArgs("er-1").
		WillReturnRows(employeeRecordRows(t, "er-1"))

	notifications, err := repo.ListNewForTransfer(context.Background(), 700)
	if err != nil {
		t.Fatalf("ListNewForTransfer returned error: %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifications))
	}
	if notifications[0].EmployeeRecord == nil || notifications[0].EmployeeRecord.ID != "er-1" {
		t.Fatalf("parent record not attached: %+v", notifications[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNotificationRepository_FindPending_NotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewNotificationRepository(mock)

	query := regexp.QuoteMeta(`
        SELECT` + notificationColumns + `
          FROM employee_record_update_notifications
         WHERE employee_record_id = $1
           AND status = 'NEW'
         LIMIT 1
    `)
	mock.ExpectQuery(query).
		WithArgs("er-1").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.FindPending(context.Background(), "er-1")
	if !errors.Is(err, notification.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
