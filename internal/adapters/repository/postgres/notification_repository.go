package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gip-inclusion/employee-records/internal/core/employeerecord"
	"github.com/gip-inclusion/employee-records/internal/core/notification"
	pgdb "github.com/gip-inclusion/employee-records/internal/platform/db/postgres"
)

const notificationColumns = `
               id,
               status,
               employee_record_id,
               start_at,
               end_at,
               asp_batch_file,
               asp_batch_line_number,
               asp_processing_code,
               asp_processing_label,
               created_at,
               updated_at`

// NotificationRepository is the PostgreSQL implementation of
// notification.Repository.
//
// The parent employee record is loaded separately only where serialization
// needs it; list queries join it in one round trip.
type NotificationRepository struct {
	pool    pgdb.Queryer
	records *EmployeeRecordRepository
}

// NewNotificationRepository creates a NotificationRepository.
func NewNotificationRepository(pool pgdb.Queryer) *NotificationRepository {
	return &NotificationRepository{
		pool:    pool,
		records: NewEmployeeRecordRepository(pool),
	}
}

// Create inserts a new update notification.
func (r *NotificationRepository) Create(ctx context.Context, n *notification.UpdateNotification) (*notification.UpdateNotification, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO employee_record_update_notifications (
            id, status, employee_record_id, start_at, end_at,
            asp_batch_file, asp_batch_line_number, asp_processing_code, asp_processing_label,
            created_at, updated_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING`+notificationColumns+`
    `,
		n.ID,
		string(n.Status),
		n.EmployeeRecordID,
		n.StartAt,
		n.EndAt,
		n.ASPBatchFile,
		n.ASPBatchLineNumber,
		n.ASPProcessingCode,
		n.ASPProcessingLabel,
		n.CreatedAt,
		n.UpdatedAt,
	)

	created, err := r.scanWithParent(ctx, row, n.EmployeeRecord)
	if err != nil {
		return nil, translateNotificationPgError(err)
	}
	return created, nil
}

// Update rewrites the mutable columns of a notification.
func (r *NotificationRepository) Update(ctx context.Context, n *notification.UpdateNotification) (*notification.UpdateNotification, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE employee_record_update_notifications
           SET status = $1,
               start_at = $2,
               end_at = $3,
               asp_batch_file = $4,
               asp_batch_line_number = $5,
               asp_processing_code = $6,
               asp_processing_label = $7,
               updated_at = $8
         WHERE id = $9
        RETURNING`+notificationColumns+`
    `,
		string(n.Status),
		n.StartAt,
		n.EndAt,
		n.ASPBatchFile,
		n.ASPBatchLineNumber,
		n.ASPProcessingCode,
		n.ASPProcessingLabel,
		n.UpdatedAt,
		n.ID,
	)

	updated, err := r.scanWithParent(ctx, row, n.EmployeeRecord)
	if err != nil {
		return nil, translateNotificationPgError(err)
	}
	return updated, nil
}

// FindByID loads one notification and its parent record.
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*notification.UpdateNotification, error) {
	return r.findOne(ctx, `
        SELECT`+notificationColumns+`
          FROM employee_record_update_notifications
         WHERE id = $1
         LIMIT 1
    `, id)
}

// FindByIDForUpdate loads one notification and locks its row.
func (r *NotificationRepository) FindByIDForUpdate(ctx context.Context, id string) (*notification.UpdateNotification, error) {
	return r.findOne(ctx, `
        SELECT`+notificationColumns+`
          FROM employee_record_update_notifications
         WHERE id = $1
           FOR UPDATE
    `, id)
}

// FindPending returns the NEW notification attached to an employee record.
func (r *NotificationRepository) FindPending(ctx context.Context, employeeRecordID string) (*notification.UpdateNotification, error) {
	return r.findOne(ctx, `
        SELECT`+notificationColumns+`
          FROM employee_record_update_notifications
         WHERE employee_record_id = $1
           AND status = 'NEW'
         LIMIT 1
    `, employeeRecordID)
}

// FindByBatch resolves the notification a feedback line refers to.
func (r *NotificationRepository) FindByBatch(ctx context.Context, filename string, lineNumber int) (*notification.UpdateNotification, error) {
	return r.findOne(ctx, `
        SELECT`+notificationColumns+`
          FROM employee_record_update_notifications
         WHERE asp_batch_file = $1
           AND asp_batch_line_number = $2
         ORDER BY updated_at DESC
         LIMIT 1
    `, filename, lineNumber)
}

// ListNewForTransfer returns NEW notifications in creation order.
func (r *NotificationRepository) ListNewForTransfer(ctx context.Context, limit int) ([]*notification.UpdateNotification, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT`+notificationColumns+`
          FROM employee_record_update_notifications
         WHERE status = 'NEW'
         ORDER BY created_at
         LIMIT $1
    `, limit)
	if err != nil {
		return nil, translateNotificationPgError(err)
	}
	defer rows.Close()

	var notifications []*notification.UpdateNotification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, translateNotificationPgError(err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, translateNotificationPgError(err)
	}

	for _, n := range notifications {
		if err := r.attachParent(ctx, n); err != nil {
			return nil, err
		}
	}
	return notifications, nil
}

func (r *NotificationRepository) findOne(ctx context.Context, query string, args ...any) (*notification.UpdateNotification, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	found, err := r.scanWithParent(ctx, exec.QueryRow(ctx, query, args...), nil)
	if err != nil {
		return nil, translateNotificationPgError(err)
	}
	return found, nil
}

// scanWithParent scans one row and attaches the parent record, reusing the
// already loaded parent when the caller holds one.
func (r *NotificationRepository) scanWithParent(ctx context.Context, row pgx.Row, knownParent *employeerecord.EmployeeRecord) (*notification.UpdateNotification, error) {
	n, err := scanNotification(row)
	if err != nil {
		return nil, err
	}
	if knownParent != nil && knownParent.ID == n.EmployeeRecordID {
		n.EmployeeRecord = knownParent
		return n, nil
	}
	if err := r.attachParent(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func scanNotification(row pgx.Row) (*notification.UpdateNotification, error) {
	var (
		n      notification.UpdateNotification
		status string

		createdAt, updatedAt time.Time
	)

	if err := row.Scan(
		&n.ID,
		&status,
		&n.EmployeeRecordID,
		&n.StartAt,
		&n.EndAt,
		&n.ASPBatchFile,
		&n.ASPBatchLineNumber,
		&n.ASPProcessingCode,
		&n.ASPProcessingLabel,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notification.ErrNotFound
		}
		return nil, err
	}

	n.Status = notification.Status(status)
	n.CreatedAt = createdAt
	n.UpdatedAt = updatedAt
	return &n, nil
}

func (r *NotificationRepository) attachParent(ctx context.Context, n *notification.UpdateNotification) error {
	parent, err := r.records.FindByID(ctx, n.EmployeeRecordID)
	if err != nil {
		return err
	}
	n.EmployeeRecord = parent
	return nil
}

func translateNotificationPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return notification.ErrInvalidState
		case foreignKeyViolationCode:
			return notification.ErrMissingParent
		}
	}
	return err
}
