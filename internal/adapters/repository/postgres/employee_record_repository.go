package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gip-inclusion/employee-records/internal/core/employeerecord"
	"github.com/gip-inclusion/employee-records/internal/core/jobapplication"
	pgdb "github.com/gip-inclusion/employee-records/internal/platform/db/postgres"
)

const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"
)

const employeeRecordColumns = `
               id,
               status,
               job_application_id,
               asp_id,
               approval_number,
               siret,
               asp_batch_file,
               asp_batch_line_number,
               asp_processing_code,
               asp_processing_label,
               archived_payload,
               processed_as_duplicate,
               created_at,
               updated_at,
               processed_at,
               job_application`

// EmployeeRecordRepository is the PostgreSQL implementation of
// employeerecord.Repository.
type EmployeeRecordRepository struct {
	pool pgdb.Queryer
}

// NewEmployeeRecordRepository creates an EmployeeRecordRepository.
func NewEmployeeRecordRepository(pool pgdb.Queryer) *EmployeeRecordRepository {
	return &EmployeeRecordRepository{pool: pool}
}

// Create inserts a new employee record with its job application snapshot.
func (r *EmployeeRecordRepository) Create(ctx context.Context, er *employeerecord.EmployeeRecord) (*employeerecord.EmployeeRecord, error) {
	snapshot, err := marshalSnapshot(er.JobApplication)
	if err != nil {
		return nil, err
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO employee_records (
            id, status, job_application_id, asp_id, approval_number, siret,
            asp_batch_file, asp_batch_line_number, asp_processing_code, asp_processing_label,
            archived_payload, processed_as_duplicate, created_at, updated_at, processed_at,
            job_application
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
        RETURNING`+employeeRecordColumns+`
    `,
		er.ID,
		string(er.Status),
		er.JobApplicationID,
		er.ASPID,
		er.ApprovalNumber,
		er.SIRET,
		er.ASPBatchFile,
		er.ASPBatchLineNumber,
		er.ASPProcessingCode,
		er.ASPProcessingLabel,
		er.ArchivedPayload,
		er.ProcessedAsDuplicate,
		er.CreatedAt,
		er.UpdatedAt,
		er.ProcessedAt,
		snapshot,
	)

	created, err := scanEmployeeRecord(row)
	if err != nil {
		return nil, translateEmployeeRecordPgError(err)
	}
	return created, nil
}

// Update rewrites the mutable columns of a record.
func (r *EmployeeRecordRepository) Update(ctx context.Context, er *employeerecord.EmployeeRecord) (*employeerecord.EmployeeRecord, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE employee_records
           SET status = $1,
               asp_batch_file = $2,
               asp_batch_line_number = $3,
               asp_processing_code = $4,
               asp_processing_label = $5,
               archived_payload = $6,
               processed_as_duplicate = $7,
               updated_at = $8,
               processed_at = $9
         WHERE id = $10
        RETURNING`+employeeRecordColumns+`
    `,
		string(er.Status),
		er.ASPBatchFile,
		er.ASPBatchLineNumber,
		er.ASPProcessingCode,
		er.ASPProcessingLabel,
		er.ArchivedPayload,
		er.ProcessedAsDuplicate,
		er.UpdatedAt,
		er.ProcessedAt,
		er.ID,
	)

	updated, err := scanEmployeeRecord(row)
	if err != nil {
		return nil, translateEmployeeRecordPgError(err)
	}
	return updated, nil
}

// FindByID loads one record.
func (r *EmployeeRecordRepository) FindByID(ctx context.Context, id string) (*employeerecord.EmployeeRecord, error) {
	return r.findOne(ctx, `
        SELECT`+employeeRecordColumns+`
          FROM employee_records
         WHERE id = $1
         LIMIT 1
    `, id)
}

// FindByIDForUpdate loads one record and locks its row until the end of the
// transaction.
func (r *EmployeeRecordRepository) FindByIDForUpdate(ctx context.Context, id string) (*employeerecord.EmployeeRecord, error) {
	return r.findOne(ctx, `
        SELECT`+employeeRecordColumns+`
          FROM employee_records
         WHERE id = $1
           FOR UPDATE
    `, id)
}

// FindByBatch resolves the record a feedback line refers to.
func (r *EmployeeRecordRepository) FindByBatch(ctx context.Context, filename string, lineNumber int) (*employeerecord.EmployeeRecord, error) {
	return r.findOne(ctx, `
        SELECT`+employeeRecordColumns+`
          FROM employee_records
         WHERE asp_batch_file = $1
           AND asp_batch_line_number = $2
         ORDER BY updated_at DESC
         LIMIT 1
    `, filename, lineNumber)
}

// ExistsLive reports whether a non-disabled record already covers the given
// ASP attachment and approval.
func (r *EmployeeRecordRepository) ExistsLive(ctx context.Context, aspID int64, approvalNumber string) (bool, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var exists bool
	err := exec.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1
              FROM employee_records
             WHERE asp_id = $1
               AND approval_number = $2
               AND status <> 'DISABLED'
        )
    `, aspID, approvalNumber).Scan(&exists)
	if err != nil {
		return false, translateEmployeeRecordPgError(err)
	}
	return exists, nil
}

// ListByStatus returns records in one status, oldest first.
func (r *EmployeeRecordRepository) ListByStatus(ctx context.Context, status employeerecord.Status, filter employeerecord.ListFilter) ([]*employeerecord.EmployeeRecord, error) {
	query := `
        SELECT` + employeeRecordColumns + `
          FROM employee_records
         WHERE status = $1`
	args := []any{string(status)}

	if filter.CompanyID != "" {
		args = append(args, filter.CompanyID)
		query += fmt.Sprintf(`
           AND job_application -> 'company' ->> 'id' = $%d`, len(args))
	}
	query += `
         ORDER BY created_at`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(`
         LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(`
        OFFSET $%d`, len(args))
	}

	return r.list(ctx, query, args...)
}

// ListReadyForTransfer returns READY records in creation order.
func (r *EmployeeRecordRepository) ListReadyForTransfer(ctx context.Context, limit int) ([]*employeerecord.EmployeeRecord, error) {
	return r.list(ctx, `
        SELECT`+employeeRecordColumns+`
          FROM employee_records
         WHERE status = 'READY'
         ORDER BY created_at
         LIMIT $1
    `, limit)
}

// ListOrphans returns records stamped with oldASPID whose company now
// points to a different ASP attachment.
func (r *EmployeeRecordRepository) ListOrphans(ctx context.Context, oldASPID int64) ([]*employeerecord.EmployeeRecord, error) {
	return r.list(ctx, `
        SELECT`+employeeRecordColumns+`
          FROM employee_records
         WHERE asp_id = $1
           AND (job_application -> 'company' -> 'convention' ->> 'asp_id')::bigint <> asp_id
         ORDER BY created_at
    `, oldASPID)
}

// ListArchivable returns PROCESSED records whose processing date is older
// than the archiving delay.
func (r *EmployeeRecordRepository) ListArchivable(ctx context.Context, limit int) ([]*employeerecord.EmployeeRecord, error) {
	return r.list(ctx, `
        SELECT`+employeeRecordColumns+`
          FROM employee_records
         WHERE status = 'PROCESSED'
           AND processed_at IS NOT NULL
           AND processed_at <= now() - make_interval(days => $1)
         ORDER BY processed_at
         LIMIT $2
    `, employeerecord.ArchivingDelayInDays, limit)
}

func (r *EmployeeRecordRepository) findOne(ctx context.Context, query string, args ...any) (*employeerecord.EmployeeRecord, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	found, err := scanEmployeeRecord(exec.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, translateEmployeeRecordPgError(err)
	}
	return found, nil
}

func (r *EmployeeRecordRepository) list(ctx context.Context, query string, args ...any) ([]*employeerecord.EmployeeRecord, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, translateEmployeeRecordPgError(err)
	}
	defer rows.Close()

	var records []*employeerecord.EmployeeRecord
	for rows.Next() {
		er, err := scanEmployeeRecord(rows)
		if err != nil {
			return nil, translateEmployeeRecordPgError(err)
		}
		records = append(records, er)
	}
	if err := rows.Err(); err != nil {
		return nil, translateEmployeeRecordPgError(err)
	}
	return records, nil
}

func scanEmployeeRecord(row pgx.Row) (*employeerecord.EmployeeRecord, error) {
	var (
		er       employeerecord.EmployeeRecord
		status   string
		snapshot []byte

		createdAt, updatedAt time.Time
		processedAt          *time.Time
	)

	if err := row.Scan(
		&er.ID,
		&status,
		&er.JobApplicationID,
		&er.ASPID,
		&er.ApprovalNumber,
		&er.SIRET,
		&er.ASPBatchFile,
		&er.ASPBatchLineNumber,
		&er.ASPProcessingCode,
		&er.ASPProcessingLabel,
		&er.ArchivedPayload,
		&er.ProcessedAsDuplicate,
		&createdAt,
		&updatedAt,
		&processedAt,
		&snapshot,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, employeerecord.ErrNotFound
		}
		return nil, err
	}

	parsed, err := employeerecord.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	er.Status = parsed
	er.CreatedAt = createdAt
	er.UpdatedAt = updatedAt
	er.ProcessedAt = processedAt

	if len(snapshot) > 0 {
		var ja jobapplication.JobApplication
		if err := json.Unmarshal(snapshot, &ja); err != nil {
			return nil, fmt.Errorf("postgres: decode job application snapshot: %w", err)
		}
		er.JobApplication = &ja
	}

	return &er, nil
}

func marshalSnapshot(ja *jobapplication.JobApplication) ([]byte, error) {
	if ja == nil {
		return nil, nil
	}
	snapshot, err := json.Marshal(ja)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode job application snapshot: %w", err)
	}
	return snapshot, nil
}

func translateEmployeeRecordPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return employeerecord.ErrDuplicate
		case foreignKeyViolationCode:
			return employeerecord.ErrMissingJobApplication
		case checkViolationCode:
			return employeerecord.ErrInvalidState
		}
	}
	return err
}
