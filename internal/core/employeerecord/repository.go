package employeerecord

import "context"

// ListFilter narrows listing queries. Zero values mean "no constraint".
type ListFilter struct {
	CompanyID string
	Limit     int
	Offset    int
}

// Repository persists employee records. Find methods load the job
// application snapshot needed for serialization alongside the record.
type Repository interface {
	Create(ctx context.Context, er *EmployeeRecord) (*EmployeeRecord, error)
	Update(ctx context.Context, er *EmployeeRecord) (*EmployeeRecord, error)

	FindByID(ctx context.Context, id string) (*EmployeeRecord, error)
	// FindByIDForUpdate locks the row for the rest of the transaction.
	FindByIDForUpdate(ctx context.Context, id string) (*EmployeeRecord, error)
	// FindByBatch resolves the record a feedback line refers to, by upload
	// filename and line number.
	FindByBatch(ctx context.Context, filename string, lineNumber int) (*EmployeeRecord, error)

	// ExistsLive reports whether a non-disabled record already covers the
	// given company attachment and approval.
	ExistsLive(ctx context.Context, aspID int64, approvalNumber string) (bool, error)

	ListByStatus(ctx context.Context, status Status, filter ListFilter) ([]*EmployeeRecord, error)
	// ListReadyForTransfer returns READY records in creation order, the
	// order their batch line numbers will follow.
	ListReadyForTransfer(ctx context.Context, limit int) ([]*EmployeeRecord, error)

	// ListOrphans returns records whose stored company attachment diverged
	// to oldASPID while their company now points elsewhere.
	ListOrphans(ctx context.Context, oldASPID int64) ([]*EmployeeRecord, error)
	// ListArchivable returns PROCESSED records untouched for at least the
	// archiving delay.
	ListArchivable(ctx context.Context, limit int) ([]*EmployeeRecord, error)
}
