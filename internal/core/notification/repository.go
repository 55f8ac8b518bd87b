package notification

import "context"

// Repository persists update notifications. Find methods load the parent
// employee record and its job application snapshot.
type Repository interface {
	Create(ctx context.Context, n *UpdateNotification) (*UpdateNotification, error)
	Update(ctx context.Context, n *UpdateNotification) (*UpdateNotification, error)

	FindByID(ctx context.Context, id string) (*UpdateNotification, error)
	FindByIDForUpdate(ctx context.Context, id string) (*UpdateNotification, error)
	// FindPending returns the NEW notification attached to an employee
	// record, or ErrNotFound.
	FindPending(ctx context.Context, employeeRecordID string) (*UpdateNotification, error)
	// FindByBatch resolves the notification a feedback line refers to.
	FindByBatch(ctx context.Context, filename string, lineNumber int) (*UpdateNotification, error)

	// ListNewForTransfer returns NEW notifications in creation order.
	ListNewForTransfer(ctx context.Context, limit int) ([]*UpdateNotification, error)
}
