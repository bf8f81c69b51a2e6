package repository

import (
	"context"

	"docvault/internal/model"
)

// DocumentRepository persists DocumentRecords.
// No business logic here; strictly persistence operations.
type DocumentRepository interface {
	// Create inserts a new record and returns it as stored.
	Create(ctx context.Context, doc *model.DocumentRecord) (*model.DocumentRecord, error)

	// FindByID returns a record by its ID or an error wrapping ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.DocumentRecord, error)

	// ListByParent pages through an owner's documents for one parent resource, newest first.
	ListByParent(ctx context.Context, ownerID, parentID string, pq PageQuery) (*PageResult[model.DocumentRecord], error)

	// SetAnchorRef attaches the external anchor reference. It is the only mutation after Create.
	SetAnchorRef(ctx context.Context, id, ref string) error

	// Delete removes a record by ID. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, id string) error
}
