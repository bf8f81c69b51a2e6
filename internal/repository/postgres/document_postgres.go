package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const documentColumns = `id, owner_id, parent_resource_id, resource_reference, document_name, content_type,
		size, content_hash, encryption_salt, encryption_iv, kdf_iterations, external_anchor_ref, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(s rowScanner) (*model.DocumentRecord, error) {
	var (
		d      model.DocumentRecord
		anchor sql.NullString
	)
	if err := s.Scan(
		&d.ID,
		&d.OwnerID,
		&d.ParentResourceID,
		&d.ResourceReference,
		&d.Name,
		&d.ContentType,
		&d.Size,
		&d.ContentHash,
		&d.Salt,
		&d.IV,
		&d.KDFIterations,
		&anchor,
		&d.CreatedAt,
	); err != nil {
		return nil, err
	}
	d.AnchorRef = anchor.String
	return &d, nil
}

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.DocumentRecord) (*model.DocumentRecord, error) {
	const q = `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + documentColumns
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.OwnerID,
		doc.ParentResourceID,
		doc.ResourceReference,
		doc.Name,
		doc.ContentType,
		doc.Size,
		doc.ContentHash,
		doc.Salt,
		doc.IV,
		doc.KDFIterations,
		nullString(doc.AnchorRef),
		doc.CreatedAt,
	)
	return scanDocument(row)
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.DocumentRecord, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %w", repository.ErrNotFound, err)
		}
		return nil, err
	}
	return d, nil
}

// ListByParent returns one page of an owner's documents under a parent resource and the total count.
func (r *DocumentPostgres) ListByParent(ctx context.Context, ownerID, parentID string, pq repository.PageQuery) (*repository.PageResult[model.DocumentRecord], error) {
	const qCount = `SELECT COUNT(*) FROM documents WHERE owner_id = $1 AND parent_resource_id = $2`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, ownerID, parentID).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE owner_id = $1 AND parent_resource_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.QueryContext(ctx, qList, ownerID, parentID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.DocumentRecord, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.DocumentRecord]{
		Items: items,
		Total: total,
	}, nil
}

// SetAnchorRef stores the anchor reference. A missing row yields ErrNotFound.
func (r *DocumentPostgres) SetAnchorRef(ctx context.Context, id, ref string) error {
	const q = `UPDATE documents SET external_anchor_ref = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, ref)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a document by ID. It does not return an error if the row does not exist.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// IsNoRowsError reports whether err came from a query that matched nothing.
func IsNoRowsError(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, repository.ErrNotFound)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
