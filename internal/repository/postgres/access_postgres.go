package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// AccessLimitPostgres keeps the download ledger in the access_limits table.
// Every mutation is a single conditional statement so the row lock taken by
// PostgreSQL serializes concurrent downloads of the same pair.
type AccessLimitPostgres struct {
	db *sql.DB
}

func NewAccessLimitPostgres(db *sql.DB) *AccessLimitPostgres {
	return &AccessLimitPostgres{db: db}
}

var _ repository.AccessLimitRepository = (*AccessLimitPostgres)(nil)

func (r *AccessLimitPostgres) Authorize(ctx context.Context, recipientID, documentID string, now time.Time, p repository.Policy) (repository.Decision, error) {
	const qCreate = `
		INSERT INTO access_limits (recipient_id, document_id, max_downloads, download_count,
			first_access, last_access, expiry_at, is_expired)
		VALUES ($1, $2, $3, 1, $4, $4, $5, false)
		ON CONFLICT (recipient_id, document_id) DO NOTHING
		RETURNING download_count
	`
	var count int
	err := r.db.QueryRowContext(ctx, qCreate, recipientID, documentID, p.MaxDownloads, now, now.Add(p.Window)).Scan(&count)
	switch {
	case err == nil:
		return repository.Decision{Allowed: true, Reason: repository.ReasonFirstAccess, Count: count}, nil
	case !errors.Is(err, sql.ErrNoRows):
		return repository.Decision{}, fmt.Errorf("create access limit: %w", err)
	}

	const qIncrement = `
		UPDATE access_limits
		SET download_count = download_count + 1, last_access = $3
		WHERE recipient_id = $1 AND document_id = $2
			AND is_expired = false AND expiry_at >= $3 AND download_count < max_downloads
		RETURNING download_count
	`
	err = r.db.QueryRowContext(ctx, qIncrement, recipientID, documentID, now).Scan(&count)
	switch {
	case err == nil:
		return repository.Decision{Allowed: true, Reason: repository.ReasonWithinLimit, Count: count}, nil
	case !errors.Is(err, sql.ErrNoRows):
		return repository.Decision{}, fmt.Errorf("increment access limit: %w", err)
	}

	const qExpire = `
		UPDATE access_limits SET is_expired = true
		WHERE recipient_id = $1 AND document_id = $2 AND expiry_at < $3 AND is_expired = false
	`
	res, err := r.db.ExecContext(ctx, qExpire, recipientID, documentID, now)
	if err != nil {
		return repository.Decision{}, fmt.Errorf("expire access limit: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return repository.Decision{Reason: repository.ReasonExpired}, nil
	}
	return repository.Decision{Reason: repository.ReasonDenied}, nil
}

func (r *AccessLimitPostgres) Find(ctx context.Context, recipientID, documentID string) (*model.AccessLimitRecord, error) {
	const q = `
		SELECT recipient_id, document_id, max_downloads, download_count, first_access, last_access, expiry_at, is_expired
		FROM access_limits
		WHERE recipient_id = $1 AND document_id = $2
	`
	var rec model.AccessLimitRecord
	err := r.db.QueryRowContext(ctx, q, recipientID, documentID).Scan(
		&rec.RecipientID,
		&rec.DocumentID,
		&rec.MaxDownloads,
		&rec.DownloadCount,
		&rec.FirstAccess,
		&rec.LastAccess,
		&rec.ExpiryAt,
		&rec.IsExpired,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %w", repository.ErrNotFound, err)
		}
		return nil, err
	}
	return &rec, nil
}

// AccessLogPostgres appends audit rows to access_logs.
type AccessLogPostgres struct {
	db *sql.DB
}

func NewAccessLogPostgres(db *sql.DB) *AccessLogPostgres {
	return &AccessLogPostgres{db: db}
}

var _ repository.AccessLogRepository = (*AccessLogPostgres)(nil)

func (r *AccessLogPostgres) Append(ctx context.Context, e *model.AccessLogEntry) error {
	const q = `
		INSERT INTO access_logs (recipient_id, document_id, outcome, served_at, client_ip, client_agent,
			was_watermarked, was_signed, signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	return r.db.QueryRowContext(ctx, q,
		e.RecipientID,
		e.DocumentID,
		e.Outcome,
		e.ServedAt,
		e.ClientIP,
		e.ClientAgent,
		e.WasWatermarked,
		e.WasSigned,
		nullString(e.Signature),
	).Scan(&e.ID)
}
