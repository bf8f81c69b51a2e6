package repository

import (
	"context"
	"time"

	"docvault/internal/model"
)

// Policy is applied when a ledger row is first created.
type Policy struct {
	MaxDownloads int
	Window       time.Duration
}

// Decision reasons. They are for server-side logs only.
const (
	ReasonFirstAccess = "first_access"
	ReasonWithinLimit = "within_limit"
	ReasonExpired     = "expired"
	ReasonDenied      = "limit_reached_or_expired"
)

// Decision is the outcome of one Authorize call.
type Decision struct {
	Allowed bool
	Reason  string
	Count   int
}

// AccessLimitRepository is the per (recipient, document) download ledger.
//
// Authorize must be atomic against the backing store: the check and the
// increment happen in one conditional write so concurrent callers can never
// push download_count past max_downloads.
type AccessLimitRepository interface {
	Authorize(ctx context.Context, recipientID, documentID string, now time.Time, p Policy) (Decision, error)
	Find(ctx context.Context, recipientID, documentID string) (*model.AccessLimitRecord, error)
}

// AccessLogRepository is the append-only audit trail.
type AccessLogRepository interface {
	Append(ctx context.Context, e *model.AccessLogEntry) error
}
