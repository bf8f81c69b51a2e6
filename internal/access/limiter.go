// Package access enforces per (recipient, document) download limits.
package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"docvault/internal/model"
	"docvault/internal/repository"
)

var ErrEmptyKey = errors.New("access: recipient and document ids are required")

// Status is the read-only view of a ledger row returned to its recipient.
type Status struct {
	RecipientID   string     `json:"recipient_id"`
	DocumentID    string     `json:"document_id"`
	MaxDownloads  int        `json:"max_downloads"`
	DownloadCount int        `json:"download_count"`
	Remaining     int        `json:"remaining"`
	FirstAccess   *time.Time `json:"first_access,omitempty"`
	ExpiryAt      *time.Time `json:"expiry_at,omitempty"`
	Expired       bool       `json:"expired"`
}

// Limiter applies a Policy on top of an atomic AccessLimitRepository.
type Limiter struct {
	repo      repository.AccessLimitRepository
	policy    repository.Policy
	now       func() time.Time
	log       logrus.FieldLogger
	decisions *prometheus.CounterVec
}

// NewLimiter builds a Limiter. A nil reg skips metric registration.
func NewLimiter(repo repository.AccessLimitRepository, p repository.Policy, log logrus.FieldLogger, reg prometheus.Registerer, now func() time.Time) (*Limiter, error) {
	if p.MaxDownloads <= 0 || p.Window <= 0 {
		return nil, fmt.Errorf("access: invalid policy max=%d window=%s", p.MaxDownloads, p.Window)
	}
	if now == nil {
		now = time.Now
	}
	l := &Limiter{
		repo:   repo,
		policy: p,
		now:    now,
		log:    log.WithField("component", "access_limiter"),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docvault_access_decisions_total",
			Help: "Access limiter decisions by reason.",
		}, []string{"reason"}),
	}
	if reg != nil {
		if err := reg.Register(l.decisions); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Policy returns the policy applied to new ledger rows.
func (l *Limiter) Policy() repository.Policy { return l.policy }

// Authorize records one download attempt and reports whether it may proceed.
// The reason is logged server side only.
func (l *Limiter) Authorize(ctx context.Context, recipientID, documentID string) (bool, error) {
	if recipientID == "" || documentID == "" {
		return false, ErrEmptyKey
	}
	d, err := l.repo.Authorize(ctx, recipientID, documentID, l.now().UTC(), l.policy)
	if err != nil {
		l.log.WithError(err).WithField("document_id", documentID).Error("access ledger unavailable")
		return false, err
	}
	l.decisions.WithLabelValues(d.Reason).Inc()
	l.log.WithFields(logrus.Fields{
		"recipient_id": recipientID,
		"document_id":  documentID,
		"allowed":      d.Allowed,
		"reason":       d.Reason,
		"count":        d.Count,
	}).Info("access decision")
	return d.Allowed, nil
}

// Status reports the ledger state without mutating it. A missing row means the
// recipient has not downloaded yet and has the full policy available.
func (l *Limiter) Status(ctx context.Context, recipientID, documentID string) (*Status, error) {
	if recipientID == "" || documentID == "" {
		return nil, ErrEmptyKey
	}
	rec, err := l.repo.Find(ctx, recipientID, documentID)
	if errors.Is(err, repository.ErrNotFound) {
		return &Status{
			RecipientID:  recipientID,
			DocumentID:   documentID,
			MaxDownloads: l.policy.MaxDownloads,
			Remaining:    l.policy.MaxDownloads,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return statusOf(rec, l.now().UTC()), nil
}

func statusOf(rec *model.AccessLimitRecord, now time.Time) *Status {
	first, expiry := rec.FirstAccess, rec.ExpiryAt
	return &Status{
		RecipientID:   rec.RecipientID,
		DocumentID:    rec.DocumentID,
		MaxDownloads:  rec.MaxDownloads,
		DownloadCount: rec.DownloadCount,
		Remaining:     rec.Remaining(now),
		FirstAccess:   &first,
		ExpiryAt:      &expiry,
		Expired:       rec.IsExpired || now.After(rec.ExpiryAt),
	}
}
