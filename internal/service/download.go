package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"docvault/internal/access"
	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/watermark"
)

// Limiter authorizes downloads against the access ledger.
type Limiter interface {
	Authorize(ctx context.Context, recipientID, documentID string) (bool, error)
	Status(ctx context.Context, recipientID, documentID string) (*access.Status, error)
}

// Stamper applies recipient provenance to served bytes.
type Stamper interface {
	Stamp(content []byte, contentType string, recipient model.RecipientInfo, resource model.ResourceInfo) ([]byte, error)
}

// Signer signs served bytes and verifies returned signatures.
type Signer interface {
	Sign(content []byte) (string, error)
	Verify(content []byte, signature string) bool
	PublicKeyPEM() ([]byte, error)
}

// Tokens issues and validates stateless download tokens.
type Tokens interface {
	Issue(recipientID, resourceID, documentID string, ttl time.Duration) (string, time.Time, error)
	Validate(tok, recipientID, resourceID, documentID string) bool
}

// ServeRequest identifies who is downloading what. Token is empty for
// session-authenticated recipients.
type ServeRequest struct {
	DocumentID  string
	Recipient   model.RecipientInfo
	Token       string
	ClientIP    string
	ClientAgent string
}

// Degradation lists the steps that failed while serving still succeeded.
type Degradation struct {
	WatermarkFailed bool `json:"watermark_failed"`
	SigningFailed   bool `json:"signing_failed"`
}

// Degraded reports whether any step was skipped due to a failure.
func (d Degradation) Degraded() bool { return d.WatermarkFailed || d.SigningFailed }

// ServeResult is the outcome of a successful download. Callers must check
// Degradation before treating the copy as stamped and signed.
type ServeResult struct {
	Record      *model.DocumentRecord
	Content     []byte
	Signature   string
	Watermarked bool
	Signed      bool
	Degradation Degradation
}

// TokenResult is a freshly issued download token.
type TokenResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerifyResult reports signature validity and, when a document was named,
// whether content matches its recorded hash.
type VerifyResult struct {
	Valid     bool  `json:"valid"`
	Integrity *bool `json:"integrity,omitempty"`
}

// DownloadService defines the recipient-facing use cases.
type DownloadService interface {
	Serve(ctx context.Context, req ServeRequest) (*ServeResult, error)
	IssueToken(ctx context.Context, ownerID, documentID, recipientID string, ttl time.Duration) (*TokenResult, error)
	Status(ctx context.Context, recipientID, documentID string) (*access.Status, error)
	Verify(ctx context.Context, content []byte, signature, documentID string) (*VerifyResult, error)
	PublicKeyPEM() ([]byte, error)
}

// DownloadConfig holds download defaults.
type DownloadConfig struct {
	TokenTTL    time.Duration
	MaxTokenTTL time.Duration
}

// Downloads implements DownloadService on top of a DocumentStore.
type Downloads struct {
	docs      *DocumentStore
	limiter   Limiter
	stamper   Stamper
	signer    Signer
	tokens    Tokens
	logs      repository.AccessLogRepository
	cfg       DownloadConfig
	log       logrus.FieldLogger
	now       func() time.Time
	downloads *prometheus.CounterVec
}

var _ DownloadService = (*Downloads)(nil)

// NewDownloads wires the download pipeline. A nil reg skips metric registration.
func NewDownloads(docs *DocumentStore, limiter Limiter, stamper Stamper, signer Signer, tokens Tokens,
	logs repository.AccessLogRepository, cfg DownloadConfig, log logrus.FieldLogger, reg prometheus.Registerer) (*Downloads, error) {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.MaxTokenTTL < cfg.TokenTTL {
		cfg.MaxTokenTTL = 30 * 24 * time.Hour
	}
	d := &Downloads{
		docs:    docs,
		limiter: limiter,
		stamper: stamper,
		signer:  signer,
		tokens:  tokens,
		logs:    logs,
		cfg:     cfg,
		log:     log.WithField("component", "downloads"),
		now:     time.Now,
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docvault_downloads_total",
			Help: "Download attempts by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		if err := reg.Register(d.downloads); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Serve authorizes, retrieves, stamps and signs one copy, then appends an
// access log entry. Denials are logged too and always return ErrAccessDenied.
func (d *Downloads) Serve(ctx context.Context, req ServeRequest) (res *ServeResult, err error) {
	ctx, span := tracer.Start(ctx, "Downloads.Serve")
	span.SetAttributes(attribute.String("document.id", req.DocumentID))
	defer func() {
		if err != nil && !errors.Is(err, ErrAccessDenied) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "serve failed")
		}
		span.End()
	}()

	if req.Recipient.ID == "" {
		return nil, ErrAccessDenied
	}
	rec, err := d.docs.Get(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	l := d.log.WithFields(logrus.Fields{"document_id": rec.ID, "recipient_id": req.Recipient.ID})

	if req.Token != "" && !d.tokens.Validate(req.Token, req.Recipient.ID, rec.ParentResourceID, rec.ID) {
		l.WithField("reason", "token_invalid").Info("download denied")
		d.deny(ctx, req, rec)
		return nil, ErrAccessDenied
	}

	allowed, err := d.limiter.Authorize(ctx, req.Recipient.ID, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("authorize: %w", err)
	}
	if !allowed {
		d.deny(ctx, req, rec)
		return nil, ErrAccessDenied
	}

	plain, err := d.docs.plaintext(ctx, rec)
	if err != nil {
		d.downloads.WithLabelValues("failed").Inc()
		l.WithError(err).Error("retrieve document content")
		d.record(ctx, req, rec, model.OutcomeFailed)
		return nil, err
	}

	res = &ServeResult{Record: rec, Content: plain}
	resource := model.ResourceInfo{ID: rec.ParentResourceID, Reference: rec.ResourceReference}
	stamped, werr := d.stamper.Stamp(plain, rec.ContentType, req.Recipient, resource)
	switch {
	case werr == nil:
		res.Content, res.Watermarked = stamped, true
	case errors.Is(werr, watermark.ErrUnsupported):
		l.WithField("content_type", rec.ContentType).Debug("watermark not supported for content type")
	default:
		l.WithError(werr).Warn("watermark not applied")
		res.Degradation.WatermarkFailed = true
	}

	sig, serr := d.signer.Sign(res.Content)
	if serr != nil {
		l.WithError(serr).Error("signing failed")
		res.Degradation.SigningFailed = true
	} else {
		res.Signature, res.Signed = sig, true
	}

	entry := &model.AccessLogEntry{
		RecipientID:    req.Recipient.ID,
		DocumentID:     rec.ID,
		Outcome:        model.OutcomeServed,
		ServedAt:       d.now().UTC(),
		ClientIP:       req.ClientIP,
		ClientAgent:    req.ClientAgent,
		WasWatermarked: res.Watermarked,
		WasSigned:      res.Signed,
		Signature:      res.Signature,
	}
	if err := d.logs.Append(ctx, entry); err != nil {
		l.WithError(err).Error("append access log")
	}

	outcome := "served"
	if res.Degradation.Degraded() {
		outcome = "degraded"
	}
	d.downloads.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.Bool("download.watermarked", res.Watermarked), attribute.Bool("download.signed", res.Signed))
	l.WithFields(logrus.Fields{
		"watermarked": res.Watermarked,
		"signed":      res.Signed,
		"degraded":    res.Degradation.Degraded(),
	}).Info("document served")
	return res, nil
}

func (d *Downloads) deny(ctx context.Context, req ServeRequest, rec *model.DocumentRecord) {
	d.downloads.WithLabelValues("denied").Inc()
	d.record(ctx, req, rec, model.OutcomeDenied)
}

// record appends a log row for an attempt that produced no content.
func (d *Downloads) record(ctx context.Context, req ServeRequest, rec *model.DocumentRecord, outcome string) {
	entry := &model.AccessLogEntry{
		RecipientID: req.Recipient.ID,
		DocumentID:  rec.ID,
		Outcome:     outcome,
		ServedAt:    d.now().UTC(),
		ClientIP:    req.ClientIP,
		ClientAgent: req.ClientAgent,
	}
	if err := d.logs.Append(ctx, entry); err != nil {
		d.log.WithError(err).WithField("document_id", rec.ID).Error("append access log")
	}
}

// IssueToken lets a document's owner hand out a download link. ttl <= 0 uses the default.
func (d *Downloads) IssueToken(ctx context.Context, ownerID, documentID, recipientID string, ttl time.Duration) (*TokenResult, error) {
	if recipientID == "" {
		return nil, fmt.Errorf("%w: recipient_id is required", ErrInvalidInput)
	}
	if ttl <= 0 {
		ttl = d.cfg.TokenTTL
	}
	if ttl > d.cfg.MaxTokenTTL {
		return nil, fmt.Errorf("%w: ttl exceeds %s", ErrInvalidInput, d.cfg.MaxTokenTTL)
	}
	rec, err := d.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	tok, exp, err := d.tokens.Issue(recipientID, rec.ParentResourceID, rec.ID, ttl)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	d.log.WithFields(logrus.Fields{"document_id": rec.ID, "recipient_id": recipientID, "expires_at": exp}).Info("download token issued")
	return &TokenResult{Token: tok, ExpiresAt: exp}, nil
}

// Status returns the caller's own ledger state for a document.
func (d *Downloads) Status(ctx context.Context, recipientID, documentID string) (*access.Status, error) {
	if _, err := d.docs.Get(ctx, documentID); err != nil {
		return nil, err
	}
	return d.limiter.Status(ctx, recipientID, documentID)
}

// Verify checks a signature and optionally content integrity against a record.
func (d *Downloads) Verify(ctx context.Context, content []byte, signature, documentID string) (*VerifyResult, error) {
	res := &VerifyResult{Valid: d.signer.Verify(content, signature)}
	if documentID == "" {
		return res, nil
	}
	rec, err := d.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	ok := hashHex(content) == rec.ContentHash
	res.Integrity = &ok
	return res, nil
}

func (d *Downloads) PublicKeyPEM() ([]byte, error) { return d.signer.PublicKeyPEM() }
