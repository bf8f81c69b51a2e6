package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"docvault/internal/anchor"
	"docvault/internal/crypto/aescbc"
	"docvault/internal/crypto/kdf"
	"docvault/internal/model"
	"docvault/internal/repair"
	"docvault/internal/repository"
	"docvault/internal/storage"
)

var tracer = otel.Tracer("docvault/internal/service")

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.DocumentRef `json:"data"`
	Total int                 `json:"total"`
}

// IngestInput is one upload. Content is the complete plaintext.
type IngestInput struct {
	Content           []byte
	Name              string
	OwnerID           string
	ParentResourceID  string
	ResourceReference string
	ContentType       string
}

// DocumentService defines the storage use cases for vault documents.
type DocumentService interface {
	// Ingest stores the original and an encrypted copy, then indexes the record.
	// Blobs already written are removed if indexing fails.
	Ingest(ctx context.Context, in IngestInput) (*model.DocumentRecord, error)

	// Retrieve returns verified plaintext for a document of owner under parent.
	Retrieve(ctx context.Context, documentID, ownerID, parentID string) ([]byte, error)

	// Get returns a single record by its ID.
	Get(ctx context.Context, id string) (*model.DocumentRecord, error)

	// List pages through one owner's documents for a parent resource.
	List(ctx context.Context, ownerID, parentID string, limit, offset int) (*DocumentListResult, error)

	// Delete removes every stored copy and then the record. Only the owner may delete.
	Delete(ctx context.Context, id, ownerID string) error
}

// KeyDeriver turns a per-document salt into an AES-256 key.
type KeyDeriver interface {
	Iterations() int
	DeriveWith(salt []byte, iterations int) ([]byte, error)
}

// StoreConfig bounds storage calls and background anchoring.
type StoreConfig struct {
	Timeout       time.Duration
	AnchorTimeout time.Duration
	LinkExpiry    time.Duration
}

// DocumentStore implements DocumentService.
type DocumentStore struct {
	store    storage.Storage
	repo     repository.DocumentRepository
	keys     KeyDeriver
	anchorer anchor.Anchorer
	cfg      StoreConfig
	log      logrus.FieldLogger
	now      func() time.Time
	ingests  *prometheus.CounterVec
	// pending tracks fire-and-forget anchor submissions.
	pending sync.WaitGroup
}

var _ DocumentService = (*DocumentStore)(nil)

// NewDocumentStore constructs a DocumentStore. A nil reg skips metric registration.
func NewDocumentStore(store storage.Storage, repo repository.DocumentRepository, keys KeyDeriver, anchorer anchor.Anchorer,
	cfg StoreConfig, log logrus.FieldLogger, reg prometheus.Registerer) (*DocumentStore, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.AnchorTimeout <= 0 {
		cfg.AnchorTimeout = 30 * time.Second
	}
	if cfg.LinkExpiry <= 0 {
		cfg.LinkExpiry = 15 * time.Minute
	}
	if anchorer == nil {
		anchorer = anchor.Noop{}
	}
	s := &DocumentStore{
		store:    store,
		repo:     repo,
		keys:     keys,
		anchorer: anchorer,
		cfg:      cfg,
		log:      log.WithField("component", "document_store"),
		now:      time.Now,
		ingests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docvault_ingests_total",
			Help: "Document ingestions by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		if err := reg.Register(s.ingests); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func originalKey(owner, parent, name string) string {
	return path.Join(owner, parent, "documents", name)
}

func securedKey(owner, parent, id, name string) string {
	return path.Join(owner, parent, "documents", id+"_"+name)
}

func metadataKey(owner, parent, id string) string {
	return path.Join(owner, parent, "documents", id+"_metadata.json")
}

// cleanName strips directories so a name can never escape its prefix.
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = path.Base(name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", fmt.Errorf("%w: document name is required", ErrInvalidInput)
	}
	return name, nil
}

func validSegment(field, v string) error {
	if v == "" || strings.ContainsAny(v, "/\\") || v == "." || v == ".." {
		return fmt.Errorf("%w: %s is invalid", ErrInvalidInput, field)
	}
	return nil
}

func hashHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (s *DocumentStore) Ingest(ctx context.Context, in IngestInput) (rec *model.DocumentRecord, err error) {
	ctx, span := tracer.Start(ctx, "DocumentStore.Ingest")
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, "ingest failed")
		}
		s.ingests.WithLabelValues(result).Inc()
		span.End()
	}()

	if len(in.Content) == 0 {
		return nil, fmt.Errorf("%w: content is empty", ErrInvalidInput)
	}
	name, err := cleanName(in.Name)
	if err != nil {
		return nil, err
	}
	if err := validSegment("owner_id", in.OwnerID); err != nil {
		return nil, err
	}
	if err := validSegment("parent_resource_id", in.ParentResourceID); err != nil {
		return nil, err
	}
	ct := repair.Normalize(in.ContentType)
	if ct == "" {
		ct = "application/octet-stream"
	}

	id := uuid.NewString()
	span.SetAttributes(attribute.String("document.id", id), attribute.Int("document.size", len(in.Content)))

	salt, err := kdf.NewSalt()
	if err != nil {
		return nil, err
	}
	iterations := s.keys.Iterations()
	key, err := s.keys.DeriveWith(salt, iterations)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	ciphertext, iv, err := aescbc.Encrypt(in.Content, key)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}

	rec = &model.DocumentRecord{
		ID:                id,
		OwnerID:           in.OwnerID,
		ParentResourceID:  in.ParentResourceID,
		ResourceReference: in.ResourceReference,
		Name:              name,
		ContentType:       ct,
		Size:              int64(len(in.Content)),
		ContentHash:       hashHex(in.Content),
		Salt:              salt,
		IV:                iv,
		KDFIterations:     iterations,
		CreatedAt:         s.now().UTC(),
	}

	origKey := originalKey(rec.OwnerID, rec.ParentResourceID, name)
	secKey := securedKey(rec.OwnerID, rec.ParentResourceID, id, name)
	metaKey := metadataKey(rec.OwnerID, rec.ParentResourceID, id)
	written := map[storage.Area]string{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.put(gctx, storage.AreaOriginals, origKey, in.Content, ct, id); err != nil {
			return fmt.Errorf("store original: %w", err)
		}
		mu.Lock()
		written[storage.AreaOriginals] = origKey
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		if err := s.put(gctx, storage.AreaSecured, secKey, ciphertext, "application/octet-stream", id); err != nil {
			return fmt.Errorf("store secured copy: %w", err)
		}
		mu.Lock()
		written[storage.AreaSecured] = secKey
		mu.Unlock()
		return nil
	})
	if err := g.Wait(); err != nil {
		s.rollback(written)
		return nil, err
	}

	sidecar, err := json.Marshal(rec)
	if err != nil {
		s.rollback(written)
		return nil, err
	}
	if err := s.put(ctx, storage.AreaMetadata, metaKey, sidecar, "application/json", id); err != nil {
		s.rollback(written)
		return nil, fmt.Errorf("store metadata: %w", err)
	}
	written[storage.AreaMetadata] = metaKey

	stored, err := s.repo.Create(ctx, rec)
	if err != nil {
		if rbErr := s.rollback(written); rbErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, rbErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"event":       "document_ingested",
		"document_id": id,
		"owner_id":    rec.OwnerID,
		"size":        rec.Size,
	}).Info("document ingested")

	s.anchorAsync(id, rec.ContentHash)
	return stored, nil
}

func (s *DocumentStore) put(ctx context.Context, area storage.Area, key string, data []byte, ct, id string) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		_, err := s.store.Put(ctx, area, key, bytes.NewReader(data), storage.PutObjectOptions{
			Size:        int64(len(data)),
			ContentType: ct,
			Metadata:    map[string]string{"document-id": id},
		})
		return err
	})
}

// rollback deletes blobs written by a failed ingestion. It runs on a fresh
// context so a cancelled request still cleans up.
func (s *DocumentStore) rollback(written map[storage.Area]string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()
	var errs []error
	for area, key := range written {
		if err := s.store.Delete(ctx, area, key); err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", area, key, err))
		}
	}
	return errors.Join(errs...)
}

func (s *DocumentStore) anchorAsync(id, hash string) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.AnchorTimeout)
		defer cancel()

		l := s.log.WithField("document_id", id)
		ref, err := s.anchorer.Anchor(ctx, hash)
		if errors.Is(err, anchor.ErrDisabled) {
			return
		}
		if err != nil {
			l.WithError(err).Warn("hash anchoring failed")
			return
		}
		if err := s.repo.SetAnchorRef(ctx, id, ref); err != nil {
			l.WithError(err).Warn("store anchor ref failed")
			return
		}
		l.WithField("anchor_ref", ref).Info("hash anchored")
	}()
}

// Wait blocks until pending anchor submissions finish or ctx is done.
func (s *DocumentStore) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// withRetry runs op under the per-call timeout and retries once on any
// failure other than a missing object or a cancelled caller.
func (s *DocumentStore) withRetry(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		err = op(cctx)
		cancel()
		if err == nil || errors.Is(err, storage.ErrNotFound) || ctx.Err() != nil {
			return err
		}
		s.log.WithError(err).WithField("attempt", attempt+1).Warn("storage call failed")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrRetryable, err)
	}
	return err
}

// read fetches one object completely. Partial reads are discarded.
func (s *DocumentStore) read(ctx context.Context, area storage.Area, key string) ([]byte, error) {
	var out []byte
	err := s.withRetry(ctx, func(ctx context.Context) error {
		rc, _, err := s.store.Get(ctx, area, key)
		if err != nil {
			return err
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

func (s *DocumentStore) Get(ctx context.Context, id string) (*model.DocumentRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (s *DocumentStore) Retrieve(ctx context.Context, documentID, ownerID, parentID string) ([]byte, error) {
	rec, err := s.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != ownerID || rec.ParentResourceID != parentID {
		return nil, ErrNotFound
	}
	return s.plaintext(ctx, rec)
}

// plaintext tries the originals copy first, then decrypts the secured copy.
// Whatever is returned hashes to rec.ContentHash.
func (s *DocumentStore) plaintext(ctx context.Context, rec *model.DocumentRecord) (out []byte, err error) {
	ctx, span := tracer.Start(ctx, "DocumentStore.Retrieve")
	span.SetAttributes(attribute.String("document.id", rec.ID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "retrieve failed")
		}
		span.End()
	}()

	l := s.log.WithField("document_id", rec.ID)

	orig, origErr := s.read(ctx, storage.AreaOriginals, originalKey(rec.OwnerID, rec.ParentResourceID, rec.Name))
	switch {
	case origErr == nil && len(orig) > 0 && hashHex(orig) == rec.ContentHash:
		span.SetAttributes(attribute.String("retrieve.path", "originals"))
		return orig, nil
	case origErr == nil && len(orig) > 0:
		l.Warn("original copy fails hash check, falling back to secured copy")
	case origErr != nil && !errors.Is(origErr, storage.ErrNotFound):
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		l.WithError(origErr).Warn("original copy unavailable, falling back to secured copy")
	}

	ct, secErr := s.read(ctx, storage.AreaSecured, securedKey(rec.OwnerID, rec.ParentResourceID, rec.ID, rec.Name))
	if secErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(secErr, ErrRetryable) || errors.Is(origErr, ErrRetryable) {
			return nil, ErrRetryable
		}
		l.WithError(secErr).Error("secured copy unavailable")
		return nil, ErrUnrecoverable
	}
	if len(ct) == 0 {
		l.Error("secured copy is empty")
		return nil, ErrUnrecoverable
	}

	key, err := s.keys.DeriveWith(rec.Salt, rec.KDFIterations)
	if err != nil {
		l.WithError(err).Error("derive key")
		return nil, ErrUnrecoverable
	}
	plain, err := aescbc.Decrypt(ct, key, rec.IV)
	if err != nil {
		l.WithError(err).Error("decrypt secured copy")
		return nil, ErrUnrecoverable
	}
	if !repair.Valid(plain, rec.ContentType) {
		plain = repair.Repair(plain, rec.ContentType)
		l.Warn("secured copy repaired")
	}
	if len(plain) == 0 || hashHex(plain) != rec.ContentHash {
		l.Error("secured copy fails hash check")
		return nil, ErrUnrecoverable
	}
	span.SetAttributes(attribute.String("retrieve.path", "secured"))
	return plain, nil
}

// List returns DocumentRefs whose URLs are short-lived links to the owner's originals.
func (s *DocumentStore) List(ctx context.Context, ownerID, parentID string, limit, offset int) (*DocumentListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	res, err := s.repo.ListByParent(ctx, ownerID, parentID, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	out := &DocumentListResult{Items: make([]model.DocumentRef, 0, len(res.Items)), Total: res.Total}
	for _, d := range res.Items {
		url, err := s.store.PresignGet(ctx, storage.AreaOriginals, originalKey(d.OwnerID, d.ParentResourceID, d.Name), s.cfg.LinkExpiry)
		if err != nil {
			return nil, fmt.Errorf("presign %s: %w", d.ID, err)
		}
		out.Items = append(out.Items, model.DocumentRef{URL: url, Filename: d.Name, ContentType: d.ContentType})
	}
	return out, nil
}

// Delete removes storage objects first; the record is kept if that fails so
// the keys are not lost.
func (s *DocumentStore) Delete(ctx context.Context, id, ownerID string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if doc.OwnerID != ownerID {
		return ErrNotFound
	}
	keys := map[storage.Area]string{
		storage.AreaOriginals: originalKey(doc.OwnerID, doc.ParentResourceID, doc.Name),
		storage.AreaSecured:   securedKey(doc.OwnerID, doc.ParentResourceID, doc.ID, doc.Name),
		storage.AreaMetadata:  metadataKey(doc.OwnerID, doc.ParentResourceID, doc.ID),
	}
	for _, area := range storage.Areas {
		key := keys[area]
		if err := s.withRetry(ctx, func(ctx context.Context) error { return s.store.Delete(ctx, area, key) }); err != nil {
			return fmt.Errorf("delete storage: %w", err)
		}
	}
	return s.repo.Delete(ctx, id)
}
