// Package memory holds mutex-guarded repositories for tests. It is test-only:
// no production binary wires it, and nothing here survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"docvault/internal/model"
	"docvault/internal/repository"
)

type pairKey struct {
	recipient string
	document  string
}

// AccessLimits is an in-process download ledger. One mutex covers the
// whole check-and-increment, matching the conditional write of the SQL store.
type AccessLimits struct {
	mu   sync.Mutex
	rows map[pairKey]*model.AccessLimitRecord
}

func NewAccessLimits() *AccessLimits {
	return &AccessLimits{rows: make(map[pairKey]*model.AccessLimitRecord)}
}

var _ repository.AccessLimitRepository = (*AccessLimits)(nil)

func (s *AccessLimits) Authorize(ctx context.Context, recipientID, documentID string, now time.Time, p repository.Policy) (repository.Decision, error) {
	if err := ctx.Err(); err != nil {
		return repository.Decision{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := pairKey{recipientID, documentID}
	rec, ok := s.rows[k]
	if !ok {
		s.rows[k] = &model.AccessLimitRecord{
			RecipientID:   recipientID,
			DocumentID:    documentID,
			MaxDownloads:  p.MaxDownloads,
			DownloadCount: 1,
			FirstAccess:   now,
			LastAccess:    now,
			ExpiryAt:      now.Add(p.Window),
		}
		return repository.Decision{Allowed: true, Reason: repository.ReasonFirstAccess, Count: 1}, nil
	}

	if !rec.IsExpired && !now.After(rec.ExpiryAt) && rec.DownloadCount < rec.MaxDownloads {
		rec.DownloadCount++
		rec.LastAccess = now
		return repository.Decision{Allowed: true, Reason: repository.ReasonWithinLimit, Count: rec.DownloadCount}, nil
	}

	if now.After(rec.ExpiryAt) && !rec.IsExpired {
		rec.IsExpired = true
		return repository.Decision{Reason: repository.ReasonExpired}, nil
	}
	return repository.Decision{Reason: repository.ReasonDenied}, nil
}

func (s *AccessLimits) Find(ctx context.Context, recipientID, documentID string) (*model.AccessLimitRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rows[pairKey{recipientID, documentID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// AccessLogs is an in-process append-only log.
type AccessLogs struct {
	mu      sync.Mutex
	entries []model.AccessLogEntry
}

func NewAccessLogs() *AccessLogs { return &AccessLogs{} }

var _ repository.AccessLogRepository = (*AccessLogs)(nil)

func (s *AccessLogs) Append(_ context.Context, e *model.AccessLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = int64(len(s.entries) + 1)
	s.entries = append(s.entries, *e)
	return nil
}

// Entries returns a copy of everything appended so far.
func (s *AccessLogs) Entries() []model.AccessLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AccessLogEntry(nil), s.entries...)
}

// Documents is an in-process DocumentRepository.
type Documents struct {
	mu   sync.RWMutex
	rows map[string]model.DocumentRecord
}

func NewDocuments() *Documents {
	return &Documents{rows: make(map[string]model.DocumentRecord)}
}

var _ repository.DocumentRepository = (*Documents)(nil)

func (s *Documents) Create(ctx context.Context, doc *model.DocumentRecord) (*model.DocumentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[doc.ID]; ok {
		return nil, fmt.Errorf("memory: duplicate document id %s", doc.ID)
	}
	s.rows[doc.ID] = *doc
	out := *doc
	return &out, nil
}

func (s *Documents) FindByID(ctx context.Context, id string) (*model.DocumentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &doc, nil
}

func (s *Documents) ListByParent(ctx context.Context, ownerID, parentID string, pq repository.PageQuery) (*repository.PageResult[model.DocumentRecord], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var all []model.DocumentRecord
	for _, d := range s.rows {
		if d.OwnerID == ownerID && d.ParentResourceID == parentID {
			all = append(all, d)
		}
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	res := &repository.PageResult[model.DocumentRecord]{Items: []model.DocumentRecord{}, Total: len(all)}
	if pq.Offset >= len(all) {
		return res, nil
	}
	end := len(all)
	if pq.Limit > 0 && pq.Offset+pq.Limit < end {
		end = pq.Offset + pq.Limit
	}
	res.Items = append(res.Items, all[pq.Offset:end]...)
	return res, nil
}

func (s *Documents) SetAnchorRef(ctx context.Context, id, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	doc.AnchorRef = ref
	s.rows[id] = doc
	return nil
}

func (s *Documents) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}
