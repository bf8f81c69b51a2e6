package mocks

import (
	"context"
	"time"

	"docvault/internal/model"
	"docvault/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *model.DocumentRecord) (*model.DocumentRecord, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentRecord), args.Error(1)
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, id string) (*model.DocumentRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentRecord), args.Error(1)
}

func (m *MockDocumentRepository) ListByParent(ctx context.Context, ownerID, parentID string, pq repository.PageQuery) (*repository.PageResult[model.DocumentRecord], error) {
	args := m.Called(ctx, ownerID, parentID, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.DocumentRecord]), args.Error(1)
}

func (m *MockDocumentRepository) SetAnchorRef(ctx context.Context, id, ref string) error {
	args := m.Called(ctx, id, ref)
	return args.Error(0)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockAccessLimitRepository struct {
	mock.Mock
}

func (m *MockAccessLimitRepository) Authorize(ctx context.Context, recipientID, documentID string, now time.Time, p repository.Policy) (repository.Decision, error) {
	args := m.Called(ctx, recipientID, documentID, now, p)
	return args.Get(0).(repository.Decision), args.Error(1)
}

func (m *MockAccessLimitRepository) Find(ctx context.Context, recipientID, documentID string) (*model.AccessLimitRecord, error) {
	args := m.Called(ctx, recipientID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessLimitRecord), args.Error(1)
}

type MockAccessLogRepository struct {
	mock.Mock
}

func (m *MockAccessLogRepository) Append(ctx context.Context, e *model.AccessLogEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

var (
	_ repository.DocumentRepository    = (*MockDocumentRepository)(nil)
	_ repository.AccessLimitRepository = (*MockAccessLimitRepository)(nil)
	_ repository.AccessLogRepository   = (*MockAccessLogRepository)(nil)
)
