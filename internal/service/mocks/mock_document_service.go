package mocks

import (
	"context"
	"time"

	"docvault/internal/access"
	"docvault/internal/model"
	"docvault/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Ingest(ctx context.Context, in service.IngestInput) (*model.DocumentRecord, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentRecord), args.Error(1)
}

func (m *MockDocumentService) Retrieve(ctx context.Context, documentID, ownerID, parentID string) ([]byte, error) {
	args := m.Called(ctx, documentID, ownerID, parentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockDocumentService) Get(ctx context.Context, id string) (*model.DocumentRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentRecord), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, ownerID, parentID string, limit, offset int) (*service.DocumentListResult, error) {
	args := m.Called(ctx, ownerID, parentID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentListResult), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, id, ownerID string) error {
	args := m.Called(ctx, id, ownerID)
	return args.Error(0)
}

type MockDownloadService struct {
	mock.Mock
}

func (m *MockDownloadService) Serve(ctx context.Context, req service.ServeRequest) (*service.ServeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ServeResult), args.Error(1)
}

func (m *MockDownloadService) IssueToken(ctx context.Context, ownerID, documentID, recipientID string, ttl time.Duration) (*service.TokenResult, error) {
	args := m.Called(ctx, ownerID, documentID, recipientID, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.TokenResult), args.Error(1)
}

func (m *MockDownloadService) Status(ctx context.Context, recipientID, documentID string) (*access.Status, error) {
	args := m.Called(ctx, recipientID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*access.Status), args.Error(1)
}

func (m *MockDownloadService) Verify(ctx context.Context, content []byte, signature, documentID string) (*service.VerifyResult, error) {
	args := m.Called(ctx, content, signature, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.VerifyResult), args.Error(1)
}

func (m *MockDownloadService) PublicKeyPEM() ([]byte, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

var (
	_ service.DocumentService = (*MockDocumentService)(nil)
	_ service.DownloadService = (*MockDownloadService)(nil)
)
