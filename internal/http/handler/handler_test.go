package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"docvault/internal/access"
	"docvault/internal/http/middleware"
	"docvault/internal/model"
	"docvault/internal/service"
	serviceMocks "docvault/internal/service/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// asUser stands in for SessionAuth in handler tests.
func asUser(id string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(middleware.PrincipalLocalKey, &middleware.Principal{ID: id, Name: "Name " + id, Email: id + "@example.com"})
		return c.Next()
	}
}

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var body errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func multipartBody(t *testing.T, fields map[string]string, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, _ = part.Write(content)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, resp).Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListDocuments(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Get("/resources/:parent/documents", asUser("seller1"), ListDocuments(mockSvc, quietLog()))

	t.Run("success", func(t *testing.T) {
		expected := &service.DocumentListResult{
			Items: []model.DocumentRef{{URL: "https://s3/x", Filename: "deed.pdf", ContentType: "application/pdf"}},
			Total: 1,
		}
		mockSvc.On("List", mock.Anything, "seller1", "prop-1", 10, 0).Return(expected, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/resources/prop-1/documents?limit=10&offset=0", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result service.DocumentListResult
		json.NewDecoder(resp.Body).Decode(&result)
		require.Len(t, result.Items, 1)
		assert.Equal(t, "deed.pdf", result.Items[0].Filename)
		assert.Equal(t, 1, result.Total)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/resources/prop-1/documents?limit=abc", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_LIMIT", decodeError(t, resp).Error.Code)
	})

	t.Run("invalid offset", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/resources/prop-1/documents?offset=x", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_OFFSET", decodeError(t, resp).Error.Code)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, "seller1", "prop-1", 10, 0).Return(nil, errors.New("service error")).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/resources/prop-1/documents", nil))
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "INTERNAL_ERROR", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestUploadDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	opts := UploadOptions{MaxBytes: 64, AllowedTypes: []string{"application/pdf"}}
	app := fiber.New()
	app.Post("/documents", asUser("seller1"), UploadDocument(mockSvc, opts, quietLog()))

	pdf := []byte("%PDF-1.4\nhello")

	t.Run("success", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"parent_resource_id": "prop-1", "resource_reference": "Lot 4"}, "deed.pdf", "", pdf)

		expected := &model.DocumentRecord{ID: uuid.NewString(), Name: "deed.pdf"}
		mockSvc.On("Ingest", mock.Anything, service.IngestInput{
			Content: pdf, Name: "deed.pdf", OwnerID: "seller1", ParentResourceID: "prop-1",
			ResourceReference: "Lot 4", ContentType: "application/pdf",
		}).Return(expected, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var result model.DocumentRecord
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, expected.ID, result.ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("no file", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"parent_resource_id": "prop-1"}, "", "", nil)
		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "FILE_REQUIRED", decodeError(t, resp).Error.Code)
	})

	t.Run("missing parent", func(t *testing.T) {
		body, ct := multipartBody(t, nil, "deed.pdf", "", pdf)
		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "PARENT_REQUIRED", decodeError(t, resp).Error.Code)
	})

	t.Run("too large", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"parent_resource_id": "prop-1"}, "deed.pdf", "", bytes.Repeat([]byte("x"), 65))
		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
		assert.Equal(t, "FILE_TOO_LARGE", decodeError(t, resp).Error.Code)
	})

	t.Run("type not allowed", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"parent_resource_id": "prop-1"}, "run.sh", "text/x-shellscript", []byte("#!/bin/sh"))
		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
		assert.Equal(t, "UNSUPPORTED_MEDIA_TYPE", decodeError(t, resp).Error.Code)
	})

	t.Run("service error", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"parent_resource_id": "prop-1"}, "deed.pdf", "application/pdf", pdf)
		mockSvc.On("Ingest", mock.Anything, mock.Anything).Return(nil, service.ErrRetryable).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "STORAGE_UNAVAILABLE", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestGetDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Get("/documents/:id", asUser("seller1"), GetDocument(mockSvc, quietLog()))

	t.Run("success", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Get", mock.Anything, id).Return(&model.DocumentRecord{ID: id, OwnerID: "seller1"}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+id, nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result model.DocumentRecord
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, id, result.ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("other owner", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Get", mock.Anything, id).Return(&model.DocumentRecord{ID: id, OwnerID: "seller2"}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+id, nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Get", mock.Anything, id).Return(nil, service.ErrNotFound).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+id, nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/invalid-uuid", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_ID", decodeError(t, resp).Error.Code)
	})
}

func TestDeleteDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Delete("/documents/:id", asUser("seller1"), DeleteDocument(mockSvc, quietLog()))

	t.Run("success", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Delete", mock.Anything, id, "seller1").Return(nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/documents/"+id, nil))
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Delete", mock.Anything, id, "seller1").Return(service.ErrNotFound).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/documents/"+id, nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
	})

	t.Run("service error", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Delete", mock.Anything, id, "seller1").Return(errors.New("delete error")).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/documents/"+id, nil))
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}

func TestDownloadDocument(t *testing.T) {
	id := uuid.NewString()
	rec := &model.DocumentRecord{ID: id, Name: "deed.pdf", ContentType: "application/pdf"}

	t.Run("session recipient", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockDownloadService)
		app := fiber.New()
		app.Get("/documents/:id/download", asUser("buyer1"), DownloadDocument(mockSvc, quietLog()))

		mockSvc.On("Serve", mock.Anything, mock.MatchedBy(func(r service.ServeRequest) bool {
			return r.DocumentID == id && r.Recipient.ID == "buyer1" && r.Recipient.Email == "buyer1@example.com" && r.Token == ""
		})).Return(&service.ServeResult{
			Record: rec, Content: []byte("%PDF-stamped"), Signature: "c2ln", Watermarked: true, Signed: true,
		}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents/"+id+"/download", nil)
		req.Header.Set("User-Agent", "test-agent")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
		assert.Equal(t, "c2ln", resp.Header.Get(HeaderSignature))
		assert.Equal(t, "true", resp.Header.Get(HeaderWatermarkApplied))
		assert.Equal(t, "false", resp.Header.Get(HeaderDegraded))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename=deed.pdf`)
		b, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "%PDF-stamped", string(b))
		mockSvc.AssertExpectations(t)
	})

	t.Run("token recipient degraded", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockDownloadService)
		app := fiber.New()
		app.Get("/documents/:id/download", DownloadDocument(mockSvc, quietLog()))

		mockSvc.On("Serve", mock.Anything, mock.MatchedBy(func(r service.ServeRequest) bool {
			return r.Token == "tok" && r.Recipient.ID == "verifier"
		})).Return(&service.ServeResult{
			Record: rec, Content: []byte("%PDF"), Degradation: service.Degradation{SigningFailed: true},
		}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+id+"/download?token=tok&recipient_id=verifier", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "true", resp.Header.Get(HeaderDegraded))
		assert.Empty(t, resp.Header.Get(HeaderSignature))
	})

	t.Run("token without recipient", func(t *testing.T) {
		app := fiber.New()
		app.Get("/documents/:id/download", DownloadDocument(new(serviceMocks.MockDownloadService), quietLog()))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+id+"/download?token=tok", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "RECIPIENT_REQUIRED", decodeError(t, resp).Error.Code)
	})

	t.Run("anonymous", func(t *testing.T) {
		app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
		app.Get("/documents/:id/download", DownloadDocument(new(serviceMocks.MockDownloadService), quietLog()))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+id+"/download", nil))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, resp).Error.Code)
	})

	t.Run("denied", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockDownloadService)
		app := fiber.New()
		app.Get("/documents/:id/download", asUser("buyer1"), DownloadDocument(mockSvc, quietLog()))
		mockSvc.On("Serve", mock.Anything, mock.Anything).Return(nil, service.ErrAccessDenied).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+id+"/download", nil))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		body := decodeError(t, resp)
		assert.Equal(t, "ACCESS_DENIED", body.Error.Code)
		assert.Equal(t, "access denied", body.Error.Message)
	})

	t.Run("unrecoverable", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockDownloadService)
		app := fiber.New()
		app.Get("/documents/:id/download", asUser("buyer1"), DownloadDocument(mockSvc, quietLog()))
		mockSvc.On("Serve", mock.Anything, mock.Anything).Return(nil, service.ErrUnrecoverable).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+id+"/download", nil))
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "internal server error", decodeError(t, resp).Error.Message)
	})
}

func TestIssueToken(t *testing.T) {
	id := uuid.NewString()
	mockSvc := new(serviceMocks.MockDownloadService)
	app := fiber.New()
	app.Post("/documents/:id/tokens", asUser("seller1"), IssueToken(mockSvc, quietLog()))

	t.Run("success", func(t *testing.T) {
		exp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		mockSvc.On("IssueToken", mock.Anything, "seller1", id, "buyer9", 90*time.Second).
			Return(&service.TokenResult{Token: "abc", ExpiresAt: exp}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents/"+id+"/tokens", strings.NewReader(`{"recipient_id":"buyer9","ttl_seconds":90}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var res service.TokenResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		assert.Equal(t, "abc", res.Token)
		assert.True(t, exp.Equal(res.ExpiresAt))
	})

	t.Run("negative ttl", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/documents/"+id+"/tokens", strings.NewReader(`{"recipient_id":"b","ttl_seconds":-1}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_TTL", decodeError(t, resp).Error.Code)
	})

	t.Run("invalid input from service", func(t *testing.T) {
		mockSvc.On("IssueToken", mock.Anything, "seller1", id, "", time.Duration(0)).
			Return(nil, errors.Join(service.ErrInvalidInput, errors.New("recipient_id is required"))).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents/"+id+"/tokens", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_INPUT", decodeError(t, resp).Error.Code)
	})
}

func TestAccessStatus(t *testing.T) {
	id := uuid.NewString()
	mockSvc := new(serviceMocks.MockDownloadService)
	app := fiber.New()
	app.Get("/documents/:id/access", asUser("buyer1"), AccessStatus(mockSvc, quietLog()))

	mockSvc.On("Status", mock.Anything, "buyer1", id).Return(&access.Status{RecipientID: "buyer1", DocumentID: id, MaxDownloads: 3, DownloadCount: 1, Remaining: 2}, nil).Once()

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+id+"/access", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var st access.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, 2, st.Remaining)
	mockSvc.AssertExpectations(t)
}

func TestSignatureEndpoints(t *testing.T) {
	mockSvc := new(serviceMocks.MockDownloadService)
	app := fiber.New()
	app.Get("/signatures/public-key", PublicKey(mockSvc, quietLog()))
	app.Post("/signatures/verify", VerifySignature(mockSvc, 1024, quietLog()))

	t.Run("public key", func(t *testing.T) {
		mockSvc.On("PublicKeyPEM").Return([]byte("-----BEGIN PUBLIC KEY-----\n"), nil).Once()
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/signatures/public-key", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/x-pem-file", resp.Header.Get("Content-Type"))
	})

	t.Run("verify", func(t *testing.T) {
		docID := uuid.NewString()
		ok := true
		mockSvc.On("Verify", mock.Anything, []byte("content"), "c2ln", docID).Return(&service.VerifyResult{Valid: true, Integrity: &ok}, nil).Once()

		body, ct := multipartBody(t, map[string]string{"signature": "c2ln", "document_id": docID}, "copy.pdf", "application/pdf", []byte("content"))
		req := httptest.NewRequest(http.MethodPost, "/signatures/verify", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var res service.VerifyResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		assert.True(t, res.Valid)
		require.NotNil(t, res.Integrity)
		assert.True(t, *res.Integrity)
	})

	t.Run("missing signature", func(t *testing.T) {
		body, ct := multipartBody(t, nil, "copy.pdf", "", []byte("content"))
		req := httptest.NewRequest(http.MethodPost, "/signatures/verify", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "SIGNATURE_REQUIRED", decodeError(t, resp).Error.Code)
	})
}

func TestRegisterRoutesRequiresSession(t *testing.T) {
	auth, err := middleware.NewSessionAuth("secret", "docvault")
	require.NoError(t, err)
	docs := new(serviceMocks.MockDocumentService)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(middleware.RequestID())
	RegisterRoutes(app, Deps{
		Documents: docs,
		Downloads: new(serviceMocks.MockDownloadService),
		Auth:      auth,
		Log:       quietLog(),
	})

	id := uuid.NewString()
	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+id, nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
	assert.NotEmpty(t, body.RequestID)

	tok, err := auth.Mint(middleware.Principal{ID: "seller1"}, time.Minute)
	require.NoError(t, err)
	docs.On("Get", mock.Anything, id).Return(&model.DocumentRecord{ID: id, OwnerID: "seller1"}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/documents/"+id, nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, _ = app.Test(req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	docs.AssertExpectations(t)
}
