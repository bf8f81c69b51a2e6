package handler

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"docvault/internal/http/middleware"
	"docvault/internal/model"
	"docvault/internal/repair"
	"docvault/internal/service"
)

// UploadOptions bound what POST /documents accepts.
type UploadOptions struct {
	MaxBytes     int64
	AllowedTypes []string
}

func (o UploadOptions) allowed(ct string) bool {
	if len(o.AllowedTypes) == 0 {
		return true
	}
	for _, t := range o.AllowedTypes {
		if repair.Normalize(t) == ct {
			return true
		}
	}
	return false
}

func principal(c *fiber.Ctx) (*middleware.Principal, error) {
	p := middleware.PrincipalFrom(c)
	if p == nil {
		return nil, fiber.ErrUnauthorized
	}
	return p, nil
}

// apiError is a request problem that maps directly onto the error envelope.
type apiError struct {
	status  int
	code    string
	message string
}

func (e *apiError) write(c *fiber.Ctx) error { return writeError(c, e.status, e.code, e.message) }

func documentID(c *fiber.Ctx) (string, *apiError) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", &apiError{fiber.StatusBadRequest, "INVALID_ID", "invalid id format"}
	}
	return id, nil
}

type upload struct {
	data        []byte
	name        string
	contentType string
}

// readUpload reads the multipart field completely, refusing anything over max bytes.
func readUpload(c *fiber.Ctx, field string, max int64) (*upload, *apiError) {
	tooLarge := &apiError{fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", fmt.Sprintf("file exceeds %d bytes", max)}
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, &apiError{fiber.StatusBadRequest, "FILE_REQUIRED", "file is required"}
	}
	if max > 0 && fh.Size > max {
		return nil, tooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, &apiError{fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file"}
	}
	defer f.Close()

	var r io.Reader = f
	if max > 0 {
		r = io.LimitReader(f, max+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &apiError{fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot read uploaded file"}
	}
	if max > 0 && int64(len(data)) > max {
		return nil, tooLarge
	}

	ct := repair.Normalize(fh.Header.Get(fiber.HeaderContentType))
	if ct == "" || ct == "application/octet-stream" {
		ct = model.ContentTypeFor(fh.Filename)
	}
	return &upload{data: data, name: fh.Filename, contentType: ct}, nil
}

// UploadDocument ingests multipart field "file" under form value parent_resource_id
// for the session user.
func UploadDocument(svc service.DocumentService, opts UploadOptions, log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		parent := c.FormValue("parent_resource_id")
		if parent == "" {
			return writeError(c, fiber.StatusBadRequest, "PARENT_REQUIRED", "parent_resource_id is required")
		}

		up, aerr := readUpload(c, "file", opts.MaxBytes)
		if aerr != nil {
			return aerr.write(c)
		}
		if !opts.allowed(up.contentType) {
			return writeError(c, fiber.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "content type not allowed: "+up.contentType)
		}

		doc, err := svc.Ingest(c.UserContext(), service.IngestInput{
			Content:           up.data,
			Name:              up.name,
			OwnerID:           p.ID,
			ParentResourceID:  parent,
			ResourceReference: c.FormValue("resource_reference"),
			ContentType:       up.contentType,
		})
		if err != nil {
			return writeServiceError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

// ListDocuments returns the session user's documents for :parent with limit & offset.
func ListDocuments(svc service.DocumentService, log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), p.ID, c.Params("parent"), limit, offset)
		if err != nil {
			return writeServiceError(c, log, err)
		}
		return c.JSON(res)
	}
}

// GetDocument returns a record to its owner. Other users get 404.
func GetDocument(svc service.DocumentService, log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		id, aerr := documentID(c)
		if aerr != nil {
			return aerr.write(c)
		}
		doc, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, log, err)
		}
		if doc.OwnerID != p.ID {
			return writeServiceError(c, log, service.ErrNotFound)
		}
		return c.JSON(doc)
	}
}

// DeleteDocument removes a document owned by the session user.
func DeleteDocument(svc service.DocumentService, log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		id, aerr := documentID(c)
		if aerr != nil {
			return aerr.write(c)
		}
		if err := svc.Delete(c.UserContext(), id, p.ID); err != nil {
			return writeServiceError(c, log, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
