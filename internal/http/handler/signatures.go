package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"docvault/internal/service"
)

// PublicKey serves the signing public key as PEM.
func PublicKey(svc service.DownloadService, log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pem, err := svc.PublicKeyPEM()
		if err != nil {
			return writeServiceError(c, log, err)
		}
		c.Set(fiber.HeaderContentType, "application/x-pem-file")
		return c.Send(pem)
	}
}

// VerifySignature checks multipart "file" against form value "signature" and,
// when document_id is given, against that document's recorded hash.
func VerifySignature(svc service.DownloadService, maxBytes int64, log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sig := c.FormValue("signature")
		if sig == "" {
			return writeError(c, fiber.StatusBadRequest, "SIGNATURE_REQUIRED", "signature is required")
		}
		docID := c.FormValue("document_id")
		if docID != "" {
			if _, err := uuid.Parse(docID); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
			}
		}
		up, aerr := readUpload(c, "file", maxBytes)
		if aerr != nil {
			return aerr.write(c)
		}

		res, err := svc.Verify(c.UserContext(), up.data, sig, docID)
		if err != nil {
			return writeServiceError(c, log, err)
		}
		return c.JSON(res)
	}
}
