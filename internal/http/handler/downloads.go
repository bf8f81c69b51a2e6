package handler

import (
	"mime"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"docvault/internal/model"
	"docvault/internal/service"
)

// Download response headers.
const (
	HeaderSignature        = "X-Document-Signature"
	HeaderWatermarkApplied = "X-Watermark-Applied"
	HeaderDegraded         = "X-Degraded"
)

// DownloadDocument serves a stamped, signed copy. A ?token= request names its
// recipient with ?recipient_id=; otherwise the session user is the recipient.
func DownloadDocument(svc service.DownloadService, log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, aerr := documentID(c)
		if aerr != nil {
			return aerr.write(c)
		}

		req := service.ServeRequest{
			DocumentID:  id,
			ClientIP:    c.IP(),
			ClientAgent: c.Get(fiber.HeaderUserAgent),
		}
		if tok := c.Query("token"); tok != "" {
			rid := c.Query("recipient_id")
			if rid == "" {
				return writeError(c, fiber.StatusBadRequest, "RECIPIENT_REQUIRED", "recipient_id is required with token")
			}
			req.Token = tok
			req.Recipient = model.RecipientInfo{ID: rid, Name: rid}
		} else {
			p, err := principal(c)
			if err != nil {
				return err
			}
			req.Recipient = model.RecipientInfo{ID: p.ID, Name: p.Name, Email: p.Email}
		}

		res, err := svc.Serve(c.UserContext(), req)
		if err != nil {
			return writeServiceError(c, log, err)
		}

		c.Set(fiber.HeaderContentType, res.Record.ContentType)
		c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": res.Record.Name}))
		c.Set(fiber.HeaderCacheControl, "no-store")
		c.Set(HeaderWatermarkApplied, strconv.FormatBool(res.Watermarked))
		c.Set(HeaderDegraded, strconv.FormatBool(res.Degradation.Degraded()))
		if res.Signed {
			c.Set(HeaderSignature, res.Signature)
		}
		return c.Status(fiber.StatusOK).Send(res.Content)
	}
}

type issueTokenRequest struct {
	RecipientID string `json:"recipient_id" form:"recipient_id"`
	TTLSeconds  int64  `json:"ttl_seconds" form:"ttl_seconds"`
}

// IssueToken mints a download link token for a recipient. Owner only.
func IssueToken(svc service.DownloadService, log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		id, aerr := documentID(c)
		if aerr != nil {
			return aerr.write(c)
		}
		var body issueTokenRequest
		if err := c.BodyParser(&body); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		if body.TTLSeconds < 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_TTL", "ttl_seconds must not be negative")
		}

		res, err := svc.IssueToken(c.UserContext(), p.ID, id, body.RecipientID, time.Duration(body.TTLSeconds)*time.Second)
		if err != nil {
			return writeServiceError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// AccessStatus reports the session user's own remaining downloads.
func AccessStatus(svc service.DownloadService, log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		id, aerr := documentID(c)
		if aerr != nil {
			return aerr.write(c)
		}
		st, err := svc.Status(c.UserContext(), p.ID, id)
		if err != nil {
			return writeServiceError(c, log, err)
		}
		return c.JSON(st)
	}
}
