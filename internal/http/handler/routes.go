package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"docvault/internal/http/middleware"
	"docvault/internal/service"
)

// Deps are the collaborators the HTTP surface delegates to.
type Deps struct {
	DB        Pinger
	Documents service.DocumentService
	Downloads service.DownloadService
	Auth      *middleware.SessionAuth
	Upload    UploadOptions
	Log       logrus.FieldLogger
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers only translate HTTP; all rules live in the service layer.
func RegisterRoutes(app *fiber.App, d Deps) {
	log := d.Log.WithField("component", "handler")
	session := d.Auth.Required()

	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())

	app.Get("/signatures/public-key", PublicKey(d.Downloads, log))
	app.Post("/signatures/verify", VerifySignature(d.Downloads, d.Upload.MaxBytes, log))

	app.Get("/resources/:parent/documents", session, ListDocuments(d.Documents, log))

	app.Post("/documents", session, UploadDocument(d.Documents, d.Upload, log))
	app.Get("/documents/:id", session, GetDocument(d.Documents, log))
	app.Delete("/documents/:id", session, DeleteDocument(d.Documents, log))
	app.Post("/documents/:id/tokens", session, IssueToken(d.Downloads, log))
	app.Get("/documents/:id/access", session, AccessStatus(d.Downloads, log))
	app.Get("/documents/:id/download", d.Auth.Optional(), DownloadDocument(d.Downloads, log))
}
