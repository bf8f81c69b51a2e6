package model

import "time"

// DocumentRecord is the vault's index entry for one ingested document.
// It is created once at ingestion; only AnchorRef may change afterwards.
// Salt and IV are serialized as base64 by encoding/json.
type DocumentRecord struct {
	ID                string    `json:"document_id"`
	OwnerID           string    `json:"owner_id"`
	ParentResourceID  string    `json:"parent_resource_id"`
	ResourceReference string    `json:"resource_reference,omitempty"`
	Name              string    `json:"document_name"`
	ContentType       string    `json:"content_type"`
	Size              int64     `json:"size"`
	ContentHash       string    `json:"content_hash"`
	Salt              []byte    `json:"encryption_salt"`
	IV                []byte    `json:"encryption_iv"`
	KDFIterations     int       `json:"kdf_iterations"`
	AnchorRef         string    `json:"external_anchor_ref,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// AccessLimitRecord is the per (recipient, document) download ledger row.
// Rows are never deleted.
type AccessLimitRecord struct {
	RecipientID   string    `json:"recipient_id"`
	DocumentID    string    `json:"document_id"`
	MaxDownloads  int       `json:"max_downloads"`
	DownloadCount int       `json:"download_count"`
	FirstAccess   time.Time `json:"first_access"`
	LastAccess    time.Time `json:"last_access"`
	ExpiryAt      time.Time `json:"expiry_at"`
	IsExpired     bool      `json:"is_expired"`
}

// Remaining reports how many downloads are left at instant now.
func (r *AccessLimitRecord) Remaining(now time.Time) int {
	if r.IsExpired || now.After(r.ExpiryAt) {
		return 0
	}
	if left := r.MaxDownloads - r.DownloadCount; left > 0 {
		return left
	}
	return 0
}

// Access log outcomes.
const (
	OutcomeServed = "served"
	OutcomeDenied = "denied"
	// OutcomeFailed marks an authorized download whose content could not be
	// retrieved. The download still counts against the recipient's limit.
	OutcomeFailed = "failed"
)

// AccessLogEntry is one append-only audit row for a download attempt.
type AccessLogEntry struct {
	ID             int64     `json:"id,omitempty"`
	RecipientID    string    `json:"recipient_id"`
	DocumentID     string    `json:"document_id"`
	Outcome        string    `json:"outcome"`
	ServedAt       time.Time `json:"served_at"`
	ClientIP       string    `json:"client_ip"`
	ClientAgent    string    `json:"client_agent"`
	WasWatermarked bool      `json:"was_watermarked"`
	WasSigned      bool      `json:"was_signed"`
	Signature      string    `json:"signature,omitempty"`
}
