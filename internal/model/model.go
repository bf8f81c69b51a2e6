package model

import (
	"encoding/json"
	"errors"
	"mime"
	"path"
	"strings"
)

// RecipientInfo identifies who a copy is served to. Used only for watermark text.
type RecipientInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ResourceInfo identifies the parent resource (e.g. a property) a document belongs to.
type ResourceInfo struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
}

// DocumentRef is the single shape used to point at a stored document from listings.
type DocumentRef struct {
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

var errEmptyDocumentRef = errors.New("document ref: empty value")

// UnmarshalJSON accepts the object shape and the legacy bare URL string.
// For legacy values the filename and content type are inferred from the URL path.
func (d *DocumentRef) UnmarshalJSON(b []byte) error {
	var url string
	if err := json.Unmarshal(b, &url); err == nil {
		if url == "" {
			return errEmptyDocumentRef
		}
		*d = refFromURL(url)
		return nil
	}

	type plain DocumentRef
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if p.URL == "" {
		return errEmptyDocumentRef
	}
	ref := refFromURL(p.URL)
	if p.Filename != "" {
		ref.Filename = p.Filename
	}
	if p.ContentType != "" {
		ref.ContentType = p.ContentType
	}
	*d = ref
	return nil
}

func refFromURL(url string) DocumentRef {
	p := url
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	name := path.Base(p)
	if name == "." || name == "/" {
		name = ""
	}
	return DocumentRef{URL: url, Filename: name, ContentType: ContentTypeFor(name)}
}

// ContentTypeFor guesses a media type from a file name, defaulting to application/octet-stream.
func ContentTypeFor(name string) string {
	ext := strings.ToLower(path.Ext(name))
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	if ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			if mt, _, err := mime.ParseMediaType(t); err == nil {
				return mt
			}
		}
	}
	return "application/octet-stream"
}
