package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Package storage contains object storage abstractions for the vault's three logical areas.
// Implementations stream through io.Reader and never use local disk.

// Area is a logical storage partition. Each area maps to its own bucket.
type Area string

const (
	AreaOriginals Area = "originals"
	AreaSecured   Area = "secured"
	AreaMetadata  Area = "metadata"
)

// Areas lists every area in a stable order.
var Areas = []Area{AreaOriginals, AreaSecured, AreaMetadata}

// ErrNotFound is returned by Get when the object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Buckets names the bucket backing each area.
type Buckets struct {
	Originals string
	Secured   string
	Metadata  string
}

// For returns the bucket for area a.
func (b Buckets) For(a Area) (string, error) {
	var name string
	switch a {
	case AreaOriginals:
		name = b.Originals
	case AreaSecured:
		name = b.Secured
	case AreaMetadata:
		name = b.Metadata
	default:
		return "", fmt.Errorf("storage: unknown area %q", a)
	}
	if name == "" {
		return "", fmt.Errorf("storage: no bucket configured for area %q", a)
	}
	return name, nil
}

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1 and the implementation
// will buffer/chunk as supported by the backend.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Area         Area
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is an area-aware, S3-compatible object storage client.
type Storage interface {
	// Put uploads an object under key in area.
	Put(ctx context.Context, area Area, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get streams an object. The caller must close the reader. Missing objects yield ErrNotFound.
	Get(ctx context.Context, area Area, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, area Area, key string) error
	// PresignGet returns a time-limited download URL.
	PresignGet(ctx context.Context, area Area, key string, expiry time.Duration) (string, error)
}
