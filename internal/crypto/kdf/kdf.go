// Package kdf derives per-document AES-256 keys from the process master secret.
package kdf

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize is the per-document salt length in bytes.
	SaltSize = 16
	// KeySize is the derived key length (AES-256).
	KeySize = 32
	// MinIterations is the lowest accepted PBKDF2 iteration count.
	MinIterations = 100000
)

var (
	ErrEmptySecret   = errors.New("kdf: master secret is empty")
	ErrLowIterations = fmt.Errorf("kdf: iterations below %d", MinIterations)
	ErrSaltSize      = fmt.Errorf("kdf: salt must be %d bytes", SaltSize)
)

// Deriver runs PBKDF2-HMAC-SHA256 over a fixed master secret.
// A Deriver is safe for concurrent use. The secret is read-only after New.
type Deriver struct {
	secret     []byte
	iterations int
	cache      *expirable.LRU[string, []byte]
}

// New returns a Deriver. cacheSize <= 0 disables the derived key cache.
func New(secret []byte, iterations, cacheSize int, ttl time.Duration) (*Deriver, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if iterations < MinIterations {
		return nil, ErrLowIterations
	}
	d := &Deriver{
		secret:     append([]byte(nil), secret...),
		iterations: iterations,
	}
	if cacheSize > 0 {
		d.cache = expirable.NewLRU[string, []byte](cacheSize, nil, ttl)
	}
	return d, nil
}

// Iterations is the count used for new documents.
func (d *Deriver) Iterations() int { return d.iterations }

// Derive returns the key for salt using the configured iteration count.
func (d *Deriver) Derive(salt []byte) ([]byte, error) {
	return d.DeriveWith(salt, d.iterations)
}

// DeriveWith derives with an explicit iteration count, as recorded on older documents.
func (d *Deriver) DeriveWith(salt []byte, iterations int) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, ErrSaltSize
	}
	if iterations < MinIterations {
		return nil, ErrLowIterations
	}

	var ck string
	if d.cache != nil {
		ck = strconv.Itoa(iterations) + ":" + string(salt)
		if k, ok := d.cache.Get(ck); ok {
			return append([]byte(nil), k...), nil
		}
	}

	key := pbkdf2.Key(d.secret, salt, iterations, KeySize, sha256.New)

	if d.cache != nil {
		d.cache.Add(ck, append([]byte(nil), key...))
	}
	return key, nil
}

// NewSalt returns SaltSize random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("kdf: generate salt: %w", err)
	}
	return salt, nil
}
