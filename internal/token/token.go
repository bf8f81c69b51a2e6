// Package token issues and validates stateless download tokens.
//
// A token is an HS256 JWT whose private claims bind recipient (r),
// parent resource (p) and document (d); exp carries the expiry.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretSize is the smallest accepted HMAC secret.
const MinSecretSize = 32

const issuer = "docvault/download"

var (
	ErrShortSecret = errors.New("token: secret must be at least 32 bytes")
	ErrInvalidTTL  = errors.New("token: ttl must be positive")
	ErrEmptyField  = errors.New("token: recipient, resource and document ids are required")
)

type claims struct {
	Recipient string `json:"r"`
	Resource  string `json:"p"`
	Document  string `json:"d"`
	jwt.RegisteredClaims
}

// Service is safe for concurrent use.
type Service struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// New returns a token Service. A nil clock uses time.Now.
func New(secret []byte, now func() time.Time) (*Service, error) {
	if len(secret) < MinSecretSize {
		return nil, ErrShortSecret
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		secret: append([]byte(nil), secret...),
		now:    now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuer(issuer),
			jwt.WithStrictDecoding(),
			jwt.WithTimeFunc(now),
		),
	}, nil
}

// Issue binds (recipient, resource, document) until now+ttl.
func (s *Service) Issue(recipientID, resourceID, documentID string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, ErrInvalidTTL
	}
	if recipientID == "" || resourceID == "" || documentID == "" {
		return "", time.Time{}, ErrEmptyField
	}
	now := s.now()
	exp := now.Add(ttl).Truncate(time.Second)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Recipient: recipientID,
		Resource:  resourceID,
		Document:  documentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp.UTC(), nil
}

// Validate reports whether tok is authentic, unexpired and bound to exactly
// the expected triple. It never distinguishes failure reasons.
func (s *Service) Validate(tok, recipientID, resourceID, documentID string) bool {
	var c claims
	parsed, err := s.parser.ParseWithClaims(tok, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return false
	}
	return c.Recipient == recipientID && c.Resource == resourceID && c.Document == documentID
}
