package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// PrincipalLocalKey holds the authenticated *Principal in fiber Locals.
const PrincipalLocalKey = "principal"

// Principal is the session user behind a request.
type Principal struct {
	ID    string
	Name  string
	Email string
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// SessionAuth validates HS256 session JWTs issued by the marketplace.
type SessionAuth struct {
	secret []byte
	issuer string
	leeway time.Duration
}

func NewSessionAuth(secret, issuer string) (*SessionAuth, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	return &SessionAuth{secret: []byte(secret), issuer: issuer, leeway: 30 * time.Second}, nil
}

// Mint issues a session token. Used by tooling and tests.
func (a *SessionAuth) Mint(p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name:  p.Name,
		Email: p.Email,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *SessionAuth) parse(header string) (*Principal, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return nil, errors.New("expected Bearer token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(a.leeway),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &sessionClaims{}
	tok, err := jwt.ParseWithClaims(parts[1], claims, func(*jwt.Token) (any, error) { return a.secret, nil }, opts...)
	if err != nil || !tok.Valid {
		return nil, errors.New("invalid session token")
	}
	if claims.Subject == "" {
		return nil, errors.New("session token has no subject")
	}
	return &Principal{ID: claims.Subject, Name: claims.Name, Email: claims.Email}, nil
}

// Required rejects requests without a valid session with 401.
func (a *SessionAuth) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := a.parse(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		c.Locals(PrincipalLocalKey, p)
		return c.Next()
	}
}

// Optional attaches a Principal when a valid session is present and lets
// anonymous requests through. A malformed header is still rejected.
func (a *SessionAuth) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get(fiber.HeaderAuthorization)
		if h == "" {
			return c.Next()
		}
		p, err := a.parse(h)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		c.Locals(PrincipalLocalKey, p)
		return c.Next()
	}
}

// PrincipalFrom returns the session principal or nil.
func PrincipalFrom(c *fiber.Ctx) *Principal {
	p, _ := c.Locals(PrincipalLocalKey).(*Principal)
	return p
}
