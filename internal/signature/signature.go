// Package signature signs served document bytes with a persisted RSA key (PSS, SHA-256).
package signature

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// MinKeyBits is the smallest RSA modulus accepted for signing.
const MinKeyBits = 2048

var (
	ErrNoKey      = errors.New("signature: no signing key configured")
	ErrInvalidKey = errors.New("signature: invalid signing key")
)

var pssOptions = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: crypto.SHA256}

// Signer holds the process-wide key pair. It is read-only after load.
type Signer struct {
	key *rsa.PrivateKey
}

// LoadSigner reads the private key from inline PEM or, if empty, from path.
// A missing key is an error: keys are never generated on the fly.
func LoadSigner(path, inlinePEM string) (*Signer, error) {
	var data []byte
	switch {
	case inlinePEM != "":
		data = []byte(inlinePEM)
	case path != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoKey, err)
		}
		data = b
	default:
		return nil, ErrNoKey
	}
	key, err := ParsePrivateKeyPEM(data)
	if err != nil {
		return nil, err
	}
	return NewSigner(key)
}

// NewSigner wraps an existing key.
func NewSigner(key *rsa.PrivateKey) (*Signer, error) {
	if key == nil {
		return nil, ErrNoKey
	}
	if key.N.BitLen() < MinKeyBits {
		return nil, fmt.Errorf("%w: modulus is %d bits, need %d", ErrInvalidKey, key.N.BitLen(), MinKeyBits)
	}
	return &Signer{key: key}, nil
}

// ParsePrivateKeyPEM accepts PKCS#1 ("RSA PRIVATE KEY") and PKCS#8 ("PRIVATE KEY") blocks.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidKey)
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		k, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return k, nil
	case "PRIVATE KEY":
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		rk, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidKey)
		}
		return rk, nil
	}
	return nil, fmt.Errorf("%w: unsupported PEM type %q", ErrInvalidKey, block.Type)
}

// EncodePrivateKeyPEM renders key as a PKCS#8 PEM block.
func EncodePrivateKeyPEM(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// Sign returns the base64 PSS signature over SHA-256(content).
func (s *Signer) Sign(content []byte) (string, error) {
	digest := sha256.Sum256(content)
	sig, err := rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, digest[:], pssOptions)
	if err != nil {
		return "", fmt.Errorf("signature: sign: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify reports whether signature is valid for content. Any failure,
// including a malformed signature, yields false.
func (s *Signer) Verify(content []byte, signature string) bool {
	return VerifyWith(&s.key.PublicKey, content, signature)
}

// VerifyWith checks a signature against an arbitrary public key.
func VerifyWith(pub *rsa.PublicKey, content []byte, signature string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if pub == nil {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(content)
	return rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, pssOptions) == nil
}

// PublicKeyPEM exports the verification key as a PKIX "PUBLIC KEY" block.
func (s *Signer) PublicKeyPEM() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(&s.key.PublicKey)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}
