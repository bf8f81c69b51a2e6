package signature

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func key(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		testKey = k
	})
	return testKey
}

func TestSignVerify(t *testing.T) {
	s, err := NewSigner(key(t))
	require.NoError(t, err)

	content := []byte("%PDF-1.4 stamped copy for buyer1")
	sig, err := s.Sign(content)
	require.NoError(t, err)
	assert.True(t, s.Verify(content, sig))

	tampered := append([]byte(nil), content...)
	tampered[5] ^= 0x01
	assert.False(t, s.Verify(tampered, sig))
}

func TestVerifyMalformedSignature(t *testing.T) {
	s, err := NewSigner(key(t))
	require.NoError(t, err)

	assert.False(t, s.Verify([]byte("x"), "!!!not-base64"))
	assert.False(t, s.Verify([]byte("x"), ""))
	assert.False(t, VerifyWith(nil, []byte("x"), "AAAA"))
}

func TestSignaturesAreProbabilistic(t *testing.T) {
	s, err := NewSigner(key(t))
	require.NoError(t, err)

	a, err := s.Sign([]byte("same"))
	require.NoError(t, err)
	b, err := s.Sign([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestLoadSignerSurvivesRestart(t *testing.T) {
	pemBytes, err := EncodePrivateKeyPEM(key(t))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "signing.pem")
	require.NoError(t, os.WriteFile(path, pemBytes, 0o600))

	first, err := LoadSigner(path, "")
	require.NoError(t, err)
	sig, err := first.Sign([]byte("deed"))
	require.NoError(t, err)

	second, err := LoadSigner(path, "")
	require.NoError(t, err)
	assert.True(t, second.Verify([]byte("deed"), sig))

	inline, err := LoadSigner("", string(pemBytes))
	require.NoError(t, err)
	assert.True(t, inline.Verify([]byte("deed"), sig))
}

func TestLoadSignerPKCS1(t *testing.T) {
	data := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key(t))})
	s, err := LoadSigner("", string(data))
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestLoadSignerErrors(t *testing.T) {
	_, err := LoadSigner("", "")
	assert.ErrorIs(t, err, ErrNoKey)

	_, err = LoadSigner(filepath.Join(t.TempDir(), "missing.pem"), "")
	assert.ErrorIs(t, err, ErrNoKey)

	_, err = LoadSigner("", "garbage")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = LoadSigner("", string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1}})))
	assert.ErrorIs(t, err, ErrInvalidKey)

	small, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	_, err = NewSigner(small)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestPublicKeyPEMVerifies(t *testing.T) {
	s, err := NewSigner(key(t))
	require.NoError(t, err)
	sig, err := s.Sign([]byte("payload"))
	require.NoError(t, err)

	pubPEM, err := s.PublicKeyPEM()
	require.NoError(t, err)
	block, _ := pem.Decode(pubPEM)
	require.NotNil(t, block)
	assert.Equal(t, "PUBLIC KEY", block.Type)

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(t, err)
	assert.True(t, VerifyWith(pub.(*rsa.PublicKey), []byte("payload"), sig))
}
