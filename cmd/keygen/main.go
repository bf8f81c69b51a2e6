// Command keygen provisions the secrets the API needs at startup: an RSA
// signing key on disk, base64 master and token secrets, and optionally a
// short-lived session token for local testing.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"docvault/internal/config"
	"docvault/internal/http/middleware"
	"docvault/internal/logging"
	"docvault/internal/signature"
)

type options struct {
	keyPath   string
	bits      int
	sessionOf string
	sessionTT time.Duration
	secret    string
	issuer    string
}

func main() {
	var o options
	flag.StringVar(&o.keyPath, "key", "signing.pem", "path for the PKCS#8 RSA signing key")
	flag.IntVar(&o.bits, "bits", 2048, "RSA key size")
	flag.StringVar(&o.sessionOf, "session", "", "mint a session token for this principal id")
	flag.DurationVar(&o.sessionTT, "session-ttl", time.Hour, "session token lifetime")
	flag.StringVar(&o.secret, "session-secret", os.Getenv("AUTH_SESSION_SECRET"), "HMAC secret for session tokens")
	flag.StringVar(&o.issuer, "issuer", "docvault", "session token issuer")
	flag.Parse()

	log := logging.New(config.LogConfig{Level: "info", Format: "text"})
	if err := run(o, os.Stdout, log); err != nil {
		log.WithError(err).Fatal("keygen_failed")
	}
}

func run(o options, out io.Writer, log logrus.FieldLogger) error {
	if o.bits < 2048 {
		return fmt.Errorf("key size %d is below 2048", o.bits)
	}
	if err := writeKey(o.keyPath, o.bits); err != nil {
		return err
	}
	log.WithField("path", o.keyPath).Info("signing_key_written")

	master, err := randomSecret(32)
	if err != nil {
		return err
	}
	tok, err := randomSecret(32)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "VAULT_SIGNING_KEY_PATH=%s\n", o.keyPath)
	fmt.Fprintf(out, "VAULT_MASTER_SECRET=%s\n", master)
	fmt.Fprintf(out, "VAULT_TOKEN_SECRET=%s\n", tok)

	if o.sessionOf == "" {
		return nil
	}
	auth, err := middleware.NewSessionAuth(o.secret, o.issuer)
	if err != nil {
		return err
	}
	session, err := auth.Mint(middleware.Principal{ID: o.sessionOf, Name: o.sessionOf}, o.sessionTT)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "SESSION_TOKEN=%s\n", session)
	return nil
}

func writeKey(path string, bits int) error {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return err
	}
	data, err := signature.EncodePrivateKeyPEM(key)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s already exists, refusing to overwrite", path)
		}
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func randomSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
