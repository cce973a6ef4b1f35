// Package vapid builds VAPID (RFC 8292) authorization tokens for Web Push.
//
// Tokens are ES256 JWTs whose audience is the origin of the push service the
// request is sent to, so a token is built for every destination and never
// reused.
package vapid

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt"
)

// TokenLifetime is how far in the future the `exp` claim is set.
// Push services reject anything longer than 24h.
const TokenLifetime = 12 * time.Hour

// Signer produces VAPID tokens with a single imported key.
type Signer struct {
	key *KeyHandle
	now func() time.Time
	// sign returns either a DER or a raw r||s signature over digest.
	sign func(key *ecdsa.PrivateKey, digest []byte) ([]byte, error)
}

// NewSigner creates a Signer for the given key.
func NewSigner(key *KeyHandle) *Signer {
	return &Signer{
		key: key,
		now: time.Now,
		sign: func(key *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
			return ecdsa.SignASN1(rand.Reader, key, digest)
		},
	}
}

// Key returns the key this signer uses.
func (s *Signer) Key() *KeyHandle {
	return s.key
}

// Sign returns a compact JWS `header.payload.signature` with
// header {typ: JWT, alg: ES256} and claims {aud, exp, sub}.
func (s *Signer) Sign(audience string, contact string) (string, error) {
	if s.key == nil {
		return "", &KeyImportError{Reason: "no key loaded"}
	}
	if audience == "" {
		return "", errors.New("vapid: empty audience")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.StandardClaims{
		Audience:  audience,
		ExpiresAt: s.now().Add(TokenLifetime).Unix(),
		Subject:   contact,
	})
	signingString, err := token.SigningString()
	if err != nil {
		return "", fmt.Errorf("vapid: encoding token: %w", err)
	}

	digest := sha256.Sum256([]byte(signingString))
	sig, err := s.sign(s.key.private, digest[:])
	if err != nil {
		return "", fmt.Errorf("vapid: signing token: %w", err)
	}
	raw, err := NormalizeSignature(sig)
	if err != nil {
		return "", err
	}

	return signingString + "." + jwt.EncodeSegment(raw), nil
}

// Audience returns the scheme://host[:port] origin of a push endpoint.
func Audience(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("vapid: invalid endpoint: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", fmt.Errorf("vapid: endpoint %q must be http(s)", endpoint)
	}
	if u.Host == "" {
		return "", fmt.Errorf("vapid: endpoint %q has no host", endpoint)
	}
	return u.Scheme + "://" + u.Host, nil
}
