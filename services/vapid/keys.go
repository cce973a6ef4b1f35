package vapid

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"math/big"
	"strings"
)

const (
	// PrivateKeySize is the length of a raw P-256 private scalar.
	PrivateKeySize = 32
	// PublicKeySize is the length of an uncompressed P-256 point (0x04 || X || Y).
	PublicKeySize = 65

	uncompressedPointMarker = 0x04
	coordinateSize          = 32
)

// KeyHandle is an imported VAPID key pair, ready for signing.
// It is immutable once created and safe for concurrent use.
type KeyHandle struct {
	private   *ecdsa.PrivateKey
	publicRaw []byte
}

// ImportKey validates the raw VAPID key material and rebuilds the full ECDSA
// key (D, X, Y) from the private scalar and the uncompressed public point.
func ImportKey(privateKey []byte, publicKey []byte) (*KeyHandle, error) {
	if len(privateKey) != PrivateKeySize {
		return nil, &KeyImportError{Reason: "private key must be 32 bytes", Length: len(privateKey)}
	}
	if len(publicKey) != PublicKeySize {
		return nil, &KeyImportError{Reason: "public key must be 65 bytes", Length: len(publicKey)}
	}
	if publicKey[0] != uncompressedPointMarker {
		return nil, &KeyImportError{Reason: "public key is not an uncompressed point", Length: len(publicKey)}
	}

	// crypto/ecdh performs the point and scalar range checks for us.
	ecdhPub, err := ecdh.P256().NewPublicKey(publicKey)
	if err != nil {
		return nil, &KeyImportError{Reason: "public key is not a valid P-256 point", Length: len(publicKey), Err: err}
	}
	ecdhPriv, err := ecdh.P256().NewPrivateKey(privateKey)
	if err != nil {
		return nil, &KeyImportError{Reason: "private key is not a valid P-256 scalar", Length: len(privateKey), Err: err}
	}
	if !ecdhPriv.PublicKey().Equal(ecdhPub) {
		return nil, &KeyImportError{Reason: "public key does not match private key", Length: len(publicKey)}
	}

	x := new(big.Int).SetBytes(publicKey[1 : 1+coordinateSize])
	y := new(big.Int).SetBytes(publicKey[1+coordinateSize:])
	priv := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y},
		D:         new(big.Int).SetBytes(privateKey),
	}

	raw := make([]byte, PublicKeySize)
	copy(raw, publicKey)
	return &KeyHandle{private: priv, publicRaw: raw}, nil
}

// ImportKeyBase64 decodes base64url encoded keys (as produced by browsers and
// webpush-go) and imports them. Padding is tolerated.
func ImportKeyBase64(privateKey string, publicKey string) (*KeyHandle, error) {
	priv, err := DecodeSegment(privateKey)
	if err != nil {
		return nil, &KeyImportError{Reason: "private key is not valid base64url", Err: err}
	}
	pub, err := DecodeSegment(publicKey)
	if err != nil {
		return nil, &KeyImportError{Reason: "public key is not valid base64url", Err: err}
	}
	return ImportKey(priv, pub)
}

// PublicKey returns a copy of the uncompressed public point.
func (k *KeyHandle) PublicKey() []byte {
	out := make([]byte, PublicKeySize)
	copy(out, k.publicRaw)
	return out
}

// PublicKeyBase64 returns the public point as unpadded base64url, the format
// expected in the Crypto-Key header and by PushManager.subscribe().
func (k *KeyHandle) PublicKeyBase64() string {
	return base64.RawURLEncoding.EncodeToString(k.publicRaw)
}

// ECDSAPublicKey exposes the verification key.
func (k *KeyHandle) ECDSAPublicKey() *ecdsa.PublicKey {
	return &k.private.PublicKey
}

// DecodeSegment decodes base64url with or without padding, and also accepts the
// standard alphabet since keys are often pasted from other tooling.
func DecodeSegment(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "=")
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	return base64.RawURLEncoding.DecodeString(s)
}
