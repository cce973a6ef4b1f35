package services

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/m-barthelemy/wakepush/models"
)

// Marks a value sealed by DataProtector. Plain JSON records never start with it.
var sealedPrefix = []byte("enc:")

// DataProtector seals subscription records at rest with AES-GCM when an
// ENCRYPTIONKEY is configured. Without a key, values pass through unchanged.
type DataProtector struct {
	config *models.Config
}

// NewDataProtector creates an instance of DataProtector
func NewDataProtector(config *models.Config) *DataProtector {
	return &DataProtector{config: config}
}

func (d *DataProtector) Enabled() bool {
	return d.config.EncryptionKey != ""
}

func (d *DataProtector) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher([]byte(d.config.EncryptionKey))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext if a key is configured.
func (d *DataProtector) Seal(plaintext []byte) ([]byte, error) {
	if !d.Enabled() {
		return plaintext, nil
	}
	aesGCM, err := d.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	// The nonce is the prefix of the ciphertext.
	ciphertext := aesGCM.Seal(nonce, nonce, plaintext, nil)
	return fmt.Appendf(bytes.Clone(sealedPrefix), "%x", ciphertext), nil
}

// Open returns the plaintext of a value written by Seal. Unsealed values,
// including records written before a key was configured, are returned as is.
func (d *DataProtector) Open(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, sealedPrefix) {
		return data, nil
	}
	if !d.Enabled() {
		return nil, errors.New("record is encrypted but no ENCRYPTIONKEY is configured")
	}

	enc, err := hex.DecodeString(string(data[len(sealedPrefix):]))
	if err != nil {
		return nil, fmt.Errorf("decoding sealed record: %w", err)
	}
	aesGCM, err := d.gcm()
	if err != nil {
		return nil, err
	}
	nonceSize := aesGCM.NonceSize()
	if len(enc) < nonceSize {
		return nil, errors.New("sealed record too short")
	}

	nonce, ciphertext := enc[:nonceSize], enc[nonceSize:]
	return aesGCM.Open(nil, nonce, ciphertext, nil)
}
