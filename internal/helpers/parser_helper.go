package helpers

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

const externalIDPrefix = "EVT-ORD-"

func deriveKey(secret string) []byte {
	hash := sha256.Sum256([]byte(secret))
	return hash[:]
}

// ExternalIDSealer hides order ids inside the external reference handed to a
// payment provider, so callbacks can be traced back without exposing raw ids.
type ExternalIDSealer struct {
	key []byte
}

func NewExternalIDSealer(secret string) *ExternalIDSealer {
	return &ExternalIDSealer{key: deriveKey(secret)}
}

func (s *ExternalIDSealer) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (s *ExternalIDSealer) Seal(orderID uuid.UUID) (string, error) {
	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(orderID.String()), nil)
	return externalIDPrefix + base64.URLEncoding.EncodeToString(ciphertext), nil
}

func (s *ExternalIDSealer) Open(externalID string) (uuid.UUID, error) {
	encrypted, ok := strings.CutPrefix(externalID, externalIDPrefix)
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid external ID format")
	}

	data, err := base64.URLEncoding.DecodeString(encrypted)
	if err != nil {
		return uuid.Nil, err
	}

	gcm, err := s.gcm()
	if err != nil {
		return uuid.Nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return uuid.Nil, fmt.Errorf("invalid cipher text")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return uuid.Nil, err
	}

	orderID, err := uuid.Parse(string(plaintext))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid order ID format")
	}
	return orderID, nil
}
