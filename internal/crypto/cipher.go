package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Cipher encrypts and decrypts message bodies with a per-chat key derived
// from the platform master secret. It is stateless beyond the secret: the
// same chat id always derives the same key, so any console instance holding
// the secret can read any chat.
type Cipher struct {
	secret []byte
}

// NewCipher creates a cipher from the master secret.
func NewCipher(masterSecret string) (*Cipher, error) {
	if masterSecret == "" {
		return nil, fmt.Errorf("empty master secret")
	}
	return &Cipher{secret: []byte(masterSecret)}, nil
}

// chatKey derives the AEAD key for one chat: HKDF-SHA256 with the chat id
// as salt and a fixed info string.
func (c *Cipher) chatKey(chatID string) ([]byte, error) {
	r := hkdf.New(sha256.New, c.secret, []byte(chatID), []byte("comfy-chat-message"))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive chat key: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext for the given chat. Wire format is
// base64(nonce || ciphertext).
func (c *Cipher) Encrypt(plaintext, chatID string) (string, error) {
	key, err := c.chatKey(chatID)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", fmt.Errorf("init aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a wire-format ciphertext for the given chat. Callers decide
// how to surface a failure; Decrypt itself never substitutes content.
func (c *Cipher) Decrypt(ciphertext, chatID string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	key, err := c.chatKey(chatID)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", fmt.Errorf("init aead: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("open message: %w", err)
	}
	return string(plain), nil
}
