package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingEncryptionKey is returned when a production process is
	// constructed without a configured encryption key. A generated key would
	// silently orphan every previously encrypted record on restart, so this
	// is a startup failure, never a fallback.
	ErrMissingEncryptionKey = errors.New("encryption key required in production")

	// ErrInvalidEncryptionKey is returned when the configured key is not 64
	// hex characters (a 256-bit key).
	ErrInvalidEncryptionKey = errors.New("encryption key must be 64 hex characters")

	// ErrDecryptionFailure is returned when a ciphertext cannot be decrypted
	// or fails padding validation. Callers treat the secret as unavailable;
	// this never crashes the process.
	ErrDecryptionFailure = errors.New("decryption failure")
)

const encryptionKeySize = 32 // AES-256

// CipherBox encrypts and decrypts secret values with a process-wide AES-256
// key in CBC mode. A fresh random IV is generated per encryption and stored
// alongside the ciphertext (hex(iv):hex(ciphertext)); the IV is not secret.
// The key is immutable for the life of the process.
type CipherBox struct {
	key []byte
}

// NewCipherBox builds a box from the configured hex key. An empty key is a
// fatal error in production; outside production a random process-local key
// is generated, which means encrypted values do not survive a restart.
func NewCipherBox(hexKey string, production bool) (*CipherBox, error) {
	if hexKey == "" {
		if production {
			return nil, ErrMissingEncryptionKey
		}
		key := make([]byte, encryptionKeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		return &CipherBox{key: key}, nil
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != encryptionKeySize {
		return nil, ErrInvalidEncryptionKey
	}
	return &CipherBox{key: key}, nil
}

// Encrypt returns hex(iv):hex(aes-256-cbc(pkcs7(plaintext))). Two calls on
// the same plaintext produce different ciphertexts because of the random IV.
func (c *CipherBox) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Any malformed input, wrong key, or invalid
// padding yields ErrDecryptionFailure.
func (c *CipherBox) Decrypt(ciphertext string) (string, error) {
	ivHex, dataHex, ok := strings.Cut(ciphertext, ":")
	if !ok {
		return "", fmt.Errorf("%w: missing iv separator", ErrDecryptionFailure)
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return "", fmt.Errorf("%w: bad iv", ErrDecryptionFailure)
	}

	data, err := hex.DecodeString(dataHex)
	if err != nil || len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: bad ciphertext", ErrDecryptionFailure)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}

	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)

	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailure, err)
	}
	return string(plain), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+pad)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(pad)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > blockSize || pad > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-pad], nil
}
