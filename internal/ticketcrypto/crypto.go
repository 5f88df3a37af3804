// Package ticketcrypto implements the symmetric codec protecting attendee
// payloads in the local cache, plus the hash used for cache keys.
//
// Wire format and key derivation must stay byte-compatible with the master:
//
//	payload = base64url(iv) + "|" + base64url(ciphertext)
//	key     = PBKDF2-HMAC-SHA1(password=contextKey, salt=contextKey, 1000, 256 bit)
//	cipher  = AES-CBC with PKCS#7 padding
//
// Using the context key as its own salt is a deliberate, fixed scheme shared
// with the master, not a general KDF recommendation. The context key passed
// to Decrypt is "{ticketUUID}/{ticketSecret}", while cache entries are keyed
// by Sha256Hex(ticketSecret); the two strings differ on purpose (one indexes
// storage, the other is the actual decryption secret).
//
// Every cryptographic failure (malformed base64, bad padding, wrong key) is
// reported as ErrDecryptionFailed. Callers treat it as "attendee not found"
// and never surface raw crypto errors to operators.
package ticketcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// ErrDecryptionFailed is the single error kind reported for any cryptographic
// failure while decoding an attendee payload.
var ErrDecryptionFailed = errors.New("decryption failed")

const (
	pbkdf2Iterations = 1000
	keyLenBytes      = 32
)

// deriveKey derives the AES key from the context key. Password and salt are
// both the context key, matching the master's scheme exactly.
func deriveKey(contextKey string) []byte {
	return pbkdf2.Key([]byte(contextKey), []byte(contextKey), pbkdf2Iterations, keyLenBytes, sha1.New)
}

// Decrypt decodes and decrypts an attendee payload with the given context key.
// It returns the plaintext, or ErrDecryptionFailed on any malformed input or
// key mismatch.
func Decrypt(contextKey, payload string) (string, error) {
	parts := strings.SplitN(payload, "|", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: malformed payload", ErrDecryptionFailed)
	}
	iv, err := base64.URLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	body, err := base64.URLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	block, err := aes.NewCipher(deriveKey(contextKey))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	if len(iv) != aes.BlockSize || len(body) == 0 || len(body)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: invalid block length", ErrDecryptionFailed)
	}

	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)

	plain, err = pkcs7Unpad(plain)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Encrypt is the dual of Decrypt, producing a payload the station can decode.
// The master performs this server-side; it lives here for round-trip tests
// and local tooling.
func Encrypt(contextKey, plaintext string) (string, error) {
	block, err := aes.NewCipher(deriveKey(contextKey))
	if err != nil {
		return "", err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	body := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(body, padded)

	return base64.URLEncoding.EncodeToString(iv) + "|" + base64.URLEncoding.EncodeToString(body), nil
}

// Sha256Hex returns the lowercase hex SHA-256 of the input. Used to derive
// attendee cache identifiers from ticket secrets.
func Sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	padded := make([]byte, len(b)+n)
	copy(padded, b)
	for i := len(b); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrDecryptionFailed)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, fmt.Errorf("%w: bad padding", ErrDecryptionFailed)
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrDecryptionFailed)
		}
	}
	return b[:len(b)-n], nil
}
