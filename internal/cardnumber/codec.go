// Package cardnumber generates, encrypts and masks synthetic 16-digit card numbers.
//
// Persisted blob layout: version(1) | nonce(16) | AES-256-GCM ciphertext.
// The version byte selects the key from the Keyring and is authenticated
// as additional data, so a blob cannot be replayed under another key version.
package cardnumber

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	apperrors "cardvault/internal/errors"
)

const (
	// NonceSize is the length of the random nonce stored in every blob.
	NonceSize = 16
	// KeySize is the AES-256 key length.
	KeySize = 32
	// Length is the number of digits in a card number.
	Length = 16

	headerSize = 1 + NonceSize
)

// Keyring holds versioned encryption keys. New blobs are always sealed with
// the active version; older versions stay available for decryption.
type Keyring struct {
	keys   map[byte][]byte
	active byte
}

// NewKeyring validates keys and returns a Keyring sealing with active.
func NewKeyring(keys map[byte][]byte, active byte) (*Keyring, error) {
	if _, ok := keys[active]; !ok {
		return nil, fmt.Errorf("active key version %d not present", active)
	}
	copied := make(map[byte][]byte, len(keys))
	for v, k := range keys {
		if len(k) != KeySize {
			return nil, fmt.Errorf("key version %d: want %d bytes, got %d", v, KeySize, len(k))
		}
		copied[v] = append([]byte(nil), k...)
	}
	return &Keyring{keys: copied, active: active}, nil
}

// DeriveKey hashes a secret into a key. Only meant for local development.
func DeriveKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:KeySize]
}

// Codec encrypts, decrypts, generates and masks card numbers.
type Codec struct {
	keyring *Keyring
	random  io.Reader
}

// NewCodec creates a codec backed by the given keyring.
func NewCodec(keyring *Keyring) *Codec {
	return &Codec{keyring: keyring, random: rand.Reader}
}

func (c *Codec) aead(version byte) (cipher.AEAD, error) {
	key, ok := c.keyring.keys[version]
	if !ok {
		return nil, fmt.Errorf("unknown key version %d: %w", version, apperrors.ErrEncoding)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", apperrors.ErrEncoding)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", apperrors.ErrEncoding)
	}
	return gcm, nil
}

// Encrypt seals plain under the active key with a fresh nonce.
func (c *Codec) Encrypt(plain string) ([]byte, error) {
	version := c.keyring.active
	gcm, err := c.aead(version)
	if err != nil {
		return nil, err
	}

	blob := make([]byte, headerSize, headerSize+len(plain)+gcm.Overhead())
	blob[0] = version
	if _, err := io.ReadFull(c.random, blob[1:headerSize]); err != nil {
		return nil, fmt.Errorf("read nonce: %w", apperrors.ErrEncoding)
	}

	return gcm.Seal(blob, blob[1:headerSize], []byte(plain), blob[:1]), nil
}

// Decrypt opens a blob produced by Encrypt under any known key version.
func (c *Codec) Decrypt(blob []byte) (string, error) {
	if len(blob) <= headerSize {
		return "", fmt.Errorf("blob of %d bytes is too short: %w", len(blob), apperrors.ErrEncoding)
	}

	gcm, err := c.aead(blob[0])
	if err != nil {
		return "", err
	}

	plain, err := gcm.Open(nil, blob[1:headerSize], blob[headerSize:], blob[:1])
	if err != nil {
		return "", fmt.Errorf("open blob: %w", apperrors.ErrEncoding)
	}
	return string(plain), nil
}

// Generate returns a random card number, each digit uniform over 0-9.
func (c *Codec) Generate() (string, error) {
	digits := make([]byte, 0, Length)
	buf := make([]byte, Length)
	for len(digits) < Length {
		if _, err := io.ReadFull(c.random, buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			// 250 is the largest multiple of 10 below 256; rejecting the rest keeps digits unbiased.
			if b >= 250 {
				continue
			}
			digits = append(digits, '0'+b%10)
			if len(digits) == Length {
				break
			}
		}
	}
	return string(digits), nil
}

// Mask hides every character except the last four.
func Mask(number string) string {
	if len(number) < 4 {
		return number
	}
	return "**** **** **** " + number[len(number)-4:]
}

// Reveal decrypts blob and returns its masked form.
func (c *Codec) Reveal(blob []byte) (string, error) {
	plain, err := c.Decrypt(blob)
	if err != nil {
		return "", err
	}
	return Mask(plain), nil
}
