// Package codec implements the authenticated, encrypted datagram envelope
// every ring message travels in on the wire: a 20-byte HMAC-SHA1 digest, a
// 16-byte random salt, then the encrypted payload. Author: momentics
// <momentics@gmail.com>
// License: Apache-2.0
package codec

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // required for wire compatibility, not used for security-critical hashing alone
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20"

	"github.com/momentics/totem-srp/api"
)

const (
	hmacSize = 20
	saltSize = 16
	// envelopeOverhead is the fixed prefix before the encrypted message.
	envelopeOverhead = hmacSize + saltSize
)

// FrameCodec authenticates and encrypts outbound datagrams and verifies and
// decrypts inbound ones, using a single shared private key for both HMAC
// and stream-cipher key derivation.
//
// HMAC-SHA1 stays on the standard library: no third-party HMAC-SHA1
// implementation in the examined dependency pack improves on crypto/hmac,
// and the digest size/algorithm are fixed by the wire format, not chosen
// for strength. The stream cipher is chacha20 from golang.org/x/crypto,
// already present in the dependency pack via its transitive closure.
type FrameCodec struct {
	privateKey []byte
}

// New builds a FrameCodec from the shared ring private key.
func New(privateKey []byte) *FrameCodec {
	k := make([]byte, len(privateKey))
	copy(k, privateKey)
	return &FrameCodec{privateKey: k}
}

// deriveStreamKey folds the private key and per-frame salt into a 32-byte
// chacha20 key, and the salt's leading bytes into a 12-byte nonce.
func (c *FrameCodec) deriveStreamKey(salt []byte) (key [chacha20.KeySize]byte, nonce [chacha20.NonceSize]byte) {
	h := sha256.New()
	h.Write(c.privateKey)
	h.Write(salt)
	sum := h.Sum(nil)
	copy(key[:], sum)
	copy(nonce[:], salt[:chacha20.NonceSize])
	return key, nonce
}

func (c *FrameCodec) authKey() []byte {
	h := sha256.New()
	h.Write(c.privateKey)
	h.Write([]byte("totem-srp-auth"))
	return h.Sum(nil)
}

// Encrypt produces hash_digest || salt || ciphertext for plaintext.
func (c *FrameCodec) Encrypt(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("codec: salt generation: %w", err)
	}

	key, nonce := c.deriveStreamKey(salt)
	cipher, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		return nil, fmt.Errorf("codec: cipher init: %w", err)
	}
	ciphertext := make([]byte, len(plaintext))
	cipher.XORKeyStream(ciphertext, plaintext)

	mac := hmac.New(sha1.New, c.authKey())
	mac.Write(salt)
	mac.Write(ciphertext)
	digest := mac.Sum(nil)

	out := make([]byte, 0, envelopeOverhead+len(ciphertext))
	out = append(out, digest...)
	out = append(out, salt...)
	out = append(out, ciphertext...)
	return out, nil
}

// Decrypt verifies and decrypts an envelope produced by Encrypt. It fails
// closed: any mismatch returns api.ErrAuthFail and no plaintext.
func (c *FrameCodec) Decrypt(envelope []byte) ([]byte, error) {
	if len(envelope) < envelopeOverhead {
		return nil, api.ErrAuthFail
	}
	digest := envelope[:hmacSize]
	salt := envelope[hmacSize:envelopeOverhead]
	ciphertext := envelope[envelopeOverhead:]

	mac := hmac.New(sha1.New, c.authKey())
	mac.Write(salt)
	mac.Write(ciphertext)
	want := mac.Sum(nil)
	if !hmac.Equal(digest, want) {
		return nil, api.ErrAuthFail
	}

	key, nonce := c.deriveStreamKey(salt)
	cipher, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		return nil, fmt.Errorf("codec: cipher init: %w", err)
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.XORKeyStream(plaintext, ciphertext)
	return plaintext, nil
}
