/*
@Author: Lzww
@LastEditTime: 2025-10-03 10:10:00
@Description: Wire decryption for inbound datagrams
@Language: Go 1.23.4
*/

package transport

import (
	"crypto/cipher"
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"github.com/tjfoc/gmsm/sm4"
	"golang.org/x/crypto/hkdf"
)

// BlockCrypt decrypts one wire-format datagram into the RTP/FEC packet it
// carries. Sessions without encryption configured use passthroughCrypt.
type BlockCrypt interface {
	// Decrypt a wire format datagram. The returned slice may alias in.
	Decrypt(ciphertext []byte) ([]byte, error)
}

// DeriveKey expands a shared session secret into a 16-byte SM4 key and a
// 12-byte GCM nonce base using HKDF-SHA256, matching the key-schedule shape
// the rest of this stack uses for its symmetric ciphers.
func DeriveKey(secret, salt, info []byte) (key, nonceBase []byte, err error) {
	r := hkdf.New(sha256.New, secret, salt, info)
	out := make([]byte, sm4.BlockSize+12)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, nil, errors.Wrap(err, "derive sm4-gcm key material")
	}
	return out[:sm4.BlockSize], out[sm4.BlockSize:], nil
}

// sm4GCMCrypt implements BlockCrypt with SM4 in GCM mode. The nonce is the
// GCM nonce base with the wire's per-packet counter XORed into its low 4
// bytes; the counter is taken from the first 4 bytes of the datagram.
type sm4GCMCrypt struct {
	aead      cipher.AEAD
	nonceBase []byte
}

// NewSM4GCMCrypt builds a BlockCrypt from a derived key and nonce base (see
// DeriveKey).
func NewSM4GCMCrypt(key, nonceBase []byte) (BlockCrypt, error) {
	block, err := sm4.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "construct sm4 block cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "wrap sm4 block cipher in gcm")
	}
	if len(nonceBase) != aead.NonceSize() {
		return nil, errors.Errorf("nonce base length %d != gcm nonce size %d", len(nonceBase), aead.NonceSize())
	}
	return &sm4GCMCrypt{aead: aead, nonceBase: nonceBase}, nil
}

func (c *sm4GCMCrypt) Decrypt(ciphertext []byte) ([]byte, error) {
	const counterLen = 4
	if len(ciphertext) < counterLen {
		return nil, errors.New("ciphertext shorter than packet counter")
	}

	nonce := make([]byte, len(c.nonceBase))
	copy(nonce, c.nonceBase)
	for i := 0; i < counterLen; i++ {
		nonce[len(nonce)-counterLen+i] ^= ciphertext[i]
	}

	plaintext, err := c.aead.Open(nil, nonce, ciphertext[counterLen:], nil)
	if err != nil {
		return nil, errors.Wrap(err, "sm4-gcm open")
	}
	return plaintext, nil
}

// passthroughCrypt is used when a session has no encryption configured.
type passthroughCrypt struct{}

func (passthroughCrypt) Decrypt(ciphertext []byte) ([]byte, error) { return ciphertext, nil }

// NoCrypt returns a BlockCrypt that returns its input unchanged.
func NoCrypt() BlockCrypt { return passthroughCrypt{} }
