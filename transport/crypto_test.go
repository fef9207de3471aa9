/*
@Author: Lzww
@LastEditTime: 2025-10-03 13:20:00
@Description: SM4-GCM datagram decryption
@Language: Go 1.23.4
*/

package transport

import (
	"crypto/cipher"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tjfoc/gmsm/sm4"
)

// sealDatagram builds a wire datagram the way the sending side would: a
// 4-byte packet counter followed by the GCM-sealed payload, with the counter
// XORed into the low bytes of the nonce base.
func sealDatagram(t *testing.T, key, nonceBase []byte, counter [4]byte, plaintext []byte) []byte {
	t.Helper()
	block, err := sm4.NewCipher(key)
	require.NoError(t, err)
	aead, err := cipher.NewGCM(block)
	require.NoError(t, err)

	nonce := make([]byte, len(nonceBase))
	copy(nonce, nonceBase)
	for i := range counter {
		nonce[len(nonce)-len(counter)+i] ^= counter[i]
	}

	out := make([]byte, len(counter))
	copy(out, counter[:])
	return aead.Seal(out, nonce, plaintext, nil)
}

func TestSM4GCMRoundTrip(t *testing.T) {
	key, nonceBase, err := DeriveKey([]byte("shared session secret"), []byte("salt"), []byte("rtpafec"))
	require.NoError(t, err)
	require.Len(t, key, sm4.BlockSize)
	require.Len(t, nonceBase, 12)

	crypt, err := NewSM4GCMCrypt(key, nonceBase)
	require.NoError(t, err)

	plaintext := []byte{0x80, 97, 0x00, 0x14, 0, 0, 0, 100, 0xDE, 0xAD, 0xBE, 0xEF, 1, 2, 3}
	datagram := sealDatagram(t, key, nonceBase, [4]byte{0, 0, 0, 9}, plaintext)

	got, err := crypt.Decrypt(datagram)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestSM4GCMDistinctCountersDecryptIndependently(t *testing.T) {
	key, nonceBase, err := DeriveKey([]byte("secret"), nil, nil)
	require.NoError(t, err)
	crypt, err := NewSM4GCMCrypt(key, nonceBase)
	require.NoError(t, err)

	for i := byte(0); i < 4; i++ {
		plaintext := []byte{i, i + 1, i + 2}
		datagram := sealDatagram(t, key, nonceBase, [4]byte{0, 0, 0, i}, plaintext)
		got, err := crypt.Decrypt(datagram)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestSM4GCMRejectsTamperedCiphertext(t *testing.T) {
	key, nonceBase, err := DeriveKey([]byte("secret"), nil, nil)
	require.NoError(t, err)
	crypt, err := NewSM4GCMCrypt(key, nonceBase)
	require.NoError(t, err)

	datagram := sealDatagram(t, key, nonceBase, [4]byte{0, 0, 0, 1}, []byte("audio payload"))
	datagram[len(datagram)-1] ^= 0xFF

	_, err = crypt.Decrypt(datagram)
	assert.Error(t, err)
}

func TestSM4GCMRejectsTruncatedDatagram(t *testing.T) {
	key, nonceBase, err := DeriveKey([]byte("secret"), nil, nil)
	require.NoError(t, err)
	crypt, err := NewSM4GCMCrypt(key, nonceBase)
	require.NoError(t, err)

	_, err = crypt.Decrypt([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestNoCryptPassesThrough(t *testing.T) {
	in := []byte{1, 2, 3}
	out, err := NoCrypt().Decrypt(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestNewSM4GCMCryptRejectsBadNonceBase(t *testing.T) {
	key, _, err := DeriveKey([]byte("secret"), nil, nil)
	require.NoError(t, err)

	_, err = NewSM4GCMCrypt(key, make([]byte, 5))
	assert.Error(t, err)
}
