package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(alg CipherAlgorithm) []byte {
	return bytes.Repeat([]byte{0x42}, alg.KeySize())
}

func TestParseCipherAlgorithm(t *testing.T) {
	t.Parallel()

	for alg, spec := range cipherSpecs {
		parsed, err := ParseCipherAlgorithm(spec.name)
		require.NoError(t, err)
		assert.Equal(t, alg, parsed)
	}

	_, err := ParseCipherAlgorithm("des-ede3-cbc")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	assert.Equal(t, 16, AES256CBC.IVSize())
	assert.Equal(t, 12, AES256GCM.IVSize())
	assert.True(t, AES256GCM.Authenticated())
	assert.False(t, AES128CBC.Authenticated())
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	plaintexts := []string{
		"",
		"a",
		"exactly 16 bytes",
		strings.Repeat("long plaintext spanning blocks ", 20),
		"unicode: żółw 🐢",
	}

	for _, alg := range []CipherAlgorithm{AES128CBC, AES192CBC, AES256CBC} {
		for _, p := range plaintexts {
			env, err := s.Encrypt(p, testKey(alg), alg)
			require.NoError(t, err, alg.String())

			got, err := s.Decrypt(env, testKey(alg), alg)
			require.NoError(t, err, alg.String())
			assert.Equal(t, p, got)
		}
	}
}

func TestEncrypt_EnvelopeLayout(t *testing.T) {
	t.Parallel()

	iv := bytes.Repeat([]byte{0x07}, aes.BlockSize)
	s := newTestService(t, WithRandSource(bytes.NewReader(iv)))
	key := testKey(AES256CBC)

	env, err := s.Encrypt("exactly 16 bytes", key, AES256CBC)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(env)
	require.NoError(t, err)

	// IV, the data block and one full padding block.
	require.Len(t, raw, aes.BlockSize*3)
	assert.Equal(t, iv, raw[:aes.BlockSize])

	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	plain := make([]byte, 2*aes.BlockSize)
	cipher.NewCBCDecrypter(block, raw[:aes.BlockSize]).CryptBlocks(plain, raw[aes.BlockSize:])
	assert.Equal(t, "exactly 16 bytes", string(plain[:aes.BlockSize]))
	assert.Equal(t, bytes.Repeat([]byte{aes.BlockSize}, aes.BlockSize), plain[aes.BlockSize:])
}

func TestEncrypt_ProducesUniqueOutputs(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	key := testKey(AES256CBC)

	first, err := s.Encrypt("same plaintext", key, AES256CBC)
	require.NoError(t, err)
	second, err := s.Encrypt("same plaintext", key, AES256CBC)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	sealedA, err := s.EncryptAuthenticated("same plaintext", key, "")
	require.NoError(t, err)
	sealedB, err := s.EncryptAuthenticated("same plaintext", key, "")
	require.NoError(t, err)
	assert.NotEqual(t, sealedA, sealedB)
}

func TestEncrypt_Errors(t *testing.T) {
	t.Parallel()

	s := newTestService(t)

	_, err := s.Encrypt("x", testKey(AES256GCM), AES256GCM)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	_, err = s.Encrypt("x", testKey(AES256CBC), CipherAlgorithm(99))
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	_, err = s.Encrypt("x", testKey(AES128CBC), AES256CBC)
	assert.ErrorIs(t, err, ErrKeyLengthMismatch)

	_, err = s.Decrypt("AAAA", testKey(AES128CBC), AES256CBC)
	assert.ErrorIs(t, err, ErrKeyLengthMismatch)

	_, err = s.EncryptAuthenticated("x", testKey(AES128CBC), "")
	assert.ErrorIs(t, err, ErrKeyLengthMismatch)
}

func TestDecrypt_MalformedEnvelope(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	key := testKey(AES256CBC)

	tests := []struct {
		name     string
		envelope string
	}{
		{"not base64", "%%% not base64 %%%"},
		{"shorter than iv", base64.StdEncoding.EncodeToString(make([]byte, aes.BlockSize-1))},
		{"empty", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := s.Decrypt(tt.envelope, key, AES256CBC)
			assert.ErrorIs(t, err, ErrMalformedEnvelope)
		})
	}
}

func TestDecrypt_FailureCarriesNoDetail(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	key := testKey(AES256CBC)

	valid, err := s.Encrypt("some secret data", key, AES256CBC)
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(valid)
	require.NoError(t, err)

	// A final block whose plaintext is all zeros has an invalid pad byte.
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	iv := make([]byte, aes.BlockSize)
	badPad := make([]byte, aes.BlockSize)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(badPad, make([]byte, aes.BlockSize))

	tests := []struct {
		name string
		raw  []byte
	}{
		{"iv only", raw[:aes.BlockSize]},
		{"unaligned ciphertext", raw[:len(raw)-1]},
		{"invalid padding", append(append([]byte{}, iv...), badPad...)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := s.Decrypt(base64.StdEncoding.EncodeToString(tt.raw), key, AES256CBC)
			assert.Equal(t, ErrDecryptionFailed, err)
		})
	}
}

func TestEncryptAuthenticated_RoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	key := testKey(AES256GCM)

	for _, aad := range []string{"", "user:42", strings.Repeat("context", 50)} {
		for _, p := range []string{"", "hello", strings.Repeat("x", 1000)} {
			env, err := s.EncryptAuthenticated(p, key, aad)
			require.NoError(t, err)

			got, err := s.DecryptAuthenticated(env, key, aad)
			require.NoError(t, err)
			assert.Equal(t, p, got)
		}
	}
}

func TestEncryptAuthenticated_EnvelopeLayout(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	key := testKey(AES256GCM)

	env, err := s.EncryptAuthenticated("layout check", key, "aad")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(env)
	require.NoError(t, err)
	require.Len(t, raw, gcmNonceSize+gcmTagSize+len("layout check"))

	iv := raw[:gcmNonceSize]
	tag := raw[gcmNonceSize : gcmNonceSize+gcmTagSize]
	ct := raw[gcmNonceSize+gcmTagSize:]

	// The standard library expects ciphertext || tag.
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)
	plain, err := gcm.Open(nil, iv, append(append([]byte{}, ct...), tag...), []byte("aad"))
	require.NoError(t, err)
	assert.Equal(t, "layout check", string(plain))

	parsed, err := ParseEnvelope(env, AES256GCM)
	require.NoError(t, err)
	assert.Equal(t, iv, parsed.IV)
	assert.Equal(t, tag, parsed.Tag)
	assert.Equal(t, ct, parsed.Ciphertext)
	assert.Equal(t, env, parsed.Encode())
}

func TestDecryptAuthenticated_TamperDetection(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	key := testKey(AES256GCM)

	env, err := s.EncryptAuthenticated("attack at dawn", key, "header")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(env)
	require.NoError(t, err)

	// Flip every bit of the envelope, one at a time.
	for i := range raw {
		for bit := 0; bit < 8; bit++ {
			tampered := append([]byte{}, raw...)
			tampered[i] ^= 1 << bit

			got, err := s.DecryptAuthenticated(base64.StdEncoding.EncodeToString(tampered), key, "header")
			require.Equal(t, ErrAuthenticationFailed, err, "byte %d bit %d", i, bit)
			require.Empty(t, got)
		}
	}
}

func TestDecryptAuthenticated_Failures(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	key := testKey(AES256GCM)

	env, err := s.EncryptAuthenticated("payload", key, "aad")
	require.NoError(t, err)

	otherKey := bytes.Repeat([]byte{0x24}, 32)
	got, err := s.DecryptAuthenticated(env, otherKey, "aad")
	assert.Equal(t, ErrAuthenticationFailed, err)
	assert.Empty(t, got)

	got, err = s.DecryptAuthenticated(env, key, "other aad")
	assert.Equal(t, ErrAuthenticationFailed, err)
	assert.Empty(t, got)

	short := base64.StdEncoding.EncodeToString(make([]byte, gcmNonceSize+gcmTagSize-1))
	_, err = s.DecryptAuthenticated(short, key, "")
	assert.ErrorIs(t, err, ErrMalformedEnvelope)

	_, err = s.DecryptAuthenticated("!!", key, "")
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestEncryptDefault(t *testing.T) {
	t.Parallel()

	cbc := newTestService(t)
	key := testKey(AES256CBC)

	env, err := cbc.EncryptDefault("default", key)
	require.NoError(t, err)
	got, err := cbc.Decrypt(env, key, AES256CBC)
	require.NoError(t, err)
	assert.Equal(t, "default", got)

	cfg := DefaultConfig()
	cfg.DefaultCipher = AES256GCM
	gcm := newTestService(t, WithConfig(cfg))

	env, err = gcm.EncryptDefault("default", key)
	require.NoError(t, err)
	got, err = gcm.DecryptAuthenticated(env, key, "")
	require.NoError(t, err)
	assert.Equal(t, "default", got)

	got, err = gcm.DecryptDefault(env, key)
	require.NoError(t, err)
	assert.Equal(t, "default", got)
}

func TestGenerateKey(t *testing.T) {
	t.Parallel()

	s := newTestService(t)

	for alg := range cipherSpecs {
		key, err := s.GenerateKey(alg)
		require.NoError(t, err)
		assert.Len(t, key, alg.KeySize())
	}

	_, err := s.GenerateKey(CipherAlgorithm(99))
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestPKCS7Unpad(t *testing.T) {
	t.Parallel()

	block := func(tail ...byte) []byte {
		b := bytes.Repeat([]byte{'x'}, aes.BlockSize-len(tail))
		return append(b, tail...)
	}

	tests := []struct {
		name string
		in   []byte
		want []byte
		ok   bool
	}{
		{"single pad byte", block(1), bytes.Repeat([]byte{'x'}, 15), true},
		{"three pad bytes", block(3, 3, 3), bytes.Repeat([]byte{'x'}, 13), true},
		{"full pad block", bytes.Repeat([]byte{16}, 16), []byte{}, true},
		{"zero pad byte", block(0), nil, false},
		{"pad larger than block", block(17), nil, false},
		{"inconsistent pad", block(2, 3, 3), nil, false},
		{"empty", nil, nil, false},
		{"unaligned", []byte{1}, nil, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := pkcs7Unpad(tt.in, aes.BlockSize)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
