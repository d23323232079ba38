package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSalt      = []byte("0123456789abcdef")
	fastKDFParams = KDFParams{Memory: 64, Time: 1, Threads: 1}
)

func TestDeriveKey_Deterministic(t *testing.T) {
	t.Parallel()

	s := newTestService(t)

	first, err := s.DeriveKey("master password", testSalt, fastKDFParams)
	require.NoError(t, err)
	assert.Len(t, first, 32)

	second, err := s.DeriveKey("master password", testSalt, fastKDFParams)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	otherSalt, err := s.DeriveKey("master password", []byte("fedcba9876543210"), fastKDFParams)
	require.NoError(t, err)
	assert.NotEqual(t, first, otherSalt)

	otherPassword, err := s.DeriveKey("master passwore", testSalt, fastKDFParams)
	require.NoError(t, err)
	assert.NotEqual(t, first, otherPassword)
}

func TestDeriveKey_UsableAsCipherKey(t *testing.T) {
	t.Parallel()

	s := newTestService(t)

	key, err := s.DeriveKey("master password", testSalt, fastKDFParams)
	require.NoError(t, err)

	env, err := s.EncryptAuthenticated("vault contents", key, "")
	require.NoError(t, err)

	again, err := s.DeriveKey("master password", testSalt, fastKDFParams)
	require.NoError(t, err)
	plain, err := s.DecryptAuthenticated(env, again, "")
	require.NoError(t, err)
	assert.Equal(t, "vault contents", plain)

	short := fastKDFParams
	short.KeyLength = 16
	key16, err := s.DeriveKey("master password", testSalt, short)
	require.NoError(t, err)
	assert.Len(t, key16, 16)
}

func TestDeriveKey_InvalidParameters(t *testing.T) {
	t.Parallel()

	s := newTestService(t)

	tests := []struct {
		name   string
		salt   []byte
		params KDFParams
	}{
		{"zero time", testSalt, KDFParams{Memory: 64, Time: 0, Threads: 1}},
		{"zero threads", testSalt, KDFParams{Memory: 64, Time: 1, Threads: 0}},
		{"memory below 8 per thread", testSalt, KDFParams{Memory: 15, Time: 1, Threads: 2}},
		{"output too short", testSalt, KDFParams{Memory: 64, Time: 1, Threads: 1, KeyLength: 3}},
		{"short salt", []byte("short"), fastKDFParams},
		{"nil salt", nil, fastKDFParams},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := s.DeriveKey("pw", tt.salt, tt.params)
			assert.ErrorIs(t, err, ErrInvalidParameters)
		})
	}
}

func TestDeriveKey_DerivationFailed(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxKDFMemory = 1024
	s := newTestService(t, WithConfig(cfg))

	_, err := s.DeriveKey("pw", testSalt, KDFParams{Memory: 2048, Time: 1, Threads: 1})
	assert.ErrorIs(t, err, ErrDerivationFailed)

	_, err = s.DeriveKey("pw", testSalt, KDFParams{Memory: 1024, Time: 1, Threads: 1})
	assert.NoError(t, err)
}

func TestDeriveKey_TimeCeiling(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxKDFTime = 2
	s := newTestService(t, WithConfig(cfg))

	_, err := s.DeriveKey("pw", testSalt, KDFParams{Memory: 64, Time: 3, Threads: 1})
	assert.ErrorIs(t, err, ErrDerivationFailed)

	_, err = s.DeriveKey("pw", testSalt, KDFParams{Memory: 64, Time: 2, Threads: 1})
	assert.NoError(t, err)

	_, err = newTestService(t).DeriveKey("pw", testSalt, KDFParams{Memory: 64, Time: 4294967295, Threads: 1})
	assert.ErrorIs(t, err, ErrDerivationFailed)
}

func TestPBKDF2(t *testing.T) {
	t.Parallel()

	s := newTestService(t)

	// PBKDF2-HMAC-SHA256, c=1, dkLen=32.
	got, err := s.PBKDF2("password", "salt", 1, 64, SHA256)
	require.NoError(t, err)
	assert.Equal(t, "120fb6cffcf8b32c43e7225256c4f837a86548c92ccc35480805987cb70be17b", got)

	odd, err := s.PBKDF2("password", "salt", 1, 7, SHA256)
	require.NoError(t, err)
	assert.Equal(t, "120fb6c", odd)

	long, err := s.PBKDF2("password", "salt", 1000, 128, SHA512)
	require.NoError(t, err)
	assert.Len(t, long, 128)
	assert.True(t, s.IsValidHashFormat(long, SHA512))

	_, err = s.PBKDF2("password", "salt", 0, 64, SHA256)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	_, err = s.PBKDF2("password", "salt", 1, 0, SHA256)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	_, err = s.PBKDF2("password", "salt", 1, 64, HashAlgorithm(99))
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestDeriveKey_ConcurrentCallers(t *testing.T) {
	t.Parallel()

	s := newTestService(t)

	want, err := s.DeriveKey("shared", testSalt, fastKDFParams)
	require.NoError(t, err)

	results := make(chan []byte, 8)
	for i := 0; i < cap(results); i++ {
		go func() {
			key, err := s.DeriveKey("shared", testSalt, fastKDFParams)
			if err != nil {
				results <- nil
				return
			}
			results <- key
		}()
	}

	for i := 0; i < cap(results); i++ {
		assert.True(t, bytes.Equal(want, <-results))
	}
}
