package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_KnownVectors(t *testing.T) {
	t.Parallel()

	s := newTestService(t)

	tests := []struct {
		name  string
		input string
		alg   HashAlgorithm
		want  string
	}{
		{"sha256 empty", "", SHA256, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"sha256 abc", "abc", SHA256, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{"sha1 abc", "abc", SHA1, "a9993e364706816aba3e25717850c26c9cd0d89d"},
		{"md5 empty", "", MD5, "d41d8cd98f00b204e9800998ecf8427e"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := s.Hash(tt.input, tt.alg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHash_Deterministic(t *testing.T) {
	t.Parallel()

	s := newTestService(t)

	first, err := s.Hash("hello", SHA256)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := s.Hash("hello", SHA256)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	other, err := s.Hash("world", SHA256)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestHash_UnsupportedAlgorithm(t *testing.T) {
	t.Parallel()

	s := newTestService(t)

	_, err := s.Hash("x", HashAlgorithm(99))
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	_, err = ParseHashAlgorithm("whirlpool")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestParseHashAlgorithm_RoundTrip(t *testing.T) {
	t.Parallel()

	for alg := range hashSpecs {
		parsed, err := ParseHashAlgorithm(strings.ToUpper(alg.String()))
		require.NoError(t, err)
		assert.Equal(t, alg, parsed)
	}
}

func TestIsValidHashFormat(t *testing.T) {
	t.Parallel()

	s := newTestService(t)

	// Every algorithm accepts exactly its own output shape.
	for alg := range hashSpecs {
		digest, err := s.Hash("payload", alg)
		require.NoError(t, err)
		assert.Len(t, digest, 2*alg.Size(), alg.String())
		assert.True(t, s.IsValidHashFormat(digest, alg), alg.String())
	}

	valid, err := s.Hash("payload", SHA256)
	require.NoError(t, err)

	tests := []struct {
		name      string
		candidate string
		alg       HashAlgorithm
	}{
		{"too short", valid[:63], SHA256},
		{"too long", valid + "0", SHA256},
		{"uppercase", strings.ToUpper(valid), SHA256},
		{"non-hex", "g" + valid[1:], SHA256},
		{"empty", "", SHA256},
		{"sha256 digest checked as sha512", valid, SHA512},
		{"unsupported algorithm", valid, HashAlgorithm(99)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.False(t, s.IsValidHashFormat(tt.candidate, tt.alg))
		})
	}
}

func TestGenerateAndHashToken(t *testing.T) {
	t.Parallel()

	s := newTestService(t)

	pair, err := s.GenerateAndHashToken(32, SHA256)
	require.NoError(t, err)

	assert.Len(t, pair.Token, 64)
	assert.True(t, s.IsValidHashFormat(pair.Token, SHA256))
	assert.True(t, s.IsValidHashFormat(pair.Hash, SHA256))

	expected, err := s.Hash(pair.Token, SHA256)
	require.NoError(t, err)
	assert.Equal(t, expected, pair.Hash)

	assert.True(t, s.ValidateToken(pair.Token, pair.Hash, SHA256))
	assert.False(t, s.ValidateToken(pair.Token+"x", pair.Hash, SHA256))

	another, err := s.GenerateAndHashToken(32, SHA256)
	require.NoError(t, err)
	assert.NotEqual(t, pair.Token, another.Token)
}

func TestGenerateAndHashToken_Options(t *testing.T) {
	t.Parallel()

	s := newTestService(t)

	pair, err := s.GenerateAndHashToken(0, SHA3_512)
	require.NoError(t, err)
	assert.Len(t, pair.Token, 2*defaultTokenBytes)
	assert.Len(t, pair.Hash, 128)

	_, err = s.GenerateAndHashToken(-1, SHA256)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	_, err = s.GenerateAndHashToken(16, HashAlgorithm(99))
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}
