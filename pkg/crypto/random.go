package crypto

import (
	"encoding/hex"
	"io"

	"github.com/pkg/errors"
)

// RandomBytes returns n bytes read from the secure random source. Short reads fail; there is no fallback source.
func (s *cryptoService) RandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.Wrapf(ErrInvalidParameters, "random length must be positive, got %d", n)
	}

	b := make([]byte, n)
	if _, err := io.ReadFull(s.rand, b); err != nil {
		s.logger.Debug("secure random source failed")
		return nil, errors.Wrapf(ErrRandomnessUnavailable, "reading %d bytes: %v", n, err)
	}
	return b, nil
}

// GenerateToken returns n random bytes hex encoded
func (s *cryptoService) GenerateToken(n int) (string, error) {
	b, err := s.RandomBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateSalt returns a random hex salt of length characters
func (s *cryptoService) GenerateSalt(length int) (string, error) {
	return s.randomHex(length)
}

// GenerateRandomString returns a random hex string of length characters
func (s *cryptoService) GenerateRandomString(length int) (string, error) {
	return s.randomHex(length)
}

// randomHex draws enough bytes to cover length hex characters and trims odd lengths
func (s *cryptoService) randomHex(length int) (string, error) {
	if length <= 0 {
		return "", errors.Wrapf(ErrInvalidParameters, "length must be positive, got %d", length)
	}

	b, err := s.RandomBytes((length + 1) / 2)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b)[:length], nil
}
