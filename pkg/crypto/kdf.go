package crypto

import (
	"encoding/hex"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// Argon2 key derivation parameters
const (
	kdfTime      = 3         // Number of iterations
	kdfMemory    = 64 * 1024 // Memory in KiB (64 MB)
	kdfThreads   = 4         // Number of threads
	kdfKeyLen    = 32        // Output key length (for AES-256)
	minKDFKeyLen = 4
	minKDFSalt   = 16
	maxKDFMemory = 1024 * 1024 // 1 GiB in KiB
	maxKDFTime   = 64
)

// KDFParams configures DeriveKey. Memory is expressed in KiB.
type KDFParams struct {
	Memory    uint32
	Time      uint32
	Threads   uint8
	KeyLength uint32
}

// DefaultKDFParams returns the default Argon2id derivation parameters
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Memory:    kdfMemory,
		Time:      kdfTime,
		Threads:   kdfThreads,
		KeyLength: kdfKeyLen,
	}
}

// validateKDFParams checks params against the Argon2id limits; salt is skipped when nil
func validateKDFParams(params KDFParams, salt []byte) error {
	if params.Time < 1 {
		return errors.Wrap(ErrInvalidParameters, "time cost must be >= 1")
	}
	if params.Threads < 1 {
		return errors.Wrap(ErrInvalidParameters, "parallelism must be >= 1")
	}
	if params.Memory < 8*uint32(params.Threads) {
		return errors.Wrapf(ErrInvalidParameters, "memory cost must be >= %d KiB for %d threads", 8*uint32(params.Threads), params.Threads)
	}
	if params.KeyLength < minKDFKeyLen {
		return errors.Wrapf(ErrInvalidParameters, "output length must be >= %d", minKDFKeyLen)
	}
	if salt != nil && len(salt) < minKDFSalt {
		return errors.Wrapf(ErrInvalidParameters, "salt must be >= %d bytes", minKDFSalt)
	}
	return nil
}

// DeriveKey derives a key from password and salt using Argon2id. The salt is owned by the caller,
// so the same inputs always reconstruct the same key.
func (s *cryptoService) DeriveKey(password string, salt []byte, params KDFParams) (key []byte, err error) {
	if params.KeyLength == 0 {
		params.KeyLength = kdfKeyLen
	}
	if salt == nil {
		salt = []byte{}
	}
	if err := validateKDFParams(params, salt); err != nil {
		return nil, err
	}
	if params.Memory > s.config.MaxKDFMemory {
		return nil, errors.Wrapf(ErrDerivationFailed, "cannot allocate %d KiB (limit %d KiB)", params.Memory, s.config.MaxKDFMemory)
	}
	if params.Time > s.config.MaxKDFTime {
		return nil, errors.Wrapf(ErrDerivationFailed, "%d iterations exceeds the limit of %d", params.Time, s.config.MaxKDFTime)
	}

	defer func() {
		if r := recover(); r != nil {
			key = nil
			err = errors.Wrapf(ErrDerivationFailed, "%v", r)
		}
	}()

	// Generate the key from the password
	key = argon2.IDKey(
		[]byte(password),
		salt,
		params.Time,
		params.Memory,
		params.Threads,
		params.KeyLength,
	)

	return key, nil
}

// PBKDF2 derives length hex characters from password and salt
func (s *cryptoService) PBKDF2(password, salt string, iterations, length int, alg HashAlgorithm) (string, error) {
	spec, err := alg.spec()
	if err != nil {
		return "", err
	}
	if iterations <= 0 {
		return "", errors.Wrapf(ErrInvalidParameters, "iterations must be positive, got %d", iterations)
	}
	if length <= 0 {
		return "", errors.Wrapf(ErrInvalidParameters, "length must be positive, got %d", length)
	}

	dk := pbkdf2.Key([]byte(password), []byte(salt), iterations, (length+1)/2, spec.new)
	return hex.EncodeToString(dk)[:length], nil
}
