package crypto

import (
	"crypto/rand"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CryptoService defines the hashing, password, MAC, cipher and key derivation operations
type CryptoService interface {
	// Hash returns the lowercase hex digest of input
	Hash(input string, alg HashAlgorithm) (string, error)

	// IsValidHashFormat reports whether candidate has the shape of a digest produced by alg
	IsValidHashFormat(candidate string, alg HashAlgorithm) bool

	// HMACToken computes a keyed token digest
	HMACToken(data, key string, alg HashAlgorithm) (string, error)

	// GenerateAndHashToken draws a random hex token and returns it with its digest
	GenerateAndHashToken(byteLength int, alg HashAlgorithm) (TokenPair, error)

	// HashPassword produces a self-describing password hash record
	HashPassword(password string, alg PasswordAlgorithm, cost PasswordCost) (string, error)

	// HashArgon2id hashes input with the configured Argon2id parameters
	HashArgon2id(input string) (string, error)

	// VerifyPassword checks password against a record produced by HashPassword
	VerifyPassword(password, record string) (bool, error)

	// NeedsRehash reports whether record was produced with parameters other than desired
	NeedsRehash(record string, desired PasswordCost) (bool, error)

	// HMAC computes a lowercase hex HMAC of data under key
	HMAC(data, key string, alg HashAlgorithm) (string, error)

	// ValidateToken compares the digest of token against storedHash in constant time
	ValidateToken(token, storedHash string, alg HashAlgorithm) bool

	// SecureCompare reports whether a and b are equal in constant time
	SecureCompare(a, b string) bool

	// Encrypt encrypts plaintext with a CBC cipher and returns the envelope
	Encrypt(plaintext string, key []byte, alg CipherAlgorithm) (string, error)

	// Decrypt opens an envelope produced by Encrypt
	Decrypt(envelope string, key []byte, alg CipherAlgorithm) (string, error)

	// EncryptDefault encrypts with the configured default cipher
	EncryptDefault(plaintext string, key []byte) (string, error)

	// DecryptDefault decrypts with the configured default cipher
	DecryptDefault(envelope string, key []byte) (string, error)

	// EncryptAuthenticated encrypts plaintext with AES-256-GCM binding aad
	EncryptAuthenticated(plaintext string, key []byte, aad string) (string, error)

	// DecryptAuthenticated verifies and opens an envelope produced by EncryptAuthenticated
	DecryptAuthenticated(envelope string, key []byte, aad string) (string, error)

	// GenerateKey returns a random key sized for alg
	GenerateKey(alg CipherAlgorithm) ([]byte, error)

	// DeriveKey derives a key from a password and caller-held salt with Argon2id
	DeriveKey(password string, salt []byte, params KDFParams) ([]byte, error)

	// PBKDF2 derives a hex key of length characters
	PBKDF2(password, salt string, iterations, length int, alg HashAlgorithm) (string, error)

	// RandomBytes returns n bytes from the secure random source
	RandomBytes(n int) ([]byte, error)

	// GenerateToken returns n random bytes hex encoded
	GenerateToken(n int) (string, error)

	// GenerateSalt returns a random hex salt of length characters
	GenerateSalt(length int) (string, error)

	// GenerateRandomString returns a random hex string of length characters
	GenerateRandomString(length int) (string, error)

	// Config returns the configuration the service was built with
	Config() Config
}

// Config holds the defaults applied by a CryptoService
type Config struct {
	// DefaultCipher is used by EncryptDefault and DecryptDefault.
	DefaultCipher CipherAlgorithm
	// DefaultHash is used where callers ask for the default digest.
	DefaultHash HashAlgorithm
	// PasswordCost fills zero sections of the cost passed to HashPassword and NeedsRehash.
	PasswordCost PasswordCost
	// KDF holds the default key derivation parameters.
	KDF KDFParams
	// MaxKDFMemory caps DeriveKey memory in KiB.
	MaxKDFMemory uint32
	// MaxKDFTime caps Argon2id iterations for DeriveKey and for stored records.
	MaxKDFTime uint32
}

// DefaultConfig returns the configuration used when none is supplied
func DefaultConfig() Config {
	return Config{
		DefaultCipher: AES256CBC,
		DefaultHash:   SHA256,
		PasswordCost:  DefaultPasswordCost(),
		KDF:           DefaultKDFParams(),
		MaxKDFMemory:  maxKDFMemory,
		MaxKDFTime:    maxKDFTime,
	}
}

// Validate checks that every default is usable
func (c Config) Validate() error {
	if !c.DefaultCipher.Valid() {
		return errors.Wrapf(ErrUnsupportedAlgorithm, "default cipher %d", int(c.DefaultCipher))
	}
	if !c.DefaultHash.Valid() {
		return errors.Wrapf(ErrUnsupportedAlgorithm, "default hash %d", int(c.DefaultHash))
	}
	if err := validateBcryptCost(c.PasswordCost.Bcrypt); err != nil {
		return err
	}
	if err := validateArgon2Params(c.PasswordCost.Argon2); err != nil {
		return err
	}
	if c.MaxKDFMemory == 0 {
		return errors.Wrap(ErrInvalidParameters, "kdf memory ceiling must be positive")
	}
	if c.MaxKDFTime == 0 {
		return errors.Wrap(ErrInvalidParameters, "kdf time ceiling must be positive")
	}
	return validateKDFParams(c.KDF, nil)
}

// Option configures a CryptoService
type Option func(*cryptoService)

// WithConfig replaces the default configuration
func WithConfig(cfg Config) Option {
	return func(s *cryptoService) {
		s.config = cfg
	}
}

// WithLogger sets the logger used for debug diagnostics
func WithLogger(logger *zap.Logger) Option {
	return func(s *cryptoService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRandSource sets the source of random numbers and is intended primarily for testing
func WithRandSource(r io.Reader) Option {
	return func(s *cryptoService) {
		if r != nil {
			s.rand = r
		}
	}
}

// cryptoService implements CryptoService. It is immutable after construction.
type cryptoService struct {
	config Config
	logger *zap.Logger
	rand   io.Reader
}

// NewCryptoService creates a new instance of the crypto service
func NewCryptoService(opts ...Option) (CryptoService, error) {
	s := &cryptoService{
		config: DefaultConfig(),
		logger: zap.NewNop(),
		rand:   rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid crypto config")
	}

	return s, nil
}

// Config returns the configuration the service was built with
func (s *cryptoService) Config() Config {
	return s.config
}
