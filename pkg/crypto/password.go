package crypto

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// PasswordAlgorithm identifies an adaptive password hashing algorithm
type PasswordAlgorithm int

const (
	Bcrypt PasswordAlgorithm = iota
	Argon2id
)

const (
	defaultBcryptCost  = 10
	maxBcryptPassBytes = 72
)

// String returns the algorithm name
func (alg PasswordAlgorithm) String() string {
	switch alg {
	case Bcrypt:
		return "bcrypt"
	case Argon2id:
		return "argon2id"
	default:
		return "unknown"
	}
}

// ParsePasswordAlgorithm maps "bcrypt" or "argon2id" to a PasswordAlgorithm
func ParsePasswordAlgorithm(name string) (PasswordAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bcrypt":
		return Bcrypt, nil
	case "argon2id":
		return Argon2id, nil
	default:
		return 0, errors.Wrapf(ErrUnsupportedAlgorithm, "password algorithm %q", name)
	}
}

// PasswordCost carries the work parameters for each password algorithm. A zero section
// means "use the service default" for that algorithm, unless it was set through BcryptCost.
type PasswordCost struct {
	// Bcrypt is the logarithmic work factor, 4 to 31.
	Bcrypt int
	// Argon2 holds the memory, time and parallelism triple.
	Argon2 Argon2Params

	bcryptExplicit bool
}

// BcryptCost returns a PasswordCost with only the bcrypt work factor set. The factor is
// validated as given; BcryptCost(0) is rejected rather than read as the default.
func BcryptCost(cost int) PasswordCost {
	return PasswordCost{Bcrypt: cost, bcryptExplicit: true}
}

// Argon2idCost returns a PasswordCost with only the Argon2id parameters set
func Argon2idCost(params Argon2Params) PasswordCost {
	return PasswordCost{Argon2: params}
}

// DefaultPasswordCost returns bcrypt cost 10 and the default Argon2id parameters
func DefaultPasswordCost() PasswordCost {
	return PasswordCost{
		Bcrypt: defaultBcryptCost,
		Argon2: DefaultArgon2Params(),
	}
}

// resolve fills zero sections of c from the service defaults
func (c PasswordCost) resolve(defaults PasswordCost) PasswordCost {
	if c.Bcrypt == 0 && !c.bcryptExplicit {
		c.Bcrypt = defaults.Bcrypt
	}
	if c.Argon2 == (Argon2Params{}) {
		c.Argon2 = defaults.Argon2
	}
	if c.Argon2.SaltLength == 0 {
		c.Argon2.SaltLength = defaults.Argon2.SaltLength
	}
	if c.Argon2.KeyLength == 0 {
		c.Argon2.KeyLength = defaults.Argon2.KeyLength
	}
	return c
}

func validateBcryptCost(cost int) error {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return errors.Wrapf(ErrInvalidCost, "bcrypt cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cost)
	}
	return nil
}

// detectPasswordAlgorithm inspects the record prefix without verifying anything
func detectPasswordAlgorithm(record string) (PasswordAlgorithm, error) {
	switch {
	case strings.HasPrefix(record, "$argon2id$"):
		return Argon2id, nil
	case strings.HasPrefix(record, "$2a$"),
		strings.HasPrefix(record, "$2b$"),
		strings.HasPrefix(record, "$2y$"):
		return Bcrypt, nil
	default:
		return 0, errors.Wrap(ErrMalformedRecord, "unrecognised record prefix")
	}
}

// HashPassword hashes password with alg. The record embeds the algorithm, parameters and salt.
func (s *cryptoService) HashPassword(password string, alg PasswordAlgorithm, cost PasswordCost) (string, error) {
	if cost.Bcrypt < 0 {
		return "", errors.Wrapf(ErrInvalidCost, "bcrypt cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cost.Bcrypt)
	}
	cost = cost.resolve(s.config.PasswordCost)

	switch alg {
	case Bcrypt:
		return s.hashBcrypt(password, cost.Bcrypt)
	case Argon2id:
		return s.hashArgon2id(password, cost.Argon2)
	default:
		return "", errors.Wrapf(ErrUnsupportedAlgorithm, "password algorithm %d", int(alg))
	}
}

// HashArgon2id hashes input with the configured Argon2id parameters
func (s *cryptoService) HashArgon2id(input string) (string, error) {
	return s.HashPassword(input, Argon2id, Argon2idCost(s.config.PasswordCost.Argon2))
}

func (s *cryptoService) hashBcrypt(password string, cost int) (string, error) {
	if err := validateBcryptCost(cost); err != nil {
		return "", err
	}
	if len(password) > maxBcryptPassBytes {
		return "", errors.Wrapf(ErrInvalidParameters, "bcrypt input must be <= %d bytes", maxBcryptPassBytes)
	}

	record, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", errors.Wrap(ErrRandomnessUnavailable, err.Error())
	}
	return string(record), nil
}

// VerifyPassword recomputes the hash with the parameters embedded in record and compares in
// constant time. A wrong password is (false, nil); only a malformed record is an error.
func (s *cryptoService) VerifyPassword(password, record string) (bool, error) {
	alg, err := detectPasswordAlgorithm(record)
	if err != nil {
		return false, err
	}

	switch alg {
	case Argon2id:
		return s.verifyArgon2id(password, record)
	default:
		err := bcrypt.CompareHashAndPassword([]byte(record), []byte(password))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, errors.Wrap(ErrMalformedRecord, err.Error())
		}
	}
}

// NeedsRehash reports whether the parameters embedded in record differ from desired for the
// record's algorithm
func (s *cryptoService) NeedsRehash(record string, desired PasswordCost) (bool, error) {
	alg, err := detectPasswordAlgorithm(record)
	if err != nil {
		return false, err
	}
	desired = desired.resolve(s.config.PasswordCost)

	switch alg {
	case Argon2id:
		parsed, err := parsePHC(record)
		if err != nil {
			return false, err
		}
		return parsed.memory != desired.Argon2.Memory ||
			parsed.time != desired.Argon2.Time ||
			parsed.parallelism != desired.Argon2.Threads ||
			parsed.keyLength != desired.Argon2.KeyLength, nil
	default:
		cost, err := bcrypt.Cost([]byte(record))
		if err != nil {
			return false, errors.Wrap(ErrMalformedRecord, err.Error())
		}
		return cost != desired.Bcrypt, nil
	}
}
