package crypto

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
)

const (
	minArgonMemory     uint32 = 8
	minArgonTime       uint32 = 1
	minArgonThreads    uint8  = 1
	minArgonSaltLength uint32 = 16
	minArgonKeyLength  uint32 = 16
	argon2idID                = "argon2id"
)

// Argon2Params are the Argon2id password hashing parameters. Memory is in KiB.
type Argon2Params struct {
	Memory     uint32
	Time       uint32
	Threads    uint8
	SaltLength uint32
	KeyLength  uint32
}

// DefaultArgon2Params returns m=64MiB, t=3, p=4 with a 16 byte salt and 32 byte hash
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:     kdfMemory,
		Time:       kdfTime,
		Threads:    kdfThreads,
		SaltLength: minArgonSaltLength,
		KeyLength:  kdfKeyLen,
	}
}

func validateArgon2Params(p Argon2Params) error {
	if p.Time < minArgonTime {
		return errors.Wrap(ErrInvalidCost, "argon2id time cost must be >= 1")
	}
	if p.Threads < minArgonThreads {
		return errors.Wrap(ErrInvalidCost, "argon2id parallelism must be >= 1")
	}
	if p.Memory < minArgonMemory*uint32(p.Threads) {
		return errors.Wrapf(ErrInvalidCost, "argon2id memory must be >= %d KiB", minArgonMemory*uint32(p.Threads))
	}
	if p.SaltLength < minArgonSaltLength {
		return errors.Wrapf(ErrInvalidCost, "argon2id salt length must be >= %d", minArgonSaltLength)
	}
	if p.KeyLength < minArgonKeyLength {
		return errors.Wrapf(ErrInvalidCost, "argon2id key length must be >= %d", minArgonKeyLength)
	}
	return nil
}

type parsedPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
	keyLength   uint32
}

// hashArgon2id produces a PHC record: $argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
func (s *cryptoService) hashArgon2id(password string, p Argon2Params) (string, error) {
	if err := validateArgon2Params(p); err != nil {
		return "", err
	}

	salt, err := s.RandomBytes(int(p.SaltLength))
	if err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2idID,
		argon2.Version,
		p.Memory,
		p.Time,
		p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func (s *cryptoService) verifyArgon2id(password, record string) (bool, error) {
	parsed, err := parsePHC(record)
	if err != nil {
		return false, err
	}
	if parsed.memory > s.config.MaxKDFMemory {
		return false, errors.Wrapf(ErrMalformedRecord, "memory parameter exceeds %d KiB", s.config.MaxKDFMemory)
	}
	if parsed.time > s.config.MaxKDFTime {
		return false, errors.Wrapf(ErrMalformedRecord, "time parameter exceeds %d", s.config.MaxKDFTime)
	}

	computed := argon2.IDKey(
		[]byte(password),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		parsed.keyLength,
	)

	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

func parsePHC(record string) (*parsedPHC, error) {
	parts := strings.Split(record, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.Wrap(ErrMalformedRecord, "invalid PHC format")
	}

	if parts[1] != argon2idID {
		return nil, errors.Wrap(ErrMalformedRecord, "unsupported algorithm")
	}

	versionPart := parts[2]
	if !strings.HasPrefix(versionPart, "v=") {
		return nil, errors.Wrap(ErrMalformedRecord, "missing argon2 version")
	}
	version, err := strconv.Atoi(strings.TrimPrefix(versionPart, "v="))
	if err != nil || version != argon2.Version {
		return nil, errors.Wrap(ErrMalformedRecord, "unsupported argon2 version")
	}

	params, err := parseParams(parts[3])
	if err != nil {
		return nil, err
	}

	salt, err := decodePHCField(parts[4])
	if err != nil || len(salt) < int(minArgonSaltLength) {
		return nil, errors.Wrap(ErrMalformedRecord, "invalid salt")
	}

	hash, err := decodePHCField(parts[5])
	if err != nil || len(hash) < int(minArgonKeyLength) {
		return nil, errors.Wrap(ErrMalformedRecord, "invalid hash")
	}

	return &parsedPHC{
		memory:      params.memory,
		time:        params.time,
		parallelism: params.parallelism,
		salt:        salt,
		hash:        hash,
		keyLength:   uint32(len(hash)),
	}, nil
}

// decodePHCField accepts both unpadded (PHC) and padded base64
func decodePHCField(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

type parsedParams struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

func parseParams(part string) (*parsedParams, error) {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return nil, errors.Wrap(ErrMalformedRecord, "invalid parameter format")
	}

	var (
		memorySet, timeSet, parallelismSet bool
		params                             parsedParams
	)

	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, errors.Wrap(ErrMalformedRecord, "invalid parameter entry")
		}

		switch kv[0] {
		case "m":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v < uint64(minArgonMemory) {
				return nil, errors.Wrap(ErrMalformedRecord, "invalid memory parameter")
			}
			params.memory = uint32(v)
			memorySet = true
		case "t":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v < uint64(minArgonTime) {
				return nil, errors.Wrap(ErrMalformedRecord, "invalid time parameter")
			}
			params.time = uint32(v)
			timeSet = true
		case "p":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil || v < uint64(minArgonThreads) {
				return nil, errors.Wrap(ErrMalformedRecord, "invalid parallelism parameter")
			}
			params.parallelism = uint8(v)
			parallelismSet = true
		default:
			return nil, errors.Wrap(ErrMalformedRecord, "unsupported parameter")
		}
	}

	if !memorySet || !timeSet || !parallelismSet {
		return nil, errors.Wrap(ErrMalformedRecord, "missing parameters")
	}

	return &params, nil
}
