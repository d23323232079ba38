package crypto

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// HashAlgorithm identifies a supported digest. The zero value is SHA256.
type HashAlgorithm int

const (
	SHA256 HashAlgorithm = iota
	SHA1
	MD5
	SHA224
	SHA384
	SHA512
	SHA512_256
	SHA3_256
	SHA3_512
	BLAKE2b256
)

// defaultTokenBytes is the token size used when callers pass zero.
const defaultTokenBytes = 32

type hashSpec struct {
	name string
	size int
	new  func() hash.Hash
}

var hashSpecs = map[HashAlgorithm]hashSpec{
	SHA256:     {"sha256", sha256.Size, sha256.New},
	SHA1:       {"sha1", sha1.Size, sha1.New},
	MD5:        {"md5", md5.Size, md5.New},
	SHA224:     {"sha224", sha256.Size224, sha256.New224},
	SHA384:     {"sha384", sha512.Size384, sha512.New384},
	SHA512:     {"sha512", sha512.Size, sha512.New},
	SHA512_256: {"sha512/256", sha512.Size256, sha512.New512_256},
	SHA3_256:   {"sha3-256", 32, sha3.New256},
	SHA3_512:   {"sha3-512", 64, sha3.New512},
	BLAKE2b256: {"blake2b-256", blake2b.Size256, newBlake2b256},
}

func newBlake2b256() hash.Hash {
	// An unkeyed BLAKE2b never fails to initialise.
	h, _ := blake2b.New256(nil)
	return h
}

// ParseHashAlgorithm maps a lowercase algorithm name such as "sha256" to a HashAlgorithm
func ParseHashAlgorithm(name string) (HashAlgorithm, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for alg, spec := range hashSpecs {
		if spec.name == name {
			return alg, nil
		}
	}
	return 0, errors.Wrapf(ErrUnsupportedAlgorithm, "hash %q", name)
}

// Valid reports whether alg is a supported digest
func (alg HashAlgorithm) Valid() bool {
	_, ok := hashSpecs[alg]
	return ok
}

// String returns the algorithm name
func (alg HashAlgorithm) String() string {
	if spec, ok := hashSpecs[alg]; ok {
		return spec.name
	}
	return "unknown"
}

// Size returns the digest size in bytes, or 0 for unsupported algorithms
func (alg HashAlgorithm) Size() int {
	return hashSpecs[alg].size
}

// HexLen returns the length of the hex encoded digest
func (alg HashAlgorithm) HexLen() int {
	return hex.EncodedLen(alg.Size())
}

func (alg HashAlgorithm) spec() (hashSpec, error) {
	spec, ok := hashSpecs[alg]
	if !ok {
		return hashSpec{}, errors.Wrapf(ErrUnsupportedAlgorithm, "hash %d", int(alg))
	}
	return spec, nil
}

// TokenPair is a freshly generated token and its digest. Only Hash is meant to be stored.
type TokenPair struct {
	Token string
	Hash  string
}

// Hash returns the lowercase hex digest of input
func (s *cryptoService) Hash(input string, alg HashAlgorithm) (string, error) {
	spec, err := alg.spec()
	if err != nil {
		return "", err
	}

	h := spec.new()
	h.Write([]byte(input))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsValidHashFormat reports whether candidate has the length and alphabet of a digest produced by alg.
// It does not check that candidate is the digest of anything in particular.
func (s *cryptoService) IsValidHashFormat(candidate string, alg HashAlgorithm) bool {
	if !alg.Valid() || len(candidate) != alg.HexLen() {
		return false
	}
	for i := 0; i < len(candidate); i++ {
		c := candidate[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// HMACToken computes a keyed token digest
func (s *cryptoService) HMACToken(data, key string, alg HashAlgorithm) (string, error) {
	return s.HMAC(data, key, alg)
}

// GenerateAndHashToken draws byteLength random bytes, hex encodes them as the token and hashes the token
func (s *cryptoService) GenerateAndHashToken(byteLength int, alg HashAlgorithm) (TokenPair, error) {
	if byteLength == 0 {
		byteLength = defaultTokenBytes
	}
	if !alg.Valid() {
		return TokenPair{}, errors.Wrapf(ErrUnsupportedAlgorithm, "hash %d", int(alg))
	}

	token, err := s.GenerateToken(byteLength)
	if err != nil {
		return TokenPair{}, err
	}

	tokenHash, err := s.Hash(token, alg)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{Token: token, Hash: tokenHash}, nil
}
