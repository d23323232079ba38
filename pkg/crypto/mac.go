package crypto

import (
	"crypto/hmac"
	"crypto/subtle"
	"encoding/hex"
)

// HMAC computes a lowercase hex HMAC of data under key. Key management is the caller's concern.
func (s *cryptoService) HMAC(data, key string, alg HashAlgorithm) (string, error) {
	spec, err := alg.spec()
	if err != nil {
		return "", err
	}

	mac := hmac.New(spec.new, []byte(key))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// ValidateToken hashes token and compares the result with storedHash in constant time
func (s *cryptoService) ValidateToken(token, storedHash string, alg HashAlgorithm) bool {
	computed, err := s.Hash(token, alg)
	if err != nil {
		return false
	}
	return SecureCompare(computed, storedHash)
}

// SecureCompare reports whether a and b are equal in constant time
func (s *cryptoService) SecureCompare(a, b string) bool {
	return SecureCompare(a, b)
}

// SecureCompare reports whether a and b are equal. The comparison always covers the full
// length of the inputs; only a length mismatch returns early.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
