package crypto

import "github.com/pkg/errors"

// Error taxonomy. Callers match with errors.Is; everything except
// ErrDecryptionFailed and ErrAuthenticationFailed may carry wrapped detail.
var (
	ErrUnsupportedAlgorithm  = errors.New("unsupported algorithm")
	ErrKeyLengthMismatch     = errors.New("key length mismatch")
	ErrMalformedEnvelope     = errors.New("malformed envelope")
	ErrDecryptionFailed      = errors.New("decryption failed")
	ErrAuthenticationFailed  = errors.New("authentication failed")
	ErrInvalidCost           = errors.New("invalid cost")
	ErrInvalidParameters     = errors.New("invalid parameters")
	ErrDerivationFailed      = errors.New("key derivation failed")
	ErrMalformedRecord       = errors.New("malformed password hash record")
	ErrRandomnessUnavailable = errors.New("secure randomness unavailable")
)
