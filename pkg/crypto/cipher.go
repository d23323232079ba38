package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CipherAlgorithm identifies a supported symmetric cipher
type CipherAlgorithm int

const (
	AES256CBC CipherAlgorithm = iota
	AES192CBC
	AES128CBC
	AES256GCM
)

// gcmNonceSize is the GCM nonce length.
const gcmNonceSize = 12

type cipherSpec struct {
	name          string
	keySize       int
	ivSize        int
	authenticated bool
}

var cipherSpecs = map[CipherAlgorithm]cipherSpec{
	AES256CBC: {name: "aes-256-cbc", keySize: 32, ivSize: aes.BlockSize},
	AES192CBC: {name: "aes-192-cbc", keySize: 24, ivSize: aes.BlockSize},
	AES128CBC: {name: "aes-128-cbc", keySize: 16, ivSize: aes.BlockSize},
	AES256GCM: {name: "aes-256-gcm", keySize: 32, ivSize: gcmNonceSize, authenticated: true},
}

// ParseCipherAlgorithm maps an OpenSSL style name such as "aes-256-cbc" to a CipherAlgorithm
func ParseCipherAlgorithm(name string) (CipherAlgorithm, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for alg, spec := range cipherSpecs {
		if spec.name == name {
			return alg, nil
		}
	}
	return 0, errors.Wrapf(ErrUnsupportedAlgorithm, "cipher %q", name)
}

// Valid reports whether alg is a supported cipher
func (alg CipherAlgorithm) Valid() bool {
	_, ok := cipherSpecs[alg]
	return ok
}

// String returns the OpenSSL style cipher name
func (alg CipherAlgorithm) String() string {
	if spec, ok := cipherSpecs[alg]; ok {
		return spec.name
	}
	return "unknown"
}

// KeySize returns the required key length in bytes
func (alg CipherAlgorithm) KeySize() int {
	return cipherSpecs[alg].keySize
}

// IVSize returns the IV or nonce length in bytes
func (alg CipherAlgorithm) IVSize() int {
	return cipherSpecs[alg].ivSize
}

// Authenticated reports whether alg is an AEAD mode
func (alg CipherAlgorithm) Authenticated() bool {
	return cipherSpecs[alg].authenticated
}

func (alg CipherAlgorithm) spec() (cipherSpec, error) {
	spec, ok := cipherSpecs[alg]
	if !ok {
		return cipherSpec{}, errors.Wrapf(ErrUnsupportedAlgorithm, "cipher %d", int(alg))
	}
	return spec, nil
}

// newBlock checks the key length for alg and creates the AES block
func newBlock(key []byte, alg CipherAlgorithm) (cipher.Block, error) {
	if len(key) != alg.KeySize() {
		return nil, errors.Wrapf(ErrKeyLengthMismatch, "%s needs a %d byte key, got %d", alg, alg.KeySize(), len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(ErrKeyLengthMismatch, err.Error())
	}
	return block, nil
}

// GenerateKey returns a random key sized for alg
func (s *cryptoService) GenerateKey(alg CipherAlgorithm) ([]byte, error) {
	spec, err := alg.spec()
	if err != nil {
		return nil, err
	}
	return s.RandomBytes(spec.keySize)
}

// Encrypt encrypts plaintext with a CBC cipher. It provides confidentiality only; callers needing
// integrity use EncryptAuthenticated.
func (s *cryptoService) Encrypt(plaintext string, key []byte, alg CipherAlgorithm) (string, error) {
	spec, err := alg.spec()
	if err != nil {
		return "", err
	}
	if spec.authenticated {
		return "", errors.Wrapf(ErrUnsupportedAlgorithm, "%s is not a CBC cipher", alg)
	}

	block, err := newBlock(key, alg)
	if err != nil {
		return "", err
	}

	// Generate a random IV
	iv, err := s.RandomBytes(spec.ivSize)
	if err != nil {
		return "", err
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return Envelope{Algorithm: alg, IV: iv, Ciphertext: ciphertext}.Encode(), nil
}

// Decrypt opens an envelope produced by Encrypt. Every failure after the envelope is parsed
// is reported as ErrDecryptionFailed without further detail. CBC is unauthenticated: a wrong key
// that happens to leave valid padding yields garbage rather than an error.
func (s *cryptoService) Decrypt(envelope string, key []byte, alg CipherAlgorithm) (string, error) {
	spec, err := alg.spec()
	if err != nil {
		return "", err
	}
	if spec.authenticated {
		return "", errors.Wrapf(ErrUnsupportedAlgorithm, "%s is not a CBC cipher", alg)
	}

	block, err := newBlock(key, alg)
	if err != nil {
		return "", err
	}

	env, err := ParseEnvelope(envelope, alg)
	if err != nil {
		return "", err
	}

	ct := env.Ciphertext
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		s.logger.Debug("cbc decryption failed", zap.Stringer("cipher", alg))
		return "", ErrDecryptionFailed
	}

	plaintext := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, env.IV).CryptBlocks(plaintext, ct)

	unpadded, ok := pkcs7Unpad(plaintext, aes.BlockSize)
	if !ok {
		s.logger.Debug("cbc decryption failed", zap.Stringer("cipher", alg))
		return "", ErrDecryptionFailed
	}
	return string(unpadded), nil
}

// EncryptDefault encrypts with the configured default cipher
func (s *cryptoService) EncryptDefault(plaintext string, key []byte) (string, error) {
	if s.config.DefaultCipher.Authenticated() {
		return s.EncryptAuthenticated(plaintext, key, "")
	}
	return s.Encrypt(plaintext, key, s.config.DefaultCipher)
}

// DecryptDefault decrypts with the configured default cipher
func (s *cryptoService) DecryptDefault(envelope string, key []byte) (string, error) {
	if s.config.DefaultCipher.Authenticated() {
		return s.DecryptAuthenticated(envelope, key, "")
	}
	return s.Decrypt(envelope, key, s.config.DefaultCipher)
}

// EncryptAuthenticated encrypts plaintext using AES-256-GCM with aad as associated data
func (s *cryptoService) EncryptAuthenticated(plaintext string, key []byte, aad string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	// Generate a random nonce
	nonce, err := s.RandomBytes(gcm.NonceSize())
	if err != nil {
		return "", err
	}

	// Seal appends the tag after the ciphertext; the envelope carries it first
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), []byte(aad))
	split := len(sealed) - gcm.Overhead()

	return Envelope{
		Algorithm:  AES256GCM,
		IV:         nonce,
		Tag:        sealed[split:],
		Ciphertext: sealed[:split],
	}.Encode(), nil
}

// DecryptAuthenticated verifies and decrypts an envelope produced by EncryptAuthenticated.
// Nothing is returned unless the tag verifies under key and aad.
func (s *cryptoService) DecryptAuthenticated(envelope string, key []byte, aad string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	env, err := ParseEnvelope(envelope, AES256GCM)
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+len(env.Tag))
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)

	plaintext, err := gcm.Open(nil, env.IV, sealed, []byte(aad))
	if err != nil {
		s.logger.Debug("authenticated decryption failed")
		return "", ErrAuthenticationFailed
	}
	return string(plaintext), nil
}

// newGCM creates the AES-256-GCM AEAD for key
func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := newBlock(key, AES256GCM)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithTagSize(block, gcmTagSize)
}

// pkcs7Pad appends PKCS#7 padding; a full block is added when data is already aligned
func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data), len(data)+n)
	copy(out, data)
	for i := 0; i < n; i++ {
		out = append(out, byte(n))
	}
	return out
}

// pkcs7Unpad strips PKCS#7 padding, inspecting the whole final block regardless of the pad value
func pkcs7Unpad(data []byte, blockSize int) ([]byte, bool) {
	n := len(data)
	if n == 0 || n%blockSize != 0 {
		return nil, false
	}

	pad := int(data[n-1])
	good := subtle.ConstantTimeLessOrEq(1, pad) & subtle.ConstantTimeLessOrEq(pad, blockSize)
	for i := 1; i <= blockSize; i++ {
		inPad := subtle.ConstantTimeLessOrEq(i, pad)
		match := subtle.ConstantTimeByteEq(data[n-i], byte(pad))
		good &= subtle.ConstantTimeSelect(inPad, match, 1)
	}
	if good != 1 {
		return nil, false
	}
	return data[:n-pad], true
}
