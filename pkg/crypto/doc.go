// Package crypto provides the cryptographic primitives used across cryptokit.
//
// A CryptoService covers five groups of operations:
//   - Digest: Hash, IsValidHashFormat, HMACToken, GenerateAndHashToken
//   - PasswordHash: HashPassword, VerifyPassword, NeedsRehash (bcrypt and Argon2id)
//   - MAC: HMAC, ValidateToken, SecureCompare
//   - Cipher: Encrypt/Decrypt (AES-CBC, no integrity) and EncryptAuthenticated/DecryptAuthenticated (AES-256-GCM)
//   - KeyDerivation: DeriveKey (Argon2id) and PBKDF2
//
// Encrypted values are base64 envelopes laid out as IV || ciphertext for CBC and
// IV || tag || ciphertext for GCM; see Envelope.
//
// Failures are reported with the sentinel errors in errors.go. ErrDecryptionFailed and
// ErrAuthenticationFailed never carry detail about why decryption failed.
//
// A CryptoService is immutable once built and safe for concurrent use.
package crypto
