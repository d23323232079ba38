package manager

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"time"

	"github.com/loganmanery/cryptokit/internal/storage"
	"github.com/loganmanery/cryptokit/pkg/crypto"
	"github.com/loganmanery/cryptokit/pkg/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	vaultSaltBytes   = 16
	vaultCheckAAD    = "cryptokit/vault-check"
	vaultExportAAD   = "cryptokit/vault-export"
	vaultCheckString = "This is a test string to verify the master password."
	exportVersion    = 1
)

// exportBundle is the on-disk format written by ExportVault. Data is an AES-256-GCM
// envelope over the JSON encoded secrets, keyed from the master password and Salt.
type exportBundle struct {
	Version int              `json:"version"`
	Salt    string           `json:"salt"`
	KDF     crypto.KDFParams `json:"kdf"`
	Data    string           `json:"data"`
}

type exportSecret struct {
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// kdfParams returns the configured derivation parameters sized for an AES-256 key
func (m *Manager) kdfParams() crypto.KDFParams {
	params := m.crypto.Config().KDF
	params.KeyLength = uint32(crypto.AES256GCM.KeySize())
	return params
}

// CreateMasterPassword sets up a new master password and salt and leaves the vault unlocked
func (m *Manager) CreateMasterPassword(ctx context.Context, masterPassword string) error {
	if masterPassword == "" {
		return errors.Wrap(crypto.ErrInvalidParameters, "master password must not be empty")
	}

	// Refuse to overwrite an existing vault
	if err := m.checkUninitialized(ctx); err != nil {
		return err
	}

	// Generate a random salt
	salt, err := m.crypto.RandomBytes(vaultSaltBytes)
	if err != nil {
		return errors.Wrap(err, "failed to generate salt")
	}

	// Derive the master key
	key, err := m.crypto.DeriveKey(masterPassword, salt, m.kdfParams())
	if err != nil {
		return errors.Wrap(err, "failed to derive key")
	}

	// Create the test vector used to check the password on unlock
	vector, err := m.crypto.EncryptAuthenticated(vaultCheckString, key, vaultCheckAAD)
	if err != nil {
		return errors.Wrap(err, "failed to encrypt test vector")
	}

	if err := m.storage.SaveVaultConfig(ctx, salt, vector); err != nil {
		return errors.Wrap(err, "failed to save vault config")
	}

	m.setKey(key)
	m.audit(ctx, "create", "vault", "", "")
	m.logger.Info("vault created")
	return nil
}

// checkUninitialized returns ErrVaultExists once both the salt and the test vector are stored.
// A salt without a test vector is left over from an interrupted create and may be replaced.
func (m *Manager) checkUninitialized(ctx context.Context) error {
	if _, err := m.storage.GetSalt(ctx); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "failed to read salt")
	}
	if _, err := m.storage.GetTestVector(ctx); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn("replacing salt left without a test vector")
			return nil
		}
		return errors.Wrap(err, "failed to read test vector")
	}
	return ErrVaultExists
}

// UnlockVault derives the master key and checks it against the stored test vector
func (m *Manager) UnlockVault(ctx context.Context, masterPassword string) error {
	salt, err := m.storage.GetSalt(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrVaultNotInitialized
		}
		return errors.Wrap(err, "failed to get salt")
	}

	key, err := m.crypto.DeriveKey(masterPassword, salt, m.kdfParams())
	if err != nil {
		return errors.Wrap(err, "failed to derive key")
	}

	vector, err := m.storage.GetTestVector(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrVaultNotInitialized
		}
		return errors.Wrap(err, "failed to get test vector")
	}

	check, err := m.crypto.DecryptAuthenticated(vector, key, vaultCheckAAD)
	if err != nil {
		if errors.Is(err, crypto.ErrAuthenticationFailed) {
			m.audit(ctx, "unlock_failed", "vault", "", "")
			return ErrInvalidMasterPassword
		}
		return errors.Wrap(err, "error verifying key")
	}
	if !crypto.SecureCompare(check, vaultCheckString) {
		return ErrInvalidMasterPassword
	}

	m.setKey(key)
	m.audit(ctx, "unlock", "vault", "", "")
	m.logger.Info("vault unlocked")
	return nil
}

// IsLocked checks if the vault is locked
func (m *Manager) IsLocked() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.unlocked
}

// Lock zeroes the master key and locks the vault
func (m *Manager) Lock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.masterKey {
		m.masterKey[i] = 0
	}
	m.masterKey = nil
	m.unlocked = false
}

func (m *Manager) setKey(key []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.masterKey {
		m.masterKey[i] = 0
	}
	m.masterKey = key
	m.unlocked = true
	m.lastActivity = m.now()
}

// key returns a copy of the master key
func (m *Manager) key() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.unlocked {
		return nil, ErrLocked
	}
	m.lastActivity = m.now()
	return append([]byte(nil), m.masterKey...), nil
}

func notesAAD(name string) string {
	return name + "#notes"
}

// AddSecret encrypts and stores a secret under name, replacing any previous value
func (m *Manager) AddSecret(ctx context.Context, name, value, notes string) (int64, error) {
	if name == "" {
		return 0, errors.Wrap(crypto.ErrInvalidParameters, "secret name must not be empty")
	}
	key, err := m.key()
	if err != nil {
		return 0, err
	}

	valueEnv, notesEnv, err := m.sealSecret(key, name, value, notes)
	if err != nil {
		return 0, err
	}

	id, err := m.storage.SaveSecret(ctx, name, valueEnv, notesEnv)
	if err != nil {
		return 0, err
	}

	m.audit(ctx, "save", "secret", name, "")
	return id, nil
}

// sealSecret encrypts both fields, binding each to the secret name
func (m *Manager) sealSecret(key []byte, name, value, notes string) (string, string, error) {
	valueEnv, err := m.crypto.EncryptAuthenticated(value, key, name)
	if err != nil {
		return "", "", err
	}

	var notesEnv string
	if notes != "" {
		notesEnv, err = m.crypto.EncryptAuthenticated(notes, key, notesAAD(name))
		if err != nil {
			return "", "", err
		}
	}
	return valueEnv, notesEnv, nil
}

// GetSecret retrieves and decrypts a secret by name
func (m *Manager) GetSecret(ctx context.Context, name string) (models.SecretEntry, error) {
	key, err := m.key()
	if err != nil {
		return models.SecretEntry{}, err
	}

	entry, valueEnv, notesEnv, err := m.storage.GetSecret(ctx, name)
	if err != nil {
		return models.SecretEntry{}, err
	}

	// Decrypt value
	entry.Value, err = m.crypto.DecryptAuthenticated(valueEnv, key, name)
	if err != nil {
		return models.SecretEntry{}, errors.Wrapf(err, "secret %q", name)
	}

	// Decrypt notes if they exist
	if notesEnv != "" {
		entry.Notes, err = m.crypto.DecryptAuthenticated(notesEnv, key, notesAAD(name))
		if err != nil {
			return models.SecretEntry{}, errors.Wrapf(err, "secret %q notes", name)
		}
	}

	m.audit(ctx, "read", "secret", name, "")
	return *entry, nil
}

// ListSecrets lists secrets without their sensitive fields
func (m *Manager) ListSecrets(ctx context.Context) ([]models.SecretEntry, error) {
	if _, err := m.key(); err != nil {
		return nil, err
	}
	return m.storage.ListSecrets(ctx)
}

// DeleteSecret deletes a secret by name
func (m *Manager) DeleteSecret(ctx context.Context, name string) error {
	if _, err := m.key(); err != nil {
		return err
	}
	if err := m.storage.DeleteSecret(ctx, name); err != nil {
		return err
	}
	m.audit(ctx, "delete", "secret", name, "")
	return nil
}

// ExportVault writes every secret to filename, sealed under the current master key
func (m *Manager) ExportVault(ctx context.Context, filename string) error {
	key, err := m.key()
	if err != nil {
		return err
	}

	salt, err := m.storage.GetSalt(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get salt")
	}

	rows, err := m.storage.ExportSecrets(ctx)
	if err != nil {
		return err
	}

	secrets := make([]exportSecret, 0, len(rows))
	for _, row := range rows {
		value, err := m.crypto.DecryptAuthenticated(row.Value, key, row.Name)
		if err != nil {
			return errors.Wrapf(err, "secret %q", row.Name)
		}
		secret := exportSecret{Name: row.Name, Value: value, CreatedAt: row.CreatedAt}
		if row.Notes != "" {
			if secret.Notes, err = m.crypto.DecryptAuthenticated(row.Notes, key, notesAAD(row.Name)); err != nil {
				return errors.Wrapf(err, "secret %q notes", row.Name)
			}
		}
		secrets = append(secrets, secret)
	}

	plain, err := json.Marshal(secrets)
	if err != nil {
		return err
	}

	data, err := m.crypto.EncryptAuthenticated(string(plain), key, vaultExportAAD)
	if err != nil {
		return err
	}

	bundle, err := json.Marshal(exportBundle{
		Version: exportVersion,
		Salt:    base64.StdEncoding.EncodeToString(salt),
		KDF:     m.kdfParams(),
		Data:    data,
	})
	if err != nil {
		return err
	}

	if err := os.WriteFile(filename, bundle, 0600); err != nil {
		return err
	}

	m.audit(ctx, "export", "vault", filename, "")
	m.logger.Info("vault exported", zap.Int("secrets", len(secrets)))
	return nil
}

// ImportVault reads a file written by ExportVault. masterPassword is the password of the
// exporting vault; the secrets are re-encrypted under this vault's key.
func (m *Manager) ImportVault(ctx context.Context, filename, masterPassword string) (int, error) {
	key, err := m.key()
	if err != nil {
		return 0, err
	}

	raw, err := os.ReadFile(filename)
	if err != nil {
		return 0, err
	}

	var bundle exportBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return 0, errors.Wrap(crypto.ErrMalformedEnvelope, err.Error())
	}
	if bundle.Version != exportVersion {
		return 0, errors.Errorf("unsupported export version %d", bundle.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(bundle.Salt)
	if err != nil {
		return 0, errors.Wrap(crypto.ErrMalformedEnvelope, "export salt is not base64")
	}

	exportKey, err := m.crypto.DeriveKey(masterPassword, salt, bundle.KDF)
	if err != nil {
		return 0, errors.Wrap(err, "failed to derive export key")
	}

	plain, err := m.crypto.DecryptAuthenticated(bundle.Data, exportKey, vaultExportAAD)
	if err != nil {
		if errors.Is(err, crypto.ErrAuthenticationFailed) {
			return 0, ErrInvalidMasterPassword
		}
		return 0, err
	}

	var secrets []exportSecret
	if err := json.Unmarshal([]byte(plain), &secrets); err != nil {
		return 0, errors.Wrap(err, "corrupt export payload")
	}

	now := m.now().UTC()
	rows := make([]storage.SecretRow, 0, len(secrets))
	for _, s := range secrets {
		valueEnv, notesEnv, err := m.sealSecret(key, s.Name, s.Value, s.Notes)
		if err != nil {
			return 0, err
		}
		created := s.CreatedAt
		if created.IsZero() {
			created = now
		}
		rows = append(rows, storage.SecretRow{
			Name:      s.Name,
			Value:     valueEnv,
			Notes:     notesEnv,
			CreatedAt: created,
			UpdatedAt: now,
		})
	}

	if err := m.storage.ImportSecrets(ctx, rows); err != nil {
		return 0, err
	}

	m.audit(ctx, "import", "vault", filename, "")
	m.logger.Info("vault imported", zap.Int("secrets", len(rows)))
	return len(rows), nil
}

// audit appends an audit entry; failures are logged and do not fail the operation
func (m *Manager) audit(ctx context.Context, action, resourceType, resourceID, details string) {
	err := m.storage.AppendAudit(ctx, models.AuditEntry{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		CreatedAt:    m.now().UTC(),
	})
	if err != nil {
		m.logger.Warn("failed to append audit entry", zap.String("action", action), zap.Error(err))
	}
}

// AuditLog returns the most recent audit entries, newest first
func (m *Manager) AuditLog(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	return m.storage.ListAudit(ctx, limit)
}
