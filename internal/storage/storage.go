package storage

import (
	"context"
	"time"

	"github.com/loganmanery/cryptokit/pkg/models"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// VaultStore persists the vault key material and encrypted secrets
type VaultStore interface {
	// GetSalt retrieves the key derivation salt
	GetSalt(ctx context.Context) ([]byte, error)

	// SaveSalt saves the key derivation salt
	SaveSalt(ctx context.Context, salt []byte) error

	// GetTestVector retrieves the envelope used to check the master password
	GetTestVector(ctx context.Context) (string, error)

	// SaveTestVector saves the master password check envelope
	SaveTestVector(ctx context.Context, envelope string) error

	// SaveVaultConfig saves the salt and the check envelope together, or neither
	SaveVaultConfig(ctx context.Context, salt []byte, testVector string) error

	// SaveSecret inserts or replaces a secret envelope by name
	SaveSecret(ctx context.Context, name, valueEnvelope, notesEnvelope string) (int64, error)

	// GetSecret retrieves a secret by name, returning the stored envelopes
	GetSecret(ctx context.Context, name string) (*models.SecretEntry, string, string, error)

	// ListSecrets lists secrets without their sensitive fields
	ListSecrets(ctx context.Context) ([]models.SecretEntry, error)

	// DeleteSecret removes a secret by name
	DeleteSecret(ctx context.Context, name string) error

	// ExportSecrets returns every secret with its envelopes for backup
	ExportSecrets(ctx context.Context) ([]SecretRow, error)

	// ImportSecrets writes backup rows in a single transaction
	ImportSecrets(ctx context.Context, rows []SecretRow) error
}

// CredentialStore persists password hash records
type CredentialStore interface {
	// SaveCredential inserts or replaces the password hash for a subject
	SaveCredential(ctx context.Context, subject, passwordHash string) error

	// GetCredential retrieves the credential for a subject
	GetCredential(ctx context.Context, subject string) (*models.Credential, error)

	// DeleteCredential removes a subject's credential
	DeleteCredential(ctx context.Context, subject string) error
}

// TokenStore persists token hashes
type TokenStore interface {
	// SaveToken stores a token record
	SaveToken(ctx context.Context, record *models.TokenRecord) error

	// GetToken retrieves a token record by ID
	GetToken(ctx context.Context, id string) (*models.TokenRecord, error)

	// DeleteToken removes a token record
	DeleteToken(ctx context.Context, id string) error

	// PurgeExpiredTokens deletes records that expired before now
	PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// AuditLog records security relevant actions
type AuditLog interface {
	// AppendAudit adds an entry to the audit log
	AppendAudit(ctx context.Context, entry models.AuditEntry) error

	// ListAudit returns the most recent entries, newest first
	ListAudit(ctx context.Context, limit int) ([]models.AuditEntry, error)
}

// StorageService defines the interface for database operations
type StorageService interface {
	VaultStore
	CredentialStore
	TokenStore
	AuditLog

	// Initialize initializes the storage service
	Initialize() error

	// Close closes the storage connection
	Close() error
}

// SecretRow is a secret as stored, envelopes included
type SecretRow struct {
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewStorageService creates a new instance of the default storage service
func NewStorageService(dbPath string) StorageService {
	return newSQLiteStorage(dbPath)
}
