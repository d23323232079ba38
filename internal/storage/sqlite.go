package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/loganmanery/cryptokit/pkg/models"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	configSalt       = "salt"
	configTestVector = "test_vector"
)

// SQLiteStorage implements StorageService using SQLite
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
	logger *zap.Logger
}

// newSQLiteStorage creates a new SQLite storage service
func newSQLiteStorage(dbPath string) *SQLiteStorage {
	return &SQLiteStorage{
		dbPath: dbPath,
		logger: zap.NewNop(),
	}
}

// NewSQLiteStorage creates a SQLite storage service that logs to logger
func NewSQLiteStorage(dbPath string, logger *zap.Logger) *SQLiteStorage {
	s := newSQLiteStorage(dbPath)
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Initialize initializes the database connection and tables
func (s *SQLiteStorage) Initialize() error {
	// Open SQLite database
	db, err := sql.Open("sqlite3", s.dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	s.db = db

	// Initialize the database schema
	if err := s.initializeSchema(); err != nil {
		db.Close()
		s.db = nil
		return errors.Wrap(err, "failed to initialize schema")
	}

	s.logger.Debug("sqlite storage initialized", zap.String("path", s.dbPath))
	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// getConfig reads a value from the config table
func (s *SQLiteStorage) getConfig(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

// setConfig writes a value to the config table
func (s *SQLiteStorage) setConfig(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, "INSERT OR REPLACE INTO config (key, value) VALUES (?, ?)", key, value)
	return err
}

// GetSalt retrieves the salt from the database
func (s *SQLiteStorage) GetSalt(ctx context.Context) ([]byte, error) {
	salt, err := s.getConfig(ctx, configSalt)
	if err != nil {
		return nil, errors.Wrap(err, "no salt found, please create a master password first")
	}
	return salt, nil
}

// SaveSalt saves a salt to the database
func (s *SQLiteStorage) SaveSalt(ctx context.Context, salt []byte) error {
	return s.setConfig(ctx, configSalt, salt)
}

// GetTestVector retrieves the test vector for master password verification
func (s *SQLiteStorage) GetTestVector(ctx context.Context) (string, error) {
	vector, err := s.getConfig(ctx, configTestVector)
	if err != nil {
		return "", err
	}
	return string(vector), nil
}

// SaveTestVector saves a test vector to the database
func (s *SQLiteStorage) SaveTestVector(ctx context.Context, envelope string) error {
	return s.setConfig(ctx, configTestVector, []byte(envelope))
}

// SaveVaultConfig writes the salt and test vector in one transaction
func (s *SQLiteStorage) SaveVaultConfig(ctx context.Context, salt []byte, testVector string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO config (key, value) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	if _, err = stmt.ExecContext(ctx, configSalt, salt); err != nil {
		return err
	}
	if _, err = stmt.ExecContext(ctx, configTestVector, []byte(testVector)); err != nil {
		return err
	}

	return tx.Commit()
}

// SaveSecret inserts a secret or replaces the envelopes of an existing one
func (s *SQLiteStorage) SaveSecret(ctx context.Context, name, valueEnvelope, notesEnvelope string) (int64, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO secrets (name, value, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, notes = excluded.notes, updated_at = excluded.updated_at
	`, name, valueEnvelope, notesEnvelope, now, now)
	if err != nil {
		return 0, err
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, "SELECT id FROM secrets WHERE name = ?", name).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetSecret retrieves a secret by name
func (s *SQLiteStorage) GetSecret(ctx context.Context, name string) (*models.SecretEntry, string, string, error) {
	var entry models.SecretEntry
	var value string
	var notes sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, value, notes, created_at, updated_at
		FROM secrets WHERE name = ?
	`, name).Scan(&entry.ID, &entry.Name, &value, &notes, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", "", ErrNotFound
		}
		return nil, "", "", err
	}

	return &entry, value, notes.String, nil
}

// ListSecrets retrieves all secrets (without sensitive data)
func (s *SQLiteStorage) ListSecrets(ctx context.Context) ([]models.SecretEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at
		FROM secrets ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.SecretEntry
	for rows.Next() {
		var entry models.SecretEntry
		if err := rows.Scan(&entry.ID, &entry.Name, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// DeleteSecret deletes a secret
func (s *SQLiteStorage) DeleteSecret(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM secrets WHERE name = ?", name)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ExportSecrets exports all secrets for backup
func (s *SQLiteStorage) ExportSecrets(ctx context.Context) ([]SecretRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, value, notes, created_at, updated_at
		FROM secrets ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SecretRow
	for rows.Next() {
		var row SecretRow
		var notes sql.NullString
		if err := rows.Scan(&row.Name, &row.Value, &notes, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, err
		}
		row.Notes = notes.String
		result = append(result, row)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// ImportSecrets imports secrets from a backup
func (s *SQLiteStorage) ImportSecrets(ctx context.Context, rows []SecretRow) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO secrets (name, value, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err = stmt.ExecContext(ctx, row.Name, row.Value, row.Notes, row.CreatedAt.UTC(), row.UpdatedAt.UTC()); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveCredential inserts or replaces a subject's password hash
func (s *SQLiteStorage) SaveCredential(ctx context.Context, subject, passwordHash string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (subject, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(subject) DO UPDATE SET password_hash = excluded.password_hash, updated_at = excluded.updated_at
	`, subject, passwordHash, now, now)
	return err
}

// GetCredential retrieves a subject's password hash
func (s *SQLiteStorage) GetCredential(ctx context.Context, subject string) (*models.Credential, error) {
	var cred models.Credential
	err := s.db.QueryRowContext(ctx, `
		SELECT subject, password_hash, created_at, updated_at
		FROM credentials WHERE subject = ?
	`, subject).Scan(&cred.Subject, &cred.PasswordHash, &cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cred, nil
}

// DeleteCredential removes a subject's password hash
func (s *SQLiteStorage) DeleteCredential(ctx context.Context, subject string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM credentials WHERE subject = ?", subject)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// SaveToken stores a token hash record
func (s *SQLiteStorage) SaveToken(ctx context.Context, record *models.TokenRecord) error {
	var expiresAt sql.NullTime
	if !record.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: record.ExpiresAt.UTC(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens (id, purpose, subject, token_hash, algorithm, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.Purpose, record.Subject, record.TokenHash, record.Algorithm, record.CreatedAt.UTC(), expiresAt)
	return err
}

// GetToken retrieves a token record by ID
func (s *SQLiteStorage) GetToken(ctx context.Context, id string) (*models.TokenRecord, error) {
	var record models.TokenRecord
	var subject sql.NullString
	var expiresAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, purpose, subject, token_hash, algorithm, created_at, expires_at
		FROM tokens WHERE id = ?
	`, id).Scan(&record.ID, &record.Purpose, &subject, &record.TokenHash, &record.Algorithm, &record.CreatedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	record.Subject = subject.String
	if expiresAt.Valid {
		record.ExpiresAt = expiresAt.Time
	}
	return &record, nil
}

// DeleteToken removes a token record
func (s *SQLiteStorage) DeleteToken(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tokens WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// PurgeExpiredTokens deletes token records whose expiry is not after now
func (s *SQLiteStorage) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tokens WHERE expires_at IS NOT NULL AND expires_at <= ?", now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AppendAudit adds an entry to the audit log
func (s *SQLiteStorage) AppendAudit(ctx context.Context, entry models.AuditEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (action, resource_type, resource_id, details, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, entry.Action, entry.ResourceType, entry.ResourceID, entry.Details, createdAt.UTC())
	return err
}

// ListAudit returns the most recent audit entries, newest first
func (s *SQLiteStorage) ListAudit(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, resource_type, resource_id, details, created_at
		FROM audit_log ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var entry models.AuditEntry
		var resourceID, details sql.NullString
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.ResourceType, &resourceID, &details, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.ResourceID = resourceID.String
		entry.Details = details.String
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// requireAffected maps a delete that matched nothing to ErrNotFound
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
