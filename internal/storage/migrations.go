package storage

// schema is applied in order on every Initialize; each statement is idempotent.
var schema = []string{
	// Vault configuration: key derivation salt and master password check envelope
	`CREATE TABLE IF NOT EXISTS config (
		key TEXT PRIMARY KEY,
		value BLOB
	)`,

	// Encrypted secrets, one AES-GCM envelope per field
	`CREATE TABLE IF NOT EXISTS secrets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		value TEXT NOT NULL,
		notes TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,

	// Password hash records
	`CREATE TABLE IF NOT EXISTS credentials (
		subject TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,

	// Token hashes; the plaintext token is never stored
	`CREATE TABLE IF NOT EXISTS tokens (
		id TEXT PRIMARY KEY,
		purpose TEXT NOT NULL,
		subject TEXT,
		token_hash TEXT NOT NULL,
		algorithm TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id TEXT,
		details TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_tokens_expires_at ON tokens(expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_tokens_subject ON tokens(subject)`,
}

// initializeSchema sets up the necessary database tables
func (s *SQLiteStorage) initializeSchema() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
