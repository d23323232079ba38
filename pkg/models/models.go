package models

import "time"

// TokenRecord is the stored half of an issued token. The plaintext token is never persisted.
type TokenRecord struct {
	ID        string    `json:"id"`
	Purpose   string    `json:"purpose"`
	Subject   string    `json:"subject"`
	TokenHash string    `json:"token_hash"`
	Algorithm string    `json:"algorithm"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the record has an expiry that is not after now
func (r TokenRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// Credential is a subject's password hash record
type Credential struct {
	Subject      string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SecretEntry represents a stored secret
type SecretEntry struct {
	ID        int64
	Name      string
	Value     string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AuditEntry records a security relevant action
type AuditEntry struct {
	ID           int64
	Action       string
	ResourceType string
	ResourceID   string
	Details      string
	CreatedAt    time.Time
}
