package manager

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/loganmanery/cryptokit/internal/storage"
	"github.com/loganmanery/cryptokit/pkg/crypto"
	"github.com/loganmanery/cryptokit/pkg/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// IssuedToken is handed to the caller once; only the token's hash is kept.
type IssuedToken struct {
	ID        string
	Token     string
	ExpiresAt time.Time
}

// IssueToken generates a random token for subject and stores its hash. A non-positive
// ttl issues a token that does not expire.
func (m *Manager) IssueToken(ctx context.Context, purpose, subject string, ttl time.Duration) (IssuedToken, error) {
	if purpose == "" {
		return IssuedToken{}, errors.Wrap(crypto.ErrInvalidParameters, "token purpose must not be empty")
	}

	alg := m.crypto.Config().DefaultHash
	pair, err := m.crypto.GenerateAndHashToken(m.tokenBytes, alg)
	if err != nil {
		return IssuedToken{}, err
	}

	now := m.now().UTC()
	record := &models.TokenRecord{
		ID:        uuid.NewString(),
		Purpose:   purpose,
		Subject:   subject,
		TokenHash: pair.Hash,
		Algorithm: alg.String(),
		CreatedAt: now,
	}
	if ttl > 0 {
		record.ExpiresAt = now.Add(ttl)
	}

	if err := m.tokens.SaveToken(ctx, record); err != nil {
		return IssuedToken{}, errors.Wrap(err, "failed to save token")
	}

	m.audit(ctx, "issue", "token", record.ID, purpose)
	m.logger.Info("token issued", zap.String("id", record.ID), zap.String("purpose", purpose))

	return IssuedToken{ID: record.ID, Token: pair.Token, ExpiresAt: record.ExpiresAt}, nil
}

// ValidateToken reports whether token matches the stored record id. Unknown, expired and
// corrupt records are (false, nil); only storage failures are errors.
func (m *Manager) ValidateToken(ctx context.Context, id, token string) (bool, error) {
	_, ok, err := m.checkToken(ctx, id, token)
	return ok, err
}

func (m *Manager) checkToken(ctx context.Context, id, token string) (*models.TokenRecord, bool, error) {
	record, err := m.tokens.GetToken(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	alg, err := crypto.ParseHashAlgorithm(record.Algorithm)
	if err != nil {
		m.logger.Warn("token record has unknown algorithm", zap.String("id", id))
		return record, false, nil
	}

	// Never compare against a stored value that is not a digest of the expected shape
	if !m.crypto.IsValidHashFormat(record.TokenHash, alg) {
		m.logger.Warn("token record has malformed hash", zap.String("id", id))
		return record, false, nil
	}

	if record.Expired(m.now()) {
		return record, false, nil
	}

	return record, m.crypto.ValidateToken(token, record.TokenHash, alg), nil
}

// ConsumeToken validates token and deletes its record so it cannot be used again
func (m *Manager) ConsumeToken(ctx context.Context, id, token string) (bool, error) {
	record, ok, err := m.checkToken(ctx, id, token)
	if err != nil || !ok {
		return false, err
	}

	if err := m.tokens.DeleteToken(ctx, id); err != nil {
		// A concurrent consumer won
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	m.audit(ctx, "consume", "token", id, record.Purpose)
	return true, nil
}

// RevokeToken deletes a token record
func (m *Manager) RevokeToken(ctx context.Context, id string) error {
	if err := m.tokens.DeleteToken(ctx, id); err != nil {
		return err
	}
	m.audit(ctx, "revoke", "token", id, "")
	return nil
}

// PurgeExpiredTokens removes expired token records from stores that do not expire them
func (m *Manager) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	n, err := m.tokens.PurgeExpiredTokens(ctx, m.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info("purged expired tokens", zap.Int64("count", n))
	}
	return n, nil
}
