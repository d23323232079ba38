package manager

import (
	"context"
	"strings"

	"github.com/loganmanery/cryptokit/internal/storage"
	"github.com/loganmanery/cryptokit/pkg/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SetPassword hashes password with the configured algorithm and stores it for subject
func (m *Manager) SetPassword(ctx context.Context, subject, password string) error {
	if subject == "" {
		return errors.Wrap(crypto.ErrInvalidParameters, "subject must not be empty")
	}

	record, err := m.crypto.HashPassword(password, m.passwordAlg, crypto.PasswordCost{})
	if err != nil {
		return err
	}
	if err := m.storage.SaveCredential(ctx, subject, record); err != nil {
		return err
	}

	m.audit(ctx, "set_password", "credential", subject, m.passwordAlg.String())
	return nil
}

// Authenticate checks password for subject. Unknown subjects are (false, nil). On success a
// record produced with stale parameters is replaced by a fresh hash.
func (m *Manager) Authenticate(ctx context.Context, subject, password string) (bool, error) {
	cred, err := m.storage.GetCredential(ctx, subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	ok, err := m.crypto.VerifyPassword(password, cred.PasswordHash)
	if err != nil {
		return false, err
	}
	if !ok {
		m.audit(ctx, "auth_failed", "credential", subject, "")
		return false, nil
	}

	stale, err := m.needsRehash(cred.PasswordHash)
	if err != nil {
		m.logger.Warn("could not inspect credential parameters", zap.String("subject", subject), zap.Error(err))
		return true, nil
	}
	if stale {
		if err := m.SetPassword(ctx, subject, password); err != nil {
			m.logger.Warn("credential rehash failed", zap.String("subject", subject), zap.Error(err))
		} else {
			m.logger.Info("credential rehashed", zap.String("subject", subject))
		}
	}

	return true, nil
}

// needsRehash reports whether record should be replaced, either because its parameters
// are stale or because it uses a different algorithm than the manager's
func (m *Manager) needsRehash(record string) (bool, error) {
	stale, err := m.crypto.NeedsRehash(record, crypto.PasswordCost{})
	if err != nil || stale {
		return stale, err
	}

	prefix := "$2"
	if m.passwordAlg == crypto.Argon2id {
		prefix = "$argon2id$"
	}
	return !strings.HasPrefix(record, prefix), nil
}

// DeletePassword removes a subject's credential
func (m *Manager) DeletePassword(ctx context.Context, subject string) error {
	if err := m.storage.DeleteCredential(ctx, subject); err != nil {
		return err
	}
	m.audit(ctx, "delete", "credential", subject, "")
	return nil
}
