package manager

import (
	"sync"
	"time"

	"github.com/loganmanery/cryptokit/internal/storage"
	"github.com/loganmanery/cryptokit/pkg/crypto"
	"github.com/loganmanery/cryptokit/pkg/generator"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrLocked is returned by vault operations while no master key is loaded
	ErrLocked = errors.New("vault is locked")
	// ErrInvalidMasterPassword is returned when the master password does not open the vault
	ErrInvalidMasterPassword = errors.New("invalid master password")
	// ErrVaultExists is returned when a master password has already been created
	ErrVaultExists = errors.New("vault already initialized")
	// ErrVaultNotInitialized is returned when unlocking a vault that has no master password
	ErrVaultNotInitialized = errors.New("vault not initialized")
)

// Manager ties the crypto service to persistent storage: vault secrets, password
// credentials and single-use tokens.
type Manager struct {
	storage storage.StorageService
	tokens  storage.TokenStore
	crypto  crypto.CryptoService
	logger  *zap.Logger
	now     func() time.Time

	passwordAlg crypto.PasswordAlgorithm
	tokenBytes  int

	mu           sync.RWMutex
	masterKey    []byte
	unlocked     bool
	lastActivity time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithTokenStore keeps tokens somewhere other than the main storage, e.g. redis
func WithTokenStore(tokens storage.TokenStore) Option {
	return func(m *Manager) {
		if tokens != nil {
			m.tokens = tokens
		}
	}
}

// WithCryptoService sets the crypto service
func WithCryptoService(svc crypto.CryptoService) Option {
	return func(m *Manager) {
		if svc != nil {
			m.crypto = svc
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock sets the time source used for token expiry
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithPasswordAlgorithm selects the algorithm for new credential records
func WithPasswordAlgorithm(alg crypto.PasswordAlgorithm) Option {
	return func(m *Manager) {
		m.passwordAlg = alg
	}
}

// NewManager creates a manager over store. The store must already be initialized.
func NewManager(store storage.StorageService, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("storage is required")
	}

	m := &Manager{
		storage:     store,
		tokens:      store,
		logger:      zap.NewNop(),
		now:         time.Now,
		passwordAlg: crypto.Bcrypt,
		tokenBytes:  32,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.crypto == nil {
		svc, err := crypto.NewCryptoService(crypto.WithLogger(m.logger))
		if err != nil {
			return nil, err
		}
		m.crypto = svc
	}
	m.lastActivity = m.now()

	return m, nil
}

// Crypto returns the crypto service the manager uses
func (m *Manager) Crypto() crypto.CryptoService {
	return m.crypto
}

// GeneratePassword creates a random password from the crypto service's random source
func (m *Manager) GeneratePassword(options generator.PasswordOptions) (string, error) {
	m.updateLastActivity()
	return generator.New(m.crypto).GeneratePassword(options)
}

// Close locks the vault and closes the storage
func (m *Manager) Close() error {
	m.Lock()
	return m.storage.Close()
}

// updateLastActivity updates the last activity timestamp
func (m *Manager) updateLastActivity() {
	m.mu.Lock()
	m.lastActivity = m.now()
	m.mu.Unlock()
}

// LastActivity returns the last activity timestamp
func (m *Manager) LastActivity() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastActivity
}
