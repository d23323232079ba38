package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/loganmanery/cryptokit/internal/storage"
	"github.com/loganmanery/cryptokit/pkg/crypto"
	"github.com/loganmanery/cryptokit/pkg/manager"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"v.io/x/lib/cmdline"
)

const (
	dbFileName = "cryptokit.db"

	envDB            = "CRYPTOKIT_DB"
	envRedisAddr     = "CRYPTOKIT_REDIS_ADDR"
	envDefaultCipher = "CRYPTOKIT_DEFAULT_CIPHER"
)

var (
	dbFlag            string
	redisAddrFlag     string
	defaultCipherFlag string
	verboseFlag       bool
)

func newCmdRoot() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "cryptokit",
		Short:    "Hash, encrypt, derive keys and manage an encrypted vault",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdHash(),
			newCmdCheckFormat(),
			newCmdHMAC(),
			newCmdToken(),
			newCmdValidateToken(),
			newCmdPassword(),
			newCmdEncrypt(),
			newCmdDecrypt(),
			newCmdSeal(),
			newCmdOpen(),
			newCmdDerive(),
			newCmdPBKDF2(),
			newCmdRandom(),
			newCmdGenerate(),
			newCmdVault(),
			newCmdIssueToken(),
			newCmdRedeemToken(),
		},
	}
	cmd.Flags.StringVar(&dbFlag, "db", "", "Path to the SQLite database. Defaults to $"+envDB+" or ~/.cryptokit/"+dbFileName+".")
	cmd.Flags.StringVar(&redisAddrFlag, "redis", "", "Redis address for the token store. Defaults to $"+envRedisAddr+".")
	cmd.Flags.StringVar(&defaultCipherFlag, "default-cipher", "", "Cipher used by encrypt and decrypt when -cipher is not given. Defaults to $"+envDefaultCipher+" or aes-256-cbc.")
	cmd.Flags.BoolVar(&verboseFlag, "verbose", false, "Enable debug logging.")
	return cmd
}

// flagOrEnv returns flag when set and the environment variable otherwise
func flagOrEnv(flag, env string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(env)
}

func newLogger() (*zap.Logger, error) {
	if verboseFlag {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	return cfg.Build()
}

func newCryptoService(logger *zap.Logger) (crypto.CryptoService, error) {
	cfg := crypto.DefaultConfig()
	if name := flagOrEnv(defaultCipherFlag, envDefaultCipher); name != "" {
		alg, err := crypto.ParseCipherAlgorithm(name)
		if err != nil {
			return nil, err
		}
		cfg.DefaultCipher = alg
	}
	return crypto.NewCryptoService(crypto.WithConfig(cfg), crypto.WithLogger(logger))
}

// withCrypto runs fn with a crypto service built from the global flags
func withCrypto(fn func(env *cmdline.Env, svc crypto.CryptoService, args []string) error) cmdline.RunnerFunc {
	return func(env *cmdline.Env, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		svc, err := newCryptoService(logger)
		if err != nil {
			return err
		}
		return fn(env, svc, args)
	}
}

func dbPath() (string, error) {
	if path := flagOrEnv(dbFlag, envDB); path != "" {
		return path, nil
	}

	// Get home directory for storing the database
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "error getting home directory")
	}

	configDir := filepath.Join(homeDir, ".cryptokit")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", errors.Wrap(err, "error creating config directory")
	}
	return filepath.Join(configDir, dbFileName), nil
}

// withManager runs fn with a manager over the configured storage
func withManager(fn func(ctx context.Context, env *cmdline.Env, m *manager.Manager, args []string) error) cmdline.RunnerFunc {
	return func(env *cmdline.Env, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		svc, err := newCryptoService(logger)
		if err != nil {
			return err
		}

		path, err := dbPath()
		if err != nil {
			return err
		}
		store := storage.NewSQLiteStorage(path, logger)
		if err := store.Initialize(); err != nil {
			return errors.Wrap(err, "failed to initialize storage")
		}

		opts := []manager.Option{
			manager.WithCryptoService(svc),
			manager.WithLogger(logger),
		}
		if addr := flagOrEnv(redisAddrFlag, envRedisAddr); addr != "" {
			client := redis.NewClient(&redis.Options{Addr: addr})
			defer func() { _ = client.Close() }()
			opts = append(opts, manager.WithTokenStore(storage.NewRedisTokenStore(client, "")))
		}

		m, err := manager.NewManager(store, opts...)
		if err != nil {
			_ = store.Close()
			return err
		}
		defer func() { _ = m.Close() }()

		return fn(context.Background(), env, m, args)
	}
}

func main() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(newCmdRoot())
}
