package main

import (
	"fmt"
	"math"

	"github.com/loganmanery/cryptokit/pkg/crypto"
	"v.io/x/lib/cmdline"
)

var (
	passwordAlgFlag string
	costFlag        int
	memoryFlag      uint
	timeFlag        uint
	threadsFlag     uint
)

func newCmdPassword() *cmdline.Command {
	return &cmdline.Command{
		Name:  "password",
		Short: "Hash and verify passwords with bcrypt or Argon2id",
		Children: []*cmdline.Command{
			newCmdPasswordHash(),
			newCmdPasswordVerify(),
			newCmdPasswordNeedsRehash(),
		},
	}
}

func addCostFlags(cmd *cmdline.Command) {
	cmd.Flags.IntVar(&costFlag, "cost", 0, "bcrypt cost. Zero uses the default.")
	cmd.Flags.UintVar(&memoryFlag, "memory", 0, "Argon2id memory in KiB. Zero uses the default.")
	cmd.Flags.UintVar(&timeFlag, "time", 0, "Argon2id iterations. Zero uses the default.")
	cmd.Flags.UintVar(&threadsFlag, "threads", 0, "Argon2id parallelism. Zero uses the default.")
}

// checkArgon2Flags rejects -memory, -time and -threads values that do not fit the Argon2id parameters
func checkArgon2Flags(env *cmdline.Env) error {
	if memoryFlag > math.MaxUint32 {
		return env.UsageErrorf("-memory must be at most %d", uint32(math.MaxUint32))
	}
	if timeFlag > math.MaxUint32 {
		return env.UsageErrorf("-time must be at most %d", uint32(math.MaxUint32))
	}
	if threadsFlag > math.MaxUint8 {
		return env.UsageErrorf("-threads must be at most %d", math.MaxUint8)
	}
	return nil
}

// passwordCost builds a cost from the flags, leaving unset sections to the service defaults
func passwordCost(env *cmdline.Env, svc crypto.CryptoService) (crypto.PasswordCost, error) {
	if err := checkArgon2Flags(env); err != nil {
		return crypto.PasswordCost{}, err
	}
	cost := crypto.PasswordCost{Bcrypt: costFlag}
	if memoryFlag != 0 || timeFlag != 0 || threadsFlag != 0 {
		params := svc.Config().PasswordCost.Argon2
		if memoryFlag != 0 {
			params.Memory = uint32(memoryFlag)
		}
		if timeFlag != 0 {
			params.Time = uint32(timeFlag)
		}
		if threadsFlag != 0 {
			params.Threads = uint8(threadsFlag)
		}
		cost.Argon2 = params
	}
	return cost, nil
}

func newCmdPasswordHash() *cmdline.Command {
	cmd := &cmdline.Command{
		Runner: withCrypto(runPasswordHash),
		Name:   "hash",
		Short:  "Hash a password read from the terminal or stdin",
	}
	cmd.Flags.StringVar(&passwordAlgFlag, "alg", "bcrypt", "Password algorithm: bcrypt or argon2id.")
	addCostFlags(cmd)
	return cmd
}

func runPasswordHash(env *cmdline.Env, svc crypto.CryptoService, args []string) error {
	alg, err := crypto.ParsePasswordAlgorithm(passwordAlgFlag)
	if err != nil {
		return err
	}
	cost, err := passwordCost(env, svc)
	if err != nil {
		return err
	}
	password, err := readSecret(env, "Password: ")
	if err != nil {
		return err
	}
	record, err := svc.HashPassword(password, alg, cost)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, record)
	return nil
}

func newCmdPasswordVerify() *cmdline.Command {
	return &cmdline.Command{
		Runner:   withCrypto(runPasswordVerify),
		Name:     "verify",
		Short:    "Verify a password against a hash record",
		ArgsName: "<record>",
	}
}

func runPasswordVerify(env *cmdline.Env, svc crypto.CryptoService, args []string) error {
	if len(args) != 1 {
		return env.UsageErrorf("verify requires a hash record")
	}
	password, err := readSecret(env, "Password: ")
	if err != nil {
		return err
	}
	ok, err := svc.VerifyPassword(password, args[0])
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(env.Stdout, "mismatch")
		return cmdline.ErrExitCode(1)
	}
	fmt.Fprintln(env.Stdout, "match")
	return nil
}

func newCmdPasswordNeedsRehash() *cmdline.Command {
	cmd := &cmdline.Command{
		Runner:   withCrypto(runPasswordNeedsRehash),
		Name:     "needs-rehash",
		Short:    "Report whether a hash record was made with other parameters",
		ArgsName: "<record>",
	}
	addCostFlags(cmd)
	return cmd
}

func runPasswordNeedsRehash(env *cmdline.Env, svc crypto.CryptoService, args []string) error {
	if len(args) != 1 {
		return env.UsageErrorf("needs-rehash requires a hash record")
	}
	cost, err := passwordCost(env, svc)
	if err != nil {
		return err
	}
	stale, err := svc.NeedsRehash(args[0], cost)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, stale)
	return nil
}
