package main

import (
	"encoding/hex"
	"fmt"

	"github.com/loganmanery/cryptokit/pkg/crypto"
	"github.com/loganmanery/cryptokit/pkg/generator"
	"v.io/x/lib/cmdline"
)

var (
	hashAlgFlag      string
	keyFlag          string
	bytesFlag        int
	lengthFlag       int
	noSymbolsFlag    bool
	allowSimilarFlag bool
	noAmbiguousFlag  bool
	hexFlag          bool
)

func newCmdHash() *cmdline.Command {
	cmd := &cmdline.Command{
		Runner:   withCrypto(runHash),
		Name:     "hash",
		Short:    "Print the hex digest of the input",
		ArgsName: "[input]",
		Long:     "Hashes the argument, or one line of stdin when no argument is given.",
	}
	cmd.Flags.StringVar(&hashAlgFlag, "alg", "sha256", "Digest algorithm, e.g. sha256, sha512, sha3-256, blake2b-256.")
	return cmd
}

func runHash(env *cmdline.Env, svc crypto.CryptoService, args []string) error {
	alg, err := crypto.ParseHashAlgorithm(hashAlgFlag)
	if err != nil {
		return err
	}
	input, err := inputArg(env, args, 0)
	if err != nil {
		return err
	}
	digest, err := svc.Hash(input, alg)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, digest)
	return nil
}

func newCmdCheckFormat() *cmdline.Command {
	cmd := &cmdline.Command{
		Runner:   withCrypto(runCheckFormat),
		Name:     "check-format",
		Short:    "Check whether a string has the shape of a digest",
		ArgsName: "<candidate>",
	}
	cmd.Flags.StringVar(&hashAlgFlag, "alg", "sha256", "Digest algorithm.")
	return cmd
}

func runCheckFormat(env *cmdline.Env, svc crypto.CryptoService, args []string) error {
	if len(args) != 1 {
		return env.UsageErrorf("check-format requires exactly one argument")
	}
	alg, err := crypto.ParseHashAlgorithm(hashAlgFlag)
	if err != nil {
		return err
	}
	if !svc.IsValidHashFormat(args[0], alg) {
		fmt.Fprintln(env.Stdout, "invalid")
		return cmdline.ErrExitCode(1)
	}
	fmt.Fprintln(env.Stdout, "valid")
	return nil
}

func newCmdHMAC() *cmdline.Command {
	cmd := &cmdline.Command{
		Runner:   withCrypto(runHMAC),
		Name:     "hmac",
		Short:    "Print the hex HMAC of the input",
		ArgsName: "[input]",
	}
	cmd.Flags.StringVar(&hashAlgFlag, "alg", "sha256", "Digest algorithm.")
	cmd.Flags.StringVar(&keyFlag, "key", "", "HMAC key. Prompted for when empty.")
	return cmd
}

func runHMAC(env *cmdline.Env, svc crypto.CryptoService, args []string) error {
	alg, err := crypto.ParseHashAlgorithm(hashAlgFlag)
	if err != nil {
		return err
	}
	key := keyFlag
	if key == "" {
		if key, err = readSecret(env, "Key: "); err != nil {
			return err
		}
	}
	input, err := inputArg(env, args, 0)
	if err != nil {
		return err
	}
	mac, err := svc.HMAC(input, key, alg)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, mac)
	return nil
}

func newCmdToken() *cmdline.Command {
	cmd := &cmdline.Command{
		Runner: withCrypto(runToken),
		Name:   "token",
		Short:  "Generate a random token and its digest",
		Long:   "Prints the token on the first line and its digest on the second. Store only the digest.",
	}
	cmd.Flags.StringVar(&hashAlgFlag, "alg", "sha256", "Digest algorithm.")
	cmd.Flags.IntVar(&bytesFlag, "bytes", 32, "Random bytes in the token.")
	return cmd
}

func runToken(env *cmdline.Env, svc crypto.CryptoService, args []string) error {
	alg, err := crypto.ParseHashAlgorithm(hashAlgFlag)
	if err != nil {
		return err
	}
	pair, err := svc.GenerateAndHashToken(bytesFlag, alg)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, pair.Token)
	fmt.Fprintln(env.Stdout, pair.Hash)
	return nil
}

func newCmdValidateToken() *cmdline.Command {
	cmd := &cmdline.Command{
		Runner:   withCrypto(runValidateToken),
		Name:     "validate-token",
		Short:    "Check a token against a stored digest",
		ArgsName: "<token> <digest>",
	}
	cmd.Flags.StringVar(&hashAlgFlag, "alg", "sha256", "Digest algorithm.")
	return cmd
}

func runValidateToken(env *cmdline.Env, svc crypto.CryptoService, args []string) error {
	if len(args) != 2 {
		return env.UsageErrorf("validate-token requires a token and a digest")
	}
	alg, err := crypto.ParseHashAlgorithm(hashAlgFlag)
	if err != nil {
		return err
	}
	if !svc.IsValidHashFormat(args[1], alg) {
		return env.UsageErrorf("%q is not a %s digest", args[1], alg)
	}
	if !svc.ValidateToken(args[0], args[1], alg) {
		fmt.Fprintln(env.Stdout, "invalid")
		return cmdline.ErrExitCode(1)
	}
	fmt.Fprintln(env.Stdout, "valid")
	return nil
}

func newCmdRandom() *cmdline.Command {
	cmd := &cmdline.Command{
		Runner: withCrypto(runRandom),
		Name:   "random",
		Short:  "Print random bytes as hex",
	}
	cmd.Flags.IntVar(&bytesFlag, "bytes", 32, "Number of random bytes.")
	return cmd
}

func runRandom(env *cmdline.Env, svc crypto.CryptoService, args []string) error {
	b, err := svc.RandomBytes(bytesFlag)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, hex.EncodeToString(b))
	return nil
}

func newCmdGenerate() *cmdline.Command {
	cmd := &cmdline.Command{
		Runner: withCrypto(runGenerate),
		Name:   "generate",
		Short:  "Generate a random password",
	}
	cmd.Flags.IntVar(&lengthFlag, "length", 16, "Password length.")
	cmd.Flags.BoolVar(&noSymbolsFlag, "no-symbols", false, "Leave out symbols.")
	cmd.Flags.BoolVar(&allowSimilarFlag, "allow-similar", false, "Allow look-alike characters such as l, 1 and O.")
	cmd.Flags.BoolVar(&noAmbiguousFlag, "no-ambiguous", false, "Leave out brackets, quotes and other ambiguous symbols.")
	cmd.Flags.BoolVar(&hexFlag, "hex", false, "Print a hex string of -length characters instead.")
	return cmd
}

func runGenerate(env *cmdline.Env, svc crypto.CryptoService, args []string) error {
	if hexFlag {
		s, err := svc.GenerateRandomString(lengthFlag)
		if err != nil {
			return err
		}
		fmt.Fprintln(env.Stdout, s)
		return nil
	}

	options := generator.DefaultOptions()
	options.Length = lengthFlag
	options.IncludeSymbols = !noSymbolsFlag
	options.ExcludeSimilar = !allowSimilarFlag
	options.ExcludeAmbiguous = noAmbiguousFlag

	pw, err := generator.New(svc).GeneratePassword(options)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, pw)
	return nil
}
