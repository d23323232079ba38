package main

import (
	"encoding/hex"
	"fmt"
	"math"

	"github.com/loganmanery/cryptokit/pkg/crypto"
	"github.com/pkg/errors"
	"v.io/x/lib/cmdline"
)

var (
	cipherFlag     string
	aadFlag        string
	saltFlag       string
	iterationsFlag int
	keyLengthFlag  int
)

// cipherKey decodes the hex -key flag
func cipherKey() ([]byte, error) {
	if keyFlag == "" {
		return nil, errors.New("-key is required")
	}
	key, err := hex.DecodeString(keyFlag)
	if err != nil {
		return nil, errors.Wrap(crypto.ErrKeyLengthMismatch, "key must be hex encoded")
	}
	return key, nil
}

func newCmdEncrypt() *cmdline.Command {
	cmd := &cmdline.Command{
		Runner:   withCrypto(runEncrypt),
		Name:     "encrypt",
		Short:    "Encrypt with AES-CBC and print base64(IV || ciphertext)",
		ArgsName: "[plaintext]",
	}
	cmd.Flags.StringVar(&keyFlag, "key", "", "Hex encoded key.")
	cmd.Flags.StringVar(&cipherFlag, "cipher", "", "aes-256-cbc, aes-192-cbc or aes-128-cbc. Defaults to the configured default cipher.")
	return cmd
}

func runEncrypt(env *cmdline.Env, svc crypto.CryptoService, args []string) error {
	key, err := cipherKey()
	if err != nil {
		return err
	}
	plaintext, err := inputArg(env, args, 0)
	if err != nil {
		return err
	}

	var envelope string
	if cipherFlag == "" {
		envelope, err = svc.EncryptDefault(plaintext, key)
	} else {
		var alg crypto.CipherAlgorithm
		if alg, err = crypto.ParseCipherAlgorithm(cipherFlag); err != nil {
			return err
		}
		envelope, err = svc.Encrypt(plaintext, key, alg)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, envelope)
	return nil
}

func newCmdDecrypt() *cmdline.Command {
	cmd := &cmdline.Command{
		Runner:   withCrypto(runDecrypt),
		Name:     "decrypt",
		Short:    "Decrypt an envelope produced by encrypt",
		ArgsName: "[envelope]",
	}
	cmd.Flags.StringVar(&keyFlag, "key", "", "Hex encoded key.")
	cmd.Flags.StringVar(&cipherFlag, "cipher", "", "Cipher the envelope was produced with. Defaults to the configured default cipher.")
	return cmd
}

func runDecrypt(env *cmdline.Env, svc crypto.CryptoService, args []string) error {
	key, err := cipherKey()
	if err != nil {
		return err
	}
	envelope, err := inputArg(env, args, 0)
	if err != nil {
		return err
	}

	var plaintext string
	if cipherFlag == "" {
		plaintext, err = svc.DecryptDefault(envelope, key)
	} else {
		var alg crypto.CipherAlgorithm
		if alg, err = crypto.ParseCipherAlgorithm(cipherFlag); err != nil {
			return err
		}
		plaintext, err = svc.Decrypt(envelope, key, alg)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, plaintext)
	return nil
}

func newCmdSeal() *cmdline.Command {
	cmd := &cmdline.Command{
		Runner:   withCrypto(runSeal),
		Name:     "seal",
		Short:    "Encrypt with AES-256-GCM and print base64(IV || tag || ciphertext)",
		ArgsName: "[plaintext]",
	}
	cmd.Flags.StringVar(&keyFlag, "key", "", "Hex encoded 32 byte key.")
	cmd.Flags.StringVar(&aadFlag, "aad", "", "Additional authenticated data.")
	return cmd
}

func runSeal(env *cmdline.Env, svc crypto.CryptoService, args []string) error {
	key, err := cipherKey()
	if err != nil {
		return err
	}
	plaintext, err := inputArg(env, args, 0)
	if err != nil {
		return err
	}
	envelope, err := svc.EncryptAuthenticated(plaintext, key, aadFlag)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, envelope)
	return nil
}

func newCmdOpen() *cmdline.Command {
	cmd := &cmdline.Command{
		Runner:   withCrypto(runOpen),
		Name:     "open",
		Short:    "Verify and decrypt an envelope produced by seal",
		ArgsName: "[envelope]",
	}
	cmd.Flags.StringVar(&keyFlag, "key", "", "Hex encoded 32 byte key.")
	cmd.Flags.StringVar(&aadFlag, "aad", "", "Additional authenticated data given to seal.")
	return cmd
}

func runOpen(env *cmdline.Env, svc crypto.CryptoService, args []string) error {
	key, err := cipherKey()
	if err != nil {
		return err
	}
	envelope, err := inputArg(env, args, 0)
	if err != nil {
		return err
	}
	plaintext, err := svc.DecryptAuthenticated(envelope, key, aadFlag)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, plaintext)
	return nil
}

func newCmdDerive() *cmdline.Command {
	cmd := &cmdline.Command{
		Runner: withCrypto(runDerive),
		Name:   "derive",
		Short:  "Derive a hex key from a password with Argon2id",
		Long:   "Prints the key. When -salt is empty a random 16 byte salt is generated and printed on a second line.",
	}
	cmd.Flags.StringVar(&saltFlag, "salt", "", "Hex encoded salt of at least 16 bytes.")
	cmd.Flags.IntVar(&bytesFlag, "bytes", 32, "Key length in bytes.")
	addCostFlags(cmd)
	return cmd
}

func runDerive(env *cmdline.Env, svc crypto.CryptoService, args []string) error {
	if bytesFlag <= 0 || int64(bytesFlag) > math.MaxUint32 {
		return env.UsageErrorf("-bytes must be between 1 and %d", uint32(math.MaxUint32))
	}
	if err := checkArgon2Flags(env); err != nil {
		return err
	}

	var (
		salt []byte
		err  error
	)
	generated := saltFlag == ""
	if generated {
		if salt, err = svc.RandomBytes(16); err != nil {
			return err
		}
	} else if salt, err = hex.DecodeString(saltFlag); err != nil {
		return errors.Wrap(crypto.ErrInvalidParameters, "salt must be hex encoded")
	}

	password, err := readSecret(env, "Password: ")
	if err != nil {
		return err
	}

	params := svc.Config().KDF
	params.KeyLength = uint32(bytesFlag)
	if memoryFlag != 0 {
		params.Memory = uint32(memoryFlag)
	}
	if timeFlag != 0 {
		params.Time = uint32(timeFlag)
	}
	if threadsFlag != 0 {
		params.Threads = uint8(threadsFlag)
	}

	key, err := svc.DeriveKey(password, salt, params)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, hex.EncodeToString(key))
	if generated {
		fmt.Fprintln(env.Stdout, hex.EncodeToString(salt))
	}
	return nil
}

func newCmdPBKDF2() *cmdline.Command {
	cmd := &cmdline.Command{
		Runner: withCrypto(runPBKDF2),
		Name:   "pbkdf2",
		Short:  "Derive a hex key from a password with PBKDF2",
	}
	cmd.Flags.StringVar(&hashAlgFlag, "alg", "sha256", "Digest algorithm.")
	cmd.Flags.StringVar(&saltFlag, "salt", "", "Salt.")
	cmd.Flags.IntVar(&iterationsFlag, "iterations", 600000, "Iteration count.")
	cmd.Flags.IntVar(&keyLengthFlag, "length", 64, "Output length in hex characters.")
	return cmd
}

func runPBKDF2(env *cmdline.Env, svc crypto.CryptoService, args []string) error {
	alg, err := crypto.ParseHashAlgorithm(hashAlgFlag)
	if err != nil {
		return err
	}
	password, err := readSecret(env, "Password: ")
	if err != nil {
		return err
	}
	key, err := svc.PBKDF2(password, saltFlag, iterationsFlag, keyLengthFlag, alg)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, key)
	return nil
}
