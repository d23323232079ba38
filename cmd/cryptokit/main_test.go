package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loganmanery/cryptokit/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"v.io/x/lib/cmdline"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	env := &cmdline.Env{
		Stdin:  strings.NewReader(stdin),
		Stdout: &stdout,
		Stderr: &stderr,
		Vars:   map[string]string{},
	}
	err := cmdline.ParseAndRun(newCmdRoot(), env, args)
	return stdout.String(), err
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

func TestHashCommands(t *testing.T) {
	out, err := run(t, "", "hash", "abc")
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad\n", out)

	out, err = run(t, "abc\n", "hash", "-alg=md5")
	require.NoError(t, err)
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72\n", out)

	_, err = run(t, "", "check-format", strings.Repeat("a", 64))
	assert.NoError(t, err)

	_, err = run(t, "", "check-format", "not-a-digest")
	assert.Equal(t, cmdline.ErrExitCode(1), err)

	_, err = run(t, "", "hash", "-alg=whirlpool", "abc")
	assert.ErrorIs(t, err, crypto.ErrUnsupportedAlgorithm)
}

func TestTokenCommands(t *testing.T) {
	out, err := run(t, "", "token")
	require.NoError(t, err)
	pair := lines(out)
	require.Len(t, pair, 2)

	_, err = run(t, "", "validate-token", pair[0], pair[1])
	assert.NoError(t, err)

	_, err = run(t, "", "validate-token", pair[0]+"x", pair[1])
	assert.Equal(t, cmdline.ErrExitCode(1), err)
}

func TestCipherCommands(t *testing.T) {
	key := strings.Repeat("0f", 32)

	out, err := run(t, "", "seal", "-key="+key, "-aad=ctx", "attack at dawn")
	require.NoError(t, err)
	envelope := strings.TrimSpace(out)

	out, err = run(t, "", "open", "-key="+key, "-aad=ctx", envelope)
	require.NoError(t, err)
	assert.Equal(t, "attack at dawn\n", out)

	_, err = run(t, "", "open", "-key="+key, "-aad=other", envelope)
	assert.ErrorIs(t, err, crypto.ErrAuthenticationFailed)

	out, err = run(t, "", "encrypt", "-key="+key[:32], "-cipher=aes-128-cbc", "hello")
	require.NoError(t, err)
	out, err = run(t, "", "decrypt", "-key="+key[:32], "-cipher=aes-128-cbc", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	_, err = run(t, "", "encrypt", "-key=zz", "hello")
	assert.ErrorIs(t, err, crypto.ErrKeyLengthMismatch)
}

func TestPasswordCommands(t *testing.T) {
	out, err := run(t, "hunter2\n", "password", "hash", "-cost=4")
	require.NoError(t, err)
	record := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(record, "$2a$04$"))

	out, err = run(t, "hunter2\n", "password", "verify", record)
	require.NoError(t, err)
	assert.Equal(t, "match\n", out)

	_, err = run(t, "wrong\n", "password", "verify", record)
	assert.Equal(t, cmdline.ErrExitCode(1), err)

	out, err = run(t, "", "password", "needs-rehash", "-cost=12", record)
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)
}

func TestVaultCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")

	_, err := run(t, "master\nmaster\n", "-db="+db, "vault", "init")
	require.NoError(t, err)

	_, err = run(t, "master\ns3cret\n", "-db="+db, "vault", "add", "github")
	require.NoError(t, err)

	out, err := run(t, "master\n", "-db="+db, "vault", "get", "github")
	require.NoError(t, err)
	assert.Equal(t, "s3cret\n", out)

	_, err = run(t, "wrong\n", "-db="+db, "vault", "get", "github")
	assert.Error(t, err)

	out, err = run(t, "master\n", "-db="+db, "vault", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "github")
}

func TestIssueAndRedeemToken(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")

	out, err := run(t, "", "-db="+db, "issue-token", "-subject=alice", "reset")
	require.NoError(t, err)
	issued := lines(out)
	require.Len(t, issued, 2)

	out, err = run(t, "", "-db="+db, "redeem-token", "-keep", issued[0], issued[1])
	require.NoError(t, err)
	assert.Equal(t, "valid\n", out)

	_, err = run(t, "", "-db="+db, "redeem-token", issued[0], issued[1])
	require.NoError(t, err)

	_, err = run(t, "", "-db="+db, "redeem-token", issued[0], issued[1])
	assert.Equal(t, cmdline.ErrExitCode(1), err)
}

func TestCostFlagsOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"threads above uint8", []string{"password", "hash", "-alg=argon2id", "-threads=256"}},
		{"memory above uint32", []string{"password", "hash", "-alg=argon2id", "-memory=4294967296"}},
		{"time above uint32", []string{"password", "needs-rehash", "-time=4294967297", "$2a$04$x"}},
		{"derive threads", []string{"derive", "-threads=257"}},
		{"derive zero bytes", []string{"derive", "-bytes=0"}},
		{"derive negative bytes", []string{"derive", "-bytes=-1"}},
		{"derive bytes above uint32", []string{"derive", "-bytes=4294967296"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "hunter2\n", tt.args...)
			assert.Equal(t, cmdline.ErrUsage, err)
		})
	}
}
