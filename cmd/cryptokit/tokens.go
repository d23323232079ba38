package main

import (
	"context"
	"fmt"
	"time"

	"github.com/loganmanery/cryptokit/pkg/manager"
	"v.io/x/lib/cmdline"
)

var (
	subjectFlag string
	ttlFlag     time.Duration
	keepFlag    bool
)

func newCmdIssueToken() *cmdline.Command {
	cmd := &cmdline.Command{
		Runner:   withManager(runIssueToken),
		Name:     "issue-token",
		Short:    "Issue a token and store its digest",
		ArgsName: "<purpose>",
		Long:     "Prints the token id and the token. Only the digest is stored; the token cannot be shown again.",
	}
	cmd.Flags.StringVar(&subjectFlag, "subject", "", "Subject the token is issued to.")
	cmd.Flags.DurationVar(&ttlFlag, "ttl", time.Hour, "Token lifetime. Zero issues a token that does not expire.")
	return cmd
}

func runIssueToken(ctx context.Context, env *cmdline.Env, m *manager.Manager, args []string) error {
	if len(args) != 1 {
		return env.UsageErrorf("issue-token requires a purpose")
	}
	issued, err := m.IssueToken(ctx, args[0], subjectFlag, ttlFlag)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, issued.ID)
	fmt.Fprintln(env.Stdout, issued.Token)
	if !issued.ExpiresAt.IsZero() {
		fmt.Fprintf(env.Stderr, "Expires %s\n", issued.ExpiresAt.Local().Format(time.RFC3339))
	}
	return nil
}

func newCmdRedeemToken() *cmdline.Command {
	cmd := &cmdline.Command{
		Runner:   withManager(runRedeemToken),
		Name:     "redeem-token",
		Short:    "Check a token and, unless -keep is set, consume it",
		ArgsName: "<id> [token]",
	}
	cmd.Flags.BoolVar(&keepFlag, "keep", false, "Validate without consuming the token.")
	return cmd
}

func runRedeemToken(ctx context.Context, env *cmdline.Env, m *manager.Manager, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return env.UsageErrorf("redeem-token requires a token id")
	}
	token, err := inputArg(env, args, 1)
	if err != nil {
		return err
	}

	var ok bool
	if keepFlag {
		ok, err = m.ValidateToken(ctx, args[0], token)
	} else {
		ok, err = m.ConsumeToken(ctx, args[0], token)
	}
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(env.Stdout, "invalid")
		return cmdline.ErrExitCode(1)
	}
	fmt.Fprintln(env.Stdout, "valid")
	return nil
}
