package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/loganmanery/cryptokit/pkg/manager"
	"v.io/x/lib/cmdline"
)

var notesFlag string

func newCmdVault() *cmdline.Command {
	return &cmdline.Command{
		Name:  "vault",
		Short: "Manage secrets encrypted under a master password",
		Children: []*cmdline.Command{
			{
				Runner: withManager(runVaultInit),
				Name:   "init",
				Short:  "Create the master password",
			},
			newCmdVaultAdd(),
			{
				Runner:   withManager(unlocked(runVaultGet)),
				Name:     "get",
				Short:    "Print a secret",
				ArgsName: "<name>",
			},
			{
				Runner: withManager(unlocked(runVaultList)),
				Name:   "list",
				Short:  "List secret names",
			},
			{
				Runner:   withManager(unlocked(runVaultRemove)),
				Name:     "rm",
				Short:    "Delete a secret",
				ArgsName: "<name>",
			},
			{
				Runner:   withManager(unlocked(runVaultExport)),
				Name:     "export",
				Short:    "Write every secret to an encrypted backup file",
				ArgsName: "<file>",
			},
			{
				Runner:   withManager(unlocked(runVaultImport)),
				Name:     "import",
				Short:    "Import secrets from a backup file",
				ArgsName: "<file>",
				Long:     "Prompts for the master password of the vault that wrote the backup.",
			},
		},
	}
}

type managerFunc func(ctx context.Context, env *cmdline.Env, m *manager.Manager, args []string) error

// unlocked prompts for the master password before running fn
func unlocked(fn managerFunc) managerFunc {
	return func(ctx context.Context, env *cmdline.Env, m *manager.Manager, args []string) error {
		password, err := readSecret(env, "Master password: ")
		if err != nil {
			return err
		}
		if err := m.UnlockVault(ctx, password); err != nil {
			return err
		}
		defer m.Lock()
		return fn(ctx, env, m, args)
	}
}

func runVaultInit(ctx context.Context, env *cmdline.Env, m *manager.Manager, args []string) error {
	password, err := readConfirmedSecret(env, "New master password: ")
	if err != nil {
		return err
	}
	if err := m.CreateMasterPassword(ctx, password); err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, "Vault created.")
	return nil
}

func newCmdVaultAdd() *cmdline.Command {
	cmd := &cmdline.Command{
		Runner:   withManager(unlocked(runVaultAdd)),
		Name:     "add",
		Short:    "Store a secret, replacing any previous value",
		ArgsName: "<name>",
	}
	cmd.Flags.StringVar(&notesFlag, "notes", "", "Notes stored encrypted with the secret.")
	return cmd
}

func runVaultAdd(ctx context.Context, env *cmdline.Env, m *manager.Manager, args []string) error {
	if len(args) != 1 {
		return env.UsageErrorf("add requires a secret name")
	}
	value, err := readSecret(env, "Secret: ")
	if err != nil {
		return err
	}
	if _, err := m.AddSecret(ctx, args[0], value, notesFlag); err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "Stored %s.\n", args[0])
	return nil
}

func runVaultGet(ctx context.Context, env *cmdline.Env, m *manager.Manager, args []string) error {
	if len(args) != 1 {
		return env.UsageErrorf("get requires a secret name")
	}
	entry, err := m.GetSecret(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, entry.Value)
	if entry.Notes != "" {
		fmt.Fprintf(env.Stderr, "Notes: %s\n", entry.Notes)
	}
	return nil
}

func runVaultList(ctx context.Context, env *cmdline.Env, m *manager.Manager, args []string) error {
	entries, err := m.ListSecrets(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(env.Stdout, "No secrets stored.")
		return nil
	}

	w := tabwriter.NewWriter(env.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tUPDATED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\n", e.Name, e.UpdatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func runVaultRemove(ctx context.Context, env *cmdline.Env, m *manager.Manager, args []string) error {
	if len(args) != 1 {
		return env.UsageErrorf("rm requires a secret name")
	}
	return m.DeleteSecret(ctx, args[0])
}

func runVaultExport(ctx context.Context, env *cmdline.Env, m *manager.Manager, args []string) error {
	if len(args) != 1 {
		return env.UsageErrorf("export requires a file name")
	}
	if err := m.ExportVault(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "Vault exported to %s.\n", args[0])
	return nil
}

func runVaultImport(ctx context.Context, env *cmdline.Env, m *manager.Manager, args []string) error {
	if len(args) != 1 {
		return env.UsageErrorf("import requires a file name")
	}
	password, err := readSecret(env, "Backup master password: ")
	if err != nil {
		return err
	}
	n, err := m.ImportVault(ctx, args[0], password)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "Imported %d secrets.\n", n)
	return nil
}
