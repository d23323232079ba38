package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/term"
	"v.io/x/lib/cmdline"
)

// readSecret prompts for a secret without echo when stdin is a terminal. Piped input is
// read one line at a time.
func readSecret(env *cmdline.Env, prompt string) (string, error) {
	if f, ok := env.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(env.Stderr, prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(env.Stderr)
		if err != nil {
			return "", errors.Wrap(err, "failed to read password")
		}
		return string(b), nil
	}
	return readLine(env)
}

// readConfirmedSecret prompts twice and requires both entries to match
func readConfirmedSecret(env *cmdline.Env, prompt string) (string, error) {
	first, err := readSecret(env, prompt)
	if err != nil {
		return "", err
	}
	second, err := readSecret(env, "Confirm: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("entries do not match")
	}
	return first, nil
}

var (
	stdinSource io.Reader
	stdinReader *bufio.Reader
)

func readLine(env *cmdline.Env) (string, error) {
	if stdinReader == nil || stdinSource != env.Stdin {
		stdinSource = env.Stdin
		stdinReader = bufio.NewReader(env.Stdin)
	}
	line, err := stdinReader.ReadString('\n')
	if err != nil && line == "" {
		return "", errors.Wrap(err, "failed to read input")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// inputArg returns args[i] when present and otherwise reads a line from stdin
func inputArg(env *cmdline.Env, args []string, i int) (string, error) {
	if len(args) > i {
		return args[i], nil
	}
	return readLine(env)
}
