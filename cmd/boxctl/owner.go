package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/nsendoda/suggestion-box/internal/common"
	"github.com/nsendoda/suggestion-box/internal/logging"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// promptPassword reads a password without echo, or a single line from in
// when fromStdin is set.
func promptPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(cmd.ErrOrStderr(), "Enter password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

func newOwnerCmd(opts *rootOptions) *cobra.Command {
	owner := &cobra.Command{
		Use:   "owner",
		Short: "Manage box owners",
	}

	var (
		displayName   string
		passwordStdin bool
	)
	create := &cobra.Command{
		Use:   "create <id>",
		Short: "Create an owner, bypassing the signup switches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := promptPassword(cmd, passwordStdin)
			if err != nil {
				return err
			}
			return opts.withEnv(cmd, func(ctx context.Context, e *env) error {
				auth, err := e.authService(logging.Nop())
				if err != nil {
					return err
				}
				o, err := auth.CreateOwner(ctx, args[0], password, displayName)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "owner %s created (admin: %t, keep limit: %d)\n", o.ID, o.IsAdmin, o.KeepLimit)
				return nil
			})
		},
	}
	create.Flags().StringVar(&displayName, "name", "", "display name (defaults to the id)")
	create.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")

	setLimit := &cobra.Command{
		Use:   "set-limit <id> <n>",
		Short: "Change how many letters an owner may keep at once",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("keep limit %q is not a number", args[1])
			}
			return opts.withEnv(cmd, func(ctx context.Context, e *env) error {
				dir := e.ownerDirectory()
				if err := dir.SetKeepLimit(ctx, args[0], n); err != nil {
					return err
				}
				p, err := dir.Profile(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "owner %s keep limit: %d\n", p.ID, p.KeepLimit)
				return nil
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print an owner's profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(cmd, func(ctx context.Context, e *env) error {
				o, err := e.ownerDirectory().Get(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "id: %s\nname: %s\nkeep limit: %d\nadmin: %t\n",
					o.ID, o.DisplayName, o.KeepLimit, o.IsAdmin)
				return nil
			})
		},
	}

	owner.AddCommand(create, setLimit, show)
	return owner
}
