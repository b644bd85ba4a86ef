package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/FrictionLog/internal/friction"
)

const shellPrompt = "friction> "

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session; alerts fire once per day across commands",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShell(cmd.Context(), cli, cmd.InOrStdin())
	},
}

func runShell(ctx context.Context, a *app, in io.Reader) error {
	if a.session.CheckHealth(ctx) {
		if err := a.session.LoadItems(ctx, friction.Filter{}); err != nil {
			fmt.Fprintln(a.out, styles.Warning.Render(a.failure(err).Error()))
		}
		if _, err := a.session.RefreshScore(ctx); err != nil {
			fmt.Fprintln(a.out, styles.Warning.Render(a.failure(err).Error()))
		}
	} else {
		fmt.Fprintln(a.out, styles.Warning.Render(a.session.Snapshot().ErrorMessage))
	}
	fmt.Fprintln(a.out, styles.Muted.Render("Type 'help' for commands, 'exit' to quit."))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(a.out, shellPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(a.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		if err := a.execLine(ctx, line); err != nil {
			fmt.Fprintln(a.out, styles.Error.Render("Error: "+err.Error()))
		}
	}
}

// execLine runs one shell line against a fresh command tree bound to a's session.
func (a *app) execLine(ctx context.Context, line string) error {
	args, err := splitArgs(line)
	if err != nil {
		return err
	}
	root := &cobra.Command{
		Use:           "friction",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(sessionCommands(a)...)
	a.session.ClearMessages()
	root.SetArgs(args)
	root.SetOut(a.out)
	root.SetErr(a.out)
	return root.ExecuteContext(ctx)
}

// splitArgs splits a line on whitespace, honouring single and double quotes.
func splitArgs(line string) ([]string, error) {
	var (
		args  []string
		cur   strings.Builder
		quote rune
		inArg bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inArg = true
		case unicode.IsSpace(r):
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(r)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, errors.New("unterminated quote")
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}
