// ABOUTME: `gpt key`: store or inspect provider API keys in auth.json
// ABOUTME: Keys are read from stdin, without echo on a terminal, and never printed in full

package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mauromedda/gpt-go/internal/config"
	"github.com/mauromedda/gpt-go/internal/mode/print"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage provider API keys",
	}
	setCmd := &cobra.Command{
		Use:   "set PROVIDER",
		Short: "Read an API key from stdin and save it for PROVIDER",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := readKey(cmd)
			if err != nil {
				return err
			}
			store, err := config.LoadAuth("")
			if err != nil {
				return err
			}
			store.SetKey(args[0], key)
			if err := store.Save(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), print.OKStyle.Render("gpt: saved key for "+args[0]))
			return nil
		},
	}
	showCmd := &cobra.Command{
		Use:   "show PROVIDER",
		Short: "Show which key PROVIDER would use, masked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := config.LoadAuth("")
			if err != nil {
				return err
			}
			key := store.GetKey(args[0])
			if key == "" {
				return fmt.Errorf("no key for %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), mask(key))
			return nil
		},
	}
	cmd.AddCommand(setCmd, showCmd)
	return cmd
}

func readKey(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "API key: ")
		data, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading key: %w", err)
		}
		in = strings.NewReader(string(data))
	}
	line, _ := bufio.NewReader(in).ReadString('\n')
	key := strings.TrimSpace(line)
	if key == "" {
		return "", errors.New("no key given on stdin")
	}
	return key, nil
}

// mask keeps the first and last four characters of long keys.
func mask(key string) string {
	if len(key) <= 12 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
