// ABOUTME: CLI entry point for gpt: JSONL RPC service for editors plus one-shot flows
// ABOUTME: Builds the cobra command tree and maps run failures to exit codes

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	// termfix must be imported before any package that imports bubbletea.
	_ "github.com/mauromedda/gpt-go/internal/termfix"

	"github.com/spf13/cobra"

	"github.com/mauromedda/gpt-go/internal/mode/print"
	"github.com/mauromedda/gpt-go/internal/runner"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		var ee *runner.ExitError
		// Back-end failures were already reported as notices.
		if !errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, print.ErrorStyle.Render("error: "+err.Error()))
		}
	}
	os.Exit(print.ExitCode(err))
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "gpt",
		Short:         "Prompt assembly and streaming LLM responses for editors",
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.register(root)

	root.AddCommand(
		newRPCCmd(opts),
		newChatCmd(opts),
		newTransformCmd(opts),
		newCompleteCmd(opts),
		newTitleCmd(opts),
		newContextCmd(opts),
		newHistoryCmd(opts),
		newLogCmd(opts),
		newKeyCmd(),
	)
	return root
}
