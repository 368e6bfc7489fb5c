// ABOUTME: `gpt history` and `gpt log`: past instructions and the session transcript
// ABOUTME: History is fuzzy-searchable; the log renders transcript records as a table

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mauromedda/gpt-go/internal/config"
	"github.com/mauromedda/gpt-go/internal/history"
	"github.com/mauromedda/gpt-go/internal/mode/print"
	"github.com/mauromedda/gpt-go/internal/projectctx"
	"github.com/mauromedda/gpt-go/internal/session"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [query...]",
		Short: "List previous instructions, newest first, optionally fuzzy-filtered",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := settingsOnly(cmd, opts)
			if err != nil {
				return err
			}
			h := history.New(s.HistoryFile, 0)
			if err := h.Load(); err != nil {
				return err
			}
			for _, e := range h.Suggest(strings.Join(args, " "), limit) {
				fmt.Fprintln(cmd.OutOrStdout(), e)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to print (0 = all)")
	return cmd
}

func newLogCmd(opts *options) *cobra.Command {
	var (
		sessionID int
		limit     int
		full      bool
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the transcript of past sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := settingsOnly(cmd, opts)
			if err != nil {
				return err
			}
			records, err := session.ReadRecords(s.TranscriptFile)
			if err != nil {
				return err
			}
			if sessionID > 0 {
				kept := records[:0]
				for _, r := range records {
					if r.Session == sessionID {
						kept = append(kept, r)
					}
				}
				records = kept
			}
			if limit > 0 && len(records) > limit {
				records = records[len(records)-limit:]
			}
			out := cmd.OutOrStdout()
			if full {
				for _, r := range records {
					fmt.Fprintf(out, "%s %s #%d\n%s\n\n", print.HeaderStyle.Render(string(r.Type)), r.TS, r.Session, string(r.Data))
				}
				return nil
			}
			width := 100
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
				width = w
			}
			print.WriteLog(out, records, width)
			return nil
		},
	}
	cmd.Flags().IntVarP(&sessionID, "session", "s", 0, "Only records of this session")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Show the last N records (0 = all)")
	cmd.Flags().BoolVar(&full, "full", false, "Print raw record payloads instead of a table")
	return cmd
}

// settingsOnly loads settings without constructing an engine.
func settingsOnly(cmd *cobra.Command, opts *options) (*config.Settings, error) {
	a := &app{opts: opts, cmd: cmd, root: opts.dir}
	p := &projectctx.FSProvider{Dir: opts.dir}
	if root, err := p.Root(cmd.Context()); err == nil {
		a.root = root
	}
	if err := a.setupLogging(); err != nil {
		return nil, err
	}
	return a.loadSettings()
}
