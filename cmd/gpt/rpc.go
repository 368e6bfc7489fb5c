// ABOUTME: `gpt rpc`: serves the JSONL protocol on stdin/stdout for editor integrations
// ABOUTME: Settings and prompt files are watched and hot-reloaded while serving

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mauromedda/gpt-go/internal/config"
	pilog "github.com/mauromedda/gpt-go/internal/log"
	"github.com/mauromedda/gpt-go/internal/mode/rpc"
)

func newRPCCmd(opts *options) *cobra.Command {
	var noWatch bool
	cmd := &cobra.Command{
		Use:   "rpc",
		Short: "Serve the editor protocol as JSON lines on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			router := rpc.NewRouter()
			srv := rpc.NewServer(os.Stdin, os.Stdout, router.Handle)
			srv.Concurrent(rpc.BlockingMethods...)

			reload := func() error {
				if err := a.reload(); err != nil {
					return err
				}
				s := a.Settings()
				srv.Notify(rpc.EventConfig, map[string]any{"model": s.Model, "provider": s.Provider})
				return nil
			}
			rpc.RegisterHandlers(router, &rpc.Deps{Engine: a.eng, Reload: reload})
			detach := rpc.Forward(srv, a.eng)
			defer detach()

			if !noWatch {
				w, err := config.NewWatcher(a.watchedFiles(), func() {
					if err := reload(); err != nil {
						pilog.Warn("reload: %v", err)
						srv.Notify(rpc.EventNotify, rpc.NotifyEvent{Message: "gpt: config reload failed: " + err.Error()})
					}
				})
				if err != nil {
					pilog.Warn("config watcher: %v", err)
				} else {
					w.Start(ctx)
					defer w.Close()
				}
			}

			pilog.Debug("rpc: serving (root %s)", a.root)
			return srv.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not reload settings when their files change")
	return cmd
}
