// ABOUTME: `gpt context`: inspect and edit the project files attached to prompts
// ABOUTME: The selection is saved per project; `pick` chooses files with an interactive picker

package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mauromedda/gpt-go/internal/mode/interactive"
	"github.com/mauromedda/gpt-go/internal/mode/print"
)

func newContextCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Manage the project files attached to prompts",
	}

	var resolve bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "List the selected files; --resolve prints the rendered context block",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, _ []string) error {
			files, res := a.eng.GetContext(cmd.Context(), resolve)
			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), print.NoticeStyle.Render("gpt: no context files selected"))
			}
			if !resolve {
				for _, f := range files {
					fmt.Fprintln(out, f)
				}
				return nil
			}
			for _, s := range res.Skipped {
				fmt.Fprintln(cmd.ErrOrStderr(), print.ErrorStyle.Render(fmt.Sprintf("gpt: skipped %s: %s", s.Path, s.Err)))
			}
			fmt.Fprint(out, res.Text)
			return nil
		}),
	}
	showCmd.Flags().BoolVar(&resolve, "resolve", false, "Read the files and print the context block")

	setCmd := &cobra.Command{
		Use:   "set FILE...",
		Short: "Replace the selection",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			return listSelection(cmd, a.eng.SetContext(args))
		}),
	}
	addCmd := &cobra.Command{
		Use:   "add FILE...",
		Short: "Add files to the selection",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			return listSelection(cmd, a.eng.SetContext(append(a.eng.Selection().Paths(), args...)))
		}),
	}
	removeCmd := &cobra.Command{
		Use:   "remove FILE...",
		Short: "Remove files from the selection",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			kept := slices.DeleteFunc(a.eng.Selection().Paths(), func(p string) bool {
				return slices.Contains(args, p)
			})
			return listSelection(cmd, a.eng.SetContext(kept))
		}),
	}
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the selection",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, _ []string) error {
			a.eng.ClearContext()
			fmt.Fprintln(cmd.ErrOrStderr(), print.NoticeStyle.Render("gpt: context cleared"))
			return nil
		}),
	}
	pickCmd := &cobra.Command{
		Use:   "pick",
		Short: "Choose files one at a time from the project; esc finishes",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, _ []string) error {
			files, err := a.eng.SelectContext(cmd.Context(), &interactive.Picker{})
			if err != nil {
				return err
			}
			return listSelection(cmd, files)
		}),
	}
	filesCmd := &cobra.Command{
		Use:   "files",
		Short: "List the candidate project files",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, _ []string) error {
			list, err := a.eng.ListProjectFiles(cmd.Context())
			if err != nil {
				return err
			}
			for _, f := range list {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		}),
	}

	cmd.AddCommand(showCmd, setCmd, addCmd, removeCmd, clearCmd, pickCmd, filesCmd)
	return cmd
}

func listSelection(cmd *cobra.Command, files []string) error {
	for _, f := range files {
		fmt.Fprintln(cmd.OutOrStdout(), f)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), print.NoticeStyle.Render(fmt.Sprintf("gpt: %d context file(s) selected", len(files))))
	return nil
}

// withApp wraps a RunE body with app construction and teardown.
func withApp(opts *options, fn func(*cobra.Command, *app, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cmd, opts)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}
