// ABOUTME: One-shot flow commands: chat, transform, complete, and title
// ABOUTME: Files are loaded into buffers, streamed through print mode, and optionally written back

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mauromedda/gpt-go/internal/diff"
	"github.com/mauromedda/gpt-go/internal/engine"
	"github.com/mauromedda/gpt-go/internal/gate"
	"github.com/mauromedda/gpt-go/internal/mode/print"
	"github.com/mauromedda/gpt-go/internal/textbuf"
)

// outputFlags are shared by the streaming commands.
type outputFlags struct {
	format    string
	files     []string
	noContext bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.format, "output", "o", "text", "Output format: text, json, or stream-json")
	cmd.Flags().StringSliceVar(&o.files, "context", nil, "Attach these project files instead of the saved selection")
	cmd.Flags().BoolVar(&o.noContext, "no-context", false, "Attach no project context")
}

func (o *outputFlags) contextMode() engine.ContextMode {
	return engine.ContextMode{Files: o.files, Disabled: o.noContext}
}

func (o *outputFlags) printConfig(cmd *cobra.Command) print.Config {
	cfg := print.Config{
		OutputFormat: o.format,
		Progress:     term.IsTerminal(int(os.Stderr.Fd())),
		Out:          cmd.OutOrStdout(),
		Err:          cmd.ErrOrStderr(),
	}
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		cfg.Width = w
	}
	return cfg
}

func newChatCmd(opts *options) *cobra.Command {
	var (
		out    outputFlags
		file   string
		lang   string
		render bool
		code   bool
	)
	cmd := &cobra.Command{
		Use:   "chat [instruction...]",
		Short: "Start a chat; input text comes from --file or piped stdin",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			req := engine.ChatRequest{
				Instruction: strings.Join(args, " "),
				Lang:        lang,
				Context:     out.contextMode(),
			}
			input, name, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			if name != "" {
				a.eng.Registry().Open(name, input)
				req.Source = engine.InputBuffer
				req.Buffer = name
				if req.Lang == "" {
					req.Lang = langOf(name)
				}
			}

			cfg := out.printConfig(cmd)
			cfg.Render, cfg.Code = render, code
			_, err = print.Run(ctx, a.eng, cfg, func(ctx context.Context) (*engine.Run, error) {
				return a.eng.Chat(ctx, req)
			})
			return err
		},
	}
	out.register(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "", "Send this file as the input block")
	cmd.Flags().StringVar(&lang, "lang", "", "Language label of the input block")
	cmd.Flags().BoolVar(&render, "render", false, "Render the reply as markdown when it completes")
	cmd.Flags().BoolVar(&code, "code", false, "Print only the last code block of the reply")
	return cmd
}

// readInput returns the input block for a chat and the buffer name to hold
// it. Without a file, piped stdin is used; an interactive stdin means none.
func readInput(cmd *cobra.Command, file string) (string, string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", "", fmt.Errorf("reading input: %w", err)
		}
		return string(data), file, nil
	}
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "", "", nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", "", fmt.Errorf("reading stdin: %w", err)
	}
	if len(data) == 0 {
		return "", "", nil
	}
	return string(data), "*stdin*", nil
}

func newTransformCmd(opts *options) *cobra.Command {
	var (
		out      outputFlags
		lines    string
		write    bool
		showDiff bool
	)
	cmd := &cobra.Command{
		Use:   "transform FILE instruction...",
		Short: "Rewrite a region of FILE in place following an instruction",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			buf, err := openFile(a, args[0])
			if err != nil {
				return err
			}
			before := buf.Text()
			start, end, err := lineRange(before, lines)
			if err != nil {
				return err
			}
			req := engine.TransformRequest{
				Buffer:      buf.Name(),
				Start:       start,
				End:         end,
				Instruction: strings.Join(args[1:], " "),
				Context:     out.contextMode(),
			}
			_, err = print.Run(ctx, a.eng, out.printConfig(cmd), func(ctx context.Context) (*engine.Run, error) {
				return a.eng.TransformRegion(ctx, req)
			})
			if err != nil {
				return err
			}
			if showDiff {
				fmt.Fprint(cmd.OutOrStdout(), diff.Unified(buf.Name(), before, buf.Text(), diff.DefaultContext))
			}
			if write {
				return writeBack(cmd, buf, before)
			}
			return nil
		},
	}
	out.register(cmd)
	cmd.Flags().BoolVar(&showDiff, "diff", false, "Print a unified diff of FILE after the transform")
	cmd.Flags().StringVarP(&lines, "lines", "l", "", "Region as START:END line numbers, 1-based and inclusive (default: whole file)")
	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write the result back to FILE")
	return cmd
}

func newCompleteCmd(opts *options) *cobra.Command {
	var (
		out   outputFlags
		line  int
		col   int
		write bool
		yes   bool
	)
	cmd := &cobra.Command{
		Use:   "complete FILE [instruction...]",
		Short: "Insert a completion at a position in FILE, pending accept or reject",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			buf, err := openFile(a, args[0])
			if err != nil {
				return err
			}
			pos, err := position(buf.Text(), line, col)
			if err != nil {
				return err
			}
			req := engine.CompleteRequest{
				Buffer:      buf.Name(),
				Pos:         pos,
				Instruction: strings.Join(args[1:], " "),
				Context:     out.contextMode(),
			}
			cfg := out.printConfig(cmd)
			if !yes && term.IsTerminal(int(os.Stdin.Fd())) {
				cfg.Keys = gate.TerminalKeys{In: os.Stdin}
			}
			before := buf.Text()
			res, err := print.Run(ctx, a.eng, cfg, func(ctx context.Context) (*engine.Run, error) {
				return a.eng.CompletePoint(ctx, req)
			})
			if err != nil {
				return err
			}
			if write && res.Decision == gate.Accept {
				return writeBack(cmd, buf, before)
			}
			return nil
		},
	}
	out.register(cmd)
	cmd.Flags().IntVar(&line, "line", 0, "Line of the insertion point, 1-based (default: end of file)")
	cmd.Flags().IntVar(&col, "col", 1, "Column of the insertion point, 1-based in characters")
	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write FILE back when the completion is accepted")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept the completion without asking")
	return cmd
}

func newTitleCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "title [FILE]",
		Short: "Suggest a short title for a conversation read from FILE or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			var data []byte
			if len(args) == 1 {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("reading conversation: %w", err)
			}
			title, err := a.eng.SuggestTitle(ctx, string(data))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), title)
			return nil
		},
	}
}

func openFile(a *app, path string) (*textbuf.Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return a.eng.Registry().Open(path, string(data)), nil
}

func writeBack(cmd *cobra.Command, buf *textbuf.Buffer, before string) error {
	info, err := os.Stat(buf.Name())
	if err != nil {
		return err
	}
	if err := os.WriteFile(buf.Name(), []byte(buf.Text()), info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing %s: %w", buf.Name(), err)
	}
	added, deleted := diff.Stat(before, buf.Text())
	fmt.Fprintln(cmd.ErrOrStderr(), print.OKStyle.Render(fmt.Sprintf("gpt: wrote %s (+%d -%d)", buf.Name(), added, deleted)))
	return nil
}

// lineRange converts "START:END" (1-based, inclusive) into rune offsets.
// An empty range selects the whole text.
func lineRange(text, rng string) (int, int, error) {
	if rng == "" {
		return 0, len([]rune(text)), nil
	}
	from, to, ok := strings.Cut(rng, ":")
	if !ok {
		to = from
	}
	first, err1 := strconv.Atoi(from)
	last, err2 := strconv.Atoi(to)
	if err1 != nil || err2 != nil || first < 1 || last < first {
		return 0, 0, fmt.Errorf("invalid line range %q", rng)
	}
	starts := lineStarts(text)
	if first > len(starts) {
		return 0, 0, fmt.Errorf("line %d is past the end of the file (%d lines)", first, len(starts))
	}
	end := len([]rune(text))
	if last < len(starts) {
		end = starts[last]
	}
	return starts[first-1], end, nil
}

// position converts a 1-based line and column into a rune offset. Line 0
// means the end of the text.
func position(text string, line, col int) (int, error) {
	n := len([]rune(text))
	if line == 0 {
		return n, nil
	}
	starts := lineStarts(text)
	if line < 0 || line > len(starts) || col < 1 {
		return 0, fmt.Errorf("invalid position %d:%d", line, col)
	}
	lineEnd := n
	if line < len(starts) {
		lineEnd = starts[line] - 1
	}
	return min(starts[line-1]+col-1, lineEnd), nil
}

// lineStarts returns the rune offset at which each line begins.
func lineStarts(text string) []int {
	starts := []int{0}
	i := 0
	for _, r := range text {
		i++
		if r == '\n' {
			starts = append(starts, i)
		}
	}
	if len(starts) > 1 && starts[len(starts)-1] == i {
		starts = starts[:len(starts)-1]
	}
	return starts
}

// langOf guesses a fence label from a file extension.
func langOf(name string) string {
	return strings.TrimPrefix(filepath.Ext(name), ".")
}
