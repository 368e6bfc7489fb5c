// ABOUTME: gpt-stream: the model back end spawned by gpt for every session
// ABOUTME: Reads the prompt file, streams raw completion text to stdout, and exits non-zero on failure

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mauromedda/gpt-go/internal/config"
	pilog "github.com/mauromedda/gpt-go/internal/log"
	"github.com/mauromedda/gpt-go/pkg/ai"
	_ "github.com/mauromedda/gpt-go/pkg/ai/provider/anthropic"
	_ "github.com/mauromedda/gpt-go/pkg/ai/provider/openai"
)

// missingKey is what gpt passes when no API key is configured.
const missingKey = "NOT SET"

// errNoKey is reported before any request is made.
var errNoKey = errors.New("API key not set: add it to auth.json or export GPT_API_KEY_<PROVIDER>")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// invocation holds the positional arguments.
type invocation struct {
	promptFile  string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	provider    string
}

func parseArgs(args []string) (invocation, error) {
	inv := invocation{
		promptFile: args[0],
		apiKey:     args[1],
		model:      args[2],
		provider:   string(ai.ApiOpenAI),
	}
	if len(args) > 3 && args[3] != "" {
		n, err := strconv.Atoi(args[3])
		if err != nil || n < 0 {
			return inv, fmt.Errorf("invalid max tokens %q", args[3])
		}
		inv.maxTokens = n
	}
	if len(args) > 4 && args[4] != "" {
		t, err := strconv.ParseFloat(args[4], 64)
		if err != nil || t < 0 || t > 2 {
			return inv, fmt.Errorf("invalid temperature %q", args[4])
		}
		inv.temperature = t
	}
	if len(args) > 5 && args[5] != "" {
		inv.provider = args[5]
	}
	return inv, nil
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	var (
		baseURL string
		logFile string
		noLog   bool
	)
	cmd := &cobra.Command{
		Use:           "gpt-stream PROMPT_FILE API_KEY MODEL [MAX_TOKENS [TEMPERATURE [PROVIDER]]]",
		Short:         "Stream a completion for the prompt in PROMPT_FILE to stdout",
		Args:          cobra.RangeArgs(3, 6),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := parseArgs(args)
			if err != nil {
				return err
			}
			if baseURL == "" {
				baseURL = os.Getenv("GPT_BASE_URL")
			}
			if logFile == "" && !noLog {
				logFile = config.CompletionsFile()
			}
			return stream(cmd.Context(), inv, baseURL, logFile, stdout)
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Provider base URL (default: $GPT_BASE_URL or the provider's public endpoint)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Append prompt/completion pairs here (default: completions.jsonl in the gpt-go home)")
	cmd.Flags().BoolVar(&noLog, "no-log", false, "Do not record the prompt and completion")
	return cmd
}

func stream(ctx context.Context, inv invocation, baseURL, logFile string, stdout io.Writer) error {
	if inv.apiKey == "" || inv.apiKey == missingKey {
		return errNoKey
	}
	prompt, err := os.ReadFile(inv.promptFile)
	if err != nil {
		return fmt.Errorf("reading prompt: %w", err)
	}
	p, err := ai.New(inv.provider, inv.apiKey, baseURL)
	if err != nil {
		return err
	}

	s := p.Stream(ctx, ai.Request{
		Model:       inv.model,
		Prompt:      string(prompt),
		MaxTokens:   inv.maxTokens,
		Temperature: inv.temperature,
	})
	for ev := range s.Events() {
		if ev.Type != ai.EventDelta {
			continue
		}
		if _, err := io.WriteString(stdout, ev.Text); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	if err := s.Err(); err != nil {
		return err
	}

	res := s.Result()
	pilog.Debug("gpt-stream: %s %s stop=%s usage=%d/%d", inv.provider, res.Model, res.StopReason, res.Usage.InputTokens, res.Usage.OutputTokens)
	if logFile != "" {
		if err := appendCompletion(logFile, inv, string(prompt), res.Text); err != nil {
			pilog.Warn("gpt-stream: recording completion: %v", err)
		}
	}
	return nil
}

// completionRecord is one line of the completions log.
type completionRecord struct {
	TS         string `json:"ts"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

func appendCompletion(path string, inv invocation, prompt, completion string) error {
	line, err := json.Marshal(completionRecord{
		TS:         time.Now().UTC().Format(time.RFC3339),
		Provider:   inv.provider,
		Model:      inv.model,
		Prompt:     prompt,
		Completion: completion,
	})
	if err != nil {
		return err
	}
	if err := config.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
