// ABOUTME: Shared bootstrap for every subcommand: settings, auth, templates, history, and engine
// ABOUTME: CLI flags override merged settings; the engine config is rebuilt on reload

package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/mauromedda/gpt-go/internal/config"
	"github.com/mauromedda/gpt-go/internal/engine"
	"github.com/mauromedda/gpt-go/internal/history"
	pilog "github.com/mauromedda/gpt-go/internal/log"
	"github.com/mauromedda/gpt-go/internal/projectctx"
	"github.com/mauromedda/gpt-go/internal/prompt"
	"github.com/mauromedda/gpt-go/internal/runner"
	"github.com/mauromedda/gpt-go/internal/session"
)

// missingKey is passed to the back end when no API key is configured; the
// back end reports it and exits non-zero.
const missingKey = "NOT SET"

// options holds the persistent flags shared by all subcommands.
type options struct {
	dir         string
	model       string
	provider    string
	backend     string
	policy      string
	maxTokens   int
	temperature float64
	usePTY      bool
	verbose     bool
	logFile     string
}

func (o *options) register(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&o.dir, "dir", "C", ".", "Directory whose project supplies context files")
	f.StringVarP(&o.model, "model", "m", "", "Model name passed to the back end")
	f.StringVar(&o.provider, "provider", "", "Back-end provider (openai or anthropic)")
	f.StringVar(&o.backend, "backend", "", "Back-end executable")
	f.StringVar(&o.policy, "buffer-policy", "", "Output buffer policy (named or ephemeral)")
	f.IntVar(&o.maxTokens, "max-tokens", 0, "Maximum tokens to generate")
	f.Float64Var(&o.temperature, "temperature", 0, "Sampling temperature")
	f.BoolVar(&o.usePTY, "pty", false, "Run the back end on a pseudo-terminal")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "Enable debug logging")
	f.StringVar(&o.logFile, "log-file", "", "Write logs to this file instead of stderr")
}

// app is one fully wired client.
type app struct {
	opts        *options
	cmd         *cobra.Command
	root        string
	provider    *projectctx.FSProvider
	contextFile string

	mu       sync.Mutex
	settings *config.Settings

	eng        *engine.Engine
	transcript *session.Log
	closeLog   func() error
}

// newApp loads configuration and constructs the engine.
func newApp(ctx context.Context, cmd *cobra.Command, opts *options) (*app, error) {
	a := &app{opts: opts, cmd: cmd, provider: &projectctx.FSProvider{Dir: opts.dir}}

	root, err := a.provider.Root(ctx)
	if err != nil {
		pilog.Debug("project root: %v", err)
		root = opts.dir
	}
	a.root = root
	a.contextFile = config.ContextFile(root)

	if err := a.setupLogging(); err != nil {
		return nil, err
	}

	settings, err := a.loadSettings()
	if err != nil {
		return nil, err
	}
	a.settings = settings
	if !opts.verbose && settings.LogLevel != "" {
		lvl, err := pilog.ParseLevel(settings.LogLevel)
		if err != nil {
			return nil, err
		}
		pilog.SetLevel(lvl)
	}

	tpl, err := prompt.LoadTemplates(config.PromptFiles(root)...)
	if err != nil {
		return nil, fmt.Errorf("loading prompt templates: %w", err)
	}

	hist := history.New(settings.HistoryFile, 0)
	if err := hist.Load(); err != nil {
		pilog.Warn("history: %v", err)
	}

	transcript, err := session.OpenLog(settings.TranscriptFile)
	if err != nil {
		pilog.Warn("transcript disabled: %v", err)
		transcript = nil
	}
	a.transcript = transcript

	sel := projectctx.NewSelection()
	if err := sel.Load(a.contextFile); err != nil {
		pilog.Warn("context selection: %v", err)
	}

	cfg, err := a.engineConfig(settings)
	if err != nil {
		return nil, err
	}
	a.eng = engine.New(engine.Deps{
		Store:       session.NewStore(settings.TitleMaxLength),
		Selection:   sel,
		Provider:    a.provider,
		Templates:   tpl,
		History:     hist,
		Transcript:  transcript,
		ContextFile: a.contextFile,
	}, cfg)
	return a, nil
}

func (a *app) setupLogging() error {
	if a.opts.verbose {
		pilog.SetLevel(pilog.LevelDebug)
	}
	if a.opts.logFile == "" {
		return nil
	}
	closeLog, err := pilog.OpenFile(a.opts.logFile)
	if err != nil {
		return err
	}
	a.closeLog = closeLog
	return nil
}

// loadSettings merges the settings files and applies flags that were set.
func (a *app) loadSettings() (*config.Settings, error) {
	s, err := config.Load(a.root)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	flags := a.cmd.Flags()
	if flags.Changed("model") {
		s.Model = a.opts.model
	}
	if flags.Changed("provider") {
		s.Provider = a.opts.provider
	}
	if flags.Changed("backend") {
		s.Backend = a.opts.backend
	}
	if flags.Changed("buffer-policy") {
		s.BufferPolicy = a.opts.policy
	}
	if flags.Changed("max-tokens") {
		s.MaxTokens = a.opts.maxTokens
	}
	if flags.Changed("temperature") {
		s.SetTemperature(a.opts.temperature)
	}
	if flags.Changed("pty") {
		on := a.opts.usePTY
		s.UsePTY = &on
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// engineConfig derives the engine configuration from settings.
func (a *app) engineConfig(s *config.Settings) (engine.Config, error) {
	policy, err := session.ParsePolicy(s.BufferPolicy)
	if err != nil {
		return engine.Config{}, err
	}
	auth, err := config.LoadAuth(config.AuthFile())
	if err != nil {
		return engine.Config{}, fmt.Errorf("loading auth: %w", err)
	}
	key := auth.GetKey(s.Provider)
	if key == "" {
		pilog.Warn("no API key for provider %s", s.Provider)
		key = missingKey
	}
	return engine.Config{
		Invocation: runner.Invocation{
			APIKey:      key,
			Model:       s.Model,
			MaxTokens:   s.MaxTokens,
			Temperature: s.TemperatureValue(),
			Provider:    s.Provider,
		},
		Runner: runner.Options{
			Backend:      s.Backend,
			TempDir:      s.TempDir,
			TickInterval: s.TickInterval(),
			UsePTY:       s.PTY(),
			Env:          s.EnvList(),
		},
		Policy:      policy,
		TitleLength: s.TitleLength,
		AutoTitle:   s.AutoTitleEnabled(),
		AcceptKey:   s.AcceptKey,
	}, nil
}

// reload re-reads settings and templates and applies them to the engine.
// Runs already started keep their configuration.
func (a *app) reload() error {
	s, err := a.loadSettings()
	if err != nil {
		return err
	}
	cfg, err := a.engineConfig(s)
	if err != nil {
		return err
	}
	tpl, err := prompt.LoadTemplates(config.PromptFiles(a.root)...)
	if err != nil {
		return fmt.Errorf("loading prompt templates: %w", err)
	}
	a.mu.Lock()
	a.settings = s
	a.mu.Unlock()
	a.eng.SetConfig(cfg)
	a.eng.SetTemplates(tpl)
	pilog.Info("configuration reloaded (model %s, provider %s)", s.Model, s.Provider)
	return nil
}

// watchedFiles lists the files whose changes trigger a reload.
func (a *app) watchedFiles() []string {
	files := []string{config.UserSettingsFile(), config.ProjectSettingsFile(a.root), config.AuthFile()}
	return append(files, config.PromptFiles(a.root)...)
}

// Settings returns the current merged settings.
func (a *app) Settings() *config.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// Close waits for background work and releases files.
func (a *app) Close() {
	if err := a.eng.Close(); err != nil {
		pilog.Debug("engine close: %v", err)
	}
	if a.transcript != nil {
		_ = a.transcript.Close()
	}
	if a.closeLog != nil {
		_ = a.closeLog()
	}
}
