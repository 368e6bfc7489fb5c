// ABOUTME: Settings loading with defaults, global and project layers, and validation
// ABOUTME: JSON-based configuration; later layers override earlier non-zero values

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"time"
)

// Provider names accepted by the back end.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Defaults.
const (
	DefaultModel          = "gpt-4o"
	DefaultMaxTokens      = 2000
	DefaultBackend        = "gpt-stream"
	DefaultBufferPolicy   = "named"
	DefaultTitleMaxLength = 60
	DefaultTitleLength    = 50
	DefaultTickIntervalMS = 1000
	DefaultAcceptKey      = "tab"
)

// Settings holds the merged configuration. Pointer fields distinguish
// "unset" from an explicit zero.
type Settings struct {
	Model          string            `json:"model,omitempty"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	Temperature    *float64          `json:"temperature,omitempty"`
	Provider       string            `json:"provider,omitempty"`
	Backend        string            `json:"backend,omitempty"`
	BufferPolicy   string            `json:"buffer_policy,omitempty"`
	TitleMaxLength int               `json:"title_max_length,omitempty"`
	TitleLength    int               `json:"title_length,omitempty"`
	TickIntervalMS int               `json:"tick_interval_ms,omitempty"`
	UsePTY         *bool             `json:"use_pty,omitempty"`
	AcceptKey      string            `json:"accept_key,omitempty"`
	AutoTitle      *bool             `json:"auto_title,omitempty"`
	HistoryFile    string            `json:"history_file,omitempty"`
	TranscriptFile string            `json:"transcript_file,omitempty"`
	TempDir        string            `json:"temp_dir,omitempty"`
	LogLevel       string            `json:"log_level,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
}

// Defaults returns the built-in settings.
func Defaults() *Settings {
	zero := 0.0
	off := false
	return &Settings{
		Model:          DefaultModel,
		MaxTokens:      DefaultMaxTokens,
		Temperature:    &zero,
		Provider:       ProviderOpenAI,
		Backend:        DefaultBackend,
		BufferPolicy:   DefaultBufferPolicy,
		TitleMaxLength: DefaultTitleMaxLength,
		TitleLength:    DefaultTitleLength,
		TickIntervalMS: DefaultTickIntervalMS,
		UsePTY:         &off,
		AcceptKey:      DefaultAcceptKey,
		AutoTitle:      &off,
		HistoryFile:    DefaultHistoryFile(),
		TranscriptFile: DefaultTranscriptFile(),
	}
}

// Load merges defaults, user settings, and project settings (project wins),
// then expands ${VAR} references and validates the result.
func Load(projectRoot string) (*Settings, error) {
	files := []string{UserSettingsFile()}
	if projectRoot != "" {
		files = append(files, ProjectSettingsFile(projectRoot))
	}
	return LoadFiles(files...)
}

// LoadFiles merges the given settings files over the defaults in order.
// Missing files are skipped.
func LoadFiles(paths ...string) (*Settings, error) {
	merged := Defaults()
	for _, path := range paths {
		layer, err := loadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		merged = merge(merged, layer)
	}
	ResolveEnvVars(merged)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

func loadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &s, nil
}

// merge overlays the set fields of top onto base.
func merge(base, top *Settings) *Settings {
	result := *base
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}

	setString(&result.Model, top.Model)
	setString(&result.Provider, top.Provider)
	setString(&result.Backend, top.Backend)
	setString(&result.BufferPolicy, top.BufferPolicy)
	setString(&result.AcceptKey, top.AcceptKey)
	setString(&result.HistoryFile, top.HistoryFile)
	setString(&result.TranscriptFile, top.TranscriptFile)
	setString(&result.TempDir, top.TempDir)
	setString(&result.LogLevel, top.LogLevel)
	setInt(&result.MaxTokens, top.MaxTokens)
	setInt(&result.TitleMaxLength, top.TitleMaxLength)
	setInt(&result.TitleLength, top.TitleLength)
	setInt(&result.TickIntervalMS, top.TickIntervalMS)
	if top.Temperature != nil {
		result.Temperature = top.Temperature
	}
	if top.UsePTY != nil {
		result.UsePTY = top.UsePTY
	}
	if top.AutoTitle != nil {
		result.AutoTitle = top.AutoTitle
	}

	if len(top.Env) > 0 {
		env := make(map[string]string, len(base.Env)+len(top.Env))
		maps.Copy(env, base.Env)
		maps.Copy(env, top.Env)
		result.Env = env
	}
	return &result
}

// Validate checks enumerations and ranges.
func (s *Settings) Validate() error {
	switch s.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown provider %q (want %s or %s)", s.Provider, ProviderOpenAI, ProviderAnthropic)
	}
	switch s.BufferPolicy {
	case "named", "ephemeral":
	default:
		return fmt.Errorf("unknown buffer_policy %q (want named or ephemeral)", s.BufferPolicy)
	}
	if s.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", s.MaxTokens)
	}
	if t := s.TemperatureValue(); t < 0 || t > 2 {
		return fmt.Errorf("temperature must be within [0, 2], got %g", t)
	}
	if s.TickIntervalMS < 0 {
		return fmt.Errorf("tick_interval_ms must not be negative, got %d", s.TickIntervalMS)
	}
	return nil
}

// TemperatureValue returns the sampling temperature.
func (s *Settings) TemperatureValue() float64 {
	if s.Temperature == nil {
		return 0
	}
	return *s.Temperature
}

// SetTemperature sets an explicit temperature.
func (s *Settings) SetTemperature(t float64) {
	s.Temperature = &t
}

// PTY reports whether the back end runs on a pseudo-terminal.
func (s *Settings) PTY() bool {
	return s.UsePTY != nil && *s.UsePTY
}

// AutoTitleEnabled reports whether chats are titled automatically.
func (s *Settings) AutoTitleEnabled() bool {
	return s.AutoTitle != nil && *s.AutoTitle
}

// TickInterval returns the liveness period.
func (s *Settings) TickInterval() time.Duration {
	if s.TickIntervalMS <= 0 {
		return DefaultTickIntervalMS * time.Millisecond
	}
	return time.Duration(s.TickIntervalMS) * time.Millisecond
}

// EnvList renders Env as KEY=VALUE pairs for subprocesses.
func (s *Settings) EnvList() []string {
	out := make([]string, 0, len(s.Env))
	for _, k := range sortedKeys(s.Env) {
		out = append(out, k+"="+s.Env[k])
	}
	return out
}
