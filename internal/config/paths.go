// ABOUTME: Standard filesystem paths for gpt-go configuration and data
// ABOUTME: Resolves ~/.gpt-go/ for global and .gpt-go/ for project-local paths

package config

import (
	"os"
	"path/filepath"
)

const (
	globalDirName  = ".gpt-go"
	projectDirName = ".gpt-go"
)

// GlobalDir returns the user-global config directory (~/.gpt-go/).
// GPT_GO_HOME overrides it.
func GlobalDir() string {
	if dir := os.Getenv("GPT_GO_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", globalDirName)
	}
	return filepath.Join(home, globalDirName)
}

// ProjectDir returns the project-local config directory.
func ProjectDir(projectRoot string) string {
	return filepath.Join(projectRoot, projectDirName)
}

// UserSettingsFile returns the path to the user settings file.
func UserSettingsFile() string {
	return filepath.Join(GlobalDir(), "settings.json")
}

// ProjectSettingsFile returns the path to the project settings file.
func ProjectSettingsFile(projectRoot string) string {
	return filepath.Join(ProjectDir(projectRoot), "settings.json")
}

// AuthFile returns the path to the auth credentials file.
func AuthFile() string {
	return filepath.Join(GlobalDir(), "auth.json")
}

// DefaultHistoryFile returns the instruction history path.
func DefaultHistoryFile() string {
	return filepath.Join(GlobalDir(), "history")
}

// DefaultTranscriptFile returns the JSONL transcript path.
func DefaultTranscriptFile() string {
	return filepath.Join(GlobalDir(), "transcripts.jsonl")
}

// PromptFiles returns the prompt template override files, lowest precedence first.
func PromptFiles(projectRoot string) []string {
	files := []string{filepath.Join(GlobalDir(), "prompts.yaml")}
	if projectRoot != "" {
		files = append(files, filepath.Join(ProjectDir(projectRoot), "prompts.yaml"))
	}
	return files
}

// ContextFile returns where a project's persisted context selection lives.
func ContextFile(projectRoot string) string {
	return filepath.Join(ProjectDir(projectRoot), "context.json")
}

// EnsureDir creates a directory and all parents if they don't exist.
// Uses 0o700 for directories containing sensitive data (auth, transcripts).
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o700)
}

// CompletionsFile returns where the back end appends prompt/completion pairs.
func CompletionsFile() string {
	return filepath.Join(GlobalDir(), "completions.jsonl")
}
