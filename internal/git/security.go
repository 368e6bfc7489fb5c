// ABOUTME: Argument validation for the read-only git commands used for project discovery
// ABOUTME: Only allowlisted subcommands and options reach exec, blocking shell metacharacters

package git

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// allowedCommands lists the git subcommands project discovery may run.
var allowedCommands = map[string]bool{
	"rev-parse": true,
	"ls-files":  true,
}

var allowedOptions = map[string]bool{
	"--show-toplevel":       true,
	"--is-inside-work-tree": true,
	"--cached":              true,
	"--others":              true,
	"--exclude-standard":    true,
	"--full-name":           true,
	"-z":                    true,
	"--":                    true,
}

// sanitizeArgs validates a git argument vector, dropping empty arguments.
func sanitizeArgs(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no git command specified")
	}
	if !allowedCommands[args[0]] {
		return nil, fmt.Errorf("git subcommand not allowed: %q", args[0])
	}

	out := make([]string, 0, len(args))
	out = append(out, args[0])
	for _, arg := range args[1:] {
		if arg == "" {
			continue
		}
		if err := validateArg(arg); err != nil {
			return nil, fmt.Errorf("invalid git argument %q: %w", arg, err)
		}
		out = append(out, arg)
	}
	return out, nil
}

func validateArg(arg string) error {
	if strings.Contains(arg, "$(") || strings.Contains(arg, "`") {
		return fmt.Errorf("command substitution not allowed")
	}
	for _, c := range []string{";", "|", "&", "$", "(", ")", "{", "}", "<", ">", "\\"} {
		if strings.Contains(arg, c) {
			return fmt.Errorf("contains dangerous character: %s", c)
		}
	}
	if strings.HasPrefix(arg, "-") {
		name, _, _ := strings.Cut(arg, "=")
		if !allowedOptions[name] {
			return fmt.Errorf("git option not allowed: %s", name)
		}
		return nil
	}
	if strings.Contains(arg, "/") {
		return validatePath(arg)
	}
	return validateString(arg)
}

func validatePath(path string) error {
	if strings.Contains(path, "..") {
		return fmt.Errorf("path traversal not allowed")
	}
	if filepath.Clean(path) != path && !strings.HasSuffix(path, "/") {
		return fmt.Errorf("path contains unnecessary elements")
	}
	return nil
}

func validateString(s string) error {
	if len(s) > 255 {
		return fmt.Errorf("string too long (max 255 characters)")
	}
	for _, r := range s {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return fmt.Errorf("contains non-printable character")
		}
	}
	return nil
}
