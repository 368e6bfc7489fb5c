// ABOUTME: Prompt template loading: embedded YAML defaults merged with user and project overrides
// ABOUTME: Templates are parsed once at load time so building prompts never fails

package prompt

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates/default.yaml
var defaultTemplates []byte

// Templates holds the fixed instruction texts. Fields are plain strings
// except ContextHeader and TitleInstruction, which are text/template sources.
type Templates struct {
	ContextHeader           string `yaml:"context_header"`
	TransformInstruction    string `yaml:"transform_instruction"`
	SurroundingLabel        string `yaml:"surrounding_label"`
	BeforeLabel             string `yaml:"before_label"`
	AfterLabel              string `yaml:"after_label"`
	CompletionInstruction   string `yaml:"completion_instruction"`
	CompletionGuidanceLabel string `yaml:"completion_guidance_label"`
	TitleInstruction        string `yaml:"title_instruction"`

	header *template.Template
	title  *template.Template
}

// DefaultTemplates returns the compiled-in templates.
func DefaultTemplates() *Templates {
	t, err := parseTemplates(defaultTemplates)
	if err != nil {
		// The embedded YAML ships with the binary.
		panic(fmt.Sprintf("embedded prompt templates: %v", err))
	}
	return t
}

// LoadTemplates merges override files onto the defaults in order; later
// files win. Missing files are skipped.
func LoadTemplates(paths ...string) (*Templates, error) {
	t := DefaultTemplates()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var over Templates
		if err := yaml.Unmarshal(data, &over); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		t.merge(&over)
	}
	if err := t.compile(); err != nil {
		return nil, err
	}
	return t, nil
}

func parseTemplates(data []byte) (*Templates, error) {
	var t Templates
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if err := t.compile(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Templates) merge(o *Templates) {
	set := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	set(&t.ContextHeader, o.ContextHeader)
	set(&t.TransformInstruction, o.TransformInstruction)
	set(&t.SurroundingLabel, o.SurroundingLabel)
	set(&t.BeforeLabel, o.BeforeLabel)
	set(&t.AfterLabel, o.AfterLabel)
	set(&t.CompletionInstruction, o.CompletionInstruction)
	set(&t.CompletionGuidanceLabel, o.CompletionGuidanceLabel)
	set(&t.TitleInstruction, o.TitleInstruction)
}

// compile parses the templated fields and dry-runs them so later
// rendering cannot fail.
func (t *Templates) compile() error {
	header, err := template.New("context_header").Option("missingkey=zero").Parse(t.ContextHeader)
	if err != nil {
		return fmt.Errorf("parse context_header: %w", err)
	}
	title, err := template.New("title_instruction").Option("missingkey=zero").Parse(t.TitleInstruction)
	if err != nil {
		return fmt.Errorf("parse title_instruction: %w", err)
	}
	if err := header.Execute(&bytes.Buffer{}, headerVars{Files: []string{"a"}}); err != nil {
		return fmt.Errorf("execute context_header: %w", err)
	}
	if err := title.Execute(&bytes.Buffer{}, titleVars{MaxLength: 50}); err != nil {
		return fmt.Errorf("execute title_instruction: %w", err)
	}
	t.header, t.title = header, title
	return nil
}

type headerVars struct {
	Files []string
}

type titleVars struct {
	MaxLength int
}

// RenderContextHeader renders the header that introduces the project-file block.
func (t *Templates) RenderContextHeader(files []string) string {
	var buf bytes.Buffer
	if err := t.header.Execute(&buf, headerVars{Files: files}); err != nil {
		return t.ContextHeader
	}
	return strings.TrimRight(buf.String(), "\n")
}

// RenderTitleInstruction renders the title instruction for a maximum length.
func (t *Templates) RenderTitleInstruction(maxLength int) string {
	var buf bytes.Buffer
	if err := t.title.Execute(&buf, titleVars{MaxLength: maxLength}); err != nil {
		return t.TitleInstruction
	}
	return strings.TrimRight(buf.String(), "\n")
}
