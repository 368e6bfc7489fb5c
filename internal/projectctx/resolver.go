// ABOUTME: Context block assembly from selected project files
// ABOUTME: Reads files concurrently, keeps selection order, and skips unreadable files

package projectctx

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mauromedda/gpt-go/internal/log"
	"github.com/mauromedda/gpt-go/internal/prompt"
)

// maxConcurrentReads bounds parallel file reads.
const maxConcurrentReads = 8

// Skipped records a file that could not be included.
type Skipped struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// Resolved is the outcome of resolving a selection.
type Resolved struct {
	Text    string    `json:"text"`
	Files   []string  `json:"files"`
	Skipped []Skipped `json:"skipped,omitempty"`
}

// Resolver formats selected files into a context block.
type Resolver struct {
	provider  FileProvider
	templates *prompt.Templates
	notify    func(string)
}

// NewResolver creates a resolver. notify receives non-fatal diagnostics and may be nil.
func NewResolver(p FileProvider, tpl *prompt.Templates, notify func(string)) *Resolver {
	if tpl == nil {
		tpl = prompt.DefaultTemplates()
	}
	return &Resolver{provider: p, templates: tpl, notify: notify}
}

// ResolveSelectedFiles returns the formatted context block for paths, or
// "" when none could be read.
func (r *Resolver) ResolveSelectedFiles(ctx context.Context, paths []string) string {
	return r.Resolve(ctx, paths).Text
}

// Resolve reads paths and formats the readable ones. Read failures are
// reported through notify and never returned.
func (r *Resolver) Resolve(ctx context.Context, paths []string) Resolved {
	type slot struct {
		content string
		err     error
	}
	slots := make([]slot, len(paths))

	var g errgroup.Group
	g.SetLimit(maxConcurrentReads)
	for i, p := range paths {
		g.Go(func() error {
			content, err := r.provider.ReadFile(ctx, p)
			slots[i] = slot{content: content, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var res Resolved
	var body strings.Builder
	for i, p := range paths {
		if err := slots[i].err; err != nil {
			res.Skipped = append(res.Skipped, Skipped{Path: p, Err: err.Error()})
			msg := fmt.Sprintf("context: skipping %s: %v", p, err)
			log.Warn("%s", msg)
			if r.notify != nil {
				r.notify(msg)
			}
			continue
		}
		res.Files = append(res.Files, p)
		body.WriteString(FormatFile(p, slots[i].content))
	}
	if len(res.Files) == 0 {
		return res
	}
	res.Text = r.templates.RenderContextHeader(res.Files) + "\n\n" + body.String()
	return res
}

// FormatFile renders one file entry of a context block.
func FormatFile(path, content string) string {
	return "File: " + path + "\n" + prompt.Fence(content, "") + "\n"
}
