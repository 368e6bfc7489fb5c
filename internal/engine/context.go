// ABOUTME: Persistent context selection operations and project file listing
// ABOUTME: Selection changes are saved to the project context file when configured

package engine

import (
	"context"
	"fmt"

	"github.com/mauromedda/gpt-go/internal/log"
	"github.com/mauromedda/gpt-go/internal/markdown"
	"github.com/mauromedda/gpt-go/internal/projectctx"
)

// SetContext replaces the persistent selection.
func (e *Engine) SetContext(paths []string) []string {
	e.deps.Selection.Set(paths)
	e.saveSelection()
	return e.deps.Selection.Paths()
}

// ClearContext empties the persistent selection.
func (e *Engine) ClearContext() {
	e.deps.Selection.Clear()
	e.saveSelection()
}

// GetContext returns the selection and, when resolve is set, the block
// that would be attached to the next prompt.
func (e *Engine) GetContext(ctx context.Context, resolve bool) ([]string, projectctx.Resolved) {
	paths := e.deps.Selection.Paths()
	if !resolve || len(paths) == 0 || e.deps.Provider == nil {
		return paths, projectctx.Resolved{}
	}
	_, resolver := e.templates()
	return paths, resolver.Resolve(ctx, paths)
}

// SelectContext runs the ad hoc picker over the project files and stores
// the result as the persistent selection.
func (e *Engine) SelectContext(ctx context.Context, picker projectctx.Picker) ([]string, error) {
	if e.deps.Provider == nil {
		return nil, ErrContextUnavailable
	}
	paths, err := projectctx.SelectAdHoc(ctx, e.deps.Provider, picker)
	if err != nil {
		return nil, fmt.Errorf("select context: %w", err)
	}
	return e.SetContext(paths), nil
}

// ListProjectFiles lists candidate context files.
func (e *Engine) ListProjectFiles(ctx context.Context) ([]string, error) {
	if e.deps.Provider == nil {
		return nil, ErrContextUnavailable
	}
	return e.deps.Provider.ListProjectFiles(ctx)
}

// CodeBlocks extracts the fenced code blocks of a buffer.
func (e *Engine) CodeBlocks(buffer string) ([]markdown.CodeBlock, error) {
	buf, err := e.buffer(buffer)
	if err != nil {
		return nil, err
	}
	return markdown.CodeBlocks(buf.Text()), nil
}

func (e *Engine) saveSelection() {
	if e.deps.ContextFile == "" {
		return
	}
	if err := e.deps.Selection.Save(e.deps.ContextFile); err != nil {
		log.Warn("engine: save context: %v", err)
	}
}
