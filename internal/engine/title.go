// ABOUTME: Title generation: summarises a conversation buffer and renames it
// ABOUTME: Awaits the back end through the handle future instead of polling

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mauromedda/gpt-go/internal/log"
	"github.com/mauromedda/gpt-go/internal/prompt"
	"github.com/mauromedda/gpt-go/internal/session"
	"github.com/mauromedda/gpt-go/internal/types"
)

// ErrNoConversation means a buffer holds no session to title.
var ErrNoConversation = errors.New("no conversation in buffer")

// TitleResult reports a generated title.
type TitleResult struct {
	Session int    `json:"session"`
	Title   string `json:"title"`
	Buffer  string `json:"buffer"`
}

// GenerateTitle asks the back end for a short title of the conversation in
// buffer and applies it to the buffer's first session. Under the named
// policy the buffer is renamed to match. On failure the title is left
// unchanged and the back-end error returned.
func (e *Engine) GenerateTitle(ctx context.Context, buffer string) (TitleResult, error) {
	buf, err := e.buffer(buffer)
	if err != nil {
		return TitleResult{}, err
	}
	sessions := e.deps.Store.ForTarget(buffer)
	var owner *session.Session
	for i := range sessions {
		if sessions[i].Mode == types.ModeChat || sessions[i].Mode == types.ModeFollowUp {
			owner = &sessions[i]
			break
		}
	}
	transcript := strings.TrimSpace(buf.Text())
	if owner == nil || transcript == "" {
		return TitleResult{}, fmt.Errorf("buffer %q: %w", buffer, ErrNoConversation)
	}

	cfg := e.Config()
	title, err := e.titleFor(ctx, buffer, transcript, owner.Title)
	if err != nil {
		return TitleResult{}, err
	}
	updated, err := e.deps.Store.SetTitle(owner.ID, title)
	if err != nil {
		return TitleResult{}, err
	}
	e.record(session.RecordTitle, owner.ID, session.TitleData{Title: updated.Title})

	out := TitleResult{Session: owner.ID, Title: updated.Title, Buffer: updated.Target}
	if cfg.Policy == session.PolicyNamed && isSessionBuffer(updated.Target) {
		name := e.deps.Registry.Unique(session.BufferName(session.PolicyNamed, owner.ID, updated.Title))
		if name != updated.Target {
			if err := e.deps.Registry.Rename(updated.Target, name); err != nil {
				log.Warn("engine: rename %s: %v", updated.Target, err)
			} else {
				out.Buffer = name
			}
		}
	}
	e.events.Publish(Event{Kind: EventTitle, Session: owner.ID, Buffer: updated.Target, Renamed: out.Buffer, Title: out.Title})
	return out, nil
}

// SuggestTitle asks the back end for a title of a conversation held
// outside any buffer.
func (e *Engine) SuggestTitle(ctx context.Context, transcript string) (string, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", ErrNoConversation
	}
	title, err := e.titleFor(ctx, "", transcript, session.CleanTitle(transcript))
	if err != nil {
		return "", err
	}
	return session.Truncate(title, e.deps.Store.TitleMax()), nil
}

// titleFor runs a title-generation session and returns the cleaned title.
func (e *Engine) titleFor(ctx context.Context, target, transcript, label string) (string, error) {
	cfg := e.Config()
	tpl, _ := e.templates()
	text := prompt.Build(types.ModeTitleGeneration, prompt.Input{
		Transcript:  transcript,
		TitleLength: cfg.TitleLength,
	}, tpl)

	sess := e.deps.Store.Create(types.ModeTitleGeneration, target, "title: "+label)
	run := newRun(sess, nil, false)
	if err := e.launch(run, text, false); err != nil {
		return "", err
	}
	res, err := run.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("generate title: %w", err)
	}
	title := session.CleanTitle(res.Output)
	if title == "" {
		return "", errors.New("generate title: back end returned no text")
	}
	return title, nil
}

// autoTitle titles a finished first chat in the background.
func (e *Engine) autoTitle(r *Run) {
	if len(e.deps.Store.ForTarget(e.targetOf(r))) != 1 {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if _, err := e.GenerateTitle(e.ctx, e.targetOf(r)); err != nil {
			log.Warn("engine: auto title for session %d: %v", r.ID, err)
		}
	}()
}

// isSessionBuffer reports whether name was allocated for a named session.
func isSessionBuffer(name string) bool {
	return strings.HasPrefix(name, "*gpt[")
}
