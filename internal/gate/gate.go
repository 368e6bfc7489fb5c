// ABOUTME: Accept/reject decision point for speculative point-completion text
// ABOUTME: Resolution is one-shot: it stops delivery, clears the overlay, and rolls back on reject

package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mauromedda/gpt-go/internal/deliver"
	"github.com/mauromedda/gpt-go/internal/log"
	"github.com/mauromedda/gpt-go/internal/textbuf"
)

// ErrUserAbort marks a rejected completion. It is a normal outcome, not a failure.
var ErrUserAbort = errors.New("completion canceled")

// Decision is the outcome of a gate.
type Decision int

const (
	Accept Decision = iota + 1
	Reject
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	}
	return "undecided"
}

// DefaultAcceptKey confirms a completion.
const DefaultAcceptKey = "tab"

// Face names the overlay highlighting pending text.
const Face = "gpt-completion-pending"

// KeySource yields the next key the user presses.
type KeySource interface {
	ReadKey(ctx context.Context) (string, error)
}

// Options configures a Gate.
type Options struct {
	AcceptKey string
	// Notify receives user-facing notices (may be nil).
	Notify func(string)
	// OnResolve runs once after the decision has been applied (may be nil).
	OnResolve func(Decision)
}

// Gate holds streamed completion text pending the user's decision.
type Gate struct {
	buf     *textbuf.Buffer
	sink    *deliver.MarkerSink
	overlay *textbuf.Overlay
	opts    Options

	once     sync.Once
	decision Decision
	done     chan struct{}
}

// New opens a gate over sink's span in buf and highlights it.
func New(buf *textbuf.Buffer, sink *deliver.MarkerSink, opts Options) *Gate {
	if opts.AcceptKey == "" {
		opts.AcceptKey = DefaultAcceptKey
	}
	return &Gate{
		buf:     buf,
		sink:    sink,
		overlay: buf.AddOverlay(sink.Start(), sink.Cursor(), Face),
		opts:    opts,
		done:    make(chan struct{}),
	}
}

// Buffer returns the gated buffer.
func (g *Gate) Buffer() *textbuf.Buffer { return g.buf }

// AcceptKey returns the confirming key name.
func (g *Gate) AcceptKey() string { return g.opts.AcceptKey }

// DecisionFor maps a key to its decision.
func (g *Gate) DecisionFor(key string) Decision {
	if key == g.opts.AcceptKey {
		return Accept
	}
	return Reject
}

// Await blocks for exactly one key and resolves the gate with it. If the
// key source fails, the gate is rejected and the error returned.
func (g *Gate) Await(ctx context.Context, keys KeySource) (Decision, error) {
	key, err := keys.ReadKey(ctx)
	if err != nil {
		g.Resolve(Reject)
		return Reject, fmt.Errorf("await key: %w", err)
	}
	d := g.DecisionFor(key)
	g.Resolve(d)
	return g.Decision(), nil
}

// Resolve applies d unless the gate is already resolved. It reports
// whether this call decided the gate.
func (g *Gate) Resolve(d Decision) bool {
	first := false
	g.once.Do(func() {
		first = true
		g.sink.Stop()
		g.buf.RemoveOverlay(g.overlay)
		if d == Reject {
			if err := g.sink.Rollback(); err != nil {
				log.Warn("gate: rollback %s: %v", g.buf.Name(), err)
			}
			if g.opts.Notify != nil {
				g.opts.Notify(ErrUserAbort.Error())
			}
		}
		g.sink.Release()
		g.decision = d
		close(g.done)
		if g.opts.OnResolve != nil {
			g.opts.OnResolve(d)
		}
	})
	return first
}

// Done is closed once the gate is resolved.
func (g *Gate) Done() <-chan struct{} { return g.done }

// Decision returns the outcome, or 0 while pending.
func (g *Gate) Decision() Decision {
	select {
	case <-g.done:
		return g.decision
	default:
		return 0
	}
}

// Pending reports whether the gate awaits a decision.
func (g *Gate) Pending() bool {
	return g.Decision() == 0
}
