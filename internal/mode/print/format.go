// ABOUTME: Output formatters for one-shot runs: plain text, single JSON object, JSON lines
// ABOUTME: Text output streams chunks to Out and styled notices to Err

package print

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mauromedda/gpt-go/internal/markdown"
	"github.com/mauromedda/gpt-go/internal/runner"
)

// formatter abstracts output formatting.
type formatter interface {
	start()
	text(s string)
	progress(msg string, elapsed float64)
	notice(msg string)
	hint(msg string)
	err(e error)
	end(out Outcome, err error)
}

func newFormatter(cfg Config) formatter {
	switch cfg.OutputFormat {
	case "json":
		return &jsonFormatter{out: cfg.Out}
	case "stream-json":
		return &streamJSONFormatter{out: cfg.Out}
	default:
		return &textFormatter{cfg: cfg, buffered: cfg.Render || cfg.Code}
	}
}

// textFormatter streams text to Out. With Render or Code it holds the text
// back and prints the transformed result at the end.
type textFormatter struct {
	cfg      Config
	buffered bool
	ticking  bool
	last     byte
}

func (f *textFormatter) start() {}

func (f *textFormatter) text(s string) {
	if f.buffered || s == "" {
		return
	}
	f.clearTick()
	fmt.Fprint(f.cfg.Out, s)
	f.last = s[len(s)-1]
}

func (f *textFormatter) progress(msg string, elapsed float64) {
	if !f.cfg.Progress {
		return
	}
	fmt.Fprintf(f.cfg.Err, "\r%s", NoticeStyle.Render(fmt.Sprintf("%s %.0fs", msg, elapsed)))
	f.ticking = true
}

func (f *textFormatter) clearTick() {
	if f.ticking {
		fmt.Fprint(f.cfg.Err, "\r\x1b[K")
		f.ticking = false
	}
}

func (f *textFormatter) notice(msg string) {
	f.clearTick()
	f.newline()
	style := NoticeStyle
	if strings.HasPrefix(msg, "gpt: failed") {
		style = ErrorStyle
	}
	fmt.Fprintln(f.cfg.Err, style.Render(msg))
}

func (f *textFormatter) hint(msg string) {
	f.clearTick()
	fmt.Fprintln(f.cfg.Err, HintStyle.Render(msg))
}

func (f *textFormatter) err(e error) {
	f.clearTick()
	fmt.Fprintln(f.cfg.Err, ErrorStyle.Render("error: "+e.Error()))
}

// newline terminates streamed output that did not end in one.
func (f *textFormatter) newline() {
	if f.last != 0 && f.last != '\n' {
		fmt.Fprintln(f.cfg.Out)
	}
	f.last = 0
}

func (f *textFormatter) end(out Outcome, _ error) {
	f.clearTick()
	if !f.buffered {
		f.newline()
		return
	}
	text := out.Text
	if f.cfg.Code {
		block, ok := markdown.Last(text)
		if !ok {
			fmt.Fprintln(f.cfg.Err, NoticeStyle.Render("gpt: no code block in response"))
			return
		}
		text = block.Code
	}
	if f.cfg.Render && !f.cfg.Code {
		text = Render(text, f.cfg.Width)
	}
	fmt.Fprint(f.cfg.Out, text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(f.cfg.Out)
	}
}

// Render returns the terminal rendering of md, or md itself if glamour fails.
func Render(md string, width int) string {
	if md == "" {
		return ""
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	rendered, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(rendered, "\n ") + "\n"
}

// jsonFormatter collects everything and writes a single JSON object at the end.
type jsonFormatter struct {
	out     io.Writer
	notices []string
	errors  []string
}

type jsonOutput struct {
	Session  int      `json:"session,omitempty"`
	Buffer   string   `json:"buffer,omitempty"`
	Text     string   `json:"text"`
	Status   string   `json:"status"`
	ExitCode int      `json:"exit_code"`
	Decision string   `json:"decision,omitempty"`
	Notices  []string `json:"notices,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

func (f *jsonFormatter) start()                   {}
func (f *jsonFormatter) text(string)              {}
func (f *jsonFormatter) progress(string, float64) {}
func (f *jsonFormatter) hint(string)              {}
func (f *jsonFormatter) notice(msg string)        { f.notices = append(f.notices, msg) }
func (f *jsonFormatter) err(e error)              { f.errors = append(f.errors, e.Error()) }

func (f *jsonFormatter) end(out Outcome, err error) {
	res := jsonOutput{
		Session:  out.Session,
		Buffer:   out.Buffer,
		Text:     out.Text,
		Status:   statusOf(err),
		ExitCode: out.Result.ExitCode,
		Notices:  f.notices,
		Errors:   f.errors,
	}
	if out.Decision != 0 {
		res.Decision = out.Decision.String()
	}
	if err != nil && len(f.errors) == 0 {
		res.Errors = []string{err.Error()}
	}
	data, _ := json.Marshal(res)
	fmt.Fprintln(f.out, string(data))
}

// streamJSONFormatter outputs one JSON line per event.
type streamJSONFormatter struct {
	out io.Writer
}

type streamEvent struct {
	Type    string  `json:"type"`
	Session int     `json:"session,omitempty"`
	Text    string  `json:"text,omitempty"`
	Elapsed float64 `json:"elapsed,omitempty"`
	Status  string  `json:"status,omitempty"`
	Error   string  `json:"error,omitempty"`
}

func (f *streamJSONFormatter) start() { f.write(streamEvent{Type: "start"}) }

func (f *streamJSONFormatter) text(s string) { f.write(streamEvent{Type: "text", Text: s}) }

func (f *streamJSONFormatter) progress(_ string, elapsed float64) {
	f.write(streamEvent{Type: "progress", Elapsed: elapsed})
}

func (f *streamJSONFormatter) notice(msg string) { f.write(streamEvent{Type: "notice", Text: msg}) }

func (f *streamJSONFormatter) hint(msg string) { f.write(streamEvent{Type: "hint", Text: msg}) }

func (f *streamJSONFormatter) err(e error) { f.write(streamEvent{Type: "error", Error: e.Error()}) }

func (f *streamJSONFormatter) end(out Outcome, err error) {
	evt := streamEvent{Type: "end", Session: out.Session, Status: statusOf(err)}
	if err != nil {
		evt.Error = err.Error()
	}
	f.write(evt)
}

func (f *streamJSONFormatter) write(evt streamEvent) {
	data, _ := json.Marshal(evt)
	fmt.Fprintln(f.out, string(data))
}

func statusOf(err error) string {
	var ee *runner.ExitError
	switch {
	case err == nil:
		return "completed"
	case errors.As(err, &ee):
		return "failed"
	case ExitCode(err) == 0:
		return "canceled"
	}
	return "error"
}
