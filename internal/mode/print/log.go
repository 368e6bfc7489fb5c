// ABOUTME: Tabular listing of transcript records for `gpt log`
// ABOUTME: Columns are padded and truncated by display width with go-runewidth

package print

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/mauromedda/gpt-go/internal/session"
)

const (
	timeWidth    = 19
	sessionWidth = 7
	typeWidth    = 13
)

// WriteLog prints one row per record, fitting each row into width columns.
func WriteLog(w io.Writer, records []session.Record, width int) {
	if width <= 0 {
		width = 100
	}
	summaryWidth := max(width-timeWidth-sessionWidth-typeWidth-3, 10)

	header := row("TIME", "SESSION", "TYPE", "SUMMARY", summaryWidth)
	fmt.Fprintln(w, HeaderStyle.Render(header))
	for _, rec := range records {
		ts := rec.TS
		if len(ts) > timeWidth {
			ts = ts[:timeWidth]
		}
		fmt.Fprintln(w, row(ts, strconv.Itoa(rec.Session), string(rec.Type), Summary(rec), summaryWidth))
	}
}

func row(ts, sess, typ, summary string, summaryWidth int) string {
	return strings.Join([]string{
		runewidth.FillRight(runewidth.Truncate(ts, timeWidth, ""), timeWidth),
		runewidth.FillRight(runewidth.Truncate(sess, sessionWidth, ""), sessionWidth),
		runewidth.FillRight(runewidth.Truncate(typ, typeWidth, ""), typeWidth),
		runewidth.Truncate(summary, summaryWidth, "…"),
	}, " ")
}

// Summary condenses a record's payload to a single line.
func Summary(rec session.Record) string {
	var s string
	switch rec.Type {
	case session.RecordSessionStart:
		var d session.StartData
		if rec.Decode(&d) == nil {
			s = d.Mode
			if d.Target != "" {
				s += " " + d.Target
			}
			if d.Instruction != "" {
				s += ": " + d.Instruction
			}
		}
	case session.RecordPrompt:
		var d session.PromptData
		if rec.Decode(&d) == nil {
			s = d.Prompt
		}
	case session.RecordCompletion:
		var d session.CompletionData
		if rec.Decode(&d) == nil {
			s = d.Completion
		}
	case session.RecordTitle:
		var d session.TitleData
		if rec.Decode(&d) == nil {
			s = d.Title
		}
	case session.RecordSessionEnd:
		var d session.EndData
		if rec.Decode(&d) == nil {
			s = d.Status
			if d.Detail != "" {
				s += ": " + d.Detail
			}
		}
	}
	return strings.Join(strings.Fields(s), " ")
}
