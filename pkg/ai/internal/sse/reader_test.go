// ABOUTME: Table-driven tests for the SSE decoder
// ABOUTME: Covers multi-line data, comments, CRLF endings, unterminated events, and line limits

package sse

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func readAll(t *testing.T, input string) []Event {
	t.Helper()
	r := NewReader(strings.NewReader(input))
	var got []Event
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return got
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, *ev)
	}
}

func TestReaderNext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []Event
	}{
		{"all fields", "event: message\ndata: hello world\nid: 1\n\n", []Event{{Type: "message", Data: "hello world", ID: "1"}}},
		{"data only", "data: just data\n\n", []Event{{Data: "just data"}}},
		{"multi-line data", "data: one\ndata: two\ndata: three\n\n", []Event{{Data: "one\ntwo\nthree"}}},
		{"several events", "event: a\ndata: 1\n\nevent: b\ndata: 2\n\n", []Event{{Type: "a", Data: "1"}, {Type: "b", Data: "2"}}},
		{"empty stream", "", nil},
		{"comments skipped", ": keepalive\ndata: visible\n\n", []Event{{Data: "visible"}}},
		{"only comments", ": c\n\n: d\n\n", nil},
		{"no space after colon", "event:x\ndata:v\nid:42\n\n", []Event{{Type: "x", Data: "v", ID: "42"}}},
		{"colon in value", "data: key: value\n\n", []Event{{Data: "key: value"}}},
		{"crlf endings", "event: e\r\ndata: v\r\n\r\n", []Event{{Type: "e", Data: "v"}}},
		{"unterminated last event", "data: [DONE]", []Event{{Data: "[DONE]"}}},
		{"unknown fields ignored", "retry: 10\n\ndata: x\n\n", []Event{{Data: "x"}}},
		{"empty data line", "data:\n\n", []Event{{Data: ""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(tt.want, readAll(t, tt.input)); diff != "" {
				t.Errorf("events mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReaderNext_LargeLine(t *testing.T) {
	t.Parallel()
	big := strings.Repeat("x", 512*1024)
	got := readAll(t, "data: "+big+"\n\n")
	if len(got) != 1 || got[0].Data != big {
		t.Fatalf("got %d events", len(got))
	}
}

func TestReaderNext_LineTooLong(t *testing.T) {
	t.Parallel()
	r := NewReader(strings.NewReader("data: " + strings.Repeat("x", MaxLineSize+1) + "\n\n"))
	if _, err := r.Next(); !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("err = %v, want ErrLineTooLong", err)
	}
}

func BenchmarkReaderNext_MultiLineData(b *testing.B) {
	payload := strings.Repeat("data: some payload data for benchmarking\n", 50) + "\n"
	for b.Loop() {
		_, _ = NewReader(strings.NewReader(payload)).Next()
	}
}
