// ABOUTME: Tests for the OpenAI provider: request shape, delta streaming, usage, and errors
// ABOUTME: Uses httptest.NewServer to serve canned Chat Completions SSE bodies

package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mailru/easyjson"

	"github.com/mauromedda/gpt-go/pkg/ai"
)

func sseBody(deltas ...string) string {
	var b strings.Builder
	for _, d := range deltas {
		fmt.Fprintf(&b, "data: {\"model\":\"gpt-4o\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q},\"finish_reason\":null}]}\n\n", d)
	}
	b.WriteString("data: {\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":\"length\"}]}\n\n")
	b.WriteString("data: {\"choices\":[],\"usage\":{\"prompt_tokens\":7,\"completion_tokens\":3,\"total_tokens\":10}}\n\n")
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func TestProvider_StreamsDeltas(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != chatCompletionPath {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		want := map[string]any{
			"model":          "gpt-4o",
			"messages":       []any{map[string]any{"role": "user", "content": "say hi"}},
			"max_tokens":     float64(64),
			"temperature":    0.5,
			"stream":         true,
			"stream_options": map[string]any{"include_usage": true},
		}
		if diff := cmp.Diff(want, body); diff != "" {
			t.Errorf("request body mismatch (-want +got):\n%s", diff)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(sseBody("Hel", "lo ", "\"world\"\n")))
	}))
	t.Cleanup(srv.Close)

	p, err := ai.New("openai", "sk-test", srv.URL+"/v1")
	if err != nil {
		t.Fatal(err)
	}
	s := p.Stream(context.Background(), ai.Request{Model: "gpt-4o", Prompt: "say hi", MaxTokens: 64, Temperature: 0.5})

	var deltas []string
	for ev := range s.Events() {
		switch ev.Type {
		case ai.EventDelta:
			deltas = append(deltas, ev.Text)
		case ai.EventError:
			t.Fatalf("error event: %v", ev.Error)
		}
	}
	if diff := cmp.Diff([]string{"Hel", "lo ", "\"world\"\n"}, deltas); diff != "" {
		t.Errorf("deltas mismatch (-want +got):\n%s", diff)
	}
	want := &ai.Result{
		Text:       "Hello \"world\"\n",
		Model:      "gpt-4o",
		StopReason: ai.StopMaxTokens,
		Usage:      ai.Usage{InputTokens: 7, OutputTokens: 3},
	}
	if diff := cmp.Diff(want, s.Result()); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestProvider_HTTPError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key"}}`))
	}))
	t.Cleanup(srv.Close)

	s := New("bad", srv.URL).Stream(context.Background(), ai.Request{Model: "m", Prompt: "p"})
	for range s.Events() {
	}
	err := s.Err()
	if err == nil || !strings.Contains(err.Error(), "status 401") || !strings.Contains(err.Error(), "Incorrect API key") {
		t.Fatalf("Err = %v", err)
	}
}

func TestProvider_StreamErrorChunk(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"par\"}}]}\n\ndata: {\"error\":{\"message\":\"overloaded\",\"type\":\"server_error\"}}\n\n"))
	}))
	t.Cleanup(srv.Close)

	s := New("k", srv.URL).Stream(context.Background(), ai.Request{})
	var text string
	for ev := range s.Events() {
		text += ev.Text
	}
	if text != "par" {
		t.Errorf("text = %q", text)
	}
	if err := s.Err(); err == nil || !strings.Contains(err.Error(), "overloaded") {
		t.Errorf("Err = %v", err)
	}
}

func TestChunkDecode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data string
		want chunk
	}{
		{
			name: "content delta",
			data: `{"id":"x","object":"chat.completion.chunk","model":"m","choices":[{"index":0,"delta":{"role":"assistant","content":"hi é"},"logprobs":null,"finish_reason":null}]}`,
			want: chunk{Model: "m", Choices: []choice{{Content: "hi é"}}},
		},
		{
			name: "finish with null usage",
			data: `{"choices":[{"delta":{},"finish_reason":"stop"}],"usage":null}`,
			want: chunk{Choices: []choice{{FinishReason: "stop"}}},
		},
		{
			name: "usage only",
			data: `{"choices":[],"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3,"prompt_tokens_details":{"cached_tokens":0}}}`,
			want: chunk{Usage: &usage{PromptTokens: 1, CompletionTokens: 2}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got chunk
			if err := easyjson.Unmarshal([]byte(tt.data), &got); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(chunk{}, choice{}, usage{})); diff != "" {
				t.Errorf("chunk mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestChunkDecode_Malformed(t *testing.T) {
	t.Parallel()
	var c chunk
	if err := easyjson.Unmarshal([]byte(`{"choices":[{`), &c); err == nil {
		t.Error("expected error for truncated chunk")
	}
}
