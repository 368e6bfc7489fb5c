// ABOUTME: OpenAI Chat Completions streaming provider (also fits Ollama, vLLM and other compatible servers)
// ABOUTME: Sends the prompt as one user message and emits content deltas as they arrive

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mailru/easyjson"

	pilog "github.com/mauromedda/gpt-go/internal/log"
	"github.com/mauromedda/gpt-go/pkg/ai"
	"github.com/mauromedda/gpt-go/pkg/ai/internal/httputil"
	"github.com/mauromedda/gpt-go/pkg/ai/internal/sse"
)

const (
	// DefaultBaseURL is used when no base URL is given.
	DefaultBaseURL     = "https://api.openai.com"
	chatCompletionPath = "/v1/chat/completions"
)

func init() {
	ai.Register(ai.ApiOpenAI, func(apiKey, baseURL string) ai.Provider { return New(apiKey, baseURL) })
}

// Provider implements ai.Provider for the Chat Completions API.
type Provider struct {
	client *httputil.Client
}

// New creates a provider. An empty baseURL means DefaultBaseURL.
func New(apiKey, baseURL string) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{client: httputil.NewClient("openai", baseURL, map[string]string{
		"Content-Type":  "application/json",
		"Accept":        "text/event-stream",
		"Authorization": "Bearer " + apiKey,
	})}
}

// Api returns ai.ApiOpenAI.
func (p *Provider) Api() ai.Api { return ai.ApiOpenAI }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type requestBody struct {
	Model         string        `json:"model"`
	Messages      []message     `json:"messages"`
	MaxTokens     int           `json:"max_tokens,omitempty"`
	Temperature   float64       `json:"temperature"`
	Stream        bool          `json:"stream"`
	StreamOptions streamOptions `json:"stream_options"`
}

func buildRequestBody(req ai.Request) requestBody {
	return requestBody{
		Model:         req.Model,
		Messages:      []message{{Role: "user", Content: req.Prompt}},
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		Stream:        true,
		StreamOptions: streamOptions{IncludeUsage: true},
	}
}

// Stream starts a streaming chat completion.
func (p *Provider) Stream(ctx context.Context, req ai.Request) *ai.EventStream {
	stream := ai.NewEventStream(64)
	go func() {
		res, err := p.run(ctx, req, stream)
		if err != nil {
			stream.Fail(err)
			return
		}
		stream.Finish(res)
	}()
	return stream
}

func (p *Provider) run(ctx context.Context, req ai.Request, stream *ai.EventStream) (ai.Result, error) {
	body, err := json.Marshal(buildRequestBody(req))
	if err != nil {
		return ai.Result{}, fmt.Errorf("marshaling request: %w", err)
	}
	reader, resp, err := p.client.Stream(ctx, chatCompletionPath, body)
	if err != nil {
		return ai.Result{}, err
	}
	defer resp.Body.Close()
	return processSSE(reader, stream)
}

func processSSE(reader *sse.Reader, stream *ai.EventStream) (ai.Result, error) {
	res := ai.Result{StopReason: ai.StopEndTurn}
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("reading openai stream: %w", err)
		}
		if ev.Data == "[DONE]" {
			return res, nil
		}

		var c chunk
		if err := easyjson.Unmarshal([]byte(ev.Data), &c); err != nil {
			pilog.Debug("openai: skipping undecodable chunk: %v", err)
			continue
		}
		if c.Error != nil {
			return res, fmt.Errorf("openai stream error: %s", c.Error.Message)
		}
		if c.Model != "" {
			res.Model = c.Model
		}
		for _, ch := range c.Choices {
			stream.Delta(ch.Content)
			if ch.FinishReason != "" {
				res.StopReason = mapFinishReason(ch.FinishReason)
			}
		}
		if c.Usage != nil {
			res.Usage = ai.Usage{InputTokens: c.Usage.PromptTokens, OutputTokens: c.Usage.CompletionTokens}
		}
	}
}

func mapFinishReason(reason string) ai.StopReason {
	switch reason {
	case "stop":
		return ai.StopEndTurn
	case "length":
		return ai.StopMaxTokens
	default:
		return ai.StopOther
	}
}
