// ABOUTME: Anthropic Messages API streaming provider
// ABOUTME: Emits text_delta content as it arrives and records stop reason and usage

package anthropic

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
	DefaultBaseURL   = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	messagesPath     = "/v1/messages"
	defaultMaxTokens = 4096
)

func init() {
	ai.Register(ai.ApiAnthropic, func(apiKey, baseURL string) ai.Provider { return New(apiKey, baseURL) })
}

// Provider implements ai.Provider for the Messages API.
type Provider struct {
	client *httputil.Client
}

// New creates a provider. An empty baseURL means DefaultBaseURL.
func New(apiKey, baseURL string) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{client: httputil.NewClient("anthropic", baseURL, map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": anthropicVersion,
		"content-type":      "application/json",
	})}
}

// Api returns ai.ApiAnthropic.
func (p *Provider) Api() ai.Api { return ai.ApiAnthropic }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type requestBody struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

// buildRequestBody fills max_tokens, which this API requires.
func buildRequestBody(req ai.Request) requestBody {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return requestBody{
		Model:       req.Model,
		Messages:    []message{{Role: "user", Content: req.Prompt}},
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Stream:      true,
	}
}

// Stream starts a streaming Messages call.
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
	reader, resp, err := p.client.Stream(ctx, messagesPath, body)
	if err != nil {
		return ai.Result{}, err
	}
	defer resp.Body.Close()
	return processEvents(reader, stream)
}

// processEvents consumes the stream until message_stop or EOF.
func processEvents(reader *sse.Reader, stream *ai.EventStream) (ai.Result, error) {
	var res ai.Result
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("reading anthropic stream: %w", err)
		}

		var p payload
		if err := easyjson.Unmarshal([]byte(ev.Data), &p); err != nil {
			pilog.Debug("anthropic: skipping undecodable %s event: %v", ev.Type, err)
			continue
		}
		kind := ev.Type
		if kind == "" {
			kind = p.Type
		}

		switch kind {
		case "message_start":
			res.Model = p.Model
			res.Usage.InputTokens = p.InputUsed
			res.Usage.OutputTokens = p.OutputUsed
		case "content_block_delta":
			if p.Delta.Type == "text_delta" {
				stream.Delta(p.Delta.Text)
			}
		case "message_delta":
			res.StopReason = mapStopReason(p.Delta.StopReason)
			if p.OutputUsed > 0 {
				res.Usage.OutputTokens = p.OutputUsed
			}
		case "message_stop":
			return res, nil
		case "error":
			msg := p.ErrMessage
			if msg == "" {
				msg = ev.Data
			}
			return res, fmt.Errorf("anthropic stream error: %s", msg)
		}
	}
}

func mapStopReason(reason string) ai.StopReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return ai.StopEndTurn
	case "max_tokens":
		return ai.StopMaxTokens
	default:
		return ai.StopOther
	}
}
