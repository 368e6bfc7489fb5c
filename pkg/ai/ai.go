// ABOUTME: Streaming completion client types shared by the model back-end providers
// ABOUTME: A Provider turns one prompt into an EventStream of text deltas

package ai

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Api identifies a model API.
type Api string

const (
	ApiOpenAI    Api = "openai"
	ApiAnthropic Api = "anthropic"
)

// StopReason indicates why the model stopped generating.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopMaxTokens StopReason = "max_tokens"
	StopOther     StopReason = "other"
)

// Request is a single-prompt completion request. The prompt is sent as one
// user message.
type Request struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Result is the final state of a completed stream.
type Result struct {
	Text       string
	Model      string
	StopReason StopReason
	Usage      Usage
}

// Provider is implemented by every model API client.
type Provider interface {
	Api() Api
	// Stream starts the request; ctx cancels the underlying HTTP call.
	Stream(ctx context.Context, req Request) *EventStream
}

// Factory builds a Provider from an API key and an optional base URL.
type Factory func(apiKey, baseURL string) Provider

var (
	registryMu sync.RWMutex
	registry   = make(map[Api]Factory)
)

// Register makes a provider available by name.
func Register(api Api, f Factory) {
	registryMu.Lock()
	registry[api] = f
	registryMu.Unlock()
}

// New returns the provider registered under name.
func New(name, apiKey, baseURL string) (Provider, error) {
	registryMu.RLock()
	f, ok := registry[Api(name)]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (known: %v)", name, Registered())
	}
	return f(apiKey, baseURL), nil
}

// Registered lists the registered provider names in order.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for api := range registry {
		names = append(names, string(api))
	}
	sort.Strings(names)
	return names
}
