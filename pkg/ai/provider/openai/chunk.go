// ABOUTME: Chat Completions stream chunk types with jlexer decoders
// ABOUTME: Decoding skips reflection since it runs once per streamed token

package openai

import (
	"github.com/mailru/easyjson/jlexer"
)

// chunk is one "data:" payload of a streaming chat completion.
type chunk struct {
	Model   string
	Choices []choice
	Usage   *usage
	Error   *apiError
}

type choice struct {
	Content      string
	FinishReason string
}

type usage struct {
	PromptTokens     int
	CompletionTokens int
}

type apiError struct {
	Message string
	Type    string
}

// UnmarshalEasyJSON implements easyjson.Unmarshaler.
func (c *chunk) UnmarshalEasyJSON(in *jlexer.Lexer) {
	object(in, func(key string) {
		switch key {
		case "model":
			c.Model = in.String()
		case "choices":
			in.Delim('[')
			for !in.IsDelim(']') {
				var ch choice
				ch.decode(in)
				c.Choices = append(c.Choices, ch)
				in.WantComma()
			}
			in.Delim(']')
		case "usage":
			c.Usage = new(usage)
			object(in, func(key string) {
				switch key {
				case "prompt_tokens":
					c.Usage.PromptTokens = in.Int()
				case "completion_tokens":
					c.Usage.CompletionTokens = in.Int()
				default:
					in.SkipRecursive()
				}
			})
		case "error":
			c.Error = new(apiError)
			object(in, func(key string) {
				switch key {
				case "message":
					c.Error.Message = in.String()
				case "type":
					c.Error.Type = in.String()
				default:
					in.SkipRecursive()
				}
			})
		default:
			in.SkipRecursive()
		}
	})
}

func (ch *choice) decode(in *jlexer.Lexer) {
	object(in, func(key string) {
		switch key {
		case "finish_reason":
			ch.FinishReason = in.String()
		case "delta":
			object(in, func(key string) {
				if key == "content" {
					ch.Content = in.String()
					return
				}
				in.SkipRecursive()
			})
		default:
			in.SkipRecursive()
		}
	})
}

// object walks one JSON object, calling field for each non-null member.
// A null object leaves the target untouched.
func object(in *jlexer.Lexer, field func(key string)) {
	top := in.IsStart()
	if in.IsNull() {
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
		} else {
			field(key)
		}
		in.WantComma()
	}
	in.Delim('}')
	if top {
		in.Consumed()
	}
}
