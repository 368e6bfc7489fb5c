// ABOUTME: Messages API stream payloads decoded with jlexer
// ABOUTME: One struct covers every event type; absent fields stay zero

package anthropic

import (
	"github.com/mailru/easyjson/jlexer"
)

// payload is the union of the stream event bodies this client reads.
type payload struct {
	Type       string
	Model      string // message_start
	Delta      delta  // content_block_delta, message_delta
	InputUsed  int    // message_start usage.input_tokens
	OutputUsed int    // usage.output_tokens
	ErrType    string // error
	ErrMessage string
}

type delta struct {
	Type       string
	Text       string
	StopReason string
}

// UnmarshalEasyJSON implements easyjson.Unmarshaler.
func (p *payload) UnmarshalEasyJSON(in *jlexer.Lexer) {
	object(in, func(key string) {
		switch key {
		case "type":
			p.Type = in.String()
		case "message":
			object(in, func(key string) {
				switch key {
				case "model":
					p.Model = in.String()
				case "usage":
					p.decodeUsage(in)
				default:
					in.SkipRecursive()
				}
			})
		case "delta":
			object(in, func(key string) {
				switch key {
				case "type":
					p.Delta.Type = in.String()
				case "text":
					p.Delta.Text = in.String()
				case "stop_reason":
					p.Delta.StopReason = in.String()
				default:
					in.SkipRecursive()
				}
			})
		case "usage":
			p.decodeUsage(in)
		case "error":
			object(in, func(key string) {
				switch key {
				case "type":
					p.ErrType = in.String()
				case "message":
					p.ErrMessage = in.String()
				default:
					in.SkipRecursive()
				}
			})
		default:
			in.SkipRecursive()
		}
	})
}

func (p *payload) decodeUsage(in *jlexer.Lexer) {
	object(in, func(key string) {
		switch key {
		case "input_tokens":
			p.InputUsed = in.Int()
		case "output_tokens":
			p.OutputUsed = in.Int()
		default:
			in.SkipRecursive()
		}
	})
}

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
