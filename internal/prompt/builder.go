// ABOUTME: Prompt construction for chat, follow-up, region transform, point completion, and titles
// ABOUTME: Build is a pure function of its inputs; framing follows the User:/Assistant: convention

package prompt

import (
	"strings"

	"github.com/mauromedda/gpt-go/internal/types"
)

const (
	userRole      = "User:"
	assistantRole = "Assistant: "
	regionMarker  = "<region>"
	cursorMarker  = "<cursor>"

	// DefaultTitleLength bounds generated titles when Input.TitleLength is zero.
	DefaultTitleLength = 50
)

// Input collects everything a prompt can be built from. Fields irrelevant
// to the chosen mode are ignored.
type Input struct {
	Instruction string
	// Context is the resolved project-file block.
	Context string
	// Input is buffer, region, or multi-buffer content attached to a chat.
	Input string
	// InputLang is the fence info string for Input.
	InputLang string
	// Transcript is the prior conversation (follow-up, title generation).
	Transcript string
	// Region is the text to transform; Before and After surround the
	// region or the completion point.
	Region string
	Before string
	After  string

	TitleLength int
}

// Build assembles the prompt for mode.
func Build(mode types.Mode, in Input, t *Templates) string {
	if t == nil {
		t = DefaultTemplates()
	}
	switch mode {
	case types.ModeFollowUp:
		return buildFollowUp(in)
	case types.ModeRegionTransform:
		return buildTransform(in, t)
	case types.ModePointCompletion:
		return buildCompletion(in, t)
	case types.ModeTitleGeneration:
		return buildTitle(in, t)
	default:
		return buildChat(in)
	}
}

func buildChat(in Input) string {
	var b strings.Builder
	writeContext(&b, in.Context)
	if in.Input != "" {
		b.WriteString(userRole + "\n\n")
		b.WriteString(Fence(in.Input, in.InputLang))
		b.WriteString("\n\n")
	}
	writeTurn(&b, in.Instruction)
	return b.String()
}

// buildFollowUp continues an existing transcript. Without one it degrades to a chat prompt.
func buildFollowUp(in Input) string {
	transcript := strings.TrimRight(in.Transcript, " \n")
	if transcript == "" {
		return buildChat(in)
	}
	var b strings.Builder
	b.WriteString(transcript)
	b.WriteString("\n\n")
	writeTurn(&b, in.Instruction)
	return b.String()
}

func buildTransform(in Input, t *Templates) string {
	var b strings.Builder
	writeContext(&b, in.Context)
	b.WriteString(userRole + " " + in.Instruction + "\n\n")
	b.WriteString(regionMarker + in.Region + regionMarker + "\n\n")
	b.WriteString(t.TransformInstruction)

	if in.Before != "" || in.After != "" {
		b.WriteString("\n\n" + t.SurroundingLabel + "\n")
		if in.Before != "" {
			b.WriteString("\n" + t.BeforeLabel + "\n" + in.Before + "\n")
		}
		if in.After != "" {
			b.WriteString("\n" + t.AfterLabel + "\n" + in.After + "\n")
		}
	}
	return b.String()
}

func buildCompletion(in Input, t *Templates) string {
	var b strings.Builder
	writeContext(&b, in.Context)
	b.WriteString(in.Before + cursorMarker + in.After)
	b.WriteString("\n\n" + t.CompletionInstruction)
	if strings.TrimSpace(in.Instruction) != "" {
		b.WriteString("\n" + t.CompletionGuidanceLabel + " " + in.Instruction)
	}
	return b.String()
}

func buildTitle(in Input, t *Templates) string {
	n := in.TitleLength
	if n <= 0 {
		n = DefaultTitleLength
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(in.Transcript, " \n"))
	b.WriteString("\n\n")
	b.WriteString(t.RenderTitleInstruction(n))
	return b.String()
}

func writeContext(b *strings.Builder, context string) {
	context = strings.TrimRight(context, "\n")
	if context == "" {
		return
	}
	b.WriteString(userRole + "\n\n")
	b.WriteString(context)
	b.WriteString("\n\n")
}

func writeTurn(b *strings.Builder, instruction string) {
	b.WriteString(userRole + " " + instruction + "\n\n" + assistantRole)
}

// Fence wraps content in a markdown code fence, lengthening the fence when
// the content itself contains backtick runs.
func Fence(content, lang string) string {
	fence := "```"
	for strings.Contains(content, fence) {
		fence += "`"
	}
	return fence + lang + "\n" + strings.TrimRight(content, "\n") + "\n" + fence
}

// Turn returns the visible text appended to a chat buffer for a new user turn.
func Turn(instruction string) string {
	var b strings.Builder
	writeTurn(&b, instruction)
	return b.String()
}
