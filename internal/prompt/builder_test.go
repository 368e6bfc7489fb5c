// ABOUTME: Tests for prompt construction across all modes
// ABOUTME: Checks role framing, region delimiters, cursor placement, and title instructions

package prompt

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mauromedda/gpt-go/internal/types"
)

func TestBuild_ChatFraming(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Input
		want string
	}{
		{
			name: "instruction only",
			in:   Input{Instruction: "hello"},
			want: "User: hello\n\nAssistant: ",
		},
		{
			name: "with context",
			in:   Input{Instruction: "hello", Context: "CTX\n"},
			want: "User:\n\nCTX\n\nUser: hello\n\nAssistant: ",
		},
		{
			name: "with input block",
			in:   Input{Instruction: "fix it", Input: "x = 1\n"},
			want: "User:\n\n```\nx = 1\n```\n\nUser: fix it\n\nAssistant: ",
		},
		{
			name: "context then input",
			in:   Input{Instruction: "go", Context: "CTX", Input: "body", InputLang: "python"},
			want: "User:\n\nCTX\n\nUser:\n\n```python\nbody\n```\n\nUser: go\n\nAssistant: ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Build(types.ModeChat, tt.in, nil)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Build mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuild_InstructionVerbatimAndSuffix(t *testing.T) {
	t.Parallel()

	instructions := []string{"", "explain this", "multi\nline\ninstruction", "ünïcödé 🚀", "User: fake"}
	for _, mode := range []types.Mode{types.ModeChat, types.ModeFollowUp} {
		for _, instr := range instructions {
			got := Build(mode, Input{Instruction: instr, Context: "c", Input: "i", Transcript: "User: a\n\nAssistant: b"}, nil)
			if !strings.Contains(got, instr) {
				t.Errorf("%s: prompt does not contain instruction %q", mode, instr)
			}
			if !strings.HasSuffix(got, "Assistant: ") {
				t.Errorf("%s: prompt does not end with Assistant marker: %q", mode, got)
			}
		}
	}
}

func TestBuild_FollowUp(t *testing.T) {
	t.Parallel()

	got := Build(types.ModeFollowUp, Input{
		Instruction: "and then?",
		Transcript:  "User: hi\n\nAssistant: hello\n\n",
	}, nil)
	want := "User: hi\n\nAssistant: hello\n\nUser: and then?\n\nAssistant: "
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Build mismatch (-want +got):\n%s", diff)
	}

	// Without a transcript a follow-up is a plain chat.
	got = Build(types.ModeFollowUp, Input{Instruction: "hi"}, nil)
	if got != "User: hi\n\nAssistant: " {
		t.Errorf("empty transcript follow-up = %q", got)
	}
}

func TestBuild_RegionTransform(t *testing.T) {
	t.Parallel()

	tpl := DefaultTemplates()
	got := Build(types.ModeRegionTransform, Input{
		Instruction: "explain this",
		Region:      "x = 1",
	}, tpl)

	if !strings.Contains(got, "<region>x = 1<region>") {
		t.Errorf("missing delimited region: %q", got)
	}
	if !strings.Contains(got, tpl.TransformInstruction) {
		t.Errorf("missing transform instruction: %q", got)
	}
	if !strings.HasPrefix(got, "User: explain this\n\n") {
		t.Errorf("missing instruction turn: %q", got)
	}
	if strings.Contains(got, "```") {
		t.Errorf("region prompt must not contain code fences: %q", got)
	}
	if strings.Contains(got, "Assistant:") {
		t.Errorf("region prompt must not end with an Assistant turn: %q", got)
	}
}

func TestBuild_RegionTransformSurrounding(t *testing.T) {
	t.Parallel()

	tpl := DefaultTemplates()
	got := Build(types.ModeRegionTransform, Input{
		Instruction: "rename",
		Context:     "CTX",
		Region:      "b",
		Before:      "a\n",
		After:       "\nc",
	}, tpl)

	if !strings.HasPrefix(got, "User:\n\nCTX\n\n") {
		t.Errorf("context should come first: %q", got)
	}
	before := strings.Index(got, tpl.BeforeLabel+"\na\n")
	after := strings.Index(got, tpl.AfterLabel+"\n\nc")
	region := strings.Index(got, "<region>b<region>")
	if before < 0 || after < 0 || region < 0 {
		t.Fatalf("missing labeled sections: %q", got)
	}
	if !(region < before && before < after) {
		t.Errorf("unexpected section order: region=%d before=%d after=%d", region, before, after)
	}
	if strings.Contains(got, "```") {
		t.Errorf("surrounding text must not be fenced: %q", got)
	}
}

func TestBuild_PointCompletion(t *testing.T) {
	t.Parallel()

	tpl := DefaultTemplates()
	got := Build(types.ModePointCompletion, Input{Before: "func main() {\n\t", After: "\n}"}, tpl)
	want := "func main() {\n\t<cursor>\n}\n\n" + tpl.CompletionInstruction
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Build mismatch (-want +got):\n%s", diff)
	}

	got = Build(types.ModePointCompletion, Input{Before: "a", Instruction: "use a loop"}, tpl)
	if !strings.HasSuffix(got, tpl.CompletionGuidanceLabel+" use a loop") {
		t.Errorf("missing guidance: %q", got)
	}
}

func TestBuild_Title(t *testing.T) {
	t.Parallel()

	got := Build(types.ModeTitleGeneration, Input{Transcript: "User: hi\n\nAssistant: hello\n"}, nil)
	if !strings.HasPrefix(got, "User: hi\n\nAssistant: hello\n\n") {
		t.Errorf("transcript not preserved: %q", got)
	}
	if !strings.Contains(got, "at most 50 characters") {
		t.Errorf("default title length missing: %q", got)
	}
	if !strings.Contains(got, "Do not use quotes") {
		t.Errorf("quote rule missing: %q", got)
	}

	got = Build(types.ModeTitleGeneration, Input{Transcript: "x", TitleLength: 20}, nil)
	if !strings.Contains(got, "at most 20 characters") {
		t.Errorf("custom title length missing: %q", got)
	}
}

func TestBuild_Pure(t *testing.T) {
	t.Parallel()

	in := Input{Instruction: "i", Context: "c", Input: "x", Region: "r", Before: "b", After: "a", Transcript: "t"}
	for _, mode := range []types.Mode{types.ModeChat, types.ModeFollowUp, types.ModeRegionTransform, types.ModePointCompletion, types.ModeTitleGeneration} {
		if Build(mode, in, nil) != Build(mode, in, nil) {
			t.Errorf("%s: Build is not deterministic", mode)
		}
	}
}

func TestFence_LongerThanContent(t *testing.T) {
	t.Parallel()

	got := Fence("a\n```\nb", "")
	if !strings.HasPrefix(got, "````\n") || !strings.HasSuffix(got, "\n````") {
		t.Errorf("Fence did not lengthen: %q", got)
	}
}
