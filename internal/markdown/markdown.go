// ABOUTME: Fenced code-block extraction from model responses via the goldmark AST
// ABOUTME: Blocks keep their info-string language and document order

package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// CodeBlock is one fenced block of a markdown document.
type CodeBlock struct {
	Index    int    `json:"index"`
	Language string `json:"language,omitempty"`
	Code     string `json:"code"`
}

var parser = goldmark.New().Parser()

// CodeBlocks returns every fenced code block in src, in order.
func CodeBlocks(src string) []CodeBlock {
	source := []byte(src)
	doc := parser.Parse(text.NewReader(source))

	var blocks []CodeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		var b strings.Builder
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(source))
		}
		blocks = append(blocks, CodeBlock{
			Index:    len(blocks),
			Language: string(fenced.Language(source)),
			Code:     b.String(),
		})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

// Last returns the final code block, if any.
func Last(src string) (CodeBlock, bool) {
	blocks := CodeBlocks(src)
	if len(blocks) == 0 {
		return CodeBlock{}, false
	}
	return blocks[len(blocks)-1], true
}
