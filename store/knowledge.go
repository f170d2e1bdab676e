package store

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// PlainText strips markdown formatting from a knowledge article body by
// walking the goldmark AST and collecting text nodes. Block boundaries
// become single spaces so snippets stay readable.
func PlainText(markdown string) string {
	if markdown == "" {
		return ""
	}

	source := []byte(markdown)
	parser := goldmark.New().Parser()
	root := parser.Parse(text.NewReader(source))

	var sb strings.Builder
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch t := n.(type) {
		case *ast.Text:
			if entering {
				sb.Write(t.Segment.Value(source))
				if t.SoftLineBreak() || t.HardLineBreak() {
					sb.WriteByte(' ')
				}
			}
		case *ast.AutoLink:
			if entering {
				sb.Write(t.URL(source))
			}
		default:
			if !entering && n.Type() == ast.TypeBlock {
				sb.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(strings.Fields(sb.String()), " ")
}
