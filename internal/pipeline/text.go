package pipeline

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// strippedSelectors are subtrees that never hold article text
const strippedSelectors = "script, style, nav, footer, svg, noscript, template, iframe"

// blockElements end a line of visible text
var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Br: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Figcaption: true, atom.Figure: true, atom.Form: true, atom.H1: true,
	atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Hr: true, atom.Li: true, atom.Main: true, atom.Ol: true,
	atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true, atom.Td: true,
	atom.Th: true, atom.Tr: true, atom.Ul: true,
}

// ExtractText decodes an HTML document using the charset from contentType (or
// the document's own meta tags, UTF-8 by default) and returns its visible body
// text. Each block element starts a new line; whitespace inside a line is
// collapsed and empty lines are dropped.
func ExtractText(r io.Reader, contentType string) (string, error) {
	utf8Reader, err := charset.NewReader(r, contentType)
	if errors.Is(err, io.EOF) {
		// Empty body
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("decode charset: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(utf8Reader)
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}

	doc.Find(strippedSelectors).Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var sb strings.Builder
	for _, n := range root.Nodes {
		writeVisibleText(&sb, n)
	}

	return collapseLines(sb.String()), nil
}

func writeVisibleText(sb *strings.Builder, n *nethtml.Node) {
	switch n.Type {
	case nethtml.TextNode:
		sb.WriteString(n.Data)
		return
	case nethtml.CommentNode:
		return
	}

	block := n.Type == nethtml.ElementNode && blockElements[n.DataAtom]
	if block {
		sb.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeVisibleText(sb, c)
	}
	if block {
		sb.WriteByte('\n')
	}
}

// collapseLines normalises whitespace per line. Entities were already decoded
// by the HTML parser, so text such as a literal "&lt;" is left alone.
func collapseLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
