// Package document loads text for reading from files, finds candidate
// files in a directory, and watches an imported file for edits.
package document

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/unicode/norm"
)

// Document is imported text.
type Document struct {
	Path    string
	Text    string
	ModTime time.Time
}

var markdownExtensions = map[string]bool{
	".md": true, ".mdown": true, ".mkdn": true, ".mkd": true, ".markdown": true,
}

// IsMarkdown reports whether path has a markdown extension.
func IsMarkdown(path string) bool {
	return markdownExtensions[strings.ToLower(filepath.Ext(path))]
}

// Load reads a whole file as text. Markdown is reduced to its prose.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("unable to stat file: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("unable to get absolute path: %w", err)
	}

	body, err := Read(f, IsMarkdown(path))
	if err != nil {
		return nil, err
	}
	return &Document{Path: abs, Text: body, ModTime: info.ModTime()}, nil
}

// Read reads all of r as text, stripping markdown syntax when markdown is
// set. Line endings are normalized and the result is NFC.
func Read(r io.Reader, markdown bool) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("unable to read from reader: %w", err)
	}
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	s := string(b)
	if markdown {
		s = PlainText(b)
	}
	return strings.TrimSpace(norm.NFC.String(s)), nil
}

// PlainText renders markdown as plain paragraphs separated by blank
// lines. Code blocks and raw HTML are dropped.
func PlainText(src []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var blocks []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			blocks = append(blocks, s)
		}
		cur.Reset()
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
			if !entering {
				flush()
			}
		case *ast.Text:
			if entering {
				cur.Write(n.Segment.Value(src))
				if n.SoftLineBreak() || n.HardLineBreak() {
					cur.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				cur.Write(n.Value)
			}
		}
		return ast.WalkContinue, nil
	})
	flush()
	return strings.Join(blocks, "\n\n")
}
