// Package htmlconv turns the HTML fragments found in catalog descriptions into
// plain, wrapped text suitable for a line protocol.
package htmlconv

import (
	"io"
	"strings"

	"github.com/codefionn/bookshelf/internal/logger"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/net/html"
)

// DefaultWidth is the column limit used for detail descriptions.
const DefaultWidth = 100

// Block-level elements end the current line.
var lineBreakingTags = map[string]bool{
	"br":  true,
	"p":   true,
	"div": true,
	"li":  true,
	"ul":  true,
	"ol":  true,
}

// PlainText strips every tag from input and returns its text content.
// <br> and the end of block elements become newlines; entities are unescaped.
func PlainText(input string) string {
	if !strings.ContainsAny(input, "<&") {
		return input
	}

	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(input))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != nil && err != io.EOF {
				logger.Debug("htmlconv: tokenizer stopped early: %v", err)
			}
			return collapseBlankLines(sb.String())
		case html.TextToken:
			sb.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "br" {
				sb.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag != "br" && lineBreakingTags[tag] {
				sb.WriteByte('\n')
			}
		}
	}
}

// Wrap breaks text at word boundaries so that no line exceeds width columns,
// except for single words longer than width.
func Wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	return wordwrap.String(text, width)
}

// Description is PlainText followed by Wrap at DefaultWidth.
func Description(input string) string {
	return Wrap(PlainText(input), DefaultWidth)
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.Trim(strings.Join(out, "\n"), "\n")
}
