package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	blockTags = map[string]bool{
		"p": true, "div": true, "br": true, "hr": true, "li": true, "tr": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
		"blockquote": true, "pre": true, "table": true, "section": true, "article": true,
		"header": true, "footer": true, "ul": true, "ol": true,
	}
	skipTags = map[string]bool{
		"script": true, "style": true, "noscript": true, "head": true, "svg": true, "template": true,
	}
	htmlSpaces   = regexp.MustCompile(`[ \t\r\f\v]+`)
	htmlNewlines = regexp.MustCompile(`\n[ \t]*(\n[ \t]*)+`)
)

// htmlText keeps visible text, turning block elements into paragraph breaks.
func htmlText(_ context.Context, content []byte) (string, error) {
	z := html.NewTokenizer(bytes.NewReader(content))

	var b strings.Builder
	skipDepth := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return "", fmt.Errorf("parse html: %w", err)
			}
			return normalizeHTMLSpace(b.String()), nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipTags[tag] {
				if tt == html.StartTagToken {
					skipDepth++
				}
				continue
			}
			if blockTags[tag] {
				b.WriteString("\n\n")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipTags[tag] {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			if blockTags[tag] {
				b.WriteString("\n\n")
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func normalizeHTMLSpace(s string) string {
	s = htmlSpaces.ReplaceAllString(s, " ")
	s = htmlNewlines.ReplaceAllString(s, "\n\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
