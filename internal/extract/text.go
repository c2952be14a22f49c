package extract

import (
	"context"
	"regexp"
	"strings"
)

func plainText(_ context.Context, content []byte) (string, error) {
	return strings.ReplaceAll(string(content), "\r\n", "\n"), nil
}

var (
	mdFence      = regexp.MustCompile("(?s)```.*?```")
	mdHeader     = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	mdImage      = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	mdLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	mdBold       = regexp.MustCompile(`(\*\*|__)(.+?)(\*\*|__)`)
	mdItalic     = regexp.MustCompile(`(^|\W)[*_]([^*_\n]+?)[*_](\W|$)`)
	mdInlineCode = regexp.MustCompile("`([^`]+)`")
	mdListMarker = regexp.MustCompile(`(?m)^[ \t]*(?:[-*+]|\d+\.)[ \t]+`)
	mdQuote      = regexp.MustCompile(`(?m)^>[ \t]?`)
	mdRule       = regexp.MustCompile(`(?m)^[ \t]*(?:-{3,}|\*{3,}|_{3,})[ \t]*$`)
)

// markdown strips markup and keeps the readable text.
func markdown(ctx context.Context, content []byte) (string, error) {
	text, _ := plainText(ctx, content)

	text = mdFence.ReplaceAllString(text, "")
	text = mdRule.ReplaceAllString(text, "")
	text = mdHeader.ReplaceAllString(text, "")
	text = mdListMarker.ReplaceAllString(text, "")
	text = mdImage.ReplaceAllString(text, "")
	text = mdLink.ReplaceAllString(text, "$1")
	text = mdBold.ReplaceAllString(text, "$2")
	text = mdItalic.ReplaceAllString(text, "$1$2$3")
	text = mdInlineCode.ReplaceAllString(text, "$1")
	text = mdQuote.ReplaceAllString(text, "")

	return text, nil
}
