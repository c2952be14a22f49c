// Package extract turns uploaded files into plain text, choosing a strategy
// by the declared file type.
package extract

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/liliang-cn/askdesk/internal/domain"
)

// MinTextLength is the shortest extracted text accepted for chunking.
const MinTextLength = 10

// Strategy extracts text from the raw bytes of one file format.
type Strategy func(ctx context.Context, content []byte) (string, error)

// Extractor dispatches to a strategy by declared file type.
type Extractor struct {
	strategies map[string]Strategy
}

// New returns an extractor with every built-in strategy registered.
func New() *Extractor {
	e := &Extractor{strategies: make(map[string]Strategy)}

	e.Register(plainText, "txt", "text", "log")
	e.Register(markdown, "md", "markdown")
	e.Register(delimited(','), "csv")
	e.Register(delimited('\t'), "tsv")
	e.Register(jsonText, "json")
	e.Register(yamlText, "yaml", "yml")
	e.Register(htmlText, "html", "htm")
	e.Register(pdfText, "pdf")
	e.Register(docxText, "docx")

	return e
}

// Register binds a strategy to one or more file types, replacing any
// existing binding.
func (e *Extractor) Register(s Strategy, fileTypes ...string) {
	for _, t := range fileTypes {
		e.strategies[NormalizeType(t)] = s
	}
}

// Supports reports whether a declared type has a strategy.
func (e *Extractor) Supports(fileType string) bool {
	_, ok := e.strategies[NormalizeType(fileType)]
	return ok
}

// Types lists the supported file types.
func (e *Extractor) Types() []string {
	types := make([]string, 0, len(e.strategies))
	for t := range e.strategies {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Extract returns the text of content interpreted as fileType.
func (e *Extractor) Extract(ctx context.Context, fileType string, content []byte) (string, error) {
	strategy, ok := e.strategies[NormalizeType(fileType)]
	if !ok {
		return "", &domain.ValidationError{
			Field:   "file_type",
			Message: fmt.Sprintf("%q is not supported", fileType),
			Err:     domain.ErrUnsupportedType,
		}
	}

	text, err := strategy(ctx, content)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", NormalizeType(fileType), err)
	}

	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinTextLength {
		return "", domain.ErrNoTextExtracted
	}
	return text, nil
}

// NormalizeType lower-cases a declared type and strips a leading dot, so
// ".PDF" and "pdf" are the same type.
func NormalizeType(fileType string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(fileType)), ".")
}
