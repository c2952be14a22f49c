// Package chunker splits extracted text into overlapping, paragraph-aligned chunks.
package chunker

import (
	"regexp"
	"strings"
)

// DefaultChunkSize is the default maximum number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of characters carried into the next chunk.
const DefaultChunkOverlap = 200

// DefaultMinLength is the default length below which a chunk is discarded.
const DefaultMinLength = 50

const paragraphJoin = "\n\n"

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Chunker splits text on paragraph boundaries. Lengths are counted in
// characters (runes), not bytes.
type Chunker struct {
	size      int
	overlap   int
	minLength int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the maximum chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithOverlap sets how many trailing characters seed the next chunk.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithMinLength sets the minimum length of a retained chunk.
func WithMinLength(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.minLength = n
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:      DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		minLength: DefaultMinLength,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}
	if c.minLength > c.size {
		c.minLength = c.size
	}

	return c
}

// Size returns the configured maximum chunk size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the chunks of text in order. Every chunk but the last is at
// most Size characters, and every chunk after the first starts with the
// last Overlap characters of the chunk before it. When the text after the
// final seed is shorter than the minimum length it is appended to the last
// chunk instead of becoming a chunk that is mostly overlap, so the last
// chunk may exceed Size by less than the minimum length.
func (c *Chunker) Split(text string) []string {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	s := &splitter{Chunker: c}
	for _, p := range paragraphs {
		s.add([]rune(p))
	}

	switch {
	case len(s.current) == 0 || s.seedOnly:
	case len(s.chunks) > 0 && len(s.current)-s.seedLen < c.minLength:
		s.chunks[len(s.chunks)-1] += string(s.current[s.seedLen:])
	case len(s.current) >= c.minLength:
		s.chunks = append(s.chunks, string(s.current))
	}

	return s.chunks
}

type splitter struct {
	*Chunker
	chunks   []string
	current  []rune
	seedLen  int
	seedOnly bool
}

func (s *splitter) add(p []rune) {
	candidate := s.join(s.current, p)
	if len(candidate) <= s.size {
		s.current = candidate
		s.seedOnly = false
		return
	}

	// Close the accumulated paragraphs and retry with just the seed
	if len(s.current) > 0 && !s.seedOnly && len(s.current) >= s.minLength {
		s.close(s.current)
		candidate = s.join(s.current, p)
		if len(candidate) <= s.size {
			s.current = candidate
			s.seedOnly = false
			return
		}
	}

	// Too long even on its own: cut on character boundaries
	for len(candidate) > s.size {
		piece := candidate[:s.size]
		rest := candidate[s.size:]
		s.close(piece)
		candidate = append(append([]rune{}, s.current...), rest...)
	}
	s.current = candidate
	s.seedOnly = false
}

// close emits chunk and seeds current with its tail.
func (s *splitter) close(chunk []rune) {
	s.chunks = append(s.chunks, string(chunk))
	start := len(chunk) - s.overlap
	if start < 0 {
		start = 0
	}
	s.current = append([]rune{}, chunk[start:]...)
	s.seedLen = len(s.current)
	s.seedOnly = true
}

func (s *splitter) join(current, p []rune) []rune {
	if len(current) == 0 {
		return append([]rune{}, p...)
	}
	out := make([]rune, 0, len(current)+len(paragraphJoin)+len(p))
	out = append(out, current...)
	out = append(out, []rune(paragraphJoin)...)
	return append(out, p...)
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	raw := paragraphBreak.Split(strings.TrimSpace(text), -1)

	paragraphs := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}
