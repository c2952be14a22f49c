package service

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/liliang-cn/askdesk/internal/llm"
	"github.com/liliang-cn/askdesk/internal/tools"
)

// DetectMode says how tool calls were found in a model response
type DetectMode int

const (
	// DetectNone means the response is a final answer
	DetectNone DetectMode = iota
	// DetectStructured means the model used native tool calls
	DetectStructured
	// DetectTextual means a call was written into the answer text
	DetectTextual
)

func (m DetectMode) String() string {
	switch m {
	case DetectStructured:
		return "structured"
	case DetectTextual:
		return "textual"
	default:
		return "none"
	}
}

// CallDetector finds tool calls in a model response
type CallDetector interface {
	Detect(c *llm.Completion, registry *tools.Registry) ([]tools.Call, DetectMode)
}

// StructuredDetector reads the model's native tool calls
type StructuredDetector struct{}

// Detect returns one call per native tool call, in order. Argument text
// that is not a JSON object becomes a parse error on that call.
func (StructuredDetector) Detect(c *llm.Completion, _ *tools.Registry) ([]tools.Call, DetectMode) {
	if c == nil || len(c.ToolCalls) == 0 {
		return nil, DetectNone
	}

	calls := make([]tools.Call, 0, len(c.ToolCalls))
	for i, tc := range c.ToolCalls {
		call := tools.Call{ID: tc.ID, Name: tc.Name, Arguments: map[string]any{}}
		if call.ID == "" {
			call.ID = fmt.Sprintf("call_%d", i)
		}
		if raw := strings.TrimSpace(tc.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &call.Arguments); err != nil {
				call.Arguments = nil
				call.ParseErr = err
			}
		}
		calls = append(calls, call)
	}
	return calls, DetectStructured
}

var (
	textCallPattern = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*\(([^()]*)\)`)
	textArgPattern  = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*[=:]\s*(?:"((?:[^"\\]|\\.)*)"|'([^']*)'|([^,\s)]+))`)
)

// TextualDetector finds a name(key="value", ...) call written in the
// answer text by models without native tool support. Only the first match
// naming a registered tool is used.
type TextualDetector struct{}

// Detect returns at most one call
func (TextualDetector) Detect(c *llm.Completion, registry *tools.Registry) ([]tools.Call, DetectMode) {
	if c == nil || registry == nil {
		return nil, DetectNone
	}

	for _, m := range textCallPattern.FindAllStringSubmatch(c.Content, -1) {
		name := m[1]
		if _, ok := registry.Lookup(name); !ok {
			continue
		}
		return []tools.Call{{ID: "text_call_0", Name: name, Arguments: parseTextArgs(m[2])}}, DetectTextual
	}
	return nil, DetectNone
}

func parseTextArgs(s string) map[string]any {
	args := map[string]any{}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		if err := json.Unmarshal([]byte(s), &args); err == nil {
			return args
		}
	}

	for _, m := range textArgPattern.FindAllStringSubmatch(s, -1) {
		key := m[1]
		switch {
		case m[2] != "" || strings.Contains(m[0], `""`):
			if v, err := strconv.Unquote(`"` + m[2] + `"`); err == nil {
				args[key] = v
			} else {
				args[key] = m[2]
			}
		case m[3] != "" || strings.Contains(m[0], `''`):
			args[key] = m[3]
		default:
			args[key] = bareValue(m[4])
		}
	}
	return args
}

func bareValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return s
}

// FirstMatch tries detectors in order and returns the first that finds calls
type FirstMatch []CallDetector

// Detect implements CallDetector
func (f FirstMatch) Detect(c *llm.Completion, registry *tools.Registry) ([]tools.Call, DetectMode) {
	for _, d := range f {
		if calls, mode := d.Detect(c, registry); mode != DetectNone {
			return calls, mode
		}
	}
	return nil, DetectNone
}

// DefaultDetector prefers native tool calls and falls back to text
func DefaultDetector() CallDetector {
	return FirstMatch{StructuredDetector{}, TextualDetector{}}
}
