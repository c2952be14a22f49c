package tools

import "encoding/json"

// FailureKind classifies why a tool call did not succeed
type FailureKind string

const (
	FailureValidation   FailureKind = "validation"
	FailureNotConnected FailureKind = "not_connected"
	FailureUpstream     FailureKind = "upstream"
	FailureMutation     FailureKind = "mutation"
	FailureNotFound     FailureKind = "not_found"
	FailureTimeout      FailureKind = "timeout"
)

// Failure describes a failed tool call
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Data is the tool-specific payload of a result
type Data map[string]any

// Result is the outcome of one tool call. Exactly one of Data or Failure
// describes the outcome; Message is always safe to show to the user.
type Result struct {
	OK      bool
	Message string
	Data    Data
	Failure *Failure
}

// Success builds a successful result
func Success(message string, data Data) Result {
	return Result{OK: true, Message: message, Data: data}
}

// Fail builds a failed result
func Fail(kind FailureKind, message string) Result {
	return Result{Message: message, Failure: &Failure{Kind: kind, Message: message}}
}

// Payload flattens the result into the object shown to the model and
// reported to the caller.
func (r Result) Payload() map[string]any {
	out := make(map[string]any, len(r.Data)+3)
	for k, v := range r.Data {
		out[k] = v
	}
	out["success"] = r.OK
	if r.Message != "" {
		out["message"] = r.Message
	}
	if r.Failure != nil {
		out["error"] = string(r.Failure.Kind)
	}
	return out
}

// Content renders the result as JSON for a tool message
func (r Result) Content() string {
	b, err := json.Marshal(r.Payload())
	if err != nil {
		fallback, _ := json.Marshal(map[string]any{"success": r.OK, "message": r.Message})
		return string(fallback)
	}
	return string(b)
}
