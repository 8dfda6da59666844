// Package message holds the chat data model shared by the persistent
// worker, the stream handler, and the chat pipeline: messages, streaming
// chunks, tool calls/descriptors, and generation options.
package message

import (
	"fmt"
	"time"

	"go_backend/errkind"
)

// Role identifies the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one ordered item in a conversation.
type Message struct {
	Role       Role
	Content    string
	Images     []string
	ToolCallID string
	ToolCalls  []ToolCall
}

// ValidationError reports a structural invariant violation in the chat
// data model. Callers can branch on Kind() (always errkind.Validation)
// or inspect Field for the offending attribute.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Kind() errkind.Kind { return errkind.Validation }

// Validate checks the per-message invariants from the data model: every
// non-tool message must carry content or (for assistant) outbound tool
// calls, and tool messages must carry a tool-call id.
func (m Message) Validate() error {
	switch m.Role {
	case RoleTool:
		if m.ToolCallID == "" {
			return &ValidationError{Field: "tool_call_id", Message: "tool message must reference a prior tool call id"}
		}
	case RoleAssistant:
		if m.Content == "" && len(m.ToolCalls) == 0 {
			return &ValidationError{Field: "content", Message: "assistant message must carry content or tool calls"}
		}
	case RoleSystem, RoleUser:
		if m.Content == "" {
			return &ValidationError{Field: "content", Message: "message must carry content"}
		}
	default:
		return &ValidationError{Field: "role", Message: "unrecognized role " + string(m.Role)}
	}
	return nil
}

// HasImages reports whether this message attaches any image references.
func (m Message) HasImages() bool { return len(m.Images) > 0 }

// ToolCall is a single tool invocation, either emitted by the assistant
// (name + JSON argument text, optional id) or, via ToolCallID, the
// reference a subsequent tool-role message responds to.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON text
}

// Chunk is one streaming fragment of a chat response. Tool calls are only
// authoritative once Done is true; content fragments are append-only in
// arrival order.
type Chunk struct {
	Content         string
	HasContent      bool
	Thinking        string
	HasThinking     bool
	ToolCalls       []ToolCall
	Done            bool
	PromptTokens    int
	GeneratedTokens int
	Model           string
	CreatedAt       time.Time
}

// GenerationOptions bounds and biases sampling for one inference request.
type GenerationOptions struct {
	Temperature float64
	TopP        float64
	TopK        int
	MaxTokens   int

	Seed *int64

	// RepeatPenalty, FrequencyPenalty, and PresencePenalty use the signed
	// "boost/penalize" convention common to remote chat APIs, not the
	// native library's unsigned multiplier. See worker.ConvertPenalty.
	RepeatPenalty    *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
}

// DefaultGenerationOptions mirrors common remote-API defaults.
func DefaultGenerationOptions() GenerationOptions {
	return GenerationOptions{
		Temperature: 0.7,
		TopP:        0.9,
		TopK:        40,
		MaxTokens:   512,
	}
}

// ChatOptions bundles the non-scalar per-request overrides from §4.J step
// 3: when provided, Tools/Extra/ToolAttempts take precedence over any
// scalar parameters passed alongside.
type ChatOptions struct {
	Tools        []ToolDescriptor
	Extra        map[string]any
	ToolAttempts int
}

// DefaultToolAttempts guards against unbounded agent loops.
const DefaultToolAttempts = 25

// InferenceRequest is the wire shape accepted by the persistent worker.
type InferenceRequest struct {
	CorrelationID string

	ModelPath string

	// Exactly one of Messages or Prompt is used; UsePrompt selects which.
	Messages  []Message
	Prompt    string
	UsePrompt bool

	StopTokens []string

	ContextSize int
	BatchSize   int
	GPULayers   int
	Threads     int

	Options GenerationOptions

	LoRAPath  string
	LoRAScale float64
}

// Embedding is a widened (float64) embedding vector. The native library
// produces platform-float vectors; widening happens at the chat-pipeline
// boundary per the documented open-question decision.
type Embedding struct {
	Text   string
	Vector []float64
}

// GPUStatus summarizes the daemon's GPU telemetry for HealthStatus.
// Available is false on CPU-only hosts or when the device query fails;
// the remaining fields are then zero.
type GPUStatus struct {
	Available   bool
	DeviceName  string
	VRAMUsedMB  int64
	VRAMTotalMB int64
	Utilization float64
	Temperature float64
}

// HealthStatus reports the worker's readiness and current GPU state, for
// cmd/llamad's health endpoint and cmd/llamactl's status command.
type HealthStatus struct {
	Healthy      bool
	LoadedModels []string
	GPU          GPUStatus
	CheckedAt    time.Time
}
