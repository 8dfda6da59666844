// Package streamhandler implements the token buffering and tool-call
// detection state machine described in §4.H: assistant tokens pass
// through unmodified until a `{` opens a candidate JSON tool call, at
// which point content is withheld until the object closes and can be
// parsed.
package streamhandler

import (
	"strings"

	"go_backend/message"
	"go_backend/toolcall"
)

type state int

const (
	passthrough state = iota
	buffering
)

// Handler accumulates streamed tokens, withholding any that look like a
// tool-call JSON object until the object is complete and has been
// parsed (or shown to be unparseable).
type Handler struct {
	state      state
	buf        strings.Builder
	depth      int
	content    strings.Builder
	toolCalls  []message.ToolCall
	toolNames  map[string]bool
	toolsGiven bool
}

// New constructs a Handler. toolNames is the set of configured tool
// names used both for the final-resort parse and for filtering the
// permissive function-call shape in the tool-call parser; pass nil (or
// empty) when no tools are configured for this request.
func New(toolNames map[string]bool) *Handler {
	return &Handler{
		toolNames:  toolNames,
		toolsGiven: len(toolNames) > 0,
	}
}

// Feed processes one streamed token, returning content ready to emit to
// the caller immediately (may be empty).
func (h *Handler) Feed(token string) string {
	h.content.WriteString(token)

	switch h.state {
	case passthrough:
		if strings.Contains(token, "{") {
			h.state = buffering
			h.buf.WriteString(token)
			h.updateDepth(token)
			return h.tryResolve()
		}
		return token
	case buffering:
		h.buf.WriteString(token)
		h.updateDepth(token)
		return h.tryResolve()
	}
	return ""
}

func (h *Handler) updateDepth(token string) {
	for _, c := range token {
		switch c {
		case '{':
			h.depth++
		case '}':
			h.depth--
		}
	}
}

// tryResolve checks whether the buffer has closed out at depth zero and
// attempts a tool-call parse if so, per the Buffering transition rule.
func (h *Handler) tryResolve() string {
	if h.depth > 0 {
		return ""
	}
	buffered := h.buf.String()
	if !strings.Contains(buffered, "}") {
		return ""
	}

	calls := toolcall.Parse(buffered, h.toolNames)
	h.buf.Reset()
	h.depth = 0
	h.state = passthrough
	if len(calls) > 0 {
		h.toolCalls = append(h.toolCalls, calls...)
		return ""
	}
	return buffered
}

// Finalize flushes any residual buffered content and, if tools are
// configured but no tool calls have yet been collected, runs the
// parser over the full accumulated content as a last resort (§4.H).
// It returns the flushed residual content (which may be empty) and the
// final set of collected tool calls.
func (h *Handler) Finalize() (residual string, calls []message.ToolCall) {
	residual = h.buf.String()
	h.buf.Reset()
	h.state = passthrough
	h.depth = 0

	if h.toolsGiven && len(h.toolCalls) == 0 {
		if found := toolcall.Parse(h.content.String(), h.toolNames); len(found) > 0 {
			h.toolCalls = append(h.toolCalls, found...)
		}
	}
	return residual, h.toolCalls
}

// Content returns the full accumulated raw text seen so far, used to
// build the assistant message for the tool-execution recursion step.
func (h *Handler) Content() string {
	return h.content.String()
}

// ToolCalls returns the tool calls collected so far without finalizing.
func (h *Handler) ToolCalls() []message.ToolCall {
	return h.toolCalls
}
