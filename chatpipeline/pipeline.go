// Package chatpipeline orchestrates a streaming chat request end to
// end, per §4.J: validation, submission to the persistent worker, tool
// call detection via the stream handler, and recursive tool-execution
// when the model requests one.
package chatpipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go_backend/errkind"
	"go_backend/message"
	"go_backend/streamhandler"
	"go_backend/worker"
)

const maxModelNameLength = 256

// ChatRequest is the caller-facing request accepted by StreamChat and
// ChatResponse.
type ChatRequest struct {
	ModelPath string
	Messages  []message.Message

	GenOptions message.GenerationOptions

	// ChatOptions, when non-nil, overrides Tools/Extra/ToolAttempts per
	// §4.J step 3's merge precedence.
	ChatOptions *message.ChatOptions

	ContextSize int
	BatchSize   int
	GPULayers   int
	Threads     int

	LoRAPath  string
	LoRAScale float64
}

func (r ChatRequest) tools() []message.ToolDescriptor {
	if r.ChatOptions != nil {
		return r.ChatOptions.Tools
	}
	return nil
}

func (r ChatRequest) toolAttempts() int {
	if r.ChatOptions != nil && r.ChatOptions.ToolAttempts > 0 {
		return r.ChatOptions.ToolAttempts
	}
	return message.DefaultToolAttempts
}

func (r ChatRequest) toolNameSet() map[string]bool {
	tools := r.tools()
	if len(tools) == 0 {
		return nil
	}
	names := make(map[string]bool, len(tools))
	for _, t := range tools {
		names[t.Name] = true
	}
	return names
}

// submitter is the subset of *worker.Worker the pipeline needs, kept
// narrow so tests can drive the orchestration logic with canned
// results instead of a live native-backed worker.
type submitter interface {
	Submit(ctx context.Context, req message.InferenceRequest) (<-chan worker.Result, error)
}

// Pipeline implements the chat repository contract over a persistent
// worker.
type Pipeline struct {
	worker  submitter
	LogSink func(msg string)
}

// New constructs a Pipeline over w.
func New(w *worker.Worker) *Pipeline {
	return &Pipeline{worker: w}
}

// newWithSubmitter builds a Pipeline over an arbitrary submitter,
// exposed for tests that exercise the orchestration logic without a
// native-backed worker.
func newWithSubmitter(s submitter) *Pipeline {
	return &Pipeline{worker: s}
}

func (p *Pipeline) log(msg string) {
	if p.LogSink != nil {
		p.LogSink(msg)
	}
}

// validate enforces §4.J steps 1-2.
func validate(req ChatRequest) error {
	if req.ModelPath == "" || len(req.ModelPath) > maxModelNameLength {
		return &Error{Op: "validate", Kind: errkind.Validation, Message: "model name must be non-empty and reasonably bounded"}
	}
	if len(req.Messages) == 0 {
		return &Error{Op: "validate", Kind: errkind.Validation, Message: "message list must be non-empty"}
	}
	for i, m := range req.Messages {
		if err := m.Validate(); err != nil {
			return err
		}
		if m.HasImages() {
			return &VisionUnsupportedError{MessageIndex: i}
		}
	}
	return nil
}

// StreamChat runs the pipeline for one turn (and, on detected tool
// calls, its recursive continuations), emitting chunks on the returned
// channel. The channel is closed once the terminal chunk for the final
// (non-recursing) turn has been emitted.
func (p *Pipeline) StreamChat(ctx context.Context, req ChatRequest) (<-chan message.Chunk, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	out := make(chan message.Chunk, 16)
	go func() {
		defer close(out)
		p.run(ctx, req, req.Messages, req.toolAttempts(), out)
	}()
	return out, nil
}

// run executes one turn and, when warranted, recurses. history is the
// working message list for this turn (may differ from req.Messages on
// recursive calls); attemptsLeft is the remaining tool-attempt budget.
func (p *Pipeline) run(ctx context.Context, req ChatRequest, history []message.Message, attemptsLeft int, out chan<- message.Chunk) {
	stream, err := p.worker.Submit(ctx, message.InferenceRequest{
		ModelPath:   req.ModelPath,
		Messages:    history,
		ContextSize: req.ContextSize,
		BatchSize:   req.BatchSize,
		GPULayers:   req.GPULayers,
		Threads:     req.Threads,
		Options:     req.GenOptions,
		LoRAPath:    req.LoRAPath,
		LoRAScale:   req.LoRAScale,
	})
	if err != nil {
		out <- message.Chunk{Done: true, CreatedAt: now()}
		return
	}

	handler := streamhandler.New(req.toolNameSet())

	var promptTokens, generatedTokens int
	var model string
	var workerErr error

	for res := range stream {
		if res.Err != nil {
			workerErr = res.Err
			break
		}
		if res.Chunk.Done {
			promptTokens = res.Chunk.PromptTokens
			generatedTokens = res.Chunk.GeneratedTokens
			model = res.Chunk.Model
			continue
		}
		if emitted := handler.Feed(res.Chunk.Content); emitted != "" {
			out <- message.Chunk{Content: emitted, HasContent: true, CreatedAt: now()}
		}
	}

	residual, calls := handler.Finalize()
	if residual != "" {
		out <- message.Chunk{Content: residual, HasContent: true, CreatedAt: now()}
	}

	if workerErr != nil {
		out <- message.Chunk{Done: true, CreatedAt: now()}
		return
	}

	out <- message.Chunk{
		Done:            true,
		ToolCalls:       calls,
		PromptTokens:    promptTokens,
		GeneratedTokens: generatedTokens,
		Model:           model,
		CreatedAt:       now(),
	}

	if len(calls) == 0 || len(req.tools()) == 0 {
		return
	}
	if attemptsLeft <= 0 {
		p.log(fmt.Sprintf("chatpipeline: tool-attempt budget exhausted for model %s, not recursing", req.ModelPath))
		return
	}

	nextHistory := append(append([]message.Message{}, history...), message.Message{
		Role:      message.RoleAssistant,
		Content:   handler.Content(),
		ToolCalls: calls,
	})
	nextHistory = p.executeTools(req, nextHistory, calls)

	p.run(ctx, req, nextHistory, attemptsLeft-1, out)
}

// executeTools runs each detected tool call against the configured
// tool set, appending a tool-role message per call. Execution failures
// are recorded inline and are not fatal, per §4.J step 7.
func (p *Pipeline) executeTools(req ChatRequest, history []message.Message, calls []message.ToolCall) []message.Message {
	toolsByName := make(map[string]message.ToolDescriptor, len(req.tools()))
	for _, t := range req.tools() {
		toolsByName[t.Name] = t
	}

	for _, call := range calls {
		tool, ok := toolsByName[call.Name]
		if !ok {
			history = append(history, message.Message{
				Role:       message.RoleTool,
				Content:    fmt.Sprintf("Error executing tool: unknown tool %q", call.Name),
				ToolCallID: call.ID,
			})
			continue
		}

		var args map[string]any
		if call.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
				history = append(history, message.Message{
					Role:       message.RoleTool,
					Content:    fmt.Sprintf("Error executing tool: invalid arguments: %v", err),
					ToolCallID: call.ID,
				})
				continue
			}
		}

		result, err := tool.Execute(args, extraOf(req))
		if err != nil {
			history = append(history, message.Message{
				Role:       message.RoleTool,
				Content:    fmt.Sprintf("Error executing tool: %v", err),
				ToolCallID: call.ID,
			})
			continue
		}

		history = append(history, message.Message{
			Role:       message.RoleTool,
			Content:    stringifyToolResult(result),
			ToolCallID: call.ID,
		})
	}
	return history
}

func extraOf(req ChatRequest) any {
	if req.ChatOptions == nil {
		return nil
	}
	return req.ChatOptions.Extra
}

func stringifyToolResult(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// ChatResponse collects a full StreamChat run into a single aggregated
// response: concatenated content plus the terminal chunk's metadata.
func (p *Pipeline) ChatResponse(ctx context.Context, req ChatRequest) (message.Chunk, error) {
	stream, err := p.StreamChat(ctx, req)
	if err != nil {
		return message.Chunk{}, err
	}
	var content string
	var final message.Chunk
	for chunk := range stream {
		if chunk.Done {
			final = chunk
			continue
		}
		content += chunk.Content
	}
	final.Content = content
	final.HasContent = content != ""
	return final, nil
}

func now() time.Time { return time.Now() }
