package main

import "go_backend/message"

// toolRegistry holds the server-side tool implementations a chat
// request may reference by name. The wire protocol only ever carries a
// list of tool names (tool_names in wireRequest) rather than arbitrary
// client-defined code, since message.ToolDescriptor.Execute is a Go
// function value and cannot cross the wire.
type toolRegistry struct {
	tools map[string]message.ToolDescriptor
}

func newToolRegistry() *toolRegistry {
	return &toolRegistry{tools: make(map[string]message.ToolDescriptor)}
}

func (r *toolRegistry) register(t message.ToolDescriptor) {
	r.tools[t.Name] = t
}

// resolve looks up names against the registry, skipping any that are
// not registered rather than failing the whole request.
func (r *toolRegistry) resolve(names []string) []message.ToolDescriptor {
	out := make([]message.ToolDescriptor, 0, len(names))
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			out = append(out, t)
		}
	}
	return out
}
