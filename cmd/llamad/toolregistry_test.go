package main

import (
	"testing"

	"go_backend/message"
)

func TestToolRegistryResolve(t *testing.T) {
	r := newToolRegistry()
	r.register(message.ToolDescriptor{Name: "search"})
	r.register(message.ToolDescriptor{Name: "calculator"})

	got := r.resolve([]string{"search", "unknown", "calculator"})
	if len(got) != 2 {
		t.Fatalf("resolve returned %d tools, want 2", len(got))
	}
	names := map[string]bool{got[0].Name: true, got[1].Name: true}
	if !names["search"] || !names["calculator"] {
		t.Errorf("resolve returned unexpected names: %+v", got)
	}
}

func TestToolRegistryResolveEmpty(t *testing.T) {
	r := newToolRegistry()
	got := r.resolve(nil)
	if len(got) != 0 {
		t.Errorf("resolve(nil) = %v, want empty", got)
	}
}
