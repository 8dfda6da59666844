package loramanager

import (
	"os"
	"path/filepath"
	"testing"

	"go_backend/nativellama"
)

func withFakeAdapterLoader(t *testing.T) {
	t.Helper()
	orig := loadNativeAdapter
	loadNativeAdapter = func(model *nativellama.Model, path string) (*nativellama.Adapter, error) {
		return &nativellama.Adapter{}, nil
	}
	t.Cleanup(func() { loadNativeAdapter = orig })
}

func writeAdapterFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRejectsNonexistentAdapter(t *testing.T) {
	m := New()
	_, err := m.Load(filepath.Join(t.TempDir(), "missing.gguf"), nil, nil, 0)
	if err == nil {
		t.Fatal("expected error for nonexistent adapter file")
	}
}

func TestLoadLoadUnloadRoundTrip(t *testing.T) {
	withFakeAdapterLoader(t)

	m := New()
	dir := t.TempDir()
	path := writeAdapterFile(t, dir, "adapter.gguf", 16)

	if _, err := m.Load(path, nil, nil, 0); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if _, err := m.Load(path, nil, nil, 0); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if err := m.Unload(path, false); err != nil {
		t.Fatal(err)
	}
	if got := m.RefCount(path); got != 1 {
		t.Fatalf("RefCount() = %d, want 1", got)
	}
}

func TestAdaptiveFlag(t *testing.T) {
	h := &Handle{InvocationTokens: 4}
	if !h.Adaptive() {
		t.Fatal("expected adaptive flag for positive invocation token count")
	}
	h2 := &Handle{InvocationTokens: 0}
	if h2.Adaptive() {
		t.Fatal("expected non-adaptive flag for zero invocation token count")
	}
}

type fakeCtx struct {
	applied *nativellama.Adapter
	cleared bool
}

func (f *fakeCtx) ApplyLoRA(adapter *nativellama.Adapter, scale float32) error {
	f.applied = adapter
	return nil
}
func (f *fakeCtx) RemoveLoRA(adapter *nativellama.Adapter) error {
	if f.applied == adapter {
		f.applied = nil
	}
	return nil
}
func (f *fakeCtx) ClearLoRA() { f.cleared = true; f.applied = nil }

func TestSwitchClearsThenApplies(t *testing.T) {
	withFakeAdapterLoader(t)
	m := New()
	dir := t.TempDir()
	path := writeAdapterFile(t, dir, "adapter.gguf", 8)
	h, err := m.Load(path, nil, nil, 0)
	if err != nil {
		t.Fatal(err)
	}

	c := &fakeCtx{}
	if err := Switch(c, h, 1.0); err != nil {
		t.Fatal(err)
	}
	if !c.cleared || c.applied != h.adapter {
		t.Fatalf("expected Switch to clear then apply: %+v", c)
	}
}

func TestSwitchToNilOnlyClears(t *testing.T) {
	c := &fakeCtx{applied: &nativellama.Adapter{}}
	if err := Switch(c, nil, 1.0); err != nil {
		t.Fatal(err)
	}
	if !c.cleared || c.applied != nil {
		t.Fatalf("expected Switch(nil) to clear without applying: %+v", c)
	}
}
