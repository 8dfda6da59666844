// Package modelpool implements the reference-counted loaded-model cache
// of §4.D, keyed by file path.
package modelpool

import (
	"fmt"
	"os"
	"sync"

	"go_backend/errkind"
	"go_backend/nativellama"
)

// Handle is an opaque reference to a loaded model, owned by the Pool and
// shared among every caller holding a reference, per the Model Handle
// entry of §3.
type Handle struct {
	Path string
	Info nativellama.ModelInfo

	model *nativellama.Model
}

// Model returns the underlying native model handle, for use by the
// worker when creating a context.
func (h *Handle) Model() *nativellama.Model { return h.model }

// LoadOptions configures a model load.
type LoadOptions struct {
	NumGPULayers int
	UseMMap      bool
	UseMlock     bool
}

// DefaultLoadOptions mirrors the native bindings' defaults.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		NumGPULayers: nativellama.DefaultNumGPULayers,
		UseMMap:      true,
	}
}

type entry struct {
	handle   *Handle
	refcount int
}

// Pool is the single-writer map of path -> (handle, refcount). All
// methods are synchronous; Pool itself serializes access with a mutex,
// matching the worker's single-threaded ownership model in §4.I (the
// pool is only ever touched from inside the worker goroutine, but the
// mutex makes the type safe to use standalone, e.g. in tests).
type Pool struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{entries: make(map[string]*entry)}
}

// LoadNativeModel is a package-level seam so tests can substitute a fake
// loader without requiring a compiled llama.cpp library.
var LoadNativeModel = nativellama.LoadModel

// Error reports a model-pool failure, classified per §7.
type Error struct {
	Op      string
	Kind    errkind.Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("modelpool: %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("modelpool: %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Load returns the existing handle for path with its refcount
// incremented if present; otherwise it validates the file (rejecting
// nonexistent and empty files) and loads a new handle with refcount 1.
func (p *Pool) Load(path string, opts LoadOptions) (*Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[path]; ok {
		e.refcount++
		return e.handle, nil
	}

	if err := validateModelFile(path); err != nil {
		return nil, err
	}

	model, err := LoadNativeModel(path, opts.NumGPULayers, opts.UseMMap, opts.UseMlock)
	if err != nil {
		return nil, &Error{Op: "Load", Kind: errkind.ModelLoad, Message: "failed to load model " + path, Err: err}
	}

	handle := &Handle{Path: path, Info: model.Info(), model: model}
	p.entries[path] = &entry{handle: handle, refcount: 1}
	return handle, nil
}

func validateModelFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Error{Op: "Load", Kind: errkind.ModelLoad, Message: "model file does not exist: " + path, Err: err}
		}
		return &Error{Op: "Load", Kind: errkind.ModelLoad, Message: "cannot stat model file: " + path, Err: err}
	}
	if info.IsDir() {
		return &Error{Op: "Load", Kind: errkind.ModelLoad, Message: path + " is a directory, not a model file"}
	}
	if info.Size() == 0 {
		return &Error{Op: "Load", Kind: errkind.ModelLoad, Message: "model file is empty: " + path}
	}
	return nil
}

// Unload decrements path's refcount. If force is true or the refcount
// reaches zero, the handle is disposed and removed.
func (p *Pool) Unload(path string, force bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[path]
	if !ok {
		return nil
	}

	e.refcount--
	if force || e.refcount <= 0 {
		e.handle.model.Close()
		delete(p.entries, path)
	}
	return nil
}

// UnloadAll force-disposes every entry, regardless of refcount.
func (p *Pool) UnloadAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for path, e := range p.entries {
		e.handle.model.Close()
		delete(p.entries, path)
	}
}

// RefCount returns the current refcount for path, or 0 if not loaded.
// Exposed for the round-trip tests in §8.
func (p *Pool) RefCount(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[path]; ok {
		return e.refcount
	}
	return 0
}

// Loaded reports whether path currently has a live handle.
func (p *Pool) Loaded(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[path]
	return ok
}

// LoadedPaths returns the paths of every currently loaded model, for
// health/status reporting.
func (p *Pool) LoadedPaths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	paths := make([]string, 0, len(p.entries))
	for path := range p.entries {
		paths = append(paths, path)
	}
	return paths
}
