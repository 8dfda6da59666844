//go:build !cgo || nocgo

package nativellama

import (
	"context"
	"sync"

	"go_backend/errkind"
)

// This file provides a pure-Go stand-in for bindings.go so that packages
// depending on nativellama (and their tests) can build without a C
// toolchain or compiled llama.cpp present. Every operation that would
// touch the native library fails with ErrCGoUnavailable.

var (
	backendOnce sync.Once
	backendInit bool
)

// LogSink receives raw diagnostic lines from the native library.
type LogSink func(level int, message string)

// SetLogSink is a no-op in the stub build.
func SetLogSink(LogSink) {}

func InitBackend() {
	backendOnce.Do(func() { backendInit = true })
}

func InitBackendFrom(string) {
	backendOnce.Do(func() { backendInit = true })
}

func InitBackendForWorker() { InitBackend() }

func IsBackendInitialized() bool { return backendInit }

// Model is an unusable placeholder handle in the stub build.
type Model struct{}

func LoadModel(path string, numGPULayers int, useMMap, useMlock bool) (*Model, error) {
	return nil, newError("LoadModel", errkind.ModelLoad, "built without cgo", ErrCGoUnavailable)
}

func (m *Model) VocabSize() int              { return 0 }
func (m *Model) ContextTrainSize() int       { return 0 }
func (m *Model) EmbeddingSize() int          { return 0 }
func (m *Model) BOSToken() int32             { return 0 }
func (m *Model) EOSToken() int32             { return 0 }
func (m *Model) IsEOG(token int32) bool      { return true }
func (m *Model) Info() ModelInfo             { return ModelInfo{} }
func (m *Model) Close()                      {}
func (m *Model) Tokenize(text string, addSpecial bool) ([]int32, error) {
	return nil, newError("Tokenize", errkind.Tokenization, "built without cgo", ErrCGoUnavailable)
}
func (m *Model) Detokenize(token int32) string { return "" }
func (m *Model) ApplyChatTemplate(messages []ChatMessage, addAssistant bool) (string, error) {
	return "", newError("ApplyChatTemplate", errkind.Inference, "built without cgo", ErrCGoUnavailable)
}

// Adapter is an unusable placeholder handle in the stub build.
type Adapter struct{}

func LoadAdapter(model *Model, path string) (*Adapter, error) {
	return nil, newError("LoadAdapter", errkind.LoRALoad, "built without cgo", ErrCGoUnavailable)
}

func (a *Adapter) Close() {}

// Context is an unusable placeholder handle in the stub build.
type Context struct{}

func NewContext(model *Model, contextSize, batchSize, numThreads int) (*Context, error) {
	return nil, newError("NewContext", errkind.ContextCreate, "built without cgo", ErrCGoUnavailable)
}

func (c *Context) Size() int        { return 0 }
func (c *Context) ClearKVCache()    {}
func (c *Context) ApplyLoRA(adapter *Adapter, scale float32) error {
	return newError("ApplyLoRA", errkind.LoRAApply, "built without cgo", ErrCGoUnavailable)
}
func (c *Context) RemoveLoRA(adapter *Adapter) error { return nil }
func (c *Context) ClearLoRA()                        {}
func (c *Context) ConfigureSampler(params SamplingParams) {}
func (c *Context) DecodePrompt(tokens []int32) error {
	return newError("DecodePrompt", errkind.Inference, "built without cgo", ErrCGoUnavailable)
}
func (c *Context) SampleNext() int32 { return 0 }
func (c *Context) DecodeToken(token int32, pos int) error {
	return newError("DecodeToken", errkind.Inference, "built without cgo", ErrCGoUnavailable)
}
func (c *Context) Embedding(dim int) []float64 { return nil }
func (c *Context) Close()                      {}

func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
