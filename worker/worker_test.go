package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go_backend/loramanager"
	"go_backend/message"
	"go_backend/modelpool"
	"go_backend/nativellama"
)

func writeModelFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, 32), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// fakeModel is a controllable stand-in for *nativellama.Model.
type fakeModel struct {
	tokens    []int32
	pieces    map[int32]string
	eogToken  int32
	templates string
}

func (f *fakeModel) Tokenize(text string, addSpecial bool) ([]int32, error) {
	return f.tokens, nil
}
func (f *fakeModel) Detokenize(token int32) string { return f.pieces[token] }
func (f *fakeModel) IsEOG(token int32) bool        { return token == f.eogToken }
func (f *fakeModel) ApplyChatTemplate(messages []nativellama.ChatMessage, addAssistant bool) (string, error) {
	return f.templates, nil
}

// fakeContext is a controllable stand-in for *nativellama.Context.
type fakeContext struct {
	sampleSeq    []int32
	sampleIdx    int
	decodeErr    error
	closed       bool
	configured   nativellama.SamplingParams
	appliedLoRA  *nativellama.Adapter
	removedLoRA  *nativellama.Adapter
	clearedLoRA  bool
}

func (f *fakeContext) ConfigureSampler(p nativellama.SamplingParams) { f.configured = p }
func (f *fakeContext) DecodePrompt(tokens []int32) error             { return nil }
func (f *fakeContext) SampleNext() int32 {
	t := f.sampleSeq[f.sampleIdx]
	f.sampleIdx++
	return t
}
func (f *fakeContext) DecodeToken(token int32, pos int) error { return f.decodeErr }
func (f *fakeContext) ApplyLoRA(adapter *nativellama.Adapter, scale float32) error {
	f.appliedLoRA = adapter
	return nil
}
func (f *fakeContext) RemoveLoRA(adapter *nativellama.Adapter) error {
	f.removedLoRA = adapter
	return nil
}
func (f *fakeContext) ClearLoRA() { f.clearedLoRA = true }
func (f *fakeContext) Close()     { f.closed = true }

func newTestWorker(t *testing.T) (*Worker, *modelpool.Pool, *loramanager.Manager) {
	t.Helper()
	pool := modelpool.New()
	loras := loramanager.New()
	w := New(pool, loras)
	return w, pool, loras
}

func TestSubmitModelLoadFailurePropagatesError(t *testing.T) {
	w, _, _ := newTestWorker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go w.Run(ctx)

	stream, err := w.Submit(ctx, message.InferenceRequest{
		ModelPath: filepath.Join(t.TempDir(), "missing.gguf"),
		Prompt:    "hi",
		UsePrompt: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	res := <-stream
	if res.Err == nil {
		t.Fatal("expected model-load error")
	}
	we, ok := res.Err.(*Error)
	if !ok || we.Site != siteModelLoad {
		t.Fatalf("unexpected error: %+v", res.Err)
	}
}

func TestSuccessfulGenerationLoop(t *testing.T) {
	dir := t.TempDir()
	modelPath := writeModelFile(t, dir, "model.gguf")

	fm := &fakeModel{
		tokens:   []int32{1, 2, 3},
		pieces:   map[int32]string{10: "hello", 11: " world", 99: ""},
		eogToken: 99,
	}
	origModelFrom := modelFromHandle
	modelFromHandle = func(h *modelpool.Handle) inferenceModel { return fm }
	t.Cleanup(func() { modelFromHandle = origModelFrom })

	origLoader := modelpool.LoadNativeModel
	modelpool.LoadNativeModel = func(path string, numGPULayers int, useMMap, useMlock bool) (*nativellama.Model, error) {
		return &nativellama.Model{}, nil
	}
	t.Cleanup(func() { modelpool.LoadNativeModel = origLoader })

	fc := &fakeContext{sampleSeq: []int32{10, 11, 99}}
	origNewContext := newContext
	newContext = func(model inferenceModel, contextSize, batchSize, threads int) (inferenceContext, error) {
		return fc, nil
	}
	t.Cleanup(func() { newContext = origNewContext })

	pool := modelpool.New()
	loras := loramanager.New()
	w := New(pool, loras)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go w.Run(ctx)

	stream, err := w.Submit(ctx, message.InferenceRequest{
		ModelPath: modelPath,
		Prompt:    "hi",
		UsePrompt: true,
		Options:   message.GenerationOptions{MaxTokens: 10},
	})
	if err != nil {
		t.Fatal(err)
	}

	var content string
	var final message.Chunk
	for res := range stream {
		if res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
		if res.Chunk.Done {
			final = res.Chunk
			continue
		}
		content += res.Chunk.Content
	}

	if content != "hello world" {
		t.Fatalf("content = %q, want %q", content, "hello world")
	}
	if final.GeneratedTokens != 2 || final.PromptTokens != 3 {
		t.Fatalf("final chunk = %+v", final)
	}
	if !fc.closed {
		t.Fatal("expected context to be closed after generation")
	}
}

func TestStopTokenTerminatesGenerationWithoutEmittingPiece(t *testing.T) {
	fm := &fakeModel{
		tokens:   []int32{1},
		pieces:   map[int32]string{5: "STOP_HERE", 6: "unreached"},
		eogToken: -1,
	}
	origModelFrom := modelFromHandle
	modelFromHandle = func(h *modelpool.Handle) inferenceModel { return fm }
	t.Cleanup(func() { modelFromHandle = origModelFrom })

	origLoader := modelpool.LoadNativeModel
	modelpool.LoadNativeModel = func(path string, numGPULayers int, useMMap, useMlock bool) (*nativellama.Model, error) {
		return &nativellama.Model{}, nil
	}
	t.Cleanup(func() { modelpool.LoadNativeModel = origLoader })

	fc := &fakeContext{sampleSeq: []int32{5, 6}}
	origNewContext := newContext
	newContext = func(model inferenceModel, contextSize, batchSize, threads int) (inferenceContext, error) {
		return fc, nil
	}
	t.Cleanup(func() { newContext = origNewContext })

	dir := t.TempDir()
	modelPath := writeModelFile(t, dir, "model.gguf")

	pool := modelpool.New()
	loras := loramanager.New()
	w := New(pool, loras)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go w.Run(ctx)

	stream, err := w.Submit(ctx, message.InferenceRequest{
		ModelPath:  modelPath,
		Prompt:     "hi",
		UsePrompt:  true,
		StopTokens: []string{"STOP_HERE"},
		Options:    message.GenerationOptions{MaxTokens: 10},
	})
	if err != nil {
		t.Fatal(err)
	}

	var content string
	for res := range stream {
		if res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
		if !res.Chunk.Done {
			content += res.Chunk.Content
		}
	}
	if content != "" {
		t.Fatalf("content = %q, want empty (stop token piece must not be emitted)", content)
	}
}

func TestCorrelationIDAssignedWhenEmpty(t *testing.T) {
	w, _, _ := newTestWorker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go w.Run(ctx)

	stream, err := w.Submit(ctx, message.InferenceRequest{
		ModelPath: filepath.Join(t.TempDir(), "missing.gguf"),
		Prompt:    "x",
		UsePrompt: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	<-stream
}
