// Package worker implements the persistent, single-consumer inference
// worker of §4.I: requests are accepted onto a channel and processed
// one at a time, serializing every native-library call below the model
// pool, LoRA manager, and backend initializer.
package worker

import (
	"context"
	"strings"
	"time"

	"go_backend/errkind"
	"go_backend/loramanager"
	"go_backend/message"
	"go_backend/modelpool"
	"go_backend/nativellama"
	"go_backend/prompttemplate"

	"github.com/google/uuid"
)

// inferenceModel is the subset of *nativellama.Model the worker needs,
// kept narrow so tests can substitute a fake.
type inferenceModel interface {
	Tokenize(text string, addSpecial bool) ([]int32, error)
	Detokenize(token int32) string
	IsEOG(token int32) bool
	ApplyChatTemplate(messages []nativellama.ChatMessage, addAssistant bool) (string, error)
}

// inferenceContext is the subset of *nativellama.Context the worker
// needs.
type inferenceContext interface {
	ConfigureSampler(params nativellama.SamplingParams)
	DecodePrompt(tokens []int32) error
	SampleNext() int32
	DecodeToken(token int32, pos int) error
	ApplyLoRA(adapter *nativellama.Adapter, scale float32) error
	RemoveLoRA(adapter *nativellama.Adapter) error
	ClearLoRA()
	Close()
}

// newContext is a package-level seam over nativellama.NewContext so
// tests can substitute a fake inferenceContext without a compiled
// llama.cpp library.
var newContext = func(model inferenceModel, contextSize, batchSize, threads int) (inferenceContext, error) {
	concrete, ok := model.(*nativellama.Model)
	if !ok {
		return nil, newWorkerError(siteContextCreate, errkind.ContextCreate, "model handle is not a native model", nil)
	}
	return nativellama.NewContext(concrete, contextSize, batchSize, threads)
}

func newWorkerError(site string, kind errkind.Kind, msg string, err error) *Error {
	return &Error{Site: site, Kind: kind, Message: msg, Err: err}
}

// modelFromHandle is a package-level seam so tests can substitute a
// fake inferenceModel independent of modelpool.Handle's concrete
// *nativellama.Model.
var modelFromHandle = func(h *modelpool.Handle) inferenceModel {
	return h.Model()
}

type job struct {
	correlationID string
	req           message.InferenceRequest
}

// Worker is the persistent execution context. It owns the model pool
// and LoRA manager, created lazily by the caller and passed in; the
// worker itself is created eagerly but touches the native library only
// once a request is processed.
type Worker struct {
	pool       *modelpool.Pool
	loras      *loramanager.Manager
	requests   chan *job
	dispatcher *dispatcher
	LogSink    func(msg string)
}

// New constructs a Worker over the given model pool and LoRA manager.
func New(pool *modelpool.Pool, loras *loramanager.Manager) *Worker {
	return &Worker{
		pool:       pool,
		loras:      loras,
		requests:   make(chan *job, 64),
		dispatcher: newDispatcher(),
	}
}

// Submit enqueues req for processing and returns a stream of results
// multiplexed by correlation id (assigned if req.CorrelationID is
// empty). The returned channel is closed after the terminal chunk or
// error is delivered.
func (w *Worker) Submit(ctx context.Context, req message.InferenceRequest) (<-chan Result, error) {
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	stream := w.dispatcher.register(req.CorrelationID)
	j := &job{correlationID: req.CorrelationID, req: req}

	select {
	case w.requests <- j:
		return stream, nil
	case <-ctx.Done():
		w.dispatcher.close(req.CorrelationID)
		return nil, ctx.Err()
	}
}

// Run processes requests from the queue until ctx is cancelled or the
// queue is closed. Run is intended to be the worker's single consumer
// goroutine; callers should not call Run concurrently from more than
// one goroutine.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-w.requests:
			if !ok {
				return
			}
			w.process(ctx, j)
		}
	}
}

func (w *Worker) log(format string) {
	if w.LogSink != nil {
		w.LogSink(format)
	}
}

func (w *Worker) process(ctx context.Context, j *job) {
	req := j.req
	cid := j.correlationID
	defer w.dispatcher.close(cid)

	var modelHandle *modelpool.Handle
	var loraHandle *loramanager.Handle
	var ic inferenceContext

	defer func() {
		if ic != nil {
			if loraHandle != nil {
				loramanager.Clear(ic)
			}
			ic.Close()
		}
		if loraHandle != nil {
			_ = w.loras.Unload(req.LoRAPath, false)
		}
		if modelHandle != nil {
			_ = w.pool.Unload(req.ModelPath, false)
		}
	}()

	gpuLayers := req.GPULayers
	if gpuLayers == 0 {
		gpuLayers = nativellama.DefaultNumGPULayers
	}
	var err error
	modelHandle, err = w.pool.Load(req.ModelPath, modelpool.LoadOptions{NumGPULayers: gpuLayers, UseMMap: true})
	if err != nil {
		w.dispatcher.route(cid, Result{Err: newWorkerError(siteModelLoad, errkind.ModelLoad, "failed to load model", err)})
		return
	}

	if req.LoRAPath != "" {
		loraHandle, err = w.loras.Load(req.LoRAPath, modelHandle.Model(), nil, 0)
		if err != nil {
			w.dispatcher.route(cid, Result{Err: newWorkerError(siteLoRALoad, errkind.LoRALoad, "failed to load lora adapter", err)})
			return
		}
	}

	contextSize := req.ContextSize
	if contextSize == 0 {
		contextSize = nativellama.DefaultContextSize
	}
	batchSize := req.BatchSize
	if batchSize == 0 {
		batchSize = nativellama.DefaultBatchSize
	}
	threads := req.Threads
	if threads == 0 {
		threads = nativellama.DefaultNumThreads
	}

	ic, err = newContext(modelFromHandle(modelHandle), contextSize, batchSize, threads)
	if err != nil {
		w.dispatcher.route(cid, Result{Err: newWorkerError(siteContextCreate, errkind.ContextCreate, "failed to create context", err)})
		return
	}

	if loraHandle != nil {
		if err := loramanager.Apply(ic, loraHandle, float32(req.LoRAScale)); err != nil {
			w.dispatcher.route(cid, Result{Err: newWorkerError(siteLoRAApply, errkind.LoRAApply, "failed to apply lora adapter", err)})
			return
		}
	}

	var prompt string
	if req.UsePrompt {
		prompt = req.Prompt
	} else {
		prompt, err = prompttemplate.ApplyNative(modelFromHandle(modelHandle), req.Messages, true)
		if err != nil {
			w.dispatcher.route(cid, Result{Err: newWorkerError(siteTokenize, errkind.Inference, "failed to build prompt from chat template", err)})
			return
		}
	}

	tokens, err := modelFromHandle(modelHandle).Tokenize(prompt, true)
	if err != nil {
		w.dispatcher.route(cid, Result{Err: newWorkerError(siteTokenize, errkind.Tokenization, "failed to tokenize prompt", err)})
		return
	}

	if err := ic.DecodePrompt(tokens); err != nil {
		w.dispatcher.route(cid, Result{Err: newWorkerError(siteDecode, errkind.Inference, "failed to decode prompt batch", err)})
		return
	}

	ic.ConfigureSampler(buildSamplingParams(req.Options))

	maxTokens := req.Options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = message.DefaultGenerationOptions().MaxTokens
	}

	generated := 0
	pos := len(tokens)
	var genErr error

generation:
	for i := 0; i < maxTokens; i++ {
		select {
		case <-ctx.Done():
			break generation
		default:
		}

		token := ic.SampleNext()
		if modelFromHandle(modelHandle).IsEOG(token) {
			break
		}

		piece := modelFromHandle(modelHandle).Detokenize(token)
		if containsAny(piece, req.StopTokens) {
			break
		}

		w.dispatcher.route(cid, Result{Chunk: message.Chunk{Content: piece, HasContent: true}})
		generated++

		if err := ic.DecodeToken(token, pos); err != nil {
			genErr = newWorkerError(siteDecode, errkind.Inference, "failed to decode generated token", err)
			break generation
		}
		pos++
	}

	if genErr != nil {
		w.dispatcher.route(cid, Result{Err: genErr})
		return
	}

	w.dispatcher.route(cid, Result{Chunk: message.Chunk{
		Done:            true,
		PromptTokens:    len(tokens),
		GeneratedTokens: generated,
		Model:           req.ModelPath,
		CreatedAt:       time.Now(),
	}})
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// buildSamplingParams translates request-level generation options into
// the native sampler configuration, applying the penalty sign-convention
// translation documented in §4.I.
func buildSamplingParams(opts message.GenerationOptions) nativellama.SamplingParams {
	params := nativellama.SamplingParams{
		Temperature:      float32(opts.Temperature),
		TopK:             opts.TopK,
		TopP:             float32(opts.TopP),
		RepeatPenalty:    ConvertPenalty(opts.RepeatPenalty),
		FrequencyPenalty: ConvertPenalty(opts.FrequencyPenalty),
		PresencePenalty:  ConvertPenalty(opts.PresencePenalty),
	}
	if opts.Seed != nil {
		seed := uint32(*opts.Seed)
		params.Seed = &seed
	}
	return params
}
