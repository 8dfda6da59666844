// Build Requirements:
// - llama.cpp compiled as a shared library (libllama.so / llama.dll)
// - Headers under deps/llama.cpp/include and deps/llama.cpp/ggml/include
// - Library under lib/ or the system library path
//
// Build Tags:
// - cgo: requires CGo (enabled by default)
// - !nocgo: excluded when the nocgo tag is set, for testing without a
//   compiled llama.cpp present.
//
//go:build cgo && !nocgo

package nativellama

/*
#cgo CFLAGS: -I${SRCDIR}/../deps/llama.cpp -I${SRCDIR}/../deps/llama.cpp/include -I${SRCDIR}/../deps/llama.cpp/ggml/include
#cgo LDFLAGS: -L${SRCDIR}/../lib -lllama -lggml -lm -lstdc++
#cgo linux LDFLAGS: -Wl,-rpath,${SRCDIR}/../lib
#cgo windows LDFLAGS: -lllama

#include <stdlib.h>
#include <string.h>
#include <stdbool.h>
#include <stdint.h>

typedef struct llama_model llama_model;
typedef struct llama_context llama_context;
typedef struct llama_adapter_lora llama_adapter_lora;
typedef struct llama_sampler llama_sampler;
typedef int32_t llama_token;
typedef int32_t llama_pos;
typedef int32_t llama_seq_id;

struct llama_model_params {
    int32_t n_gpu_layers;
    int32_t split_mode;
    int32_t main_gpu;
    const float * tensor_split;
    void * progress_callback_user_data;
    bool (* progress_callback)(float progress, void * user_data);
    void * kv_overrides;
    bool vocab_only;
    bool use_mmap;
    bool use_mlock;
    bool check_tensors;
};

struct llama_context_params {
    uint32_t n_ctx;
    uint32_t n_batch;
    uint32_t n_ubatch;
    uint32_t n_seq_max;
    int32_t n_threads;
    int32_t n_threads_batch;
    int32_t rope_scaling_type;
    int32_t pooling_type;
    int32_t attention_type;
    float rope_freq_base;
    float rope_freq_scale;
    float yarn_ext_factor;
    float yarn_attn_factor;
    float yarn_beta_fast;
    float yarn_beta_slow;
    uint32_t yarn_orig_ctx;
    float defrag_thold;
    void * cb_eval;
    void * cb_eval_user_data;
    int32_t type_k;
    int32_t type_v;
    bool logits_all;
    bool embeddings;
    bool offload_kqv;
    bool flash_attn;
    bool no_perf;
    void * abort_callback;
    void * abort_callback_data;
};

struct llama_batch {
    int32_t n_tokens;
    llama_token * token;
    float * embd;
    llama_pos * pos;
    int32_t * n_seq_id;
    llama_seq_id ** seq_id;
    int8_t * logits;
};

struct llama_sampler_chain_params {
    bool no_perf;
};

struct llama_chat_message {
    const char * role;
    const char * content;
};

extern void llama_backend_init(void);
extern void llama_backend_free(void);
extern void ggml_backend_load_all(void);
extern void ggml_backend_load(const char * path);
extern struct llama_model_params llama_model_default_params(void);
extern struct llama_context_params llama_context_default_params(void);
extern llama_model * llama_load_model_from_file(const char * path_model, struct llama_model_params params);
extern void llama_free_model(llama_model * model);
extern llama_context * llama_new_context_with_model(llama_model * model, struct llama_context_params params);
extern void llama_free(llama_context * ctx);
extern int32_t llama_n_vocab(const llama_model * model);
extern int32_t llama_n_ctx(const llama_context * ctx);
extern int32_t llama_n_ctx_train(const llama_model * model);
extern int32_t llama_n_embd(const llama_model * model);
extern llama_token llama_token_bos(const llama_model * model);
extern llama_token llama_token_eos(const llama_model * model);
extern llama_token llama_token_nl(const llama_model * model);
extern bool llama_token_is_eog(const llama_model * model, llama_token token);
extern int32_t llama_tokenize(const llama_model * model, const char * text, int32_t text_len, llama_token * tokens, int32_t n_tokens_max, bool add_special, bool parse_special);
extern int32_t llama_token_to_piece(const llama_model * model, llama_token token, char * buf, int32_t length, int32_t lstrip, bool special);
extern int32_t llama_chat_apply_template(const llama_model * model, const struct llama_chat_message * chat, size_t n_msg, bool add_ass, char * buf, int32_t length);
extern struct llama_batch llama_batch_init(int32_t n_tokens, int32_t embd, int32_t n_seq_max);
extern void llama_batch_free(struct llama_batch batch);
extern int32_t llama_decode(llama_context * ctx, struct llama_batch batch);
extern float * llama_get_embeddings_seq(llama_context * ctx, llama_seq_id seq_id);
extern void llama_kv_cache_clear(llama_context * ctx);
extern void llama_synchronize(llama_context * ctx);

extern llama_adapter_lora * llama_adapter_lora_init(llama_model * model, const char * path_lora);
extern void llama_adapter_lora_free(llama_adapter_lora * adapter);
extern int32_t llama_set_adapter_lora(llama_context * ctx, llama_adapter_lora * adapter, float scale);
extern int32_t llama_rm_adapter_lora(llama_context * ctx, llama_adapter_lora * adapter);
extern void llama_clear_adapter_lora(llama_context * ctx);

extern struct llama_sampler_chain_params llama_sampler_chain_default_params(void);
extern llama_sampler * llama_sampler_chain_init(struct llama_sampler_chain_params params);
extern void llama_sampler_chain_add(llama_sampler * chain, llama_sampler * smpl);
extern llama_token llama_sampler_sample(llama_sampler * chain, llama_context * ctx, int32_t idx);
extern void llama_sampler_free(llama_sampler * smpl);
extern llama_sampler * llama_sampler_init_temp(float temp);
extern llama_sampler * llama_sampler_init_top_k(int32_t k);
extern llama_sampler * llama_sampler_init_top_p(float p, size_t min_keep);
extern llama_sampler * llama_sampler_init_penalties(int32_t n_vocab, llama_token special_eos_id, llama_token linefeed_id, int32_t penalty_last_n, float penalty_repeat, float penalty_freq, float penalty_present, bool penalize_nl, bool ignore_eos);
extern llama_sampler * llama_sampler_init_dist(uint32_t seed);

typedef void (*llama_log_callback)(int level, const char * text, void * user_data);
extern void llama_log_set(llama_log_callback callback, void * user_data);

extern void goLlamaLogTrampoline(int level, char * text);
*/
import "C"

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"go_backend/errkind"
)

//export goLlamaLogTrampoline
func goLlamaLogTrampoline(level C.int, text *C.char) {
	logSinkMu.RLock()
	sink := logSink
	logSinkMu.RUnlock()
	if sink != nil {
		sink(int(level), C.GoString(text))
	}
}

// LogSink receives raw diagnostic lines from the native library.
type LogSink func(level int, message string)

var (
	logSinkMu sync.RWMutex
	logSink   LogSink
)

// SetLogSink installs the log sink that every native diagnostic routes
// through, per §4.B and §7's ambient logging policy. Pass nil to
// silence native logging.
func SetLogSink(sink LogSink) {
	logSinkMu.Lock()
	logSink = sink
	logSinkMu.Unlock()
	C.llama_log_set((C.llama_log_callback)(C.goLlamaLogTrampoline), nil)
}

// backendState is the process-wide gate described in §4.C: the first
// caller loads native backends, subsequent callers skip, because the
// backend registry lives in native memory shared across every scheduler
// in the process.
var (
	backendOnce sync.Once
	backendInit bool
)

// InitBackend performs the generic process-once backend discovery of
// §4.C steps 1-4: prefer the "load all" entry point; callers needing the
// path-taking or directory-enumeration fallbacks should use
// InitBackendFrom, which this function calls with an empty directory
// hint (skipping straight to step 1).
func InitBackend() {
	backendOnce.Do(func() {
		C.llama_backend_init()
		C.ggml_backend_load_all()
		backendInit = true
	})
}

// InitBackendFrom behaves like InitBackend but, when the generic loader
// is unavailable in a given build, loads backends from libDir instead
// (step 2 of §4.C). Both steps are attempted unconditionally here since
// ggml_backend_load_all is a no-op when backends are already statically
// linked; libDir is only consulted if it is non-empty.
func InitBackendFrom(libDir string) {
	backendOnce.Do(func() {
		C.llama_backend_init()
		C.ggml_backend_load_all()
		if libDir != "" {
			cDir := C.CString(libDir)
			defer C.free(unsafe.Pointer(cDir))
			C.ggml_backend_load(cDir)
		}
		backendInit = true
	})
}

// InitBackendForWorker is the specialized mode from §4.C's last
// paragraph: the persistent worker lives in its own scheduling domain,
// but the native backend registry is process-global, so this re-enters
// the same gate rather than re-running discovery.
func InitBackendForWorker() { InitBackend() }

// IsBackendInitialized reports whether InitBackend has run.
func IsBackendInitialized() bool { return backendInit }

// Model wraps a loaded llama_model with automatic cleanup.
type Model struct {
	ptr *C.llama_model
	mu  sync.Mutex
}

// LoadModel loads a GGUF model from path. numGPULayers follows the
// llama.cpp convention: -1 offloads all layers, 0 keeps everything on
// CPU, N offloads N layers.
func LoadModel(path string, numGPULayers int, useMMap, useMlock bool) (*Model, error) {
	InitBackend()

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	params := C.llama_model_default_params()
	params.n_gpu_layers = C.int32_t(numGPULayers)
	params.use_mmap = C.bool(useMMap)
	params.use_mlock = C.bool(useMlock)

	ptr := C.llama_load_model_from_file(cPath, params)
	if ptr == nil {
		return nil, newError("LoadModel", errkind.ModelLoad, fmt.Sprintf("failed to load model from %s", path), ErrModelLoadFailed)
	}

	m := &Model{ptr: ptr}
	runtime.SetFinalizer(m, func(m *Model) { m.Close() })
	return m, nil
}

func (m *Model) VocabSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ptr == nil {
		return 0
	}
	return int(C.llama_n_vocab(m.ptr))
}

func (m *Model) ContextTrainSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ptr == nil {
		return 0
	}
	return int(C.llama_n_ctx_train(m.ptr))
}

func (m *Model) EmbeddingSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ptr == nil {
		return 0
	}
	return int(C.llama_n_embd(m.ptr))
}

func (m *Model) BOSToken() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ptr == nil {
		return 0
	}
	return int32(C.llama_token_bos(m.ptr))
}

func (m *Model) EOSToken() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ptr == nil {
		return 0
	}
	return int32(C.llama_token_eos(m.ptr))
}

func (m *Model) IsEOG(token int32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ptr == nil {
		return true
	}
	return bool(C.llama_token_is_eog(m.ptr, C.llama_token(token)))
}

func (m *Model) Info() ModelInfo {
	return ModelInfo{
		VocabSize:        m.VocabSize(),
		ContextTrainSize: m.ContextTrainSize(),
		EmbeddingSize:    m.EmbeddingSize(),
		BOSToken:         m.BOSToken(),
		EOSToken:         m.EOSToken(),
	}
}

// Close releases the model. Safe to call more than once.
func (m *Model) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ptr != nil {
		C.llama_free_model(m.ptr)
		m.ptr = nil
		runtime.SetFinalizer(m, nil)
	}
}

// Tokenize converts text to token ids, retrying with a correctly sized
// buffer on the negative-return-code convention described in §4.I step 5.
func (m *Model) Tokenize(text string, addSpecial bool) ([]int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ptr == nil {
		return nil, newError("Tokenize", errkind.Tokenization, "invalid model (nil)", nil)
	}

	cText := C.CString(text)
	defer C.free(unsafe.Pointer(cText))

	maxTokens := len(text) + 256
	tokens := make([]C.llama_token, maxTokens)

	n := C.llama_tokenize(m.ptr, cText, C.int32_t(len(text)), &tokens[0], C.int32_t(maxTokens), C.bool(addSpecial), C.bool(true))
	if n < 0 {
		maxTokens = int(-n)
		tokens = make([]C.llama_token, maxTokens)
		n = C.llama_tokenize(m.ptr, cText, C.int32_t(len(text)), &tokens[0], C.int32_t(maxTokens), C.bool(addSpecial), C.bool(true))
		if n < 0 {
			return nil, newError("Tokenize", errkind.Tokenization, "tokenization failed", ErrTokenizeFailed)
		}
	}

	out := make([]int32, n)
	for i := range out {
		out[i] = int32(tokens[i])
	}
	return out, nil
}

// Detokenize converts a single token id to its text piece.
func (m *Model) Detokenize(token int32) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ptr == nil {
		return ""
	}

	buf := make([]byte, 64)
	n := C.llama_token_to_piece(m.ptr, C.llama_token(token), (*C.char)(unsafe.Pointer(&buf[0])), C.int32_t(len(buf)), 0, false)
	if n < 0 {
		buf = make([]byte, -n)
		n = C.llama_token_to_piece(m.ptr, C.llama_token(token), (*C.char)(unsafe.Pointer(&buf[0])), C.int32_t(len(buf)), 0, false)
	}
	if n <= 0 {
		return ""
	}
	return string(buf[:n])
}

// ApplyChatTemplate invokes the native chat-template function with a
// two-pass size-then-fill buffer strategy, per §4.F mode 1.
func (m *Model) ApplyChatTemplate(messages []ChatMessage, addAssistant bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ptr == nil {
		return "", newError("ApplyChatTemplate", errkind.Inference, "invalid model (nil)", nil)
	}
	if len(messages) == 0 {
		return "", nil
	}

	cMsgs := make([]C.struct_llama_chat_message, len(messages))
	var cStrings []*C.char
	defer func() {
		for _, s := range cStrings {
			C.free(unsafe.Pointer(s))
		}
	}()
	for i, msg := range messages {
		role := C.CString(msg.Role)
		content := C.CString(msg.Content)
		cStrings = append(cStrings, role, content)
		cMsgs[i] = C.struct_llama_chat_message{role: role, content: content}
	}

	bufLen := 2048
	buf := make([]byte, bufLen)
	n := C.llama_chat_apply_template(m.ptr, &cMsgs[0], C.size_t(len(cMsgs)), C.bool(addAssistant), (*C.char)(unsafe.Pointer(&buf[0])), C.int32_t(bufLen))
	if int(n) > bufLen {
		bufLen = int(n)
		buf = make([]byte, bufLen)
		n = C.llama_chat_apply_template(m.ptr, &cMsgs[0], C.size_t(len(cMsgs)), C.bool(addAssistant), (*C.char)(unsafe.Pointer(&buf[0])), C.int32_t(bufLen))
	}
	if n < 0 {
		return "", newError("ApplyChatTemplate", errkind.Inference, "model has no chat template", nil)
	}
	return string(buf[:n]), nil
}

// Adapter wraps a loaded LoRA adapter.
type Adapter struct {
	ptr *C.llama_adapter_lora
	mu  sync.Mutex
}

// LoadAdapter loads a LoRA adapter file against its base model.
func LoadAdapter(model *Model, path string) (*Adapter, error) {
	model.mu.Lock()
	defer model.mu.Unlock()
	if model.ptr == nil {
		return nil, newError("LoadAdapter", errkind.LoRALoad, "invalid model (nil)", nil)
	}

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	ptr := C.llama_adapter_lora_init(model.ptr, cPath)
	if ptr == nil {
		return nil, newError("LoadAdapter", errkind.LoRALoad, fmt.Sprintf("failed to load lora adapter from %s", path), ErrLoRALoadFailed)
	}
	a := &Adapter{ptr: ptr}
	runtime.SetFinalizer(a, func(a *Adapter) { a.Close() })
	return a, nil
}

func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ptr != nil {
		C.llama_adapter_lora_free(a.ptr)
		a.ptr = nil
		runtime.SetFinalizer(a, nil)
	}
}

// Context wraps a llama_context: decode state, batch, and sampler chain.
// A Context is tied to one Model and is not safe for concurrent use.
type Context struct {
	ptr     *C.llama_context
	model   *Model
	batch   C.struct_llama_batch
	sampler *C.llama_sampler
	mu      sync.Mutex
}

// NewContext creates an inference context for model with the requested
// context/batch sizes and thread count, per §4.I step 3.
func NewContext(model *Model, contextSize, batchSize, numThreads int) (*Context, error) {
	if model == nil || model.ptr == nil {
		return nil, newError("NewContext", errkind.ContextCreate, "invalid model (nil)", nil)
	}

	params := C.llama_context_default_params()
	params.n_ctx = C.uint32_t(contextSize)
	params.n_batch = C.uint32_t(batchSize)
	params.n_ubatch = C.uint32_t(batchSize)
	params.n_threads = C.int32_t(numThreads)
	params.n_threads_batch = C.int32_t(numThreads)
	params.flash_attn = C.bool(true)

	model.mu.Lock()
	ptr := C.llama_new_context_with_model(model.ptr, params)
	model.mu.Unlock()
	if ptr == nil {
		return nil, newError("NewContext", errkind.ContextCreate, "failed to create inference context", ErrContextCreateFailed)
	}

	batch := C.llama_batch_init(C.int32_t(batchSize), 0, 1)
	samplerParams := C.llama_sampler_chain_default_params()
	sampler := C.llama_sampler_chain_init(samplerParams)

	c := &Context{ptr: ptr, model: model, batch: batch, sampler: sampler}
	runtime.SetFinalizer(c, func(c *Context) { c.Close() })
	return c, nil
}

func (c *Context) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ptr == nil {
		return 0
	}
	return int(C.llama_n_ctx(c.ptr))
}

func (c *Context) ClearKVCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ptr != nil {
		C.llama_kv_cache_clear(c.ptr)
	}
}

// ApplyLoRA applies adapter at scale, per §4.E apply(context, adapter, scale).
func (c *Context) ApplyLoRA(adapter *Adapter, scale float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if c.ptr == nil || adapter.ptr == nil {
		return newError("ApplyLoRA", errkind.LoRAApply, "invalid context or adapter (nil)", nil)
	}
	if ret := C.llama_set_adapter_lora(c.ptr, adapter.ptr, C.float(scale)); ret != 0 {
		return newError("ApplyLoRA", errkind.LoRAApply, "failed to apply lora adapter", ErrLoRAApplyFailed)
	}
	return nil
}

// RemoveLoRA removes a single previously applied adapter.
func (c *Context) RemoveLoRA(adapter *Adapter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if c.ptr == nil || adapter.ptr == nil {
		return nil
	}
	C.llama_rm_adapter_lora(c.ptr, adapter.ptr)
	return nil
}

// ClearLoRA removes every adapter currently applied to the context.
func (c *Context) ClearLoRA() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ptr != nil {
		C.llama_clear_adapter_lora(c.ptr)
	}
}

// ConfigureSampler (re)builds the sampler chain in the fixed order from
// §4.I step 7: temperature, top-k, top-p, penalties (if any are
// non-default), distribution.
func (c *Context) ConfigureSampler(params SamplingParams) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sampler != nil {
		C.llama_sampler_free(c.sampler)
	}
	samplerParams := C.llama_sampler_chain_default_params()
	c.sampler = C.llama_sampler_chain_init(samplerParams)

	if params.Temperature > 0 {
		C.llama_sampler_chain_add(c.sampler, C.llama_sampler_init_temp(C.float(params.Temperature)))
	}
	if params.TopK > 0 {
		C.llama_sampler_chain_add(c.sampler, C.llama_sampler_init_top_k(C.int32_t(params.TopK)))
	}
	if params.TopP > 0 && params.TopP < 1.0 {
		C.llama_sampler_chain_add(c.sampler, C.llama_sampler_init_top_p(C.float(params.TopP), 1))
	}
	if params.RepeatPenalty != 1.0 || params.FrequencyPenalty != 0 || params.PresencePenalty != 0 {
		vocabSize := c.model.VocabSize()
		eosToken := c.model.EOSToken()
		C.llama_sampler_chain_add(c.sampler, C.llama_sampler_init_penalties(
			C.int32_t(vocabSize),
			C.llama_token(eosToken),
			C.llama_token(-1),
			C.int32_t(repeatPenaltyWindow),
			C.float(params.RepeatPenalty),
			C.float(params.FrequencyPenalty),
			C.float(params.PresencePenalty),
			false,
			false,
		))
	}

	C.llama_sampler_chain_add(c.sampler, C.llama_sampler_init_dist(C.uint32_t(params.resolveSeed())))
}

func (c *Context) batchSetToken(i int, token C.llama_token) {
	ptr := (*C.llama_token)(unsafe.Pointer(uintptr(unsafe.Pointer(c.batch.token)) + uintptr(i)*unsafe.Sizeof(C.llama_token(0))))
	*ptr = token
}

func (c *Context) batchSetPos(i int, pos C.llama_pos) {
	ptr := (*C.llama_pos)(unsafe.Pointer(uintptr(unsafe.Pointer(c.batch.pos)) + uintptr(i)*unsafe.Sizeof(C.llama_pos(0))))
	*ptr = pos
}

func (c *Context) batchSetNSeqID(i int, n C.int32_t) {
	ptr := (*C.int32_t)(unsafe.Pointer(uintptr(unsafe.Pointer(c.batch.n_seq_id)) + uintptr(i)*unsafe.Sizeof(C.int32_t(0))))
	*ptr = n
}

func (c *Context) batchSetSeqID(i, j int, seqID C.llama_seq_id) {
	outer := (**C.llama_seq_id)(unsafe.Pointer(uintptr(unsafe.Pointer(c.batch.seq_id)) + uintptr(i)*unsafe.Sizeof((*C.llama_seq_id)(nil))))
	inner := (*C.llama_seq_id)(unsafe.Pointer(uintptr(unsafe.Pointer(*outer)) + uintptr(j)*unsafe.Sizeof(C.llama_seq_id(0))))
	*inner = seqID
}

func (c *Context) batchSetLogits(i int, logits C.int8_t) {
	ptr := (*C.int8_t)(unsafe.Pointer(uintptr(unsafe.Pointer(c.batch.logits)) + uintptr(i)*unsafe.Sizeof(C.int8_t(0))))
	*ptr = logits
}

// DecodePrompt dispatches a single decode of the full prompt batch
// (§4.I step 6), computing logits only for the final token.
func (c *Context) DecodePrompt(tokens []int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, tok := range tokens {
		c.batchSetToken(i, C.llama_token(tok))
		c.batchSetPos(i, C.llama_pos(i))
		c.batchSetNSeqID(i, 1)
		c.batchSetSeqID(i, 0, 0)
		c.batchSetLogits(i, 0)
	}
	c.batchSetLogits(len(tokens)-1, 1)
	c.batch.n_tokens = C.int32_t(len(tokens))

	if ret := C.llama_decode(c.ptr, c.batch); ret != 0 {
		return newError("DecodePrompt", errkind.Inference, "failed to decode prompt", ErrDecodeFailed)
	}
	return nil
}

// SampleNext draws the next token from the configured sampler chain.
func (c *Context) SampleNext() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int32(C.llama_sampler_sample(c.sampler, c.ptr, -1))
}

// DecodeToken advances the KV cache by one generated token at position pos.
func (c *Context) DecodeToken(token int32, pos int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.batchSetToken(0, C.llama_token(token))
	c.batchSetPos(0, C.llama_pos(pos))
	c.batchSetNSeqID(0, 1)
	c.batchSetSeqID(0, 0, 0)
	c.batchSetLogits(0, 1)
	c.batch.n_tokens = 1

	if ret := C.llama_decode(c.ptr, c.batch); ret != 0 {
		return newError("DecodeToken", errkind.Inference, "failed to decode generated token", ErrDecodeFailed)
	}
	return nil
}

// Embedding reads the (L2-normalized by the caller) embedding vector for
// sequence 0 after a decode, widened to float64 per the documented open
// question on embedding dtype.
func (c *Context) Embedding(dim int) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ptr := C.llama_get_embeddings_seq(c.ptr, 0)
	if ptr == nil {
		return nil
	}
	out := make([]float64, dim)
	src := unsafe.Slice((*C.float)(ptr), dim)
	for i := 0; i < dim; i++ {
		out[i] = float64(src[i])
	}
	return out
}

// Close releases the sampler, batch, and context. Safe to call more than once.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sampler != nil {
		C.llama_sampler_free(c.sampler)
		c.sampler = nil
	}
	C.llama_batch_free(c.batch)
	if c.ptr != nil {
		C.llama_free(c.ptr)
		c.ptr = nil
		runtime.SetFinalizer(c, nil)
	}
}

// checkCancelled is a small helper shared by generation loops that must
// poll ctx.Done() between CPU-bound native calls, since native decode
// cannot itself be preempted (§5 cancellation semantics).
func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
