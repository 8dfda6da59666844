// Package nativellama is a thin Go wrapper over the llama.cpp C ABI:
// backend init/teardown, model/context lifecycle, tokenization, batch
// decode, sampler-chain construction, LoRA adapters, chat-template
// application, and log-callback registration (§4.B).
//
// The cgo-backed implementation lives in bindings.go (build tag "cgo &&
// !nocgo"); a pure-Go stub in stub.go lets the rest of the module build
// and test without a native toolchain or compiled llama.cpp library.
package nativellama

import "time"

const (
	DefaultContextSize   = 2048
	DefaultBatchSize     = 512
	DefaultNumGPULayers  = -1
	DefaultNumThreads    = 4
	DefaultTemperature   = 0.7
	DefaultTopP          = 0.9
	DefaultTopK          = 40
	DefaultRepeatPenalty = 1.1

	MinContextSize = 256
	MaxContextSize = 8192
	MinBatchSize   = 1
	MaxBatchSize   = 2048

	// repeatPenaltyWindow is the fixed history window (in tokens) over
	// which repeat/frequency/presence penalties are applied, per §4.I
	// step 7.
	repeatPenaltyWindow = 64
)

// SamplingParams configures one sampler chain. All penalty fields use
// the native unsigned-multiplier convention: callers above this package
// (the worker) perform the signed-to-unsigned translation of §4.I.
type SamplingParams struct {
	Temperature float32
	TopK        int
	TopP        float32

	RepeatPenalty   float32
	FrequencyPenalty float32
	PresencePenalty  float32

	// Seed selects the distribution sampler's RNG seed. A nil value asks
	// for a high-resolution-timestamp-derived seed (nondeterministic).
	Seed *uint32
}

// DefaultSamplingParams mirrors common single-turn chat defaults.
func DefaultSamplingParams() SamplingParams {
	return SamplingParams{
		Temperature:   DefaultTemperature,
		TopK:          DefaultTopK,
		TopP:          DefaultTopP,
		RepeatPenalty: DefaultRepeatPenalty,
	}
}

func (p SamplingParams) resolveSeed() uint32 {
	if p.Seed != nil {
		return *p.Seed
	}
	return uint32(time.Now().UnixNano())
}

// ModelInfo summarizes a loaded model's fixed attributes, mirroring the
// Model Handle data-model entry of §3.
type ModelInfo struct {
	Path             string
	VocabSize        int
	ContextTrainSize int
	EmbeddingSize    int
	BOSToken         int32
	EOSToken         int32
}

// ChatMessage is the minimal role/content pair the native chat-template
// function consumes; role strings follow the fixed mapping in §4.F.
type ChatMessage struct {
	Role    string
	Content string
}
