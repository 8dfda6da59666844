package chatpipeline

import (
	"context"

	"go_backend/errkind"
	"go_backend/message"
	"go_backend/modelpool"
	"go_backend/nativellama"
)

// EmbeddingService loads a model just long enough to embed one piece of
// text, per the supplemented embedding endpoint: a short-lived worker
// distinct from the persistent chat worker, sharing the same model
// pool so a concurrently loaded chat model isn't evicted.
type EmbeddingService struct {
	pool *modelpool.Pool
}

// NewEmbeddingService constructs a service over pool.
func NewEmbeddingService(pool *modelpool.Pool) *EmbeddingService {
	return &EmbeddingService{pool: pool}
}

// newContext is overridable by tests, mirroring worker's seam.
var newEmbeddingContext = nativellama.NewContext

// Embed loads modelPath (incrementing its pool refcount), tokenizes and
// decodes text, and returns its widened (float64) embedding vector.
// Widening happens here, at the chat-pipeline boundary, per the
// documented open-question decision.
func (s *EmbeddingService) Embed(ctx context.Context, modelPath, text string) (message.Embedding, error) {
	handle, err := s.pool.Load(modelPath, modelpool.DefaultLoadOptions())
	if err != nil {
		return message.Embedding{}, &Error{Op: "Embed", Kind: errkind.ModelLoad, Message: "failed to load embedding model", Err: err}
	}
	defer s.pool.Unload(modelPath, false)

	nc, err := newEmbeddingContext(handle.Model(), nativellama.DefaultContextSize, nativellama.DefaultBatchSize, nativellama.DefaultNumThreads)
	if err != nil {
		return message.Embedding{}, &Error{Op: "Embed", Kind: errkind.ContextCreate, Message: "failed to create embedding context", Err: err}
	}
	defer nc.Close()

	tokens, err := handle.Model().Tokenize(text, true)
	if err != nil {
		return message.Embedding{}, &Error{Op: "Embed", Kind: errkind.Tokenization, Message: "failed to tokenize embedding input", Err: err}
	}
	if err := nc.DecodePrompt(tokens); err != nil {
		return message.Embedding{}, &Error{Op: "Embed", Kind: errkind.Inference, Message: "failed to decode embedding input", Err: err}
	}

	vector := nc.Embedding(handle.Model().EmbeddingSize())
	return message.Embedding{Text: text, Vector: vector}, nil
}
