package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go_backend/chatpipeline"
	"go_backend/config"
	"go_backend/gpumon"
	"go_backend/logging"
	"go_backend/message"
	"go_backend/worker"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // one connection carries full chat turns, not tiny control frames
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wireRequest is one chat turn sent over the /v1/chat connection. It
// mirrors chatpipeline.ChatRequest, substituting a flat tool-name list
// for message.ChatRequest.ChatOptions.Tools since tool implementations
// cannot travel over the wire.
type wireRequest struct {
	ID          string                     `json:"id"`
	ModelPath   string                     `json:"model_path"`
	Messages    []message.Message          `json:"messages"`
	Options     message.GenerationOptions  `json:"options"`
	ToolNames   []string                   `json:"tool_names,omitempty"`
	ToolAttempt int                        `json:"tool_attempts,omitempty"`
	LoRAPath    string                     `json:"lora_path,omitempty"`
	LoRAScale   float64                    `json:"lora_scale,omitempty"`
}

// wireChunk is one streamed response fragment, tagged with the request
// id it answers so a client can multiplex several outstanding turns on
// one connection.
type wireChunk struct {
	ID              string          `json:"id"`
	Content         string          `json:"content,omitempty"`
	Thinking        string          `json:"thinking,omitempty"`
	ToolCalls       []message.ToolCall `json:"tool_calls,omitempty"`
	Done            bool            `json:"done"`
	PromptTokens    int             `json:"prompt_tokens,omitempty"`
	GeneratedTokens int             `json:"generated_tokens,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// newServer builds the daemon's HTTP server: an authenticated websocket
// chat endpoint and an unauthenticated health endpoint, grounded on the
// teacher's webui.WebSocketBroadcaster connection lifecycle (upgrade,
// ping/pong, read/write deadlines) but restructured around one
// request/response turn per message instead of broadcast-to-all.
func newServer(cfg config.Config, logger *logging.Logger, w *worker.Worker, pipeline *chatpipeline.Pipeline, gpu *gpumon.Collector) *http.Server {
	registry := newToolRegistry()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat", requireAdminToken(cfg.AdminTokenHash, handleChat(logger, pipeline, registry)))
	mux.HandleFunc("/healthz", handleHealth(logger, w, gpu))

	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func handleChat(logger *logging.Logger, pipeline *chatpipeline.Pipeline, registry *toolRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
			return
		}
		defer conn.Close()

		conn.SetReadLimit(maxMessageSize)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})

		// gorilla/websocket allows only one concurrent writer per
		// connection, so the ping loop and the chat response loop below
		// share this mutex rather than writing to conn independently.
		var writeMu sync.Mutex

		stopPing := startPingLoop(conn, &writeMu)
		defer stopPing()

		for {
			var req wireRequest
			if err := conn.ReadJSON(&req); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Warn("websocket read error", zap.Error(err))
				}
				return
			}

			chatReq := chatpipeline.ChatRequest{
				ModelPath:  req.ModelPath,
				Messages:   req.Messages,
				GenOptions: req.Options,
				LoRAPath:   req.LoRAPath,
				LoRAScale:  req.LoRAScale,
			}
			if len(req.ToolNames) > 0 {
				chatReq.ChatOptions = &message.ChatOptions{
					Tools:        registry.resolve(req.ToolNames),
					ToolAttempts: req.ToolAttempt,
				}
			}

			chunks, err := pipeline.StreamChat(r.Context(), chatReq)
			if err != nil {
				writeChunkLocked(conn, &writeMu, wireChunk{ID: req.ID, Done: true, Error: err.Error()})
				continue
			}
			for chunk := range chunks {
				wc := wireChunk{
					ID:              req.ID,
					Content:         chunk.Content,
					Thinking:        chunk.Thinking,
					ToolCalls:       chunk.ToolCalls,
					Done:            chunk.Done,
					PromptTokens:    chunk.PromptTokens,
					GeneratedTokens: chunk.GeneratedTokens,
				}
				if err := writeChunkLocked(conn, &writeMu, wc); err != nil {
					logger.Warn("websocket write error", zap.Error(err))
					return
				}
			}
		}
	}
}

func writeChunkLocked(conn *websocket.Conn, mu *sync.Mutex, wc wireChunk) error {
	mu.Lock()
	defer mu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(wc)
}

func startPingLoop(conn *websocket.Conn, mu *sync.Mutex) func() {
	ticker := time.NewTicker(pingInterval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				mu.Lock()
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				err := conn.WriteMessage(websocket.PingMessage, nil)
				mu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

type healthResponse struct {
	Healthy      bool     `json:"healthy"`
	LoadedModels []string `json:"loaded_models"`
	GPUAvailable bool     `json:"gpu_available"`
	GPU          *gpumon.Snapshot `json:"gpu,omitempty"`
}

func handleHealth(logger *logging.Logger, w *worker.Worker, gpu *gpumon.Collector) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		snap, available := gpu.Current()
		status := w.HealthCheck(snap, available)

		resp := healthResponse{
			Healthy:      status.Healthy,
			LoadedModels: status.LoadedModels,
			GPUAvailable: available,
		}
		if available {
			resp.GPU = &snap
		}

		rw.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(rw).Encode(resp); err != nil {
			logger.Warn("health encode failed", zap.Error(err))
		}
	}
}
