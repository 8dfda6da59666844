package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds every runtime setting for the inference daemon and CLI,
// adapted from the teacher's Config struct (core/config.go) down to the
// settings this domain actually needs: model path/URL, context/batch/
// thread/GPU-layer defaults, log level/output, the cache path, and the
// external conversion tool paths used by the Acquisition Planner.
type Config struct {
	// Model source
	ModelPath    string // path to a local GGUF file, if already resolved
	ModelRepo    string // Hugging-Face-style "org/repo" to resolve via acquisition
	Quantization string // e.g. "q4_k_m"
	ModelsDir    string // directory acquisition downloads/converts into

	// Native inference defaults
	ContextSize  int
	BatchSize    int
	Threads      int
	NumGPULayers int

	// Daemon
	ListenAddr      string // websocket/admin listen address, e.g. "127.0.0.1:8745"
	AdminTokenHash  string // bcrypt hash of the admin control-socket token, empty disables auth
	ShutdownTimeout time.Duration

	// Cache
	CachePath string // sqlite modelcache path

	// External tooling (Acquisition Planner conversion pipeline)
	PythonPath    string
	ConvertScript string
	QuantizeBin   string

	// Logging
	DevMode     bool
	LogFilePath string

	// GPU monitoring
	GPUPollInterval time.Duration
}

// Load reads Config from the environment, applying defaults for anything
// unset. Call godotenv.Load() before Load in development so a local .env
// file is reflected in os.Getenv.
func Load() (Config, error) {
	cacheDefault, err := defaultCachePath()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		ModelPath:    GetEnvOrDefault("LLAMAD_MODEL_PATH", ""),
		ModelRepo:    GetEnvOrDefault("LLAMAD_MODEL_REPO", ""),
		Quantization: GetEnvOrDefault("LLAMAD_QUANTIZATION", "q4_k_m"),
		ModelsDir:    GetEnvOrDefault("LLAMAD_MODELS_DIR", "./models"),

		ContextSize:  ParseIntEnv("LLAMAD_CONTEXT_SIZE", 4096),
		BatchSize:    ParseIntEnv("LLAMAD_BATCH_SIZE", 512),
		Threads:      ParseIntEnv("LLAMAD_THREADS", 4),
		NumGPULayers: ParseIntEnv("LLAMAD_GPU_LAYERS", 0),

		ListenAddr:      GetEnvOrDefault("LLAMAD_LISTEN_ADDR", "127.0.0.1:8745"),
		AdminTokenHash:  GetEnvOrDefault("LLAMAD_ADMIN_TOKEN_HASH", ""),
		ShutdownTimeout: ParseDurationEnv("LLAMAD_SHUTDOWN_TIMEOUT", 60),

		CachePath: GetEnvOrDefault("LLAMAD_CACHE_PATH", cacheDefault),

		PythonPath:    GetEnvOrDefault("LLAMAD_PYTHON_PATH", "python3"),
		ConvertScript: GetEnvOrDefault("LLAMAD_CONVERT_SCRIPT", ""),
		QuantizeBin:   GetEnvOrDefault("LLAMAD_QUANTIZE_BIN", ""),

		DevMode:     ParseBoolEnv("DEV_MODE", false),
		LogFilePath: GetEnvOrDefault("LLAMAD_LOG_FILE", "llamad.log"),

		GPUPollInterval: ParseDurationEnv("LLAMAD_GPU_POLL_INTERVAL", 5),
	}

	if cfg.ModelPath == "" && cfg.ModelRepo == "" {
		return Config{}, fmt.Errorf("config: one of LLAMAD_MODEL_PATH or LLAMAD_MODEL_REPO must be set")
	}
	return cfg, nil
}

func defaultCachePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".llamad", "cache.sqlite"), nil
}
