package config

import (
	"os"
	"testing"
	"time"
)

func clearLlamadEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LLAMAD_MODEL_PATH", "LLAMAD_MODEL_REPO", "LLAMAD_QUANTIZATION", "LLAMAD_MODELS_DIR",
		"LLAMAD_CONTEXT_SIZE", "LLAMAD_BATCH_SIZE", "LLAMAD_THREADS", "LLAMAD_GPU_LAYERS",
		"LLAMAD_LISTEN_ADDR", "LLAMAD_ADMIN_TOKEN_HASH", "LLAMAD_SHUTDOWN_TIMEOUT",
		"LLAMAD_CACHE_PATH", "LLAMAD_PYTHON_PATH", "LLAMAD_CONVERT_SCRIPT", "LLAMAD_QUANTIZE_BIN",
		"DEV_MODE", "LLAMAD_LOG_FILE", "LLAMAD_GPU_POLL_INTERVAL",
	} {
		os.Unsetenv(key)
	}
}

func TestLoadRequiresModelPathOrRepo(t *testing.T) {
	clearLlamadEnv(t)
	if _, err := Load(); err == nil {
		t.Fatal("expected an error when neither LLAMAD_MODEL_PATH nor LLAMAD_MODEL_REPO is set")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearLlamadEnv(t)
	os.Setenv("LLAMAD_MODEL_PATH", "/models/test.gguf")
	defer os.Unsetenv("LLAMAD_MODEL_PATH")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Quantization != "q4_k_m" {
		t.Errorf("Quantization = %q, want q4_k_m", cfg.Quantization)
	}
	if cfg.ContextSize != 4096 {
		t.Errorf("ContextSize = %d, want 4096", cfg.ContextSize)
	}
	if cfg.ListenAddr != "127.0.0.1:8745" {
		t.Errorf("ListenAddr = %q, want 127.0.0.1:8745", cfg.ListenAddr)
	}
	if cfg.ShutdownTimeout != 60*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 60s", cfg.ShutdownTimeout)
	}
	if cfg.CachePath == "" {
		t.Error("expected a non-empty default CachePath")
	}
}

func TestLoadOverridesFromEnv(t *testing.T) {
	clearLlamadEnv(t)
	os.Setenv("LLAMAD_MODEL_REPO", "org/repo")
	os.Setenv("LLAMAD_CONTEXT_SIZE", "8192")
	os.Setenv("LLAMAD_GPU_LAYERS", "35")
	os.Setenv("DEV_MODE", "true")
	defer clearLlamadEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ModelRepo != "org/repo" {
		t.Errorf("ModelRepo = %q, want org/repo", cfg.ModelRepo)
	}
	if cfg.ContextSize != 8192 {
		t.Errorf("ContextSize = %d, want 8192", cfg.ContextSize)
	}
	if cfg.NumGPULayers != 35 {
		t.Errorf("NumGPULayers = %d, want 35", cfg.NumGPULayers)
	}
	if !cfg.DevMode {
		t.Error("expected DevMode = true")
	}
}

func TestParseBoolEnvVariants(t *testing.T) {
	cases := map[string]bool{"true": true, "1": true, "yes": true, "on": true, "false": false, "0": false, "no": false, "off": false, "garbage": true}
	for raw, want := range cases {
		os.Setenv("LLAMAD_TEST_BOOL", raw)
		got := ParseBoolEnv("LLAMAD_TEST_BOOL", true)
		if got != want {
			t.Errorf("ParseBoolEnv(%q) = %v, want %v", raw, got, want)
		}
	}
	os.Unsetenv("LLAMAD_TEST_BOOL")
}
