// Command llamad is the persistent inference daemon: it owns the model
// pool, the LoRA manager, and the single worker goroutine, and exposes
// them over a websocket control connection.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go_backend/acquisition"
	"go_backend/chatpipeline"
	"go_backend/config"
	"go_backend/gpumon"
	"go_backend/loramanager"
	"go_backend/logging"
	"go_backend/modelcache"
	"go_backend/modelpool"
	"go_backend/shutdown"
	"go_backend/worker"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "install":
			if err := installService(); err != nil {
				fmt.Fprintf(os.Stderr, "llamad: install: %v\n", err)
				os.Exit(exitCodeError)
			}
			fmt.Println("llamad service installed")
			return
		case "uninstall":
			if err := uninstallService(); err != nil {
				fmt.Fprintf(os.Stderr, "llamad: uninstall: %v\n", err)
				os.Exit(exitCodeError)
			}
			fmt.Println("llamad service uninstalled")
			return
		}
	}

	if ranAsService, err := runAsService(); err != nil {
		fmt.Fprintf(os.Stderr, "llamad: service: %v\n", err)
		os.Exit(exitCodeError)
	} else if ranAsService {
		return
	}

	os.Exit(run())
}

// run wires the daemon together and blocks until shutdown completes,
// returning the process exit code. It mirrors the teacher's main.go
// structure: load env, build the logger, load config, build the
// shutdown manager with priority-ordered cleanup registrations, wire
// the domain components, start serving, then wait for a signal or a
// fatal server error.
func run() int {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "llamad: warning: failed to load .env: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "llamad: config: %v\n", err)
		return exitCodeError
	}

	logger, err := logging.NewLogger(cfg.DevMode, cfg.LogFilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "llamad: logging: %v\n", err)
		return exitCodeError
	}

	sigReceived := make(chan os.Signal, 1)
	signal.Notify(sigReceived, os.Interrupt, syscall.SIGTERM)

	shutdownManager := shutdown.NewManager(logger.Zap(), shutdown.WithTimeout(cfg.ShutdownTimeout))
	shutdownManager.Register("logger-sync", 5, func(context.Context) error {
		return logger.Sync()
	})

	pool := modelpool.New()
	loras := loramanager.New()
	w := worker.New(pool, loras)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	go w.Run(workerCtx)
	shutdownManager.Register("worker", 20, func(context.Context) error {
		stopWorker()
		return nil
	})

	pipeline := chatpipeline.New(w)

	cache, err := modelcache.Open(cfg.CachePath)
	if err != nil {
		logger.Error("failed to open model cache, continuing without it", zap.Error(err))
	} else {
		shutdownManager.Register("modelcache", 35, func(context.Context) error {
			return cache.Close()
		})
	}

	reader, closeReader, err := gpumon.OpenReader()
	if err != nil {
		logger.Warn("GPU monitoring unavailable, continuing without it", zap.Error(err))
		reader = gpumon.UnavailableReader{Reason: err.Error()}
	}
	gpuCollectorConfig := gpumon.DefaultCollectorConfig()
	gpuCollectorConfig.Interval = cfg.GPUPollInterval
	gpuCollector := gpumon.NewCollector(gpuCollectorConfig, reader, nil)
	gpuCollector.Start()
	shutdownManager.Register("gpu-collector", 25, func(context.Context) error {
		gpuCollector.Stop()
		if closeReader != nil {
			return closeReader()
		}
		return nil
	})

	source := acquisition.NewHuggingFaceSource(http.DefaultClient, os.Getenv("LLAMAD_HF_TOKEN"))
	converter := &acquisition.ScriptConverter{
		Source: source,
		Tools: acquisition.ToolPaths{
			PythonPath:    cfg.PythonPath,
			ConvertScript: cfg.ConvertScript,
			QuantizeBin:   cfg.QuantizeBin,
		},
	}
	planner := acquisition.New(source, converter)

	modelPath, err := resolveModelPath(shutdownManager.Context(), cfg, planner, logger)
	if err != nil {
		logger.Error("failed to resolve model", zap.Error(err))
		return exitCodeError
	}

	// Pre-load the model so the pool holds a standing refcount of 1; each
	// request's own Load/Unload pair then only ever decrements back to
	// this floor instead of evicting, keeping the model warm between
	// requests.
	opts := modelpool.DefaultLoadOptions()
	opts.NumGPULayers = cfg.NumGPULayers
	if _, err := pool.Load(modelPath, opts); err != nil {
		logger.Error("failed to load model", zap.String("path", modelPath), zap.Error(err))
		return exitCodeError
	}
	shutdownManager.Register("model-pool", 30, func(context.Context) error {
		pool.UnloadAll()
		loras.UnloadAll()
		return nil
	})

	shutdownManager.Register("staging-cleanup", 45, shutdown.CleanupStagingFiles(logger.Zap(), cfg.ModelsDir))

	srv := newServer(cfg, logger, w, pipeline, gpuCollector)
	shutdownManager.Register("http-server", 15, func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	})

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("llamad listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	exitCode := exitCodeSuccess
	select {
	case sig := <-sigReceived:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		switch sig {
		case os.Interrupt:
			exitCode = exitCodeSIGINT
		case syscall.SIGTERM:
			exitCode = exitCodeSIGTERM
		}
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
			exitCode = exitCodeError
		}
	}

	if shutdownErr := shutdownManager.Shutdown(); shutdownErr != nil {
		logger.Error("shutdown did not complete cleanly", zap.Error(shutdownErr))
		if exitCode == exitCodeSuccess {
			exitCode = exitCodeError
		}
	}

	logger.Info("llamad exiting", zap.Int("exit_code", exitCode), zap.String("exit_reason", exitCodeName(exitCode)))
	_ = logger.Sync()
	return exitCode
}

// resolveModelPath returns cfg.ModelPath directly if set, otherwise
// resolves cfg.ModelRepo through the acquisition planner and returns the
// resulting local artifact path.
func resolveModelPath(ctx context.Context, cfg config.Config, planner *acquisition.Planner, logger *logging.Logger) (string, error) {
	if cfg.ModelPath != "" {
		return cfg.ModelPath, nil
	}

	if err := os.MkdirAll(cfg.ModelsDir, 0o755); err != nil {
		return "", fmt.Errorf("create models dir: %w", err)
	}

	statusCh, err := planner.Resolve(ctx, acquisition.Request{
		RepoID:       cfg.ModelRepo,
		OutputDir:    cfg.ModelsDir,
		Quantization: cfg.Quantization,
	})
	if err != nil {
		return "", fmt.Errorf("acquisition: %w", err)
	}

	var finalPath string
	for status := range statusCh {
		logger.Info("acquisition progress",
			zap.String("stage", string(status.Stage)),
			zap.String("message", status.Message),
		)
		switch status.Stage {
		case acquisition.StageComplete:
			finalPath = status.Path
		case acquisition.StageFailed:
			return "", fmt.Errorf("acquisition failed: %w", status.Err)
		}
	}
	if finalPath == "" {
		return "", fmt.Errorf("acquisition: no artifact produced for %s", cfg.ModelRepo)
	}
	return filepath.Clean(finalPath), nil
}
