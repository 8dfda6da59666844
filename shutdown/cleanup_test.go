package shutdown

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestCleanupStagingFiles_RemovesDownloadFiles(t *testing.T) {
	logger := zaptest.NewLogger(t)

	modelsDir := t.TempDir()

	stagingFiles := []string{
		"llama-7b.q4_k_m.gguf.download",
		"mistral-7b.q5_k_m.gguf.download",
	}
	for _, f := range stagingFiles {
		path := filepath.Join(modelsDir, f)
		if err := os.WriteFile(path, []byte("partial content"), 0644); err != nil {
			t.Fatalf("Failed to create staging file %s: %v", f, err)
		}
	}

	// A completed model should NOT be deleted
	keepFile := filepath.Join(modelsDir, "llama-7b.q4_k_m.gguf")
	if err := os.WriteFile(keepFile, []byte("complete model"), 0644); err != nil {
		t.Fatalf("Failed to create keep file: %v", err)
	}

	cleanupFn := CleanupStagingFiles(logger, modelsDir)
	if err := cleanupFn(context.Background()); err != nil {
		t.Errorf("CleanupStagingFiles returned unexpected error: %v", err)
	}

	for _, f := range stagingFiles {
		path := filepath.Join(modelsDir, f)
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("Staging file %s should have been deleted", f)
		}
	}

	if _, err := os.Stat(keepFile); os.IsNotExist(err) {
		t.Error("Completed model file should not have been deleted")
	}
}

func TestCleanupStagingFiles_HandlesEmptyDirectory(t *testing.T) {
	logger := zaptest.NewLogger(t)
	modelsDir := t.TempDir()

	cleanupFn := CleanupStagingFiles(logger, modelsDir)
	if err := cleanupFn(context.Background()); err != nil {
		t.Errorf("CleanupStagingFiles on empty directory returned error: %v", err)
	}

	if _, err := os.Stat(modelsDir); os.IsNotExist(err) {
		t.Error("Models directory should still exist after cleanup")
	}
}

func TestCleanupStagingFiles_HandlesMissingDirectory(t *testing.T) {
	logger := zaptest.NewLogger(t)
	nonExistentDir := filepath.Join(t.TempDir(), "does_not_exist")

	cleanupFn := CleanupStagingFiles(logger, nonExistentDir)
	if err := cleanupFn(context.Background()); err != nil {
		t.Errorf("CleanupStagingFiles on missing directory returned error: %v", err)
	}
}

func TestCleanupStagingFiles_RespectsContextCancellation(t *testing.T) {
	logger := zaptest.NewLogger(t)
	modelsDir := t.TempDir()
	for i := 0; i < 10; i++ {
		path := filepath.Join(modelsDir, "model-"+string(rune('a'+i))+".gguf.download")
		if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cleanupFn := CleanupStagingFiles(logger, modelsDir)
	if err := cleanupFn(ctx); err != nil {
		t.Errorf("CleanupStagingFiles with cancelled context returned error: %v", err)
	}
}

func TestCleanupStagingFiles_ReturnsShutdownFunc(t *testing.T) {
	logger := zaptest.NewLogger(t)
	modelsDir := t.TempDir()

	var fn ShutdownFunc = CleanupStagingFiles(logger, modelsDir)
	if err := fn(context.Background()); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestCleanupStagingFiles_HandlesSubdirectories(t *testing.T) {
	logger := zaptest.NewLogger(t)
	modelsDir := t.TempDir()

	subDir := filepath.Join(modelsDir, "staging_subdir.download")
	if err := os.Mkdir(subDir, 0755); err != nil {
		t.Fatalf("Failed to create subdirectory: %v", err)
	}
	subFile := filepath.Join(subDir, "file.txt")
	if err := os.WriteFile(subFile, []byte("content"), 0644); err != nil {
		t.Fatalf("Failed to create file in subdirectory: %v", err)
	}

	stagingFile := filepath.Join(modelsDir, "model.gguf.download")
	if err := os.WriteFile(stagingFile, []byte("content"), 0644); err != nil {
		t.Fatalf("Failed to create staging file: %v", err)
	}

	cleanupFn := CleanupStagingFiles(logger, modelsDir)
	if err := cleanupFn(context.Background()); err != nil {
		t.Errorf("CleanupStagingFiles returned error: %v", err)
	}

	if _, err := os.Stat(stagingFile); !os.IsNotExist(err) {
		t.Error("Staging file should have been removed")
	}

	// os.Remove refuses to delete a non-empty directory, so a directory
	// that happens to match the glob is left alone.
	if _, err := os.Stat(subDir); os.IsNotExist(err) {
		t.Error("Subdirectory should still exist")
	}
}

// ============================================================================
// Integration tests with shutdown.Manager
// ============================================================================

func TestCleanupStagingFiles_IntegrationWithManager(t *testing.T) {
	logger := zaptest.NewLogger(t)
	modelsDir := t.TempDir()

	stagingFile := filepath.Join(modelsDir, "model.gguf.download")
	if err := os.WriteFile(stagingFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create staging file: %v", err)
	}

	manager := NewManager(logger, WithTimeout(5*time.Second))
	manager.Register("cleanup-staging-files", 45, CleanupStagingFiles(logger, modelsDir))

	if err := manager.Shutdown(); err != nil {
		t.Errorf("Shutdown returned error: %v", err)
	}

	if _, err := os.Stat(stagingFile); !os.IsNotExist(err) {
		t.Error("Staging file should have been cleaned up during shutdown")
	}
}

func TestCleanupStagingFiles_ExecutesInPriorityOrder(t *testing.T) {
	logger := zaptest.NewLogger(t)
	modelsDir := t.TempDir()

	stagingFile := filepath.Join(modelsDir, "model.gguf.download")
	if err := os.WriteFile(stagingFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create staging file: %v", err)
	}

	var executionOrder []string
	manager := NewManager(logger, WithTimeout(5*time.Second))

	manager.Register("cleanup-staging-files", 45, func(ctx context.Context) error {
		executionOrder = append(executionOrder, "cleanup-staging-files")
		return CleanupStagingFiles(logger, modelsDir)(ctx)
	})
	manager.Register("pre-cleanup", 10, func(ctx context.Context) error {
		executionOrder = append(executionOrder, "pre-cleanup")
		return nil
	})

	if err := manager.Shutdown(); err != nil {
		t.Errorf("Shutdown returned error: %v", err)
	}

	if len(executionOrder) != 2 {
		t.Fatalf("Expected 2 handlers executed, got %d", len(executionOrder))
	}
	if executionOrder[0] != "pre-cleanup" {
		t.Errorf("Expected pre-cleanup first, got %s", executionOrder[0])
	}
	if executionOrder[1] != "cleanup-staging-files" {
		t.Errorf("Expected cleanup-staging-files second, got %s", executionOrder[1])
	}

	if _, err := os.Stat(stagingFile); !os.IsNotExist(err) {
		t.Error("Staging file should have been cleaned up")
	}
}
