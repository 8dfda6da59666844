package shutdown

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// CleanupStagingFiles returns a shutdown function that removes leftover
// "*.download" staging files from modelsDir (acquisition.downloadResumable
// leaves one behind whenever a download is interrupted mid-transfer).
//
// Priority recommendation: 40+ (final cleanup, after services stopped)
//
// The cleanup function:
//   - Removes files matching "*.download" in modelsDir
//   - Logs each file removal (success or failure)
//   - Continues cleanup even if individual file removals fail
//   - Returns nil to avoid blocking shutdown (errors are logged)
//
// Usage:
//
//	manager.Register("cleanup-staging-files", 45, shutdown.CleanupStagingFiles(logger, cfg.ModelsDir))
func CleanupStagingFiles(logger *zap.Logger, modelsDir string) ShutdownFunc {
	return func(ctx context.Context) error {
		return cleanupTempFiles(ctx, logger, modelsDir)
	}
}

// cleanupTempFiles removes files matching "*.download" in modelsDir. It
// returns nil even if some files fail to delete (errors are logged).
func cleanupTempFiles(ctx context.Context, logger *zap.Logger, modelsDir string) error {
	logger.Debug("Starting staging file cleanup",
		zap.String("directory", modelsDir),
	)

	pattern := filepath.Join(modelsDir, "*.download")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		logger.Error("Failed to list staging files",
			zap.String("pattern", pattern),
			zap.Error(err),
		)
		// Return nil to not block shutdown
		return nil
	}

	if len(matches) == 0 {
		logger.Debug("No staging files to clean up")
		return nil
	}

	logger.Info("Cleaning up staging files",
		zap.Int("file_count", len(matches)),
	)

	var removedCount int
	var failedCount int

	for _, match := range matches {
		// Check context between file deletions
		select {
		case <-ctx.Done():
			logger.Warn("Shutdown context cancelled during cleanup",
				zap.Int("removed", removedCount),
				zap.Int("remaining", len(matches)-removedCount-failedCount),
			)
			return nil
		default:
		}

		if err := os.Remove(match); err != nil {
			failedCount++
			logger.Warn("Failed to remove staging file",
				zap.String("file", filepath.Base(match)),
				zap.Error(err),
			)
		} else {
			removedCount++
			logger.Debug("Removed staging file",
				zap.String("file", filepath.Base(match)),
			)
		}
	}

	logger.Info("Staging file cleanup complete",
		zap.Int("removed", removedCount),
		zap.Int("failed", failedCount),
	)

	return nil
}
