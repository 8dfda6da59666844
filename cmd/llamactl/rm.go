package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go_backend/config"

	"github.com/fatih/color"
)

// runRemove deletes a cached model file, either by absolute/relative
// path or by bare filename resolved against the configured models
// directory.
func runRemove(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: llamactl rm <path-or-filename>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	target := args[0]
	if _, err := os.Stat(target); err != nil {
		target = filepath.Join(cfg.ModelsDir, args[0])
	}

	if err := os.Remove(target); err != nil {
		return fmt.Errorf("remove %s: %w", target, err)
	}

	color.New(color.FgGreen).Printf("removed %s\n", target)
	return nil
}
