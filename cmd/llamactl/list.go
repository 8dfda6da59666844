package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go_backend/config"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// runList lists every GGUF file under the configured models directory.
// Resolved-artifact bookkeeping lives in modelcache's sqlite database,
// but the directory listing is simpler and cannot drift from what is
// actually on disk, which matters more for an operator-facing command.
func runList(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	entries, err := os.ReadDir(cfg.ModelsDir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("no models directory yet; run llamactl pull first")
			return nil
		}
		return fmt.Errorf("read models dir: %w", err)
	}

	nameColor := color.New(color.FgWhite, color.Bold)
	dimColor := color.New(color.FgHiBlack)

	found := false
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".gguf" {
			continue
		}
		found = true
		info, err := e.Info()
		if err != nil {
			continue
		}
		nameColor.Print(e.Name())
		dimColor.Printf("  %s  %s\n", humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))
	}
	if !found {
		fmt.Println("no cached models")
	}
	return nil
}
