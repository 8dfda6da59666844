package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"go_backend/acquisition"
	"go_backend/config"

	"github.com/fatih/color"
)

// runPull resolves repo into a local GGUF artifact via the same
// acquisition.Planner decision tree the daemon uses for its own
// LLAMAD_MODEL_REPO startup resolution, printing each status stage as it
// streams in, the way the teacher's validation suite colors pass/fail
// output per check.
func runPull(args []string) error {
	fs := flag.NewFlagSet("pull", flag.ExitOnError)
	quant := fs.String("quant", "q4_k_m", "quantization to match, e.g. q4_k_m")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: llamactl pull <org/repo> [--quant q4_k_m]")
	}
	repoID := fs.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(cfg.ModelsDir, 0o755); err != nil {
		return fmt.Errorf("create models dir: %w", err)
	}

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

	statusCh, err := planner.Resolve(context.Background(), acquisition.Request{
		RepoID:       repoID,
		OutputDir:    cfg.ModelsDir,
		Quantization: *quant,
	})
	if err != nil {
		return fmt.Errorf("resolve %s: %w", repoID, err)
	}

	stageColor := color.New(color.FgCyan)
	okColor := color.New(color.FgGreen, color.Bold)
	failColor := color.New(color.FgRed, color.Bold)

	for status := range statusCh {
		switch status.Stage {
		case acquisition.StageDownloading:
			if status.Progress != nil {
				stageColor.Printf("\rdownloading %s  %5.1f%%", repoID, *status.Progress*100)
			}
		case acquisition.StageComplete:
			fmt.Println()
			okColor.Printf("resolved %s -> %s\n", repoID, status.Path)
		case acquisition.StageFailed:
			fmt.Println()
			failColor.Printf("failed: %v\n", status.Err)
			return status.Err
		default:
			stageColor.Printf("%s: %s\n", status.Stage, status.Message)
		}
	}
	return nil
}
