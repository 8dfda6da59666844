package acquisition

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ToolPaths locates the external programs the conversion pipeline shells
// out to. Empty fields fall back to PATH lookup under the listed default
// name.
type ToolPaths struct {
	PythonPath    string // default "python3"
	ConvertScript string // e.g. llama.cpp's convert_hf_to_gguf.py
	QuantizeBin   string // default "llama-quantize"
}

func (t ToolPaths) python() string {
	if t.PythonPath != "" {
		return t.PythonPath
	}
	return "python3"
}

func (t ToolPaths) quantizeBin() string {
	if t.QuantizeBin != "" {
		return t.QuantizeBin
	}
	return "llama-quantize"
}

// ScriptConverter runs the safetensors-to-GGUF conversion pipeline by
// shelling out to an external Python conversion script and a native
// quantize binary, per §4.K's conversion state machine: check tooling,
// download sources, convert to F16, quantize to the requested type,
// delete the F16 intermediate.
type ScriptConverter struct {
	Source Source
	Tools  ToolPaths

	// runCommand executes name with args and returns combined output; a
	// package-level-style seam kept as a struct field so tests can
	// substitute a fake without touching a real toolchain.
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewScriptConverter constructs a ScriptConverter over source using tools.
func NewScriptConverter(source Source, tools ToolPaths) *ScriptConverter {
	return &ScriptConverter{Source: source, Tools: tools, runCommand: runExternalCommand}
}

func runExternalCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

func (c *ScriptConverter) run() func(ctx context.Context, name string, args ...string) ([]byte, error) {
	if c.runCommand != nil {
		return c.runCommand
	}
	return runExternalCommand
}

// Convert implements the Converter interface.
func (c *ScriptConverter) Convert(ctx context.Context, repoID, quantization, outputDir string, onStatus func(Status)) (string, error) {
	run := c.run()

	onStatus(Status{Stage: StageChecking, Message: "checking conversion tooling"})
	if err := c.checkTooling(ctx, run); err != nil {
		return "", fmt.Errorf("acquisition: conversion tooling unavailable: %w", err)
	}

	sourceDir := filepath.Join(outputDir, ".sources", sanitizeRepoID(repoID))
	if err := os.MkdirAll(sourceDir, 0o755); err != nil {
		return "", fmt.Errorf("acquisition: create source staging dir: %w", err)
	}

	files, err := c.Source.ListFiles(ctx, repoID)
	if err != nil {
		return "", fmt.Errorf("acquisition: list safetensors sources: %w", err)
	}
	safetensors := filterNamed(files, isSafetensors)
	if len(safetensors) == 0 {
		return "", fmt.Errorf("acquisition: no safetensors files found in %s", repoID)
	}

	for i, f := range safetensors {
		onStatus(Status{Stage: StageDownloading, Progress: progressPtr(float64(i) / float64(len(safetensors))), Message: f.Name})
		if err := downloadResumable(ctx, downloadOptions{
			URL:      c.Source.FileURL(repoID, f.Name),
			DestPath: filepath.Join(sourceDir, f.Name),
		}); err != nil {
			return "", fmt.Errorf("acquisition: download source %s: %w", f.Name, err)
		}
	}
	onStatus(Status{Stage: StageDownloading, Progress: progressPtr(1.0)})

	base := sanitizeRepoID(repoID)
	f16Path := filepath.Join(outputDir, base+"-f16.gguf")
	onStatus(Status{Stage: StageConverting, Message: "converting to F16 GGUF"})
	if _, err := run(ctx, c.Tools.python(), c.Tools.ConvertScript, sourceDir, "--outfile", f16Path, "--outtype", "f16"); err != nil {
		return "", fmt.Errorf("acquisition: convert to F16: %w", err)
	}

	finalPath := filepath.Join(outputDir, fmt.Sprintf("%s-%s.gguf", base, strings.ToUpper(quantization)))
	onStatus(Status{Stage: StageQuantizing, Message: fmt.Sprintf("quantizing to %s", quantization)})
	if _, err := run(ctx, c.Tools.quantizeBin(), f16Path, finalPath, strings.ToUpper(quantization)); err != nil {
		return "", fmt.Errorf("acquisition: quantize to %s: %w", quantization, err)
	}

	if err := os.Remove(f16Path); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("acquisition: delete F16 intermediate: %w", err)
	}

	return finalPath, nil
}

func (c *ScriptConverter) checkTooling(ctx context.Context, run func(context.Context, string, ...string) ([]byte, error)) error {
	if c.Tools.ConvertScript == "" {
		return fmt.Errorf("no conversion script configured")
	}
	if _, err := os.Stat(c.Tools.ConvertScript); err != nil {
		return fmt.Errorf("conversion script not found: %w", err)
	}
	if _, err := run(ctx, c.Tools.python(), "--version"); err != nil {
		return fmt.Errorf("python interpreter unavailable: %w", err)
	}
	if _, err := run(ctx, c.Tools.quantizeBin(), "--help"); err != nil {
		return fmt.Errorf("quantize binary unavailable: %w", err)
	}
	return nil
}

func sanitizeRepoID(repoID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, repoID)
}
