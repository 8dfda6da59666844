package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go_backend/config"

	"github.com/fatih/color"
)

type healthResponse struct {
	Healthy      bool     `json:"healthy"`
	LoadedModels []string `json:"loaded_models"`
	GPUAvailable bool     `json:"gpu_available"`
	GPU          *struct {
		VRAMUsedMB  int64   `json:"vram_used_mb"`
		VRAMTotalMB int64   `json:"vram_total_mb"`
		Utilization float64 `json:"gpu_utilization"`
		Temperature float64 `json:"temperature"`
		DeviceName  string  `json:"device_name"`
	} `json:"gpu,omitempty"`
}

// runStatus queries llamad's /healthz endpoint and prints a colored
// summary, mirroring the pass/fail coloring in the teacher's validation
// suite output.
func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	addr := fs.String("addr", "", "daemon listen address, defaults to LLAMAD_LISTEN_ADDR")
	if err := fs.Parse(args); err != nil {
		return err
	}

	listenAddr := *addr
	if listenAddr == "" {
		cfg, err := config.Load()
		if err == nil {
			listenAddr = cfg.ListenAddr
		} else {
			listenAddr = "127.0.0.1:8745"
		}
	}

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(http.MethodGet, "http://"+listenAddr+"/healthz", nil)
	if err != nil {
		return err
	}
	if token := os.Getenv("LLAMAD_ADMIN_TOKEN"); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("reach llamad at %s: %w", listenAddr, err)
	}
	defer resp.Body.Close()

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}

	statusColor := color.New(color.FgGreen, color.Bold)
	if !health.Healthy {
		statusColor = color.New(color.FgRed, color.Bold)
	}
	statusColor.Printf("healthy: %v\n", health.Healthy)

	fmt.Printf("loaded models: %d\n", len(health.LoadedModels))
	for _, m := range health.LoadedModels {
		fmt.Printf("  - %s\n", m)
	}

	if health.GPUAvailable && health.GPU != nil {
		color.New(color.FgCyan).Printf("gpu: %s  %d/%d MB  %.1f%% util  %.1fC\n",
			health.GPU.DeviceName, health.GPU.VRAMUsedMB, health.GPU.VRAMTotalMB,
			health.GPU.Utilization, health.GPU.Temperature)
	} else {
		color.New(color.FgHiBlack).Println("gpu: unavailable")
	}

	return nil
}
