package main

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/kardianos/service"
)

// serviceConfig describes llamad's registration with the host's service
// manager (systemd on Linux, launchd on macOS, SCM on Windows).
// kardianos/service picks the right backend from a single definition, so
// unlike the teacher's Windows-only service_windows.go this file carries
// no build tag: the daemon runs as a background service on every
// platform it targets, not just Windows.
func serviceConfig() *service.Config {
	return &service.Config{
		Name:        "llamad",
		DisplayName: "llamad inference daemon",
		Description: "Persistent local GGUF inference daemon",
		Option: service.KeyValue{
			"StartType": "automatic",
		},
	}
}

// program implements service.Interface by delegating to run. Stop
// cannot cancel run directly since run owns its own signal handling, so
// Stop signals the running process with SIGTERM, the same signal run
// already handles for interactive use, and waits for it to exit.
type program struct {
	done chan int
}

func (p *program) Start(s service.Service) error {
	p.done = make(chan int, 1)
	go func() {
		p.done <- run()
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		return fmt.Errorf("service: find self process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("service: signal self: %w", err)
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(30 * time.Second):
		return fmt.Errorf("service: timed out waiting for graceful shutdown")
	}
}

// runAsService runs llamad under the host service manager if invoked
// non-interactively (e.g. started by systemd), returning false when the
// caller should fall through to running in the foreground instead.
func runAsService() (bool, error) {
	if service.Interactive() {
		return false, nil
	}

	s, err := service.New(&program{}, serviceConfig())
	if err != nil {
		return false, fmt.Errorf("service: create: %w", err)
	}
	if err := s.Run(); err != nil {
		return true, fmt.Errorf("service: run: %w", err)
	}
	return true, nil
}

// installService registers llamad with the host service manager.
func installService() error {
	s, err := service.New(&program{}, serviceConfig())
	if err != nil {
		return fmt.Errorf("service: create: %w", err)
	}
	return s.Install()
}

// uninstallService removes llamad's host service manager registration.
func uninstallService() error {
	s, err := service.New(&program{}, serviceConfig())
	if err != nil {
		return fmt.Errorf("service: create: %w", err)
	}
	return s.Uninstall()
}
