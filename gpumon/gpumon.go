// Package gpumon provides GPU memory and utilization telemetry for the
// inference daemon's health reporting and backend-initializer GPU-layer
// sizing decisions. It replaces the teacher's nvidia-smi-subprocess
// collector with direct NVML queries, and falls back to an "unavailable"
// snapshot when no NVIDIA device is present (CPU-only hosts).
package gpumon

import (
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// Snapshot represents GPU resource utilization metrics at a point in
// time. Implements zapcore.ObjectMarshaler for structured logging.
type Snapshot struct {
	// VRAMUsedMB is the amount of VRAM currently in use (megabytes).
	VRAMUsedMB int64 `json:"vram_used_mb"`
	// VRAMTotalMB is the total available VRAM (megabytes).
	VRAMTotalMB int64 `json:"vram_total_mb"`
	// Utilization is the GPU compute utilization percentage (0-100).
	Utilization float64 `json:"gpu_utilization"`
	// Temperature is the GPU temperature in Celsius.
	Temperature float64 `json:"temperature"`
	// DeviceName is the NVML-reported product name, e.g. "NVIDIA RTX 4090".
	DeviceName string `json:"device_name"`
}

// MarshalLogObject implements zapcore.ObjectMarshaler for structured logging.
func (s Snapshot) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt64("vram_used_mb", s.VRAMUsedMB)
	enc.AddInt64("vram_total_mb", s.VRAMTotalMB)
	enc.AddFloat64("gpu_utilization", s.Utilization)
	enc.AddFloat64("temperature", s.Temperature)
	enc.AddString("device_name", s.DeviceName)
	return nil
}

// VRAMFreeMB returns the VRAM headroom available for loading additional
// model layers.
func (s Snapshot) VRAMFreeMB() int64 {
	free := s.VRAMTotalMB - s.VRAMUsedMB
	if free < 0 {
		return 0
	}
	return free
}

// Reader is the interface for reading a single GPU snapshot. This
// abstraction allows device queries to be substituted with a fake in
// tests, mirroring the teacher's GPUReader seam.
type Reader interface {
	// Read returns the current snapshot for device index 0. Returns an
	// error if no device is available or the query fails.
	Read() (Snapshot, error)
}

// CollectorConfig configures the Collector's polling behavior.
type CollectorConfig struct {
	// Interval is how often to poll the device.
	Interval time.Duration
	// HistorySize is the number of samples retained (720 = 1 hour at
	// 5s intervals).
	HistorySize int
}

// DefaultCollectorConfig returns the daemon's default polling cadence.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{Interval: 5 * time.Second, HistorySize: 720}
}

// Collector periodically polls a Reader and retains a bounded history of
// samples, grounded on the teacher's metrics.GPUCollector circular-buffer
// pattern.
type Collector struct {
	mu     sync.RWMutex
	config CollectorConfig
	reader Reader

	history  []Snapshot
	histHead int
	histSize int
	histCap  int

	last      Snapshot
	available bool
	lastErr   error

	onSnapshot func(Snapshot)

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewCollector creates a Collector that polls reader on config's
// interval. onSnapshot, if non-nil, is invoked after every successful
// poll.
func NewCollector(config CollectorConfig, reader Reader, onSnapshot func(Snapshot)) *Collector {
	if config.Interval < time.Second {
		config.Interval = 5 * time.Second
	}
	if config.HistorySize < 1 {
		config.HistorySize = 720
	}
	return &Collector{
		config:     config,
		reader:     reader,
		history:    make([]Snapshot, config.HistorySize),
		histCap:    config.HistorySize,
		onSnapshot: onSnapshot,
		stop:       make(chan struct{}),
	}
}

// Start begins periodic polling in a background goroutine.
func (c *Collector) Start() {
	c.wg.Add(1)
	go c.loop()
}

// Stop halts polling and blocks until the goroutine has exited.
func (c *Collector) Stop() {
	close(c.stop)
	c.wg.Wait()
}

// Current returns the most recently polled snapshot and whether the
// device was available on that poll.
func (c *Collector) Current() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last, c.available
}

// LastError returns the most recent polling error, or nil.
func (c *Collector) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// History returns the last limit samples, oldest first.
func (c *Collector) History(limit int) []Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if limit <= 0 || c.histSize == 0 {
		return []Snapshot{}
	}
	if limit > c.histSize {
		limit = c.histSize
	}
	result := make([]Snapshot, limit)
	for i := 0; i < limit; i++ {
		idx := (c.histHead - c.histSize + i + c.histCap) % c.histCap
		result[i] = c.history[idx]
	}
	return result
}

func (c *Collector) loop() {
	defer c.wg.Done()
	c.pollOnce()

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.pollOnce()
		}
	}
}

func (c *Collector) pollOnce() {
	snap, err := c.reader.Read()

	c.mu.Lock()
	if err != nil {
		c.available = false
		c.lastErr = err
	} else {
		c.available = true
		c.lastErr = nil
		c.last = snap
		c.history[c.histHead] = snap
		c.histHead = (c.histHead + 1) % c.histCap
		if c.histSize < c.histCap {
			c.histSize++
		}
	}
	snapshot := c.last
	ok := c.available
	c.mu.Unlock()

	if ok && c.onSnapshot != nil {
		c.onSnapshot(snapshot)
	}
}
