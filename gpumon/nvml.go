package gpumon

import (
	"fmt"
	"sync"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// NVMLReader reads GPU telemetry straight from the driver via NVML,
// replacing the teacher's getGPUMemory/CUDA-availability stub with real
// device queries. NVML is process-wide state, so Init/Shutdown are
// reference-counted across every NVMLReader instance.
type NVMLReader struct {
	deviceIndex int
}

var (
	nvmlMu       sync.Mutex
	nvmlRefCount int
	nvmlInitErr  error
)

// NewNVMLReader initializes the NVML library (idempotent, reference
// counted) and returns a Reader for the device at deviceIndex. Returns an
// error if the driver or library is unavailable, in which case callers
// should fall back to UnavailableReader.
func NewNVMLReader(deviceIndex int) (*NVMLReader, error) {
	nvmlMu.Lock()
	defer nvmlMu.Unlock()

	if nvmlRefCount == 0 {
		if ret := nvml.Init(); ret != nvml.SUCCESS {
			nvmlInitErr = fmt.Errorf("gpumon: nvml init: %s", nvml.ErrorString(ret))
			return nil, nvmlInitErr
		}
	}
	nvmlRefCount++
	return &NVMLReader{deviceIndex: deviceIndex}, nil
}

// Close releases this reader's reference on the NVML library, shutting
// it down once the last reader has closed.
func (r *NVMLReader) Close() error {
	nvmlMu.Lock()
	defer nvmlMu.Unlock()

	nvmlRefCount--
	if nvmlRefCount <= 0 {
		nvmlRefCount = 0
		if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
			return fmt.Errorf("gpumon: nvml shutdown: %s", nvml.ErrorString(ret))
		}
	}
	return nil
}

// Read queries the device for current memory, utilization, and
// temperature.
func (r *NVMLReader) Read() (Snapshot, error) {
	device, ret := nvml.DeviceGetHandleByIndex(r.deviceIndex)
	if ret != nvml.SUCCESS {
		return Snapshot{}, fmt.Errorf("gpumon: get device %d: %s", r.deviceIndex, nvml.ErrorString(ret))
	}

	name, ret := device.GetName()
	if ret != nvml.SUCCESS {
		name = "unknown"
	}

	memInfo, ret := device.GetMemoryInfo()
	if ret != nvml.SUCCESS {
		return Snapshot{}, fmt.Errorf("gpumon: get memory info: %s", nvml.ErrorString(ret))
	}

	util, ret := device.GetUtilizationRates()
	if ret != nvml.SUCCESS {
		return Snapshot{}, fmt.Errorf("gpumon: get utilization: %s", nvml.ErrorString(ret))
	}

	tempC, ret := device.GetTemperature(nvml.TEMPERATURE_GPU)
	if ret != nvml.SUCCESS {
		return Snapshot{}, fmt.Errorf("gpumon: get temperature: %s", nvml.ErrorString(ret))
	}

	const bytesPerMB = 1024 * 1024
	return Snapshot{
		VRAMUsedMB:  int64(memInfo.Used / bytesPerMB),
		VRAMTotalMB: int64(memInfo.Total / bytesPerMB),
		Utilization: float64(util.Gpu),
		Temperature: float64(tempC),
		DeviceName:  name,
	}, nil
}

// DeviceCount returns the number of NVML-visible devices, or 0 if NVML
// could not enumerate any (including when no NVIDIA driver is present).
func DeviceCount() int {
	nvmlMu.Lock()
	defer nvmlMu.Unlock()

	if nvmlRefCount == 0 {
		if ret := nvml.Init(); ret != nvml.SUCCESS {
			return 0
		}
		defer nvml.Shutdown()
	}

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return 0
	}
	return count
}

// UnavailableReader is a Reader that always reports the device as
// absent, used on CPU-only hosts or when NVML initialization fails.
type UnavailableReader struct{ Reason string }

func (r UnavailableReader) Read() (Snapshot, error) {
	reason := r.Reason
	if reason == "" {
		reason = "no NVIDIA device available"
	}
	return Snapshot{}, fmt.Errorf("gpumon: %s", reason)
}

// OpenReader returns an NVMLReader for device 0 if NVML initializes
// successfully, otherwise an UnavailableReader wrapping the init error.
// This is the seam cmd/llamad uses so a CPU-only host still starts.
func OpenReader() (Reader, func() error, error) {
	reader, err := NewNVMLReader(0)
	if err != nil {
		return UnavailableReader{Reason: err.Error()}, func() error { return nil }, nil
	}
	return reader, reader.Close, nil
}
