package worker

import (
	"time"

	"go_backend/gpumon"
	"go_backend/message"
)

// HealthCheck reports the worker's currently loaded models alongside a
// GPU snapshot, realizing the ambient health/status reporting of §7
// (modeled on llamaruntime.HealthStatus, which this package never had a
// prior equivalent for). The worker is considered healthy whenever it
// can enumerate its pool, regardless of GPU availability: a CPU-only
// host is a valid, healthy configuration.
func (w *Worker) HealthCheck(gpu gpumon.Snapshot, gpuAvailable bool) message.HealthStatus {
	status := message.HealthStatus{
		Healthy:      true,
		LoadedModels: w.pool.LoadedPaths(),
		CheckedAt:    time.Now(),
	}
	status.GPU.Available = gpuAvailable
	if gpuAvailable {
		status.GPU.DeviceName = gpu.DeviceName
		status.GPU.VRAMUsedMB = gpu.VRAMUsedMB
		status.GPU.VRAMTotalMB = gpu.VRAMTotalMB
		status.GPU.Utilization = gpu.Utilization
		status.GPU.Temperature = gpu.Temperature
	}
	return status
}
