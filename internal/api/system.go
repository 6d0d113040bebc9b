package api

import (
	"net/http"
	"os"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/tphakala/imageclassifier-go/internal/logger"
)

// SystemInfo is the reply of GET /system. Host figures the platform cannot
// provide are left zero.
type SystemInfo struct {
	OS            string  `json:"os"`
	Architecture  string  `json:"architecture"`
	Platform      string  `json:"platform,omitempty"`
	KernelVersion string  `json:"kernel_version,omitempty"`
	NumCPU        int     `json:"num_cpu"`
	GoVersion     string  `json:"go_version"`
	MemoryTotal   uint64  `json:"memory_total"`
	MemoryUsage   float64 `json:"memory_usage_percent"`
	ProcessMemMB  float64 `json:"process_memory_mb"`
	ProcessCPU    float64 `json:"process_cpu_percent"`
}

// GetSystemInfo reports host and process resource usage.
func (c *Controller) GetSystemInfo(ctx echo.Context) error {
	info := SystemInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		NumCPU:       runtime.NumCPU(),
		GoVersion:    runtime.Version(),
	}
	log := c.log.WithContext(ctx.Request().Context())

	if hostInfo, err := host.Info(); err == nil {
		info.Platform = hostInfo.Platform
		info.KernelVersion = hostInfo.KernelVersion
	} else {
		log.Debug("host info unavailable", logger.Error(err))
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		info.MemoryTotal = memInfo.Total
		info.MemoryUsage = memInfo.UsedPercent
	} else {
		log.Debug("memory info unavailable", logger.Error(err))
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil { //nolint:gosec // G115: pid fits int32
		if procMem, err := proc.MemoryInfo(); err == nil {
			info.ProcessMemMB = float64(procMem.RSS) / 1024 / 1024
		}
		if procCPU, err := proc.CPUPercent(); err == nil {
			info.ProcessCPU = procCPU
		}
	}

	return ctx.JSON(http.StatusOK, info)
}
