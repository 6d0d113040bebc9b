// Package cpuspec picks an inference thread count from the CPU topology.
package cpuspec

import (
	"regexp"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// CPUSpec contains information about CPU specifications
type CPUSpec struct {
	BrandName        string
	PhysicalCores    int
	LogicalCores     int
	PerformanceCores int // 0 when unknown or not a hybrid part
}

// GetCPUSpec returns the specification of the host CPU
func GetCPUSpec() CPUSpec {
	return newCPUSpec(cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores)
}

func newCPUSpec(brand string, physical, logical int) CPUSpec {
	return CPUSpec{
		BrandName:        brand,
		PhysicalCores:    physical,
		LogicalCores:     logical,
		PerformanceCores: determinePerformanceCores(brand),
	}
}

// GetOptimalThreadCount returns the recommended interpreter thread count.
// Hybrid parts use only performance cores; others use physical cores, since
// SMT siblings add little to convolution throughput.
func (c CPUSpec) GetOptimalThreadCount() int {
	return c.optimalThreads(runtime.NumCPU())
}

func (c CPUSpec) optimalThreads(available int) int {
	switch {
	case c.PerformanceCores > 0:
		return min(c.PerformanceCores, available)
	case c.PhysicalCores > 0:
		return min(c.PhysicalCores, available)
	case c.LogicalCores > 0:
		return min(c.LogicalCores, available)
	default:
		return available
	}
}

// ThreadCount resolves a configured thread count. Zero selects the optimal
// count for this host; values above the CPU count are clamped.
func ThreadCount(configured int) int {
	return resolveThreadCount(configured, GetCPUSpec(), runtime.NumCPU())
}

func resolveThreadCount(configured int, spec CPUSpec, available int) int {
	if configured <= 0 {
		return max(1, spec.optimalThreads(available))
	}
	return min(configured, available)
}

var (
	intelHybridRegex = regexp.MustCompile(`intel.*(?:core.*i([3579])-(1[234])\d{3}|core.*ultra\s+([579])\s+(?:processor\s+)?\d{3})`)
	appleRegex       = regexp.MustCompile(`apple\s+(m[1-4])\s*(pro|max|ultra)?`)
)

// intelPCores maps "<generation><tier>" (e.g. "139" for 13th gen i9) to P-core counts.
var intelPCores = map[string]int{
	"129": 8, "127": 8, "125": 6, "123": 4,
	"139": 8, "137": 8, "135": 6, "133": 4,
	"149": 8, "147": 8, "145": 6, "143": 4,
}

// ultraPCores maps Core Ultra series to P-core counts
var ultraPCores = map[string]int{"9": 8, "7": 8, "5": 6}

// appleCores maps Apple silicon chip names to performance core counts
var appleCores = map[string]int{
	"m1": 4, "m1 pro": 8, "m1 max": 8, "m1 ultra": 16,
	"m2": 4, "m2 pro": 8, "m2 max": 12, "m2 ultra": 24,
	"m3": 4, "m3 pro": 6, "m3 max": 12, "m3 ultra": 24,
	"m4": 4, "m4 pro": 10, "m4 max": 12,
}

func determinePerformanceCores(brandName string) int {
	brand := strings.ToLower(brandName)

	if m := intelHybridRegex.FindStringSubmatch(brand); m != nil {
		if m[1] != "" {
			return intelPCores[m[2]+m[1]]
		}
		return ultraPCores[m[3]]
	}

	if m := appleRegex.FindStringSubmatch(brand); m != nil {
		chip := m[1]
		if m[2] != "" {
			chip += " " + m[2]
		}
		return appleCores[chip]
	}

	return 0
}
