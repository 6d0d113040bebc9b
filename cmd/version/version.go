package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/tphakala/imageclassifier-go/internal/buildinfo"
	"github.com/tphakala/imageclassifier-go/internal/cpuspec"
)

// Command prints build metadata and the CPU features relevant to inference.
func Command(build *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			spec := cpuspec.GetCPUSpec()

			fmt.Fprintf(out, "imageclassifier %s\n", build)
			fmt.Fprintf(out, "go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(out, "cpu:     %s\n", spec.BrandName)
			fmt.Fprintf(out, "threads: %d (default interpreter threads %d)\n", runtime.NumCPU(), spec.GetOptimalThreadCount())
			return nil
		},
	}
}
