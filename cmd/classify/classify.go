package classify

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/imageclassifier-go/internal/analysis"
	"github.com/tphakala/imageclassifier-go/internal/conf"
)

// Command creates the classify command for image files and directories.
func Command(settings *conf.Settings) *cobra.Command {
	var opts analysis.FileOptions

	cmd := &cobra.Command{
		Use:   "classify [image|directory]...",
		Short: "Classify image files",
		Long:  "Classify one or more image files. Directories are searched recursively for images.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Output = cmd.OutOrStdout()
			return analysis.FileAnalysis(cmd.Context(), settings, args, opts)
		},
	}

	setupFlags(cmd, &opts)
	return cmd
}

// setupFlags configures flags specific to the classify command.
func setupFlags(cmd *cobra.Command, opts *analysis.FileOptions) {
	cmd.Flags().IntVarP(&opts.Orientation, "orientation", "r", 0, "Sensor orientation in degrees, applied as counter-clockwise quarter turns")
	cmd.Flags().BoolVar(&opts.AutoOrient, "auto-orient", false, "Apply the EXIF orientation tag before classification")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, csv, json")
}
