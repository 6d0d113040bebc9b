package serve

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/imageclassifier-go/internal/analysis"
	"github.com/tphakala/imageclassifier-go/internal/buildinfo"
	"github.com/tphakala/imageclassifier-go/internal/conf"
)

// Command creates the serve command that runs the HTTP API.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the classification HTTP API",
		Long:  "Serve classification, label details and history over HTTP. Send SIGHUP to reload the model.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.Serve(cmd.Context(), settings, build)
		},
	}

	if err := setupFlags(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("listen", "", "Listen address, e.g. :8080")
	cmd.Flags().String("assets", "", "Directory with label text/ and images/")
	cmd.Flags().Int("workers", conf.DefaultWorkers, "Recognition worker goroutines")

	if err := viper.BindPFlag("webserver.listen", cmd.Flags().Lookup("listen")); err != nil {
		return err
	}
	if err := viper.BindPFlag("assets.path", cmd.Flags().Lookup("assets")); err != nil {
		return err
	}
	return viper.BindPFlag("classifier.workers", cmd.Flags().Lookup("workers"))
}
