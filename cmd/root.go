// Package cmd builds the imageclassifier command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/imageclassifier-go/cmd/benchmark"
	"github.com/tphakala/imageclassifier-go/cmd/classify"
	"github.com/tphakala/imageclassifier-go/cmd/serve"
	"github.com/tphakala/imageclassifier-go/cmd/version"
	"github.com/tphakala/imageclassifier-go/internal/buildinfo"
	"github.com/tphakala/imageclassifier-go/internal/conf"
	"github.com/tphakala/imageclassifier-go/internal/logger"
)

// RootCommand creates and returns the root command. settings is filled in
// before any subcommand runs.
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var (
		configFile    string
		centralLogger *logger.CentralLogger
	)

	rootCmd := &cobra.Command{
		Use:           "imageclassifier",
		Short:         "On-device image classification with TensorFlow Lite models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml")
	if err := setupFlags(rootCmd); err != nil {
		panic(err)
	}

	versionCmd := version.Command(build)
	rootCmd.AddCommand(
		classify.Command(settings),
		serve.Command(settings, build),
		benchmark.Command(settings),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}

		loaded, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		*settings = *loaded

		centralLogger, err = initLogging(settings)
		return err
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if centralLogger == nil {
			return nil
		}
		return centralLogger.Close()
	}

	return rootCmd
}

// setupFlags defines flags shared by every subcommand and binds them to
// their configuration keys, so a flag given on the command line overrides
// the config file.
func setupFlags(rootCmd *cobra.Command) error {
	flags := rootCmd.PersistentFlags()
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("model", "", "Path to the .tflite model")
	flags.String("labels", "", "Path to the labels file")
	flags.IntP("max-results", "n", conf.DefaultMaxResults, "Number of ranked results to return")
	flags.Int("threads", 0, "Interpreter threads, 0 for auto")
	flags.Bool("xnnpack", false, "Use the XNNPACK delegate")

	bindings := map[string]string{
		"debug":                 "debug",
		"classifier.modelpath":  "model",
		"classifier.labelpath":  "labels",
		"classifier.maxresults": "max-results",
		"classifier.threads":    "threads",
		"classifier.usexnnpack": "xnnpack",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// initLogging installs the global logger from the loaded settings.
func initLogging(settings *conf.Settings) (*logger.CentralLogger, error) {
	cfg := settings.Main.Log
	if settings.Debug {
		cfg.DefaultLevel = "debug"
		if cfg.Console != nil {
			cfg.Console.Level = "debug"
		}
	}

	cl, err := logger.NewCentralLogger(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(cl)
	return cl, nil
}
