package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/myconet/cmd/predict"
	"github.com/tphakala/myconet/cmd/serve"
	"github.com/tphakala/myconet/cmd/train"
	"github.com/tphakala/myconet/internal/conf"
	"github.com/tphakala/myconet/internal/logger"
	"github.com/tphakala/myconet/internal/telemetry"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "myconet",
		Short:         "Myco-Net plant health and fungal network analysis",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	rootCmd.AddCommand(
		train.Command(settings),
		serve.Command(settings),
		predict.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initialize(settings)
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		telemetry.Flush()
		if err := logger.Global().Flush(); err != nil {
			fmt.Printf("error flushing logs: %v\n", err)
		}
	}

	return rootCmd
}

// initialize is called before any subcommand runs. It replaces the
// bootstrap logger with the configured one and starts error reporting.
func initialize(settings *conf.Settings) error {
	logCfg := settings.Main.Log
	if settings.Debug {
		logCfg.DefaultLevel = "debug"
	}
	if logCfg.Timezone == "" {
		logCfg.Timezone = settings.Main.TimeZone
	}

	central, err := logger.NewCentralLogger(&logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetGlobal(central)

	if err := telemetry.InitSentry(settings, Version); err != nil {
		// Error reporting is optional, the commands still work without it.
		central.Module("main").Warn("Sentry initialization failed", logger.Error(err))
	}
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
