package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/geoclock/timekeeper/cmd/config"
	"github.com/geoclock/timekeeper/cmd/export"
	"github.com/geoclock/timekeeper/cmd/reconcile"
	"github.com/geoclock/timekeeper/cmd/seed"
	"github.com/geoclock/timekeeper/cmd/serve"
	"github.com/geoclock/timekeeper/internal/buildinfo"
	"github.com/geoclock/timekeeper/internal/conf"
	"github.com/geoclock/timekeeper/internal/logger"
)

// RootCommand creates and returns the root command. settings is filled in
// before any subcommand runs.
func RootCommand(info *buildinfo.Context) *cobra.Command {
	settings := conf.Defaults()
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "timekeeper",
		Short:         "Time entry reconciliation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml (default: search the standard locations)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		panic(fmt.Sprintf("error binding debug flag: %v", err))
	}

	configCmd := config.Command(&configFile)
	versionCmd := versionCommand(info)

	rootCmd.AddCommand(
		serve.Command(settings, info),
		reconcile.Command(settings),
		export.Command(settings),
		seed.Command(settings),
		configCmd,
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// config init writes the file Load would read; version needs nothing.
		if cmd == versionCmd || cmd.HasParent() && cmd.Parent() == configCmd {
			return nil
		}
		return initialize(configFile, settings)
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return logger.Global().Close()
	}

	return rootCmd
}

// initialize loads the configuration into settings and installs the
// central logger.
func initialize(configFile string, settings *conf.Settings) error {
	loaded, err := conf.Load(configFile)
	if err != nil {
		return err
	}
	*settings = *loaded

	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}
	cl, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(cl)
	return nil
}

func versionCommand(info *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), info.String())
		},
	}
}
