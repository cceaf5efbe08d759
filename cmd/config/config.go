// Package config manages the configuration file.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/geoclock/timekeeper/internal/conf"
	"github.com/geoclock/timekeeper/internal/errors"
)

// Command creates the config command. configFile points at the root
// --config flag.
func Command(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(initCommand(configFile))
	return cmd
}

func initCommand(configFile *string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config.yaml with a generated signing secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := Init(*configFile, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

// Init writes the default settings with a fresh JWT secret to path, or to
// the per-user default location when path is empty. It refuses to
// overwrite an existing file unless force is set.
func Init(path string, force bool) (string, error) {
	if path == "" {
		var err error
		if path, err = conf.DefaultConfigFile(); err != nil {
			return "", errors.New(err).
				Component("config").
				Category(errors.CategoryConfiguration).
				Build()
		}
	}
	if _, err := os.Stat(path); err == nil && !force {
		return "", errors.Newf("%s already exists; use --force to overwrite", path).
			Component("config").
			Category(errors.CategoryConflict).
			Build()
	}

	settings := conf.Defaults()
	settings.Security.JWTSecret = conf.GenerateRandomSecret()
	if settings.Security.JWTSecret == "" {
		return "", errors.Newf("failed to generate a signing secret").
			Component("config").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := conf.SaveYAMLConfig(path, settings); err != nil {
		return "", errors.New(err).
			Component("config").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return path, nil
}
