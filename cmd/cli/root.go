package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sevigo/devflow/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "devflow-cli",
	Short: "devflow-cli is the command-line interface for DevFlow.",
	Long: `A CLI for DevFlow: review a pull request by URL, index a repository into
the snippet store, inspect stored reviews and manage database migrations.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return exportFlags()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config.yaml")
	rootCmd.PersistentFlags().StringP("github-token", "t", "", "GitHub token (overrides github.token)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")

	for flag, key := range map[string]string{
		"config":       "config",
		"github-token": "github.token",
		"log-level":    "logging.level",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

// initConfig reads in ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix("DEVFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// exportFlags hands flag values to config.LoadConfig through the environment
// it already reads.
func exportFlags() error {
	if path := viper.GetString("config"); path != "" {
		if err := os.Setenv(config.ConfigPathEnv, path); err != nil {
			return err
		}
	}
	if token := viper.GetString("github.token"); token != "" {
		if err := os.Setenv("DEVFLOW_GITHUB_TOKEN", token); err != nil {
			return err
		}
	}
	if level := viper.GetString("logging.level"); level != "" {
		if err := os.Setenv("DEVFLOW_LOGGING_LEVEL", level); err != nil {
			return err
		}
	}
	return nil
}
