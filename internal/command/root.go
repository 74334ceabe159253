// Package command contains the CLI command constructors.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/swapshelf/swapshelf/internal/config"
	"github.com/swapshelf/swapshelf/internal/observability"
)

// RootCommand instantiates the root command, with all sub-commands bound.
func RootCommand() *cobra.Command {
	configFilePath := filepath.Join(xdg.ConfigHome, "swapshelf.yaml")
	cmd := &cobra.Command{
		Use:          "swapshelf [command] [flags]",
		Short:        "The used-game exchange list",
		Version:      version(),
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, err := loadOrInitConfig(configFilePath)
			if err != nil {
				return fmt.Errorf("failed to load configuration file: %w", err)
			}
			logger := observability.InitSlog(cfg)
			logger.DebugContext(cmd.Context(), "configuration loaded", slog.Any("config", cfg))
			slog.SetDefault(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(
		&configFilePath,
		"config", "c",
		configFilePath,
		"path to the configuration file",
	)

	cmd.AddCommand(
		serveCommand(),
		userCommand(),
	)

	return cmd
}

func loadOrInitConfig(configFilePath string) (*config.Config, error) {
	_, statErr := os.Stat(configFilePath)
	if errors.Is(statErr, os.ErrNotExist) && os.Getenv("SWAPSHELF_DATABASE_URL") == "" {
		if err := initConfig(configFilePath); err != nil {
			return nil, err
		}
	}
	return config.Load(configFilePath)
}

// initConfig interactively writes a starter config file. Declining the
// prompt is not an error; validation of the empty config reports what is
// missing.
func initConfig(configFilePath string) error {
	resp, err := prompt(fmt.Sprintf("Config not found at %s. Create one? [y|N] ", configFilePath), false)
	if err != nil || !bytes.Equal(resp, []byte("y")) {
		return err
	}

	resp, err = prompt("Enter the PostgreSQL connection URL: ", false)
	if err != nil {
		return err
	}

	cfg := config.Defaults()
	cfg.Database.URL = string(resp)
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}
	if err = os.WriteFile(configFilePath, data, 0600); err != nil { //nolint:mnd // owner rw access
		return fmt.Errorf("failed to write config file to %s: %w", configFilePath, err)
	}
	return nil
}
