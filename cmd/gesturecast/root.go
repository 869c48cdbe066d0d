package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ayusman/gesturecast/internal/config"
	"github.com/ayusman/gesturecast/internal/store"
	"github.com/spf13/cobra"
)

// Version is the application version.
const Version = "0.1.0"

var (
	// cfg is the configuration loaded before every command runs.
	cfg *config.Config
	// cfgPath is the file cfg was loaded from. Empty when defaults are used.
	cfgPath string
	// configFlag is the value of --config.
	configFlag string
)

var rootCmd = &cobra.Command{
	Use:           "gesturecast",
	Short:         "Stream hand landmarks to a gesture classification service",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, path, err := loadConfig(configFlag, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		cfg, cfgPath = loaded, path
		return nil
	},
}

// Execute runs the root command with a context cancelled on Ctrl+C or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", config.DefaultPath(), "configuration file")
}

// loadConfig reads path. A missing file falls back to the defaults unless the
// path was given explicitly.
func loadConfig(path string, explicit bool) (*config.Config, string, error) {
	loaded, err := config.Load(path)
	if err == nil {
		return loaded, path, nil
	}
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return config.Default(), "", nil
	}
	return nil, "", err
}

// openStore opens the sample database under the configured data directory.
func openStore() (*store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open sample store: %w", err)
	}
	return st, nil
}
