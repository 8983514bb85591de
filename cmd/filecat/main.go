package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"filecat/internal/app"
	"filecat/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies FILECAT_* overrides.
func loadConfig() (*config.Config, error) {
	paths, err := app.DefaultPaths()
	if err != nil {
		return nil, fmt.Errorf("resolving paths: %w", err)
	}

	cfg, err := config.ReadFromFile(paths.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// newApp reads the config and creates a FilecatApp. The caller must defer app.Close().
// operation names the CLI command being run (e.g. "serve", "scan").
func newApp(ctx context.Context, operation string) (*app.FilecatApp, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewFilecatApp(ctx, cfg, operation, app.Options{
		Passphrase: os.Getenv("FILECAT_PASSPHRASE"),
	})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

var rootCmd = &cobra.Command{
	Use:          "filecat",
	Short:        "Categorize and organize files in a watched folder",
	SilenceUsage:  true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		watch, _ := cmd.Flags().GetString("watch")

		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("resolving paths: %w", err)
		}

		if watch == "" {
			watch, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}
		}

		secret, err := newSecret()
		if err != nil {
			return err
		}

		cfg := config.NewConfig(paths.BaseDir, watch)
		cfg.Auth.JWTSecret = secret

		if err := config.Init(paths.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", paths.ConfigPath)
		fmt.Printf("Base Dir:  %s\n", paths.BaseDir)
		fmt.Printf("Watch Dir: %s\n", watch)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("resolving paths: %w", err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", paths.ConfigPath)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Watch Dir:   %s\n", cfg.Watch.Dir)
		fmt.Printf("Database:    %s %s\n", cfg.Database.Type, cfg.Database.Path)
		fmt.Printf("Model Store: %s (encrypted: %v)\n", cfg.ModelStore.Type, cfg.ModelStore.Encrypt)
		fmt.Printf("Server:      %s\n", cfg.Server.Addr)
		fmt.Printf("Auth:        %s\n", authSummary(cfg.Auth))
		return nil
	},
}

func authSummary(a config.AuthConfig) string {
	switch {
	case a.Disabled:
		return "disabled"
	case a.JWTSecret == "":
		return "enabled, no secret set"
	default:
		return "enabled, issuer " + a.Issuer
	}
}

func newSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("watch", "", "Directory to categorize (default: current directory)")
	configCmd.AddCommand(configListCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// db subcommands
	dbCmd.AddCommand(dbBackupCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().String("subject", "cli", "Token subject")
	tokenCmd.Flags().Duration("ttl", 0, "Token lifetime (default: auth.token_ttl)")
	rootCmd.AddCommand(filesCmd)
	filesCmd.Flags().StringP("filter", "f", "all", "Filter: all, categorized, uncategorized")
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(categorizeCmd)
	categorizeCmd.Flags().Bool("force", false, "Re-classify files that already have a category")
	rootCmd.AddCommand(moveCmd)
	moveCmd.Flags().Bool("stop-on-error", false, "Stop at the first failed move")
	moveCmd.Flags().Bool("validate", false, "Reject categories no file carries yet")
	moveCmd.Flags().Bool("create-dirs", true, "Create missing category folders")
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of jobs to show")
}
