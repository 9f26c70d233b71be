package main

import (
	"context"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/mark3labs/specdash/internal/config"
	"github.com/mark3labs/specdash/internal/logger"
	"github.com/mark3labs/specdash/internal/tui/theme"
)

const (
	logoText1 = "█▀ █▀█ █▀▀ █▀▀ █▀▄ ▄▀█ █▀ █ █"
	logoText2 = "▄█ █▀▀ ██▄ █▄▄ █▄▀ █▀█ ▄█ █▀█"
)

// Version set via ldflags during build
var version = "dev"

var rootFlags struct {
	logLevel string
	logFile  string
}

func main() {
	defer func() { _ = logger.Close() }()

	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		logger.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "specdash",
	Short: "Live dashboard for spec and bug workflows",
}

func renderLogo() string {
	t := theme.NewCatppuccinMocha()
	line1 := theme.ApplyGradient(logoText1, t.Primary, t.Secondary)
	line2 := theme.ApplyGradient(logoText2, t.Primary, t.Secondary)
	return strings.Join([]string{line1, line2}, "\n")
}

func init() {
	rootCmd.Long = renderLogo() + `

specdash watches the spec and bug folders of one or more projects
(.claude/specs/<name>/ and .claude/bugs/<name>/), infers each item's
workflow status from its markdown documents and pushes every change to
connected dashboards over WebSocket.`

	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logFile, "log-file", "", "Write logs to this file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(initCmd)
}

// loadConfig loads configuration and applies the logging flags on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if rootFlags.logLevel != "" {
		cfg.LogLevel = rootFlags.logLevel
	}
	if rootFlags.logFile != "" {
		cfg.LogFile = rootFlags.logFile
	}
	if err := logger.Default.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		return nil, err
	}
	return cfg, nil
}

// projectPaths picks the project roots: arguments win over configuration,
// and the working directory is the fallback.
func projectPaths(cfg *config.Config, args []string) []string {
	if len(args) > 0 {
		return args
	}
	if len(cfg.Projects) > 0 {
		return cfg.Projects
	}
	if !config.Exists() {
		logger.Info("no config file found, serving the current directory (run 'specdash init' to configure projects)")
	}
	return []string{"."}
}
