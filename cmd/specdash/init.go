package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mark3labs/specdash/internal/config"
)

var initFlags struct {
	global bool
	force  bool
}

var initCmd = &cobra.Command{
	Use:   "init [project...]",
	Short: "Create a specdash configuration file",
	Long: `Create a specdash configuration file listing the projects to serve.

By default writes ./specdash.yml. Use --global to write
~/.config/specdash/specdash.yml instead.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initFlags.global, "global", "g", false, "Write the global config instead of ./specdash.yml")
	initCmd.Flags().BoolVarP(&initFlags.force, "force", "f", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetPath := config.ProjectPath()
	if initFlags.global {
		targetPath = config.GlobalPath()
	}
	if !initFlags.force && fileExists(targetPath) {
		return fmt.Errorf("config file already exists at %s\n\nUse --force to overwrite", targetPath)
	}

	projects := make([]string, 0, len(args))
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", arg, err)
		}
		projects = append(projects, abs)
	}
	if len(projects) == 0 && initFlags.global {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		projects = append(projects, wd)
	}

	cfg := &config.Config{
		Projects:     projects,
		Listen:       config.DefaultListen,
		WorkflowDir:  config.DefaultWorkflowDir,
		Debounce:     config.DefaultDebounce,
		ParseWorkers: config.DefaultParseWorkers,
		ClientBuffer: config.DefaultClientBuffer,
		LogLevel:     "warn",
	}

	var err error
	if initFlags.global {
		err = config.WriteGlobal(cfg)
	} else {
		err = config.WriteProject(cfg)
	}
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", targetPath)
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
