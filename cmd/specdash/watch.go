package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mark3labs/specdash/internal/client"
	"github.com/mark3labs/specdash/internal/logger"
	"github.com/mark3labs/specdash/internal/state"
	"github.com/mark3labs/specdash/internal/tui"
	"github.com/mark3labs/specdash/internal/workitem"
)

var watchFlags struct {
	url      string
	projects []string
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open the live dashboard",
	Long: `Open the terminal dashboard connected to a running "specdash serve".

The dashboard reconnects on its own if the server goes away.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchFlags.url, "url", "u", "", "Server URL (default: http://<listen> from config)")
	watchCmd.Flags().StringSliceVarP(&watchFlags.projects, "project", "p", nil, "Only subscribe to these project IDs")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// The dashboard owns the terminal; logs only go to a file.
	if cfg.LogFile == "" {
		logger.Default.SetOutput(io.Discard)
	}

	url := watchFlags.url
	if url == "" {
		url = "http://" + cfg.Listen
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn := client.New(url, client.WithProjects(watchFlags.projects...))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = conn.Run(ctx)
	}()

	err = tui.Run(ctx, conn,
		tui.WithLayout(workitem.Layout{WorkflowDir: cfg.WorkflowDir}),
		tui.WithStateDir(state.Dir()),
	)
	cancel()
	<-done
	return err
}
