package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mark3labs/specdash/internal/logger"
	"github.com/mark3labs/specdash/internal/mcpserver"
	"github.com/mark3labs/specdash/internal/nats"
	"github.com/mark3labs/specdash/internal/syncserver"
)

var serveFlags struct {
	listen      string
	workflowDir string
	debounce    time.Duration
	noMCP       bool
}

var serveCmd = &cobra.Command{
	Use:   "serve [project...]",
	Short: "Watch projects and serve live updates",
	Long: `Watch one or more project roots and serve their specs and bugs.

Dashboards connect over WebSocket at /ws; coding agents can query the same
view through MCP at /mcp. Projects default to the configured list, or the
current directory.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveFlags.listen, "listen", "l", "", "Address to listen on (default from config: 127.0.0.1:3737)")
	serveCmd.Flags().StringVarP(&serveFlags.workflowDir, "workflow-dir", "w", "", "Workflow directory relative to each project (default: .claude)")
	serveCmd.Flags().DurationVar(&serveFlags.debounce, "debounce", 0, "Quiet period before a changed item is re-parsed")
	serveCmd.Flags().BoolVar(&serveFlags.noMCP, "no-mcp", false, "Do not expose the MCP endpoint")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveFlags.listen != "" {
		cfg.Listen = serveFlags.listen
	}
	if serveFlags.workflowDir != "" {
		cfg.WorkflowDir = serveFlags.workflowDir
	}
	if serveFlags.debounce > 0 {
		cfg.Debounce = serveFlags.debounce
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	projects, err := syncserver.NewProjects(projectPaths(cfg, args))
	if err != nil {
		return err
	}
	for _, p := range projects {
		if fi, err := os.Stat(p.Path); err != nil || !fi.IsDir() {
			return fmt.Errorf("project %s is not a directory", p.Path)
		}
	}

	bus, err := nats.StartBus()
	if err != nil {
		return err
	}
	defer func() { _ = bus.Close() }()

	opts := syncserver.OptionsFromConfig(cfg)
	srv := syncserver.New(projects, bus, opts)
	if err := srv.Start(); err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	mux := srv.Handler()
	if !serveFlags.noMCP {
		mux.Handle(mcpserver.Path, mcpserver.New(srv, version).Handler())
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Listen, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "specdash serving %d project(s) on http://%s\n", len(projects), ln.Addr())
	for _, p := range projects {
		_, _ = fmt.Fprintf(out, "  %-16s %s\n", p.ID, p.Path)
	}
	logger.Info("listening on %s", ln.Addr())

	return syncserver.Serve(ctx, ln, mux)
}
