package main

import (
	"encoding/json"
	"fmt"
	"io"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/mark3labs/specdash/internal/collection"
	"github.com/mark3labs/specdash/internal/syncserver"
	"github.com/mark3labs/specdash/internal/tui/theme"
	"github.com/mark3labs/specdash/internal/workitem"
)

var statusFlags struct {
	json bool
	kind string
}

var statusCmd = &cobra.Command{
	Use:   "status [project...]",
	Short: "Print the ordered specs and bugs of projects",
	Args:  cobra.ArbitraryArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusFlags.json, "json", false, "Print JSON instead of a table")
	statusCmd.Flags().StringVarP(&statusFlags.kind, "kind", "k", "", "Only print one kind: spec or bug")
}

// projectStatus is the --json shape.
type projectStatus struct {
	ID    string                                `json:"id"`
	Path  string                                `json:"path"`
	Items map[workitem.Kind][]workitem.WorkItem `json:"items"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	kinds := workitem.Kinds
	if statusFlags.kind != "" {
		k, err := workitem.ParseKind(statusFlags.kind)
		if err != nil {
			return err
		}
		kinds = []workitem.Kind{k}
	}

	projects, err := syncserver.NewProjects(projectPaths(cfg, args))
	if err != nil {
		return err
	}

	assembler := collection.New(workitem.Layout{WorkflowDir: cfg.WorkflowDir},
		collection.WithWorkers(cfg.ParseWorkers))

	result := make([]projectStatus, 0, len(projects))
	for _, p := range projects {
		ps := projectStatus{ID: p.ID, Path: p.Path, Items: make(map[workitem.Kind][]workitem.WorkItem)}
		for _, kind := range kinds {
			items, err := assembler.Assemble(cmd.Context(), p.Path, kind)
			if err != nil {
				return fmt.Errorf("%s: %w", p.ID, err)
			}
			ps.Items[kind] = items
		}
		result = append(result, ps)
	}

	out := cmd.OutOrStdout()
	if statusFlags.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	for _, ps := range result {
		printStatus(out, ps, kinds)
	}
	return nil
}

func printStatus(w io.Writer, ps projectStatus, kinds []workitem.Kind) {
	t := theme.Current()
	s := t.S()
	_, _ = fmt.Fprintln(w, s.HeaderTitle.Render(ps.ID)+s.Muted.Render("  "+ps.Path))

	for _, kind := range kinds {
		items := ps.Items[kind]
		_, _ = fmt.Fprintf(w, "\n  %s %s\n", s.HeaderInfo.Render(kind.Dir()), s.Muted.Render(fmt.Sprintf("(%d)", len(items))))
		if len(items) == 0 {
			_, _ = fmt.Fprintln(w, s.Muted.Render("    none"))
			continue
		}
		nameWidth := 0
		for _, it := range items {
			nameWidth = max(nameWidth, lipgloss.Width(it.DisplayName))
		}
		for _, it := range items {
			line := fmt.Sprintf("    %-*s  %s", nameWidth, it.DisplayName, t.StatusBadge(it.Status))
			if kind == workitem.KindSpec && it.TaskSummary.Total > 0 {
				line += s.Muted.Render(fmt.Sprintf("  %d/%d tasks", it.TaskSummary.Completed, it.TaskSummary.Total))
			}
			if it.Degraded {
				line += "  " + s.Degraded.Render(it.Error)
			}
			_, _ = fmt.Fprintln(w, line)
		}
	}
	_, _ = fmt.Fprintln(w)
}
