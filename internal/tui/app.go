// Package tui is the terminal dashboard: one tab per work-item kind, each
// listing a project's items in canonical order as the server pushes them.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/mark3labs/specdash/internal/client"
	"github.com/mark3labs/specdash/internal/logger"
	"github.com/mark3labs/specdash/internal/state"
	"github.com/mark3labs/specdash/internal/tui/theme"
	"github.com/mark3labs/specdash/internal/wire"
	"github.com/mark3labs/specdash/internal/workitem"
)

// Source feeds the dashboard. *client.Conn implements it.
type Source interface {
	Reconciler() *client.Reconciler
	State() client.State
	Changed() <-chan struct{}
	Send(m wire.Message) error
}

var _ Source = (*client.Conn)(nil)

// changedMsg reports that the source has new data.
type changedMsg struct{}

// App is the main Bubbletea model.
type App struct {
	src    Source
	keys   KeyMap
	layout workitem.Layout
	now    func() time.Time

	projects   []wire.Project
	projectIdx int
	kind       workitem.Kind
	items      []workitem.WorkItem
	cursor     map[workitem.Kind]int
	selected   map[workitem.Kind]string // slug under the cursor, kept across re-sorts

	detail *Detail
	flash  string

	stateDir    string
	wantProject string // restored selection, applied once the project list arrives

	width    int
	height   int
	quitting bool
}

// Option configures an App.
type Option func(*App)

// WithLayout sets the workflow layout used to locate documents for editing.
func WithLayout(l workitem.Layout) Option {
	return func(a *App) { a.layout = l }
}

// WithStateDir restores the last project and tab from dir and saves them
// on quit.
func WithStateDir(dir string) Option {
	return func(a *App) { a.stateDir = dir }
}

// WithClock overrides the clock used for relative times.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// NewApp creates the dashboard model.
func NewApp(src Source, opts ...Option) *App {
	a := &App{
		src:      src,
		keys:     DefaultKeyMap(),
		layout:   workitem.Layout{WorkflowDir: ".claude"},
		now:      time.Now,
		kind:     workitem.KindSpec,
		cursor:   make(map[workitem.Kind]int),
		selected: make(map[workitem.Kind]string),
		width:    80,
		height:   24,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.stateDir != "" {
		st := state.Load(a.stateDir)
		a.kind = st.Kind
		a.wantProject = st.Project
	}
	a.refresh()
	return a
}

// Run starts the dashboard and blocks until the user quits or ctx ends.
func Run(ctx context.Context, src Source, opts ...Option) error {
	p := tea.NewProgram(NewApp(src, opts...), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil && errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// Init starts listening for source changes.
func (a *App) Init() tea.Cmd {
	return a.waitForChange()
}

func (a *App) waitForChange() tea.Cmd {
	ch := a.src.Changed()
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

// Update handles incoming messages and updates the model state.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case changedMsg:
		a.refresh()
		return a, a.waitForChange()

	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		if a.detail != nil {
			a.detail.SetSize(a.width, a.bodyHeight())
		}
		return a, nil

	case editorClosedMsg:
		if msg.err != nil {
			a.flash = fmt.Sprintf("editor: %v", msg.err)
			logger.Warn("editor for %s: %v", msg.path, msg.err)
		} else {
			a.flash = ""
		}
		return a, nil

	case tea.KeyPressMsg:
		return a.handleKeyPress(msg)
	}

	if a.detail != nil {
		return a, a.detail.Update(msg)
	}
	return a, nil
}

func (a *App) handleKeyPress(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, a.keys.Quit) {
		a.quitting = true
		a.saveState()
		return a, tea.Quit
	}

	if a.detail != nil {
		switch {
		case key.Matches(msg, a.keys.Back):
			a.detail = nil
			return a, nil
		case key.Matches(msg, a.keys.Edit):
			return a, a.edit(a.detail.Item())
		}
		return a, a.detail.Update(msg)
	}

	switch {
	case key.Matches(msg, a.keys.Up):
		a.moveCursor(-1)
	case key.Matches(msg, a.keys.Down):
		a.moveCursor(1)
	case key.Matches(msg, a.keys.NextTab), key.Matches(msg, a.keys.PrevTab):
		a.switchKind()
	case key.Matches(msg, a.keys.NextProject):
		if len(a.projects) > 1 {
			a.projectIdx = (a.projectIdx + 1) % len(a.projects)
			a.refresh()
		}
	case key.Matches(msg, a.keys.Open):
		if it, ok := a.current(); ok {
			a.detail = NewDetail(it, a.width, a.bodyHeight())
		}
	case key.Matches(msg, a.keys.Edit):
		if it, ok := a.current(); ok {
			return a, a.edit(it)
		}
	case key.Matches(msg, a.keys.Resync):
		if err := a.src.Send(wire.Resync()); err != nil {
			a.flash = fmt.Sprintf("resync: %v", err)
		}
	}
	return a, nil
}

func (a *App) edit(it workitem.WorkItem) tea.Cmd {
	project, ok := a.project()
	if !ok {
		return nil
	}
	path, ok := documentPath(a.layout, project.Path, it)
	if !ok {
		a.flash = fmt.Sprintf("%s is not on this machine", project.Name)
		return nil
	}
	return openEditor(path)
}

func (a *App) project() (wire.Project, bool) {
	if a.projectIdx < len(a.projects) {
		return a.projects[a.projectIdx], true
	}
	return wire.Project{}, false
}

func (a *App) current() (workitem.WorkItem, bool) {
	c := a.cursor[a.kind]
	if c < 0 || c >= len(a.items) {
		return workitem.WorkItem{}, false
	}
	return a.items[c], true
}

func (a *App) moveCursor(delta int) {
	if len(a.items) == 0 {
		return
	}
	c := min(max(a.cursor[a.kind]+delta, 0), len(a.items)-1)
	a.cursor[a.kind] = c
	a.selected[a.kind] = a.items[c].Slug
}

func (a *App) switchKind() {
	if a.kind == workitem.KindSpec {
		a.kind = workitem.KindBug
	} else {
		a.kind = workitem.KindSpec
	}
	a.refresh()
}

// refresh re-reads the reconciler. The cursor follows the selected slug
// so a re-sort never moves the highlight to a different item.
func (a *App) refresh() {
	rec := a.src.Reconciler()
	a.projects = rec.Projects()
	if a.wantProject != "" {
		for i, p := range a.projects {
			if p.ID == a.wantProject {
				a.projectIdx = i
				a.wantProject = ""
				break
			}
		}
	}
	if a.projectIdx >= len(a.projects) {
		a.projectIdx = 0
	}

	a.items = nil
	if project, ok := a.project(); ok {
		a.items, _ = rec.Items(project.ID, a.kind)
	}

	c := min(a.cursor[a.kind], max(len(a.items)-1, 0))
	if slug := a.selected[a.kind]; slug != "" {
		for i, it := range a.items {
			if it.Slug == slug {
				c = i
				break
			}
		}
	}
	a.cursor[a.kind] = c
	if c < len(a.items) {
		a.selected[a.kind] = a.items[c].Slug
	}

	if a.detail != nil {
		shown := a.detail.Item()
		project, _ := a.project()
		if it, ok := rec.Item(project.ID, shown.Kind, shown.Slug); ok {
			a.detail.SetItem(it)
		} else {
			a.detail = nil
			a.flash = fmt.Sprintf("%s was removed", shown.DisplayName)
		}
	}
}

func (a *App) saveState() {
	if a.stateDir == "" {
		return
	}
	st := &state.UIState{Kind: a.kind}
	if project, ok := a.project(); ok {
		st.Project = project.ID
	}
	if err := state.Save(a.stateDir, st); err != nil {
		logger.Warn("saving UI state: %v", err)
	}
}

// bodyHeight is the space left for the list or detail view.
func (a *App) bodyHeight() int {
	return max(a.height-4, 1)
}

// View renders the dashboard.
func (a *App) View() tea.View {
	var view tea.View
	view.AltScreen = true
	view.MouseMode = tea.MouseModeCellMotion
	if a.quitting {
		view.AltScreen = false
		view.MouseMode = 0
		view.Content = lipgloss.NewLayer("")
		return view
	}
	view.Content = lipgloss.NewLayer(a.render())
	view.BackgroundColor = theme.HexToColor(theme.Current().BgBase)
	return view
}

func (a *App) render() string {
	var body string
	if a.detail != nil {
		body = a.detail.View()
	} else {
		body = renderList(a.items, a.cursor[a.kind], a.width, a.bodyHeight(), a.now())
	}
	body = lipgloss.NewStyle().Height(a.bodyHeight()).MaxHeight(a.bodyHeight()).Render(body)

	return lipgloss.JoinVertical(lipgloss.Left,
		a.renderHeader(),
		a.renderTabs(),
		body,
		a.renderFooter(),
	)
}

func (a *App) renderHeader() string {
	s := theme.Current().S()
	left := s.HeaderTitle.Render("specdash")
	if project, ok := a.project(); ok {
		left += s.HeaderSeparator.Render(" | ") + s.HeaderInfo.Render(project.Name)
		if len(a.projects) > 1 {
			left += s.Muted.Render(fmt.Sprintf(" (%d/%d)", a.projectIdx+1, len(a.projects)))
		}
	}

	st := a.src.State()
	var right string
	switch {
	case st.Connected:
		right = s.Connected.Render("● connected")
	case st.Attempts > 0:
		right = s.Disconnected.Render(fmt.Sprintf("○ reconnecting in %v", st.RetryIn.Round(100*time.Millisecond)))
	default:
		right = s.Disconnected.Render("○ connecting")
	}

	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + strings.Repeat(" ", gap) + right
}

func (a *App) renderTabs() string {
	s := theme.Current().S()
	tabs := make([]string, 0, len(workitem.Kinds))
	for _, kind := range workitem.Kinds {
		label := strings.ToUpper(kind.Dir()[:1]) + kind.Dir()[1:]
		if project, ok := a.project(); ok {
			if items, ok := a.src.Reconciler().Items(project.ID, kind); ok {
				label = fmt.Sprintf("%s %d", label, len(items))
			}
		}
		style := s.TabInactive
		if kind == a.kind {
			style = s.TabActive
		}
		tabs = append(tabs, style.Render(label))
	}
	return strings.Join(tabs, " ")
}

func (a *App) renderFooter() string {
	s := theme.Current().S()
	var hints string
	if a.detail != nil {
		hints = RenderHintBar(a.keys.Back, a.keys.Edit, a.keys.Quit)
	} else {
		hints = RenderHintBar(a.keys.Up, a.keys.Down, a.keys.NextTab, a.keys.Open, a.keys.Edit, a.keys.NextProject, a.keys.Resync, a.keys.Quit)
	}

	msg := a.flash
	if msg == "" {
		msg = a.src.State().ServerError
	}
	if msg != "" {
		return s.Error.Render(msg) + "\n" + hints
	}
	return "\n" + hints
}
