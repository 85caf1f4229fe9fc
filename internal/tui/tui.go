// Package tui provides a Bubble Tea terminal user interface for castpull.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/castpull/castpull/internal/config"
	"github.com/castpull/castpull/internal/download"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)

	podcastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

// State represents the current UI state.
type State int

const (
	StateSyncing State = iota
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   download.ProgressLevel
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state    State
	spinner  spinner.Model
	progress progress.Model
	podcasts []*config.Podcast
	logs     []LogEntry
	summary  *download.Summary
	err      error
	verbose  bool

	ctx    context.Context
	cancel context.CancelFunc

	manager *download.Manager

	totalTasks    int32
	doneTasks     int32
	totalBytes    int64
	receivedBytes int64

	width  int
	height int
}

// NewModel creates a new TUI model. The manager is created lazily in
// Run so its progress callback can feed the program's message loop.
func NewModel(podcasts []*config.Podcast, verbose bool) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:    StateSyncing,
		spinner:  sp,
		progress: prog,
		podcasts: podcasts,
		logs:     make([]LogEntry, 0),
		verbose:  verbose,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startSync(), m.tickProgress())
}

// Message types
type (
	// ProgressMsg is sent for each manager progress event.
	ProgressMsg struct {
		Event download.ProgressEvent
	}

	// SyncDoneMsg is sent when the sync run completes.
	SyncDoneMsg struct {
		Summary *download.Summary
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateSyncing {
				m.cancel()
				m.state = StateError
				m.err = fmt.Errorf("cancelled by user")
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "v":
			m.verbose = !m.verbose
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		if msg.Event.Level == download.LevelVerbose && !m.verbose {
			return m, nil
		}
		m.logs = append(m.logs, LogEntry{
			Message: msg.Event.Message,
			Level:   msg.Event.Level,
		})
		// Keep only last 10 logs
		if len(m.logs) > 10 {
			m.logs = m.logs[len(m.logs)-10:]
		}

	case SyncDoneMsg:
		m.summary = msg.Summary
		if m.manager != nil {
			received, total, done, totalTasks := m.manager.GetProgress()
			m.receivedBytes = received
			m.totalBytes = total
			m.doneTasks = done
			m.totalTasks = totalTasks
		}
		if m.ctx.Err() != nil {
			m.state = StateError
			m.err = fmt.Errorf("cancelled by user")
		} else {
			m.state = StateComplete
		}

	case TickMsg:
		if m.manager != nil && m.state == StateSyncing {
			received, total, done, totalTasks := m.manager.GetProgress()
			m.receivedBytes = received
			m.totalBytes = total
			m.doneTasks = done
			m.totalTasks = totalTasks

			var percent float64
			if totalTasks > 0 {
				percent = float64(done) / float64(totalTasks)
			}
			cmds = append(cmds, m.progress.SetPercent(percent), m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// startSync runs the manager in the background.
func (m *Model) startSync() tea.Cmd {
	return func() tea.Msg {
		if m.manager == nil {
			return SyncDoneMsg{Summary: &download.Summary{}}
		}
		return SyncDoneMsg{Summary: m.manager.Sync(m.ctx)}
	}
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🎙 castpull"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Sync podcast episodes"))
	b.WriteString("\n\n")

	switch m.state {
	case StateSyncing:
		b.WriteString(m.viewSyncing())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewSyncing() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("Syncing %d podcast(s)...", len(m.podcasts))))
	b.WriteString("\n")
	for _, p := range m.podcasts {
		b.WriteString(podcastStyle.Render(fmt.Sprintf("  ♪ %s", p.Name)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	var percent float64
	if m.totalTasks > 0 {
		percent = float64(m.doneTasks) / float64(m.totalTasks)
	}
	b.WriteString(m.progress.ViewAs(percent))
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Episodes: %d/%d | Downloaded: %.2f MB",
		m.doneTasks,
		m.totalTasks,
		float64(m.receivedBytes)/1024/1024,
	)))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	downloaded, failed := 0, 0
	if m.summary != nil {
		downloaded = len(m.summary.Downloaded)
		failed = m.summary.Failed + len(m.summary.PodcastErrors)
	}

	box := boxStyle.Render(fmt.Sprintf(
		"✨ Sync Complete!\n\n"+
			"Podcasts: %d\n"+
			"Episodes: %d\n"+
			"Failed: %d\n"+
			"Size: %.2f MB",
		len(m.podcasts),
		downloaded,
		failed,
		float64(m.receivedBytes)/1024/1024,
	))
	return box
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("✗ Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "✗"
		case download.LevelWarning:
			style = warningStyle
			prefix = "!"
		case download.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case download.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateSyncing:
		return "esc: cancel • v: verbose"
	case StateComplete, StateError:
		return "q: quit"
	}
	return ""
}

// Run starts the TUI application over the given resolved podcasts.
func Run(podcasts []*config.Podcast, opts download.Options) error {
	model := NewModel(podcasts, false)

	// The manager's progress callback feeds the program's message loop;
	// p is assigned before the program runs and the callback fires.
	var p *tea.Program
	model.manager = download.NewManager(podcasts, opts, func(event download.ProgressEvent) {
		p.Send(ProgressMsg{Event: event})
	})
	p = tea.NewProgram(model, tea.WithAltScreen())

	_, err := p.Run()
	return err
}
