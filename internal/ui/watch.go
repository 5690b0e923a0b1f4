package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/fairbuds/internal/protocol"
	"github.com/muurk/fairbuds/internal/session"
)

const (
	watchLogLines       = 10
	watchCommandWait    = 30 * time.Second
	DefaultWatchRefresh = 30 * time.Second
)

// WatchConfig wires the watch view to a session.
type WatchConfig struct {
	Address     string
	Connect     func(ctx context.Context) error
	Reconnect   func(ctx context.Context) error
	RequestInfo func(ctx context.Context) error
	Events      <-chan protocol.Event
	Refresh     time.Duration // device info poll interval; 0 uses DefaultWatchRefresh
}

type linkStatus int

const (
	statusConnecting linkStatus = iota
	statusConnected
	statusLost
	statusFailed
)

type (
	connectDoneMsg  struct{ err error }
	requestDoneMsg  struct{ err error }
	eventMsg        struct{ ev protocol.Event }
	eventsClosedMsg struct{}
	refreshMsg      struct{}
)

type watchKeyMap struct {
	Refresh   key.Binding
	Reconnect key.Binding
	Quit      key.Binding
}

// ShortHelp implements help.KeyMap
func (k watchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Reconnect, k.Quit}
}

// FullHelp implements help.KeyMap
func (k watchKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func newWatchKeyMap() watchKeyMap {
	return watchKeyMap{
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "reconnect"),
			key.WithDisabled(),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "quit"),
		),
	}
}

// WatchModel is a live view of battery levels and inbound events.
type WatchModel struct {
	config  WatchConfig
	keys    watchKeyMap
	help    help.Model
	spinner spinner.Model
	status  linkStatus
	info    *protocol.DeviceInfo
	log     []string
	err     error
	width   int
	now     func() time.Time
}

// NewWatchModel creates the model; run it with tea.NewProgram.
func NewWatchModel(config WatchConfig) WatchModel {
	if config.Refresh <= 0 {
		config.Refresh = DefaultWatchRefresh
	}
	m := WatchModel{
		config: config,
		keys:   newWatchKeyMap(),
		help:   help.New(),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(PrimaryColor)),
		),
		width: GetTerminalWidth(),
		now:   time.Now,
	}
	m.setStatus(statusConnecting)
	return m
}

// Init implements tea.Model
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.connect(m.config.Connect), m.waitForEvent())
}

// Update implements tea.Model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, m.requestInfo()
		case key.Matches(msg, m.keys.Reconnect):
			if m.config.Reconnect == nil {
				return m, nil
			}
			m.setStatus(statusConnecting)
			m.err = nil
			return m, tea.Batch(m.spinner.Tick, m.connect(m.config.Reconnect))
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = clampWidth(msg.Width)
		if m.width > MaxContentWidth {
			m.width = MaxContentWidth
		}
		m.help.Width = m.width
		return m, nil

	case spinner.TickMsg:
		if m.status != statusConnecting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case connectDoneMsg:
		if msg.err != nil {
			m.setStatus(statusFailed)
			m.err = msg.err
			return m, nil
		}
		m.setStatus(statusConnected)
		return m, tea.Batch(m.requestInfo(), m.scheduleRefresh())

	case requestDoneMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		return m, nil

	case refreshMsg:
		if m.status != statusConnected {
			return m, nil
		}
		return m, tea.Batch(m.requestInfo(), m.scheduleRefresh())

	case eventMsg:
		m.record(msg.ev)
		return m, m.waitForEvent()

	case eventsClosedMsg:
		return m, tea.Quit
	}
	return m, nil
}

// setStatus also enables the keys that make sense in the new status.
func (m *WatchModel) setStatus(status linkStatus) {
	m.status = status
	m.keys.Refresh.SetEnabled(status == statusConnected)
	m.keys.Reconnect.SetEnabled(status == statusLost || status == statusFailed)
}

func (m *WatchModel) record(ev protocol.Event) {
	switch e := ev.(type) {
	case *protocol.DeviceInfoEvent:
		info := e.Info
		m.info = &info
	case *session.LinkLostEvent:
		m.setStatus(statusLost)
		m.err = e.Err
	}
	m.log = append(m.log, FormatEvent(m.now(), ev))
	if len(m.log) > watchLogLines {
		m.log = m.log[len(m.log)-watchLogLines:]
	}
}

// View implements tea.Model
func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(HeaderTitleStyle.Render("FAIRBUDS WATCH"))
	b.WriteString("\n")
	b.WriteString(HeaderCommandStyle.Render(m.config.Address))
	b.WriteString("\n\n  ")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	if m.info != nil {
		b.WriteString(lipgloss.NewStyle().PaddingLeft(2).Render(RenderDeviceInfo(*m.info, m.width)))
		b.WriteString("\n\n")
	}

	if len(m.log) > 0 {
		b.WriteString(TroubleshootingTitleStyle.Render("  Events"))
		b.WriteString("\n")
		for _, line := range m.log {
			b.WriteString("  " + line + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("  " + m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

func (m WatchModel) statusLine() string {
	switch m.status {
	case statusConnecting:
		return m.spinner.View() + " " + StepRunningStyle.Render("Connecting...")
	case statusConnected:
		return StepCompleteStyle.Render(StepMarkerComplete + " Connected")
	case statusLost:
		return ErrorTitleStyle.Render(FailureMarker+" Link lost") + m.errSuffix()
	default:
		return ErrorTitleStyle.Render(FailureMarker+" Connect failed") + m.errSuffix()
	}
}

func (m WatchModel) errSuffix() string {
	if m.err == nil {
		return ""
	}
	return "  " + ErrorMessageStyle.Render(m.err.Error())
}

func (m WatchModel) connect(fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), watchCommandWait)
		defer cancel()
		return connectDoneMsg{err: fn(ctx)}
	}
}

func (m WatchModel) requestInfo() tea.Cmd {
	if m.config.RequestInfo == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), watchCommandWait)
		defer cancel()
		if err := m.config.RequestInfo(ctx); err != nil {
			return requestDoneMsg{err: fmt.Errorf("device info request: %w", err)}
		}
		return requestDoneMsg{}
	}
}

func (m WatchModel) waitForEvent() tea.Cmd {
	events := m.config.Events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{ev: ev}
	}
}

func (m WatchModel) scheduleRefresh() tea.Cmd {
	return tea.Tick(m.config.Refresh, func(time.Time) tea.Msg { return refreshMsg{} })
}
