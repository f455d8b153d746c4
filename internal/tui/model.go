// Package tui implements the interactive inbox browser: one tab per category, a message
// table, and a detail view with the message body.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/unclutter/internal/inbox"
	"github.com/Veraticus/unclutter/internal/model"
	"github.com/Veraticus/unclutter/internal/service"
	"github.com/Veraticus/unclutter/internal/tui/themes"
)

// State represents the current state of the TUI.
type State int

const (
	StateLoading State = iota
	StateList
	StateDetail
	StateError
)

const (
	defaultWidth  = 100
	defaultHeight = 30
	// chromeHeight is the room taken by the title, tabs, status line and help.
	chromeHeight = 8
)

// Config configures the browser.
type Config struct {
	Inbox   Inbox
	Theme   themes.Theme
	Options service.ListOptions
	Width   int
	Height  int
}

// Model holds the browser state.
type Model struct {
	ctx      context.Context
	inbox    Inbox
	err      error
	detail   *model.ClassifiedMessage
	theme    themes.Theme
	keymap   KeyMap
	help     help.Model
	spinner  spinner.Model
	table    table.Model
	viewport viewport.Model
	opts     service.ListOptions
	groups   []inbox.CategoryGroup
	active   int
	width    int
	height   int
	state    State
	quitting bool
}

// New creates the browser model. Loading starts in Init.
func New(ctx context.Context, cfg Config) Model {
	if cfg.Width <= 0 {
		cfg.Width = defaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = defaultHeight
	}
	if cfg.Theme.Primary == "" {
		cfg.Theme = themes.Default
	}

	m := Model{
		ctx:      ctx,
		inbox:    cfg.Inbox,
		theme:    cfg.Theme,
		keymap:   DefaultKeyMap(),
		help:     help.New(),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		opts:     cfg.Options,
		width:    cfg.Width,
		height:   cfg.Height,
		state:    StateLoading,
		viewport: viewport.New(cfg.Width, cfg.Height-chromeHeight),
	}
	m.table = table.New(
		table.WithColumns(m.columns()),
		table.WithFocused(true),
		table.WithWidth(cfg.Width),
		table.WithHeight(m.listHeight()),
	)
	return m
}

// Init starts loading messages.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadMessages())
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.handleResize()
		return m, nil

	case spinner.TickMsg:
		if m.state != StateLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case messagesLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = StateError
			return m, nil
		}
		m.err = nil
		m.groups = msg.groups
		if m.active >= len(m.groups) {
			m.active = 0
		}
		m.refreshRows()
		m.state = StateList
		return m, nil

	case messageLoadedMsg:
		if msg.err != nil {
			// Stay on the list and show the error in the status line.
			m.err = msg.err
			m.state = StateList
			return m, nil
		}
		m.err = nil
		m.detail = msg.message
		m.viewport.SetContent(m.renderBody())
		m.viewport.GotoTop()
		m.state = StateDetail
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.handleResize()
		return m, nil
	}

	switch m.state {
	case StateLoading:
		return m, nil

	case StateError:
		if key.Matches(msg, m.keymap.Refresh) {
			return m.reload()
		}
		return m, nil

	case StateDetail:
		if key.Matches(msg, m.keymap.Back) {
			m.state = StateList
			m.detail = nil
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keymap.NextTab):
		m.switchTab(1)
		return m, nil
	case key.Matches(msg, m.keymap.PrevTab):
		m.switchTab(-1)
		return m, nil
	case key.Matches(msg, m.keymap.Refresh):
		return m.reload()
	case key.Matches(msg, m.keymap.Open):
		selected, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.state = StateLoading
		return m, tea.Batch(m.spinner.Tick, m.loadMessage(selected.Message.ID))
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) reload() (tea.Model, tea.Cmd) {
	m.state = StateLoading
	return m, tea.Batch(m.spinner.Tick, m.loadMessages())
}

func (m *Model) switchTab(delta int) {
	if len(m.groups) == 0 {
		return
	}
	m.active = (m.active + delta + len(m.groups)) % len(m.groups)
	m.refreshRows()
}

func (m *Model) refreshRows() {
	var msgs []model.ClassifiedMessage
	if m.active < len(m.groups) {
		msgs = m.groups[m.active].Messages
	}

	rows := make([]table.Row, len(msgs))
	for i, msg := range msgs {
		rows[i] = messageRow(msg)
	}
	m.table.SetRows(rows)
	m.table.SetCursor(0)
}

// selected returns the message under the table cursor.
func (m Model) selected() (model.ClassifiedMessage, bool) {
	if m.active >= len(m.groups) {
		return model.ClassifiedMessage{}, false
	}
	msgs := m.groups[m.active].Messages
	i := m.table.Cursor()
	if i < 0 || i >= len(msgs) {
		return model.ClassifiedMessage{}, false
	}
	return msgs[i], true
}

func (m *Model) handleResize() {
	m.table.SetColumns(m.columns())
	m.table.SetWidth(m.width)
	m.table.SetHeight(m.listHeight())
	m.viewport.Width = m.width
	m.viewport.Height = m.listHeight()
	m.help.Width = m.width
}

func (m Model) listHeight() int {
	h := m.height - chromeHeight
	if m.help.ShowAll {
		h -= 3
	}
	return max(h, 3)
}

// State returns the current state.
func (m Model) State() State {
	return m.state
}

// ActiveCategory returns the category of the selected tab.
func (m Model) ActiveCategory() model.Category {
	if m.active >= len(m.groups) {
		return ""
	}
	return m.groups[m.active].Category
}
