package tui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/unclutter/internal/model"
)

const dateLayout = "Jan 02 15:04"

// View renders the current state.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var body string
	switch m.state {
	case StateLoading:
		body = m.renderLoading()
	case StateError:
		body = m.renderError()
	case StateDetail:
		body = m.renderDetail()
	default:
		body = m.renderList()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.theme.Title.Render("📬 Inbox"),
		body,
		m.renderStatus(),
		m.help.View(m.keymap),
	)
}

func (m Model) renderLoading() string {
	return fmt.Sprintf("%s %s", m.spinner.View(), m.theme.Subtitle.Render("Loading messages..."))
}

func (m Model) renderError() string {
	return m.theme.StatusError.Render("Failed to load messages: "+m.err.Error()) +
		"\n" + m.theme.Subtitle.Render("Press r to retry.")
}

func (m Model) renderList() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderTabs(),
		m.table.View(),
	)
}

func (m Model) renderTabs() string {
	if len(m.groups) == 0 {
		return m.theme.Subtitle.Render("No messages")
	}

	tabs := make([]string, len(m.groups))
	for i, g := range m.groups {
		label := fmt.Sprintf("%s (%d)", categoryTitle(g.Category), len(g.Messages))
		if i == m.active {
			tabs[i] = m.theme.ActiveTab.Render(label)
		} else {
			tabs[i] = m.theme.InactiveTab.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderDetail() string {
	if m.detail == nil {
		return ""
	}
	msg := m.detail.Message

	header := []string{
		m.theme.Bold.Render(orPlaceholder(msg.Subject, "(no subject)")),
		m.theme.Subtitle.Render("From: " + msg.Sender),
	}
	if date := formatDate(msg); date != "" {
		header = append(header, m.theme.Subtitle.Render("Date: "+date))
	}
	header = append(header, m.renderLabels(m.detail.Classification))

	return lipgloss.JoinVertical(lipgloss.Left,
		m.theme.BorderedBox.Width(max(m.width-4, 20)).Render(strings.Join(header, "\n")),
		m.viewport.View(),
	)
}

func (m Model) renderBody() string {
	if m.detail == nil {
		return ""
	}
	body := m.detail.Message.Body
	if body == "" {
		body = m.detail.Message.Snippet
	}
	return lipgloss.NewStyle().Width(max(m.width-2, 20)).Render(body)
}

func (m Model) renderLabels(c model.Classification) string {
	parts := make([]string, 0, len(c.Labels)+1)
	parts = append(parts, m.theme.StatusInfo.Render(categoryTitle(c.Category)))
	for _, l := range c.Labels {
		parts = append(parts, m.theme.Label.Render(string(l)))
	}
	return strings.Join(parts, " ")
}

func (m Model) renderStatus() string {
	if m.err != nil && m.state != StateError {
		return m.theme.StatusError.Render("Error: " + m.err.Error())
	}
	total := 0
	for _, g := range m.groups {
		total += len(g.Messages)
	}
	return m.theme.Subtitle.Render(fmt.Sprintf("%d messages", total))
}

// columns sizes the table to the terminal width.
func (m Model) columns() []table.Column {
	dateW, labelsW := 12, 24
	rest := max(m.width-dateW-labelsW-8, 30)
	subjectW := rest * 3 / 5
	return []table.Column{
		{Title: "Subject", Width: subjectW},
		{Title: "From", Width: rest - subjectW},
		{Title: "Date", Width: dateW},
		{Title: "Labels", Width: labelsW},
	}
}

func messageRow(msg model.ClassifiedMessage) table.Row {
	return table.Row{
		orPlaceholder(msg.Message.Subject, "(no subject)"),
		msg.Message.Sender,
		formatDate(msg.Message),
		strings.Join(msg.Classification.LabelStrings(), ", "),
	}
}

func formatDate(msg model.Message) string {
	if !msg.Date.IsZero() {
		return msg.Date.Local().Format(dateLayout)
	}
	return msg.RawDate
}

func categoryTitle(c model.Category) string {
	s := string(c)
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return strings.ToUpper(string(r)) + s[size:]
}

func orPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}
