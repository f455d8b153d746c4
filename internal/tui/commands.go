package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/unclutter/internal/inbox"
	"github.com/Veraticus/unclutter/internal/model"
	"github.com/Veraticus/unclutter/internal/service"
)

// Inbox is the part of inbox.Service the browser needs.
type Inbox interface {
	List(ctx context.Context, opts service.ListOptions) ([]model.ClassifiedMessage, error)
	Get(ctx context.Context, id string) (*model.ClassifiedMessage, error)
	Group(msgs []model.ClassifiedMessage) []inbox.CategoryGroup
}

func (m Model) loadMessages() tea.Cmd {
	ctx, svc, opts := m.ctx, m.inbox, m.opts
	return func() tea.Msg {
		msgs, err := svc.List(ctx, opts)
		if err != nil {
			return messagesLoadedMsg{err: err}
		}
		return messagesLoadedMsg{groups: svc.Group(msgs)}
	}
}

func (m Model) loadMessage(id string) tea.Cmd {
	ctx, svc := m.ctx, m.inbox
	return func() tea.Msg {
		msg, err := svc.Get(ctx, id)
		return messageLoadedMsg{message: msg, err: err}
	}
}
