package tui

import (
	"github.com/Veraticus/unclutter/internal/inbox"
	"github.com/Veraticus/unclutter/internal/model"
)

// Data loading messages.
type messagesLoadedMsg struct {
	err    error
	groups []inbox.CategoryGroup
}

type messageLoadedMsg struct {
	err     error
	message *model.ClassifiedMessage
}
