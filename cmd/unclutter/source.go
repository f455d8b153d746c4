package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/unclutter/internal/common"
	"github.com/Veraticus/unclutter/internal/config"
	"github.com/Veraticus/unclutter/internal/mail"
	"github.com/Veraticus/unclutter/internal/service"
)

// Message source names accepted by --source.
const (
	sourceGmail = "gmail"
	sourceIMAP  = "imap"
)

// openSource builds the named message source. The returned cleanup releases whatever the
// source holds open and is safe to call on error.
func openSource(ctx context.Context, cfg *config.Config, name string) (service.MessageSource, func(), error) {
	noop := func() {}

	switch name {
	case sourceIMAP:
		if err := cfg.RequireIMAP(); err != nil {
			return nil, noop, err
		}
		src, err := mail.NewIMAPSource(mail.IMAPOptions{
			Server:   cfg.IMAP.Server,
			Port:     cfg.IMAP.Port,
			Email:    cfg.IMAP.Email,
			Password: cfg.IMAP.Password,
			Folder:   cfg.IMAP.Folder,
		})
		if err != nil {
			return nil, noop, err
		}
		return src, noop, nil

	case sourceGmail:
		store, err := initTokenStore(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		manager, err := initAuth(cfg, store)
		if err != nil {
			_ = store.Close()
			return nil, noop, err
		}
		cleanup := func() {
			manager.Close()
			if closeErr := store.Close(); closeErr != nil {
				slog.Warn("Failed to close token store", "error", closeErr)
			}
		}

		ts, err := manager.TokenSource(ctx, cliSessionID)
		if errors.Is(err, common.ErrNotAuthenticated) {
			cleanup()
			return nil, noop, common.NewUserError(`Not signed in to Gmail. Run "unclutter auth login" first.`, err)
		}
		if err != nil {
			cleanup()
			return nil, noop, err
		}

		src, err := mail.NewGmailSource(ctx, ts, mail.GmailOptions{
			Concurrency: cfg.Fetch.Concurrency,
			OnSkip: func(id string, skipErr error) {
				slog.Warn("Skipped message", "id", id, "error", skipErr)
			},
		})
		if err != nil {
			cleanup()
			return nil, noop, err
		}
		return src, cleanup, nil

	default:
		return nil, noop, fmt.Errorf("%w: unknown source %q (want %s or %s)", common.ErrInvalidConfig, name, sourceGmail, sourceIMAP)
	}
}
