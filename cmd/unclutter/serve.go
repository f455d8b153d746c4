package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/unclutter/internal/mail"
	"github.com/Veraticus/unclutter/internal/metrics"
	"github.com/Veraticus/unclutter/internal/server"
	"github.com/Veraticus/unclutter/internal/service"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API used by the web client.

Users sign in with Google through /api/auth/login; the returned session token
is sent as "Authorization: Bearer <token>" to list and read classified mail.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (default from server.addr)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	classifier, err := initClassifier(cfg)
	if err != nil {
		return err
	}

	store, err := initTokenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Warn("Failed to close token store", "error", closeErr)
		}
	}()

	manager, err := initAuth(cfg, store)
	if err != nil {
		return err
	}
	defer manager.Close()

	srv := server.New(server.Options{
		Auth:       manager,
		Store:      store,
		Classifier: classifier,
		Metrics:    metrics.New(),
		Sources: server.GmailSources(manager, mail.GmailOptions{
			Concurrency: cfg.Fetch.Concurrency,
			Retry:       service.RetryOptions{MaxAttempts: 3},
		}),
		Addr:          cfg.Server.Addr,
		FrontendURL:   cfg.Server.FrontendURL,
		PurgeInterval: cfg.Server.PurgeInterval,
	})

	slog.Info("Serving API",
		"addr", cfg.Server.Addr,
		"frontend", cfg.Server.FrontendURL,
		"token_backend", cfg.Tokens.Backend,
	)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}
