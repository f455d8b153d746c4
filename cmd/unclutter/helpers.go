package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/Veraticus/unclutter/internal/auth"
	"github.com/Veraticus/unclutter/internal/classification"
	"github.com/Veraticus/unclutter/internal/config"
	"github.com/Veraticus/unclutter/internal/service"
	"github.com/Veraticus/unclutter/internal/storage"
)

// cliSessionID is the token store id of the credential saved by "auth login".
const cliSessionID = "cli"

// loadConfig builds the typed configuration from the global viper instance.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initTokenStore opens the configured credential store.
func initTokenStore(ctx context.Context, cfg *config.Config) (service.TokenStore, error) {
	store, err := storage.Open(ctx, cfg.Tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s token store: %w", cfg.Tokens.Backend, err)
	}
	slog.Debug("Opened token store", "backend", cfg.Tokens.Backend)
	return store, nil
}

// initClassifier builds a classifier from the configured preset or rules file.
func initClassifier(cfg *config.Config) (*classification.Classifier, error) {
	ruleCfg, err := cfg.LoadRules()
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	return classification.New(ruleCfg)
}

// initAuth creates the OAuth manager. The caller closes it.
func initAuth(cfg *config.Config, store service.TokenStore) (*auth.Manager, error) {
	if err := cfg.RequireGoogle(); err != nil {
		return nil, err
	}
	return auth.NewManager(auth.Options{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
		SessionTTL:   cfg.Server.SessionTTL,
	}, store), nil
}
