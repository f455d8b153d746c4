package main

import (
	"github.com/spf13/cobra"

	"github.com/Veraticus/unclutter/internal/inbox"
	"github.com/Veraticus/unclutter/internal/tui"
)

func inboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Browse classified mail in an interactive terminal UI",
		RunE:  runInbox,
	}

	addSourceFlags(cmd)

	return cmd
}

func runInbox(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	classifier, err := initClassifier(cfg)
	if err != nil {
		return err
	}

	sourceName, _ := cmd.Flags().GetString("source")
	src, cleanup, err := openSource(ctx, cfg, sourceName)
	defer cleanup()
	if err != nil {
		return err
	}

	return tui.Run(ctx, tui.Config{
		Inbox:   inbox.New(src, classifier, nil),
		Options: listOptions(cmd, cfg.Fetch.MaxResults),
	})
}
