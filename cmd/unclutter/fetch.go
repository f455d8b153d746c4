package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/unclutter/internal/cli"
	"github.com/Veraticus/unclutter/internal/inbox"
	"github.com/Veraticus/unclutter/internal/metrics"
	"github.com/Veraticus/unclutter/internal/model"
	"github.com/Veraticus/unclutter/internal/service"
)

type fetchedMessage struct {
	ID       string         `json:"id"`
	Subject  string         `json:"subject"`
	Sender   string         `json:"sender"`
	Date     string         `json:"date"`
	Category model.Category `json:"category"`
	Labels   []model.Label  `json:"labels"`
}

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch recent mail and print it grouped by category",
		Example: `  unclutter fetch
  unclutter fetch --source imap --max 20
  unclutter fetch -q "from:registrar" --json`,
		RunE: runFetch,
	}

	addSourceFlags(cmd)
	cmd.Flags().Bool("json", false, "print messages as JSON")

	return cmd
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("source", sourceGmail, "message source (gmail, imap)")
	cmd.Flags().Int("max", 0, "maximum number of messages (default fetch.max_results, at most 50)")
	cmd.Flags().StringP("query", "q", "", "search query passed to the provider")
}

func listOptions(cmd *cobra.Command, defaultMax int) service.ListOptions {
	maxResults, _ := cmd.Flags().GetInt("max")
	if maxResults <= 0 {
		maxResults = defaultMax
	}
	query, _ := cmd.Flags().GetString("query")
	return service.ListOptions{Query: query, MaxResults: maxResults}.Clamp()
}

func runFetch(cmd *cobra.Command, _ []string) error {
	handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := handler.HandleInterrupts(cmd.Context(), "Fetch")
	defer handler.Stop()

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

	asJSON, _ := cmd.Flags().GetBool("json")
	svc := inbox.New(src, classifier, metrics.New())

	var progress *cli.Progress
	if !asJSON {
		progress = cli.NewProgress(cmd.ErrOrStderr(), -1, "Fetching messages from "+src.Name())
	}
	msgs, err := svc.List(ctx, listOptions(cmd, cfg.Fetch.MaxResults))
	progress.Finish()
	if err != nil {
		if handler.WasInterrupted() {
			return ctx.Err()
		}
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		result := make([]fetchedMessage, 0, len(msgs))
		for _, m := range msgs {
			result = append(result, fetchedMessage{
				ID:       m.Message.ID,
				Subject:  m.Message.Subject,
				Sender:   m.Message.Sender,
				Date:     m.Message.RawDate,
				Category: m.Classification.Category,
				Labels:   m.Classification.Labels,
			})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if _, err := fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("%d messages from %s", len(msgs), src.Name()))); err != nil {
		return err
	}
	return cli.RenderGroups(out, svc.Group(msgs))
}
