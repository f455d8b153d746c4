package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/unclutter/internal/classification"
	"github.com/Veraticus/unclutter/internal/cli"
	"github.com/Veraticus/unclutter/internal/model"
)

type classifyResult struct {
	Subject  string         `json:"subject,omitempty"`
	Category model.Category `json:"category"`
	Labels   []model.Label  `json:"labels"`
	Signals  []model.Signal `json:"signals"`
}

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a message from flags or JSON lines on stdin",
		Long: `Classify a single message given by flags, or a stream of messages read from
stdin as JSON lines of the form {"subject": "...", "sender": "...", "snippet": "..."}.`,
		Example: `  unclutter classify --subject "Midterm due March 3" --sender registrar@mcmaster.ca
  cat messages.jsonl | unclutter classify --stdin --json`,
		RunE: runClassify,
	}

	cmd.Flags().String("subject", "", "message subject")
	cmd.Flags().String("sender", "", "message sender")
	cmd.Flags().String("snippet", "", "message snippet or body preview")
	cmd.Flags().Bool("stdin", false, "read JSON lines from stdin")
	cmd.Flags().Bool("json", false, "print results as JSON")

	return cmd
}

func runClassify(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	classifier, err := initClassifier(cfg)
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	fromStdin, _ := cmd.Flags().GetBool("stdin")

	if fromStdin {
		return classifyStream(cmd, classifier, asJSON)
	}

	subject, _ := cmd.Flags().GetString("subject")
	sender, _ := cmd.Flags().GetString("sender")
	snippet, _ := cmd.Flags().GetString("snippet")

	c := classifier.Classify(subject, sender, snippet)
	return writeClassification(cmd.OutOrStdout(), subject, c, asJSON)
}

func classifyStream(cmd *cobra.Command, classifier *classification.Classifier, asJSON bool) error {
	ctx := cmd.Context()
	reader := cli.NewNonBlockingReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	lineNo := 0
	for {
		line, err := reader.ReadLine(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, cli.ErrInputCancelled) {
			return ctx.Err()
		}
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		lineNo++
		if line == "" {
			continue
		}

		var text model.MessageText
		if err := json.Unmarshal([]byte(line), &text); err != nil {
			slog.Warn("Skipping invalid input line", "line", lineNo, "error", err)
			continue
		}

		c := classifier.ClassifyText(text)
		if err := writeClassification(out, text.Subject, c, asJSON); err != nil {
			return err
		}
	}
}

func writeClassification(w io.Writer, subject string, c model.Classification, asJSON bool) error {
	if asJSON {
		signals := c.Signals
		if signals == nil {
			signals = []model.Signal{}
		}
		return json.NewEncoder(w).Encode(classifyResult{
			Subject:  subject,
			Category: c.Category,
			Labels:   c.Labels,
			Signals:  signals,
		})
	}

	line := cli.FormatClassification(c)
	if subject != "" {
		line += "  " + cli.SubtleStyle.Render(cli.Truncate(subject, 60))
	}
	_, err := fmt.Fprintln(w, line)
	return err
}
