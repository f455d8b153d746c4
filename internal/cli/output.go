package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/unclutter/internal/inbox"
	"github.com/Veraticus/unclutter/internal/model"
)

const maxSubjectWidth = 60

// RenderGroups writes one section per non-empty category, in the given order.
func RenderGroups(w io.Writer, groups []inbox.CategoryGroup) error {
	total := 0
	for _, g := range groups {
		total += len(g.Messages)
	}
	if total == 0 {
		_, err := fmt.Fprintln(w, FormatInfo("No messages found"))
		return err
	}

	var b strings.Builder
	for _, g := range groups {
		if len(g.Messages) == 0 {
			continue
		}
		heading := fmt.Sprintf("%s %s (%d)", CategoryIcon(g.Category), strings.ToUpper(string(g.Category)), len(g.Messages))
		b.WriteString(CategoryStyle(g.Category).Render(heading))
		b.WriteString("\n")
		for _, msg := range g.Messages {
			b.WriteString(FormatMessageLine(msg))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// FormatMessageLine renders a message as "  subject  sender  [labels]".
func FormatMessageLine(msg model.ClassifiedMessage) string {
	subject := msg.Message.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	return fmt.Sprintf("  %s  %s  %s",
		BoldStyle.Render(Truncate(subject, maxSubjectWidth)),
		SubtleStyle.Render(msg.Message.Sender),
		FormatLabels(msg.Classification.Labels),
	)
}

// FormatLabels renders labels as tags.
func FormatLabels(labels []model.Label) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = LabelStyle.Render(string(l))
	}
	return strings.Join(parts, " ")
}

// FormatClassification renders a single classification result.
func FormatClassification(c model.Classification) string {
	return fmt.Sprintf("%s %s  %s",
		CategoryIcon(c.Category),
		CategoryStyle(c.Category).Render(string(c.Category)),
		FormatLabels(c.Labels),
	)
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 1 {
		return string(runes[:n])
	}
	return string(runes[:n-1]) + "…"
}

// Progress wraps a progress bar. A nil *Progress is a silent no-op, so callers do not
// branch on whether output is interactive.
type Progress struct {
	bar *progressbar.ProgressBar
}

// NewProgress creates a progress bar of total steps writing to w. A negative total shows
// a spinner instead of a bar.
func NewProgress(w io.Writer, total int, description string) *Progress {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return &Progress{bar: bar}
}

// Add advances the bar by n steps.
func (p *Progress) Add(n int) {
	if p == nil {
		return
	}
	if err := p.bar.Add(n); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Describe changes the bar's description.
func (p *Progress) Describe(description string) {
	if p == nil {
		return
	}
	p.bar.Describe("[cyan][bold]" + description + "[reset]")
}

// Finish completes the bar.
func (p *Progress) Finish() {
	if p == nil {
		return
	}
	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
}
