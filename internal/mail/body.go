// Package mail adapts mail providers to service.MessageSource and turns MIME messages
// into the plain text the classifier and the API expose.
package mail

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset" // non-UTF-8 charsets
	"github.com/emersion/go-message/mail"
)

// boilerplatePatterns match footer lines that say nothing about the message itself.
var boilerplatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bunsubscribe\b`),
	regexp.MustCompile(`(?i)view (this email |it )?in (your|a) (web )?browser`),
	regexp.MustCompile(`(?i)(manage|update) (your )?(email )?(preferences|subscription)`),
	regexp.MustCompile(`(?i)you (are receiving|received) this (email|message)`),
	regexp.MustCompile(`(?i)all rights reserved`),
	regexp.MustCompile(`(?i)^\s*(©|\(c\)|copyright)\s`),
	regexp.MustCompile(`(?i)^\s*(privacy policy|terms of (use|service))(\s*[|·•]\s*(privacy policy|terms of (use|service)|contact us))*\s*$`),
}

// blockElements get a line break after them when HTML is flattened.
const blockElements = "p, div, tr, li, h1, h2, h3, h4, h5, h6, table, blockquote"

// ExtractBody parses an RFC 5322 message and returns its readable text. A text/plain
// part is preferred; otherwise the first text/html part is flattened to text.
func ExtractBody(r io.Reader) (string, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return "", fmt.Errorf("failed to parse message: %w", err)
	}
	defer func() { _ = mr.Close() }()

	var plain, html string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			// Keep whatever was read before a malformed part.
			break
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		ct, _, _ := h.ContentType()
		body, readErr := io.ReadAll(p.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(ct, "text/plain") && plain == "":
			plain = string(body)
		case strings.HasPrefix(ct, "text/html") && html == "":
			html = string(body)
		case ct == "" && plain == "":
			plain = string(body)
		}
	}

	text := plain
	if strings.TrimSpace(text) == "" && html != "" {
		text = HTMLToText(html)
	}

	return CleanText(text), nil
}

// HTMLToText flattens an HTML document to text, dropping scripts and styles and
// keeping block boundaries as line breaks.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	doc.Find("script, style, head, noscript").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return doc.Text()
}

// CleanText removes boilerplate footer lines, collapses runs of whitespace within
// lines, and squeezes blank lines.
func CleanText(text string) string {
	text = strings.ToValidUTF8(text, "�")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		if isBoilerplate(line) {
			continue
		}
		out = append(out, line)
		blank = false
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}

func isBoilerplate(line string) bool {
	for _, re := range boilerplatePatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// Snippet collapses whitespace and truncates text to at most n runes, marking the
// cut with "...".
func Snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}

	runes := []rune(text)
	return strings.TrimSpace(string(runes[:n])) + "..."
}
