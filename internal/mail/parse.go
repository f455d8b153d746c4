package mail

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
)

// Parsed is the header subset and body text of an RFC 5322 message.
type Parsed struct {
	Date    time.Time
	Subject string
	From    string
	RawDate string
	Body    string
}

// ParseMessage reads headers and body text from raw message bytes.
func ParseMessage(raw []byte) (*Parsed, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	h := mail.Header{Header: entity.Header}
	parsed := &Parsed{
		RawDate: h.Get("Date"),
	}

	if subject, subjErr := h.Subject(); subjErr == nil {
		parsed.Subject = subject
	} else {
		parsed.Subject = h.Get("Subject")
	}

	// RFC 2047 decoded, matching what Gmail metadata returns.
	if from, fromErr := h.Text("From"); fromErr == nil {
		parsed.From = from
	} else {
		parsed.From = h.Get("From")
	}

	if date, dateErr := h.Date(); dateErr == nil {
		parsed.Date = date
	}

	body, err := ExtractBody(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	parsed.Body = body

	return parsed, nil
}
