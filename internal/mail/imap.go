package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/Veraticus/unclutter/internal/common"
	"github.com/Veraticus/unclutter/internal/model"
	"github.com/Veraticus/unclutter/internal/service"
)

// snippetLength matches the length of Gmail's own snippets.
const snippetLength = 200

// maxBodyBytes caps how much of a message body is read.
const maxBodyBytes = 1 << 20

// IMAPOptions configures an IMAPSource.
type IMAPOptions struct {
	TLSConfig *tls.Config
	Server    string
	Email     string
	Password  string
	Folder    string
	Port      int
	// Insecure dials without TLS. Only for local test servers.
	Insecure bool
	Timeout  time.Duration
}

// IMAPSource reads the newest messages of one folder over IMAP. Each call opens its
// own connection, so a source may be shared between goroutines.
type IMAPSource struct {
	opts IMAPOptions
}

// NewIMAPSource validates opts and returns a source.
func NewIMAPSource(opts IMAPOptions) (*IMAPSource, error) {
	if opts.Server == "" || opts.Email == "" {
		return nil, fmt.Errorf("%w: imap server and email are required", common.ErrMissingConfig)
	}
	if opts.Port == 0 {
		opts.Port = 993
	}
	if opts.Folder == "" {
		opts.Folder = "INBOX"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &IMAPSource{opts: opts}, nil
}

// Name implements service.MessageSource.
func (s *IMAPSource) Name() string {
	return "imap"
}

func (s *IMAPSource) connect(ctx context.Context) (*client.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(s.opts.Server, strconv.Itoa(s.opts.Port))
	slog.Debug("Connecting to IMAP server", "addr", addr)

	var (
		c   *client.Client
		err error
	)
	if s.opts.Insecure {
		c, err = client.Dial(addr)
	} else {
		c, err = client.DialTLS(addr, s.opts.TLSConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to IMAP server: %w", common.ErrProviderUnavailable, err)
	}
	c.Timeout = s.opts.Timeout

	if err := c.Login(s.opts.Email, s.opts.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("%w: failed to login: %w", common.ErrNotAuthenticated, err)
	}

	return c, nil
}

// ListMessages returns the newest messages first. A query is passed to IMAP SEARCH TEXT.
func (s *IMAPSource) ListMessages(ctx context.Context, opts service.ListOptions) ([]model.Message, error) {
	opts = opts.Clamp()

	c, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Logout() }()

	mbox, err := c.Select(s.opts.Folder, true)
	if err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", s.opts.Folder, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	if opts.Query != "" {
		criteria := imap.NewSearchCriteria()
		criteria.Text = []string{opts.Query}
		seqNums, searchErr := c.Search(criteria)
		if searchErr != nil {
			return nil, fmt.Errorf("failed to search %s: %w", s.opts.Folder, searchErr)
		}
		if len(seqNums) == 0 {
			return nil, nil
		}
		slices.Sort(seqNums)
		if len(seqNums) > opts.MaxResults {
			seqNums = seqNums[len(seqNums)-opts.MaxResults:]
		}
		seqSet.AddNum(seqNums...)
	} else {
		from := uint32(1)
		if mbox.Messages > uint32(opts.MaxResults) {
			from = mbox.Messages - uint32(opts.MaxResults) + 1
		}
		seqSet.AddRange(from, mbox.Messages)
	}

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, imap.FetchFlags, imap.FetchInternalDate, section.FetchItem()}

	fetched, err := s.fetch(ctx, c, false, seqSet, items)
	if err != nil {
		return nil, err
	}

	messages := make([]model.Message, 0, len(fetched))
	for _, msg := range fetched {
		converted, convErr := convertIMAPMessage(msg, section)
		if convErr != nil {
			slog.Warn("Failed to parse message", "uid", msg.Uid, "error", convErr)
			continue
		}
		converted.Body = ""
		messages = append(messages, *converted)
	}

	// Newest first, like the Gmail listing.
	slices.SortStableFunc(messages, func(a, b model.Message) int {
		return b.Date.Compare(a.Date)
	})

	return messages, nil
}

// GetMessage fetches one message by UID.
func (s *IMAPSource) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not an IMAP uid", common.ErrMessageNotFound, id)
	}

	c, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Logout() }()

	if _, err := c.Select(s.opts.Folder, true); err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", s.opts.Folder, err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uint32(uid))
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, imap.FetchFlags, imap.FetchInternalDate, section.FetchItem()}

	fetched, err := s.fetch(ctx, c, true, seqSet, items)
	if err != nil {
		return nil, err
	}
	if len(fetched) == 0 {
		return nil, fmt.Errorf("%w: uid %s", common.ErrMessageNotFound, id)
	}

	return convertIMAPMessage(fetched[0], section)
}

// fetch runs FETCH or UID FETCH and collects the results, giving up if ctx ends first.
func (s *IMAPSource) fetch(ctx context.Context, c *client.Client, byUID bool, seqSet *imap.SeqSet, items []imap.FetchItem) ([]*imap.Message, error) {
	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		if byUID {
			done <- c.UidFetch(seqSet, items, messages)
		} else {
			done <- c.Fetch(seqSet, items, messages)
		}
	}()

	var fetched []*imap.Message
	for msg := range messages {
		if msg != nil {
			fetched = append(fetched, msg)
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fetched, nil
}

func convertIMAPMessage(msg *imap.Message, section *imap.BodySectionName) (*model.Message, error) {
	out := &model.Message{
		ID:       strconv.FormatUint(uint64(msg.Uid), 10),
		LabelIDs: msg.Flags,
		Date:     msg.InternalDate,
	}

	if env := msg.Envelope; env != nil {
		out.Subject = env.Subject
		out.ThreadID = env.InReplyTo
		if len(env.From) > 0 {
			out.Sender = formatAddress(env.From[0])
		}
		if !env.Date.IsZero() {
			out.Date = env.Date
		}
	}
	if !out.Date.IsZero() {
		out.RawDate = out.Date.Format(time.RFC1123Z)
	}

	if r := msg.GetBody(section); r != nil {
		raw, err := io.ReadAll(io.LimitReader(r, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to read body: %w", err)
		}
		body, err := ExtractBody(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		out.Body = body
		out.Snippet = Snippet(body, snippetLength)
	}

	return out, nil
}

// formatAddress renders an envelope address the way a From header shows it.
func formatAddress(addr *imap.Address) string {
	if addr.PersonalName == "" {
		return addr.Address()
	}
	return fmt.Sprintf("%s <%s>", addr.PersonalName, addr.Address())
}
