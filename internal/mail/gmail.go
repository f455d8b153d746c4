package mail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"log/slog"
	netmail "net/mail"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Veraticus/unclutter/internal/common"
	"github.com/Veraticus/unclutter/internal/model"
	"github.com/Veraticus/unclutter/internal/service"
)

const gmailUser = "me"

// metadataHeaders are the headers requested for list results.
var metadataHeaders = []string{"From", "Subject", "Date"}

// GmailOptions configures a GmailSource.
type GmailOptions struct {
	// OnSkip is called for each message dropped from a listing because it failed to load.
	OnSkip func(id string, err error)
	// Endpoint overrides the Gmail API base URL.
	Endpoint    string
	Retry       service.RetryOptions
	Concurrency int
}

// GmailSource reads messages through the Gmail REST API.
type GmailSource struct {
	svc         *gmail.Service
	onSkip      func(id string, err error)
	retry       service.RetryOptions
	concurrency int
}

// NewGmailSource creates a source authorized by ts.
func NewGmailSource(ctx context.Context, ts oauth2.TokenSource, opts GmailOptions) (*GmailSource, error) {
	clientOpts := []option.ClientOption{option.WithTokenSource(ts)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	svc, err := gmail.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	if opts.Concurrency <= 0 {
		opts.Concurrency = 10
	}
	if opts.OnSkip == nil {
		opts.OnSkip = func(string, error) {}
	}

	return &GmailSource{
		svc:         svc,
		onSkip:      opts.OnSkip,
		retry:       opts.Retry,
		concurrency: opts.Concurrency,
	}, nil
}

// Name implements service.MessageSource.
func (g *GmailSource) Name() string {
	return "gmail"
}

// ListMessages lists message ids and fetches the From, Subject and Date headers of each.
// Messages that fail to load are skipped. Results keep the provider's order.
func (g *GmailSource) ListMessages(ctx context.Context, opts service.ListOptions) ([]model.Message, error) {
	opts = opts.Clamp()

	call := g.svc.Users.Messages.List(gmailUser).MaxResults(int64(opts.MaxResults)).Context(ctx)
	if opts.Query != "" {
		call = call.Q(opts.Query)
	}

	var resp *gmail.ListMessagesResponse
	err := common.WithRetry(ctx, func() error {
		var callErr error
		resp, callErr = call.Do()
		return classifyAPIError(callErr)
	}, g.retry)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	refs := resp.Messages
	if len(refs) > opts.MaxResults {
		refs = refs[:opts.MaxResults]
	}

	results := make([]*model.Message, len(refs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(g.concurrency)

	for i, ref := range refs {
		group.Go(func() error {
			msg, fetchErr := g.fetchMetadata(groupCtx, ref.Id)
			if fetchErr != nil {
				// A cancelled listing is not a per-message failure.
				if ctxErr := groupCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				slog.Debug("Skipping message", "id", ref.Id, "error", fetchErr)
				g.onSkip(ref.Id, fetchErr)
				return nil
			}
			results[i] = msg
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch message metadata: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messages := make([]model.Message, 0, len(results))
	for _, msg := range results {
		if msg != nil {
			messages = append(messages, *msg)
		}
	}
	return messages, nil
}

func (g *GmailSource) fetchMetadata(ctx context.Context, id string) (*model.Message, error) {
	var msg *gmail.Message
	err := common.WithRetry(ctx, func() error {
		var callErr error
		msg, callErr = g.svc.Users.Messages.Get(gmailUser, id).
			Format("metadata").
			MetadataHeaders(metadataHeaders...).
			Context(ctx).
			Do()
		return classifyAPIError(callErr)
	}, g.retry)
	if err != nil {
		return nil, err
	}

	out := &model.Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  html.UnescapeString(msg.Snippet),
		LabelIDs: msg.LabelIds,
	}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "From":
				out.Sender = h.Value
			case "Subject":
				out.Subject = h.Value
			case "Date":
				out.RawDate = h.Value
			}
		}
	}
	out.Date = messageDate(out.RawDate, msg.InternalDate)

	return out, nil
}

// GetMessage fetches the raw message and extracts its body text.
func (g *GmailSource) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	var msg *gmail.Message
	err := common.WithRetry(ctx, func() error {
		var callErr error
		msg, callErr = g.svc.Users.Messages.Get(gmailUser, id).Format("raw").Context(ctx).Do()
		return classifyAPIError(callErr)
	}, g.retry)
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}

	raw, err := decodeRaw(msg.Raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode message %s: %w", id, err)
	}

	parsed, err := ParseMessage(raw)
	if err != nil {
		return nil, fmt.Errorf("message %s: %w", id, err)
	}

	return &model.Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Subject:  parsed.Subject,
		Sender:   parsed.From,
		Snippet:  html.UnescapeString(msg.Snippet),
		RawDate:  parsed.RawDate,
		Date:     messageDate(parsed.RawDate, msg.InternalDate),
		Body:     parsed.Body,
		LabelIDs: msg.LabelIds,
	}, nil
}

// decodeRaw accepts URL-safe base64 with or without padding.
func decodeRaw(raw string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
}

// messageDate parses the Date header, falling back to Gmail's internal timestamp.
func messageDate(header string, internalMillis int64) time.Time {
	if header != "" {
		if t, err := netmail.ParseDate(header); err == nil {
			return t
		}
	}
	if internalMillis > 0 {
		return time.UnixMilli(internalMillis)
	}
	return time.Time{}
}

// classifyAPIError maps Google API status codes onto the shared sentinels so
// WithRetry and callers can tell rate limits and outages from permanent failures.
func classifyAPIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
	case apiErr.Code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %w", common.ErrProviderUnavailable, err)
	case apiErr.Code == http.StatusNotFound:
		return fmt.Errorf("%w: %w", common.ErrMessageNotFound, err)
	case apiErr.Code == http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", common.ErrSessionExpired, err)
	default:
		return err
	}
}
