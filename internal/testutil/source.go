package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Veraticus/unclutter/internal/common"
	"github.com/Veraticus/unclutter/internal/model"
	"github.com/Veraticus/unclutter/internal/service"
)

// FakeSource is a scripted service.MessageSource.
type FakeSource struct {
	// ListErr, when set, fails every ListMessages call.
	ListErr  error
	Messages []model.Message
	lastOpts service.ListOptions
	calls    int
	mu       sync.Mutex
}

// NewFakeSource returns a source serving msgs in order.
func NewFakeSource(msgs ...model.Message) *FakeSource {
	return &FakeSource{Messages: msgs}
}

// Name implements service.MessageSource.
func (f *FakeSource) Name() string { return "fake" }

// ListMessages returns messages whose subject contains opts.Query, up to opts.MaxResults.
func (f *FakeSource) ListMessages(ctx context.Context, opts service.ListOptions) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.lastOpts = opts

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.ListErr != nil {
		return nil, f.ListErr
	}

	opts = opts.Clamp()
	var out []model.Message
	for _, msg := range f.Messages {
		if opts.Query != "" && !strings.Contains(strings.ToLower(msg.Subject), strings.ToLower(opts.Query)) {
			continue
		}
		msg.Body = ""
		out = append(out, msg)
		if len(out) == opts.MaxResults {
			break
		}
	}
	return out, nil
}

// GetMessage returns the message with id, body included.
func (f *FakeSource) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, msg := range f.Messages {
		if msg.ID == id {
			found := msg
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", common.ErrMessageNotFound, id)
}

// Calls reports how many times ListMessages ran.
func (f *FakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// LastOptions returns the options of the most recent ListMessages call.
func (f *FakeSource) LastOptions() service.ListOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOpts
}
