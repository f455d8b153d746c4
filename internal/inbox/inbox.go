// Package inbox fetches messages from a mail source and classifies them.
package inbox

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/unclutter/internal/classification"
	"github.com/Veraticus/unclutter/internal/metrics"
	"github.com/Veraticus/unclutter/internal/model"
	"github.com/Veraticus/unclutter/internal/service"
)

// Service lists and classifies messages from one source. It is safe for concurrent use
// when the source is.
type Service struct {
	source     service.MessageSource
	classifier *classification.Classifier
	metrics    *metrics.Recorder
}

// New creates a Service. recorder may be nil.
func New(source service.MessageSource, classifier *classification.Classifier, recorder *metrics.Recorder) *Service {
	return &Service{
		source:     source,
		classifier: classifier,
		metrics:    recorder,
	}
}

// List returns the newest messages matching opts, each with its classification.
func (s *Service) List(ctx context.Context, opts service.ListOptions) ([]model.ClassifiedMessage, error) {
	msgs, err := s.source.ListMessages(ctx, opts.Clamp())
	if err != nil {
		s.metrics.RecordFetchError(s.source.Name())
		return nil, fmt.Errorf("failed to list messages from %s: %w", s.source.Name(), err)
	}

	out := make([]model.ClassifiedMessage, 0, len(msgs))
	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, s.classify(msg))
	}

	slog.Debug("Classified messages", "source", s.source.Name(), "count", len(out))
	return out, nil
}

// Get fetches one message with its body and classifies it.
func (s *Service) Get(ctx context.Context, id string) (*model.ClassifiedMessage, error) {
	msg, err := s.source.GetMessage(ctx, id)
	if err != nil {
		s.metrics.RecordFetchError(s.source.Name())
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}

	classified := s.classify(*msg)
	return &classified, nil
}

func (s *Service) classify(msg model.Message) model.ClassifiedMessage {
	c := s.classifier.ClassifyText(msg.Text())
	s.metrics.RecordClassified(c.Category)
	return model.ClassifiedMessage{Message: msg, Classification: c}
}

// CategoryGroup is one category's messages.
type CategoryGroup struct {
	Category model.Category
	Messages []model.ClassifiedMessage
}

// Group buckets messages by category. Groups follow the priority order of the rule
// configuration, empty groups included, and messages keep their input order.
func Group(order []model.Category, msgs []model.ClassifiedMessage) []CategoryGroup {
	index := make(map[model.Category]int, len(order))
	groups := make([]CategoryGroup, 0, len(order))
	for _, c := range order {
		if _, ok := index[c]; ok {
			continue
		}
		index[c] = len(groups)
		groups = append(groups, CategoryGroup{Category: c})
	}

	for _, msg := range msgs {
		i, ok := index[msg.Classification.Category]
		if !ok {
			// Category produced by a rule set not in order; keep it rather than drop it.
			i = len(groups)
			index[msg.Classification.Category] = i
			groups = append(groups, CategoryGroup{Category: msg.Classification.Category})
		}
		groups[i].Messages = append(groups[i].Messages, msg)
	}

	return groups
}

// Group buckets msgs using the service classifier's category order.
func (s *Service) Group(msgs []model.ClassifiedMessage) []CategoryGroup {
	return Group(s.classifier.Rules().CategoryOrder(), msgs)
}

// Source returns the underlying message source.
func (s *Service) Source() service.MessageSource {
	return s.source
}
