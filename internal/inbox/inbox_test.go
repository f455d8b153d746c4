package inbox

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/unclutter/internal/classification"
	"github.com/Veraticus/unclutter/internal/common"
	"github.com/Veraticus/unclutter/internal/metrics"
	"github.com/Veraticus/unclutter/internal/model"
	"github.com/Veraticus/unclutter/internal/service"
	"github.com/Veraticus/unclutter/internal/testutil"
)

func sampleMessages() []model.Message {
	return []model.Message{
		{ID: "1", Subject: "Midterm exam due March 3", Sender: "registrar@mcmaster.ca", Snippet: "Your midterm is on March 3", Body: "full body"},
		{ID: "2", Subject: "Huge Clearance Sale", Sender: "deals@store.com", Snippet: "Save 50% today"},
		{ID: "3", Subject: "Hello", Sender: "friend@example.com", Snippet: "Long time no see"},
		{ID: "4", Subject: "Course outline", Sender: "prof@mcmaster.ca", Snippet: "Welcome to the lecture"},
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestService_List(t *testing.T) {
	src := testutil.NewFakeSource(sampleMessages()...)
	rec := metrics.New()
	svc := New(src, classification.Default(), rec)

	got, err := svc.List(context.Background(), service.ListOptions{})
	require.NoError(t, err)
	require.Len(t, got, 4)

	want := []model.Category{
		model.CategoryAction,
		model.CategoryPromotions,
		model.CategoryUnsorted,
		model.CategoryUniversity,
	}
	for i, msg := range got {
		assert.Equal(t, want[i], msg.Classification.Category, "message %s", msg.Message.ID)
		assert.Empty(t, msg.Message.Body)
	}
	assert.Equal(t, service.MaxListResults, src.LastOptions().MaxResults)

	reg := rec.Registry()
	assert.InDelta(t, 1, counterValue(t, reg, "unclutter_messages_classified_total", "category", "action"), 0)
	assert.InDelta(t, 1, counterValue(t, reg, "unclutter_messages_classified_total", "category", "unsorted"), 0)
}

func TestService_ListPassesOptions(t *testing.T) {
	src := testutil.NewFakeSource(sampleMessages()...)
	svc := New(src, classification.Default(), nil)

	got, err := svc.List(context.Background(), service.ListOptions{Query: "sale", MaxResults: 500})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].Message.ID)
	assert.Equal(t, service.ListOptions{Query: "sale", MaxResults: service.MaxListResults}, src.LastOptions())
}

func TestService_ListError(t *testing.T) {
	src := testutil.NewFakeSource()
	src.ListErr = common.ErrProviderUnavailable
	rec := metrics.New()
	svc := New(src, classification.Default(), rec)

	_, err := svc.List(context.Background(), service.ListOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrProviderUnavailable)
	assert.InDelta(t, 1, counterValue(t, rec.Registry(), "unclutter_provider_fetch_errors_total", "source", "fake"), 0)
}

func TestService_Get(t *testing.T) {
	src := testutil.NewFakeSource(sampleMessages()...)
	svc := New(src, classification.Default(), nil)

	got, err := svc.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "full body", got.Message.Body)
	assert.Equal(t, model.CategoryAction, got.Classification.Category)
	assert.Equal(t, []model.Label{model.LabelUniversity, model.LabelActionItems}, got.Classification.Labels)

	_, err = svc.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, common.ErrMessageNotFound))
}

func TestGroup(t *testing.T) {
	t.Parallel()

	svc := New(testutil.NewFakeSource(), classification.Default(), nil)
	msgs := []model.ClassifiedMessage{
		{Message: model.Message{ID: "a"}, Classification: model.Classification{Category: model.CategoryUnsorted}},
		{Message: model.Message{ID: "b"}, Classification: model.Classification{Category: model.CategoryAction}},
		{Message: model.Message{ID: "c"}, Classification: model.Classification{Category: model.CategoryUnsorted}},
		{Message: model.Message{ID: "d"}, Classification: model.Classification{Category: "custom"}},
	}

	groups := svc.Group(msgs)

	var order []model.Category
	for _, g := range groups {
		order = append(order, g.Category)
	}
	assert.Equal(t, []model.Category{
		model.CategoryAction,
		model.CategoryUniversity,
		model.CategoryPromotions,
		model.CategoryUnsorted,
		"custom",
	}, order)

	assert.Len(t, groups[0].Messages, 1)
	assert.Empty(t, groups[1].Messages)
	require.Len(t, groups[3].Messages, 2)
	assert.Equal(t, "a", groups[3].Messages[0].Message.ID)
	assert.Equal(t, "c", groups[3].Messages[1].Message.ID)
}

func TestService_ListCancelled(t *testing.T) {
	svc := New(testutil.NewFakeSource(sampleMessages()...), classification.Default(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.List(ctx, service.ListOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

