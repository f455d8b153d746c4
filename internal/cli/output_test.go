package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/unclutter/internal/inbox"
	"github.com/Veraticus/unclutter/internal/model"
)

func classified(subject, sender string, category model.Category, labels ...model.Label) model.ClassifiedMessage {
	return model.ClassifiedMessage{
		Message:        model.Message{Subject: subject, Sender: sender},
		Classification: model.Classification{Category: category, Labels: labels},
	}
}

func TestRenderGroups(t *testing.T) {
	groups := []inbox.CategoryGroup{
		{Category: model.CategoryAction, Messages: []model.ClassifiedMessage{
			classified("Midterm due March 3", "registrar@mcmaster.ca", model.CategoryAction, model.LabelUniversity, model.LabelActionItems),
		}},
		{Category: model.CategoryUniversity},
		{Category: model.CategoryUnsorted, Messages: []model.ClassifiedMessage{
			classified("", "friend@example.com", model.CategoryUnsorted, model.LabelUnsorted),
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderGroups(&buf, groups))
	out := buf.String()

	assert.Contains(t, out, "ACTION (1)")
	assert.NotContains(t, out, "UNIVERSITY")
	assert.Contains(t, out, "UNSORTED (1)")
	assert.Contains(t, out, "Midterm due March 3")
	assert.Contains(t, out, "Action Items")
	assert.Contains(t, out, "(no subject)")
	assert.Less(t, strings.Index(out, "ACTION"), strings.Index(out, "UNSORTED"))
}

func TestRenderGroups_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderGroups(&buf, []inbox.CategoryGroup{{Category: model.CategoryAction}}))
	assert.Contains(t, buf.String(), "No messages found")
}

func TestFormatClassification(t *testing.T) {
	t.Parallel()

	out := FormatClassification(model.Classification{
		Category: model.CategoryPromotions,
		Labels:   []model.Label{model.LabelPromotions},
	})
	assert.Contains(t, out, "promotions")
	assert.Contains(t, out, "Promotions")
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"a longer subject", 8, "a longe…"},
		{"café crème", 5, "café…"},
		{"ab", 1, "a"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truncate(tt.in, tt.n))
	}
}

func TestCategoryFallbacks(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "•", CategoryIcon("custom"))
	assert.NotPanics(t, func() { _ = CategoryStyle("custom").Render("x") })
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, 3, "Fetching")
	p.Add(1)
	p.Describe("Classifying")
	p.Add(2)
	p.Finish()
	assert.NotEmpty(t, buf.String())

	var nilProgress *Progress
	assert.NotPanics(t, func() {
		nilProgress.Add(1)
		nilProgress.Describe("x")
		nilProgress.Finish()
	})
}
