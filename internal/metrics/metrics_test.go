package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/unclutter/internal/model"
)

func TestRecorder_Counters(t *testing.T) {
	t.Parallel()

	r := New()
	r.RecordClassified(model.CategoryAction)
	r.RecordClassified(model.CategoryAction)
	r.RecordClassified(model.CategoryUnsorted)
	r.RecordFetchError("gmail")

	assert.InDelta(t, 2, testutil.ToFloat64(r.messagesClassified.WithLabelValues("action")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.messagesClassified.WithLabelValues("unsorted")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(r.messagesClassified.WithLabelValues("promotions")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.providerFetchErrors.WithLabelValues("gmail")), 0)
}

func TestRecorder_HTTPHistogram(t *testing.T) {
	t.Parallel()

	r := New()
	r.RecordHTTPRequest(http.MethodGet, "/api/emails", http.StatusOK, 25*time.Millisecond)
	r.RecordHTTPRequest(http.MethodGet, "/api/emails", http.StatusOK, 40*time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(r.httpRequestDuration, "unclutter_http_request_duration_seconds"))
}

func TestRecorder_Nil(t *testing.T) {
	t.Parallel()

	var r *Recorder
	assert.NotPanics(t, func() {
		r.RecordClassified(model.CategoryAction)
		r.RecordFetchError("imap")
		r.RecordHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	})
}

func TestRecorder_Handler(t *testing.T) {
	t.Parallel()

	r := New()
	r.RecordClassified(model.CategoryPromotions)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `unclutter_messages_classified_total{category="promotions"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestRecorder_IndependentRegistries(t *testing.T) {
	t.Parallel()

	a, b := New(), New()
	a.RecordFetchError("gmail")

	assert.InDelta(t, 1, testutil.ToFloat64(a.providerFetchErrors.WithLabelValues("gmail")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.providerFetchErrors.WithLabelValues("gmail")), 0)
}
