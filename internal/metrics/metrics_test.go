package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.Reading(ReadingAccepted)
	m.Reading(ReadingAccepted)
	m.Reading(ReadingRejected)
	m.Announcement(AnnouncePublished)
	m.PublishError("document")
	m.CacheCleared()
	m.SetConnected(true)

	if got := testutil.ToFloat64(m.ReadingsTotal.WithLabelValues(ReadingAccepted)); got != 2 {
		t.Errorf("accepted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ReadingsTotal.WithLabelValues(ReadingRejected)); got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.AnnouncementsTotal.WithLabelValues(AnnouncePublished)); got != 1 {
		t.Errorf("announcements = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PublishErrorsTotal.WithLabelValues("document")); got != 1 {
		t.Errorf("publish errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CacheClearsTotal); got != 1 {
		t.Errorf("cache clears = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.MQTTConnected); got != 1 {
		t.Errorf("connected = %v, want 1", got)
	}
	m.SetConnected(false)
	if got := testutil.ToFloat64(m.MQTTConnected); got != 0 {
		t.Errorf("connected after loss = %v, want 0", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.Reading(ReadingAccepted)
	m.Announcement(AnnounceFailed)
	m.PublishError("discovery")
	m.CacheCleared()
	m.SetConnected(true)
	if m.Registry() != nil {
		t.Error("nil Registry() != nil")
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("nil handler status = %d, want 404", rec.Code)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Reading(ReadingAccepted)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `ambientweather_ingest_readings_total{result="accepted"} 1`) {
		t.Errorf("metrics body missing readings counter:\n%s", body)
	}
}
