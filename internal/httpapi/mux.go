package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/klagroix/ambient-weather-to-mqtt/internal/document"
	"github.com/klagroix/ambient-weather-to-mqtt/internal/ingest"
	"github.com/klagroix/ambient-weather-to-mqtt/internal/metrics"
)

type Processor interface {
	Process(ctx context.Context, r ingest.Reading, announce bool) (*ingest.Result, error)
}

type DocumentPublisher interface {
	PublishDocument(key string, doc *document.Document) error
}

type ConnectionChecker interface {
	IsConnected() bool
}

type Deps struct {
	Pipeline  Processor
	Publisher DocumentPublisher
	MQTT      ConnectionChecker
	Metrics   *metrics.Metrics
	// Announce enables discovery announcements for incoming readings.
	Announce bool
	Logger   *slog.Logger
}

func NewMux(d Deps) *http.ServeMux {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	mux := http.NewServeMux()
	registerIngest(mux, d)
	registerHealthcheck(mux, d.MQTT)
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}
	return mux
}
