package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/klagroix/ambient-weather-to-mqtt/internal/ingest"
	"github.com/klagroix/ambient-weather-to-mqtt/internal/metrics"
	"github.com/klagroix/ambient-weather-to-mqtt/internal/utils"
)

const (
	bodyOK             = "OK"
	bodyInvalidReading = "invalid reading"
)

type ingestHandler struct {
	pipeline  Processor
	publisher DocumentPublisher
	metrics   *metrics.Metrics
	announce  bool
	logger    *slog.Logger
}

// handleReading accepts a station upload. The station only checks for a 200,
// so publish failures are logged and the upload is still acknowledged.
func (h *ingestHandler) handleReading(w http.ResponseWriter, r *http.Request) {
	logger := loggerFrom(r.Context(), h.logger)

	reading, err := ingest.ParseQuery(r.URL.RawQuery)
	if err != nil {
		h.metrics.Reading(metrics.ReadingRejected)
		logger.Warn("malformed query", "error", err)
		utils.WriteText(w, http.StatusBadRequest, bodyInvalidReading)
		return
	}
	logger.Debug("received reading", "fields", len(reading))

	res, err := h.pipeline.Process(r.Context(), reading, h.announce)
	if errors.Is(err, ingest.ErrInvalidReading) {
		logger.Warn("rejected reading", "error", err)
		utils.WriteText(w, http.StatusBadRequest, bodyInvalidReading)
		return
	}
	if err != nil {
		logger.Error("process reading", "error", err)
		utils.WriteText(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	if err := h.publisher.PublishDocument(res.TopicKey(), res.Document); err != nil {
		logger.Error("publish document", "station", res.TopicKey(), "error", err)
	}
	utils.WriteText(w, http.StatusOK, bodyOK)
}

func registerIngest(mux *http.ServeMux, d Deps) {
	h := &ingestHandler{
		pipeline:  d.Pipeline,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		announce:  d.Announce,
		logger:    d.Logger,
	}
	mux.HandleFunc("GET /ambientweather", h.handleReading)
}
