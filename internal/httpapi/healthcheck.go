package httpapi

import (
	"net/http"

	"github.com/klagroix/ambient-weather-to-mqtt/internal/utils"
)

type healthchecker struct {
	mqtt ConnectionChecker
}

// handleHealth is the fixed liveness probe.
func (h *healthchecker) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.WriteText(w, http.StatusOK, bodyOK)
}

// handleHealthz reports broker connectivity. The bridge keeps serving while
// the broker is away, so this stays 200 and reports degraded.
func (h *healthchecker) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	status, mqttState := "ok", "connected"
	if h.mqtt == nil || !h.mqtt.IsConnected() {
		status, mqttState = "degraded", "disconnected"
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"status": status,
		"mqtt":   mqttState,
	})
}

func registerHealthcheck(mux *http.ServeMux, mqtt ConnectionChecker) {
	h := &healthchecker{mqtt: mqtt}
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealthz)
}
