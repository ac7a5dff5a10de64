package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusCreated, map[string]string{"foo": "bar"})

	if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q; want application/json; charset=utf-8", got)
	}
	if w.Code != http.StatusCreated {
		t.Errorf("Code = %d; want %d", w.Code, http.StatusCreated)
	}
	var got map[string]string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if got["foo"] != "bar" {
		t.Errorf("body[foo] = %q; want bar", got["foo"])
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusServiceUnavailable, "mqtt disconnected")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Code = %d", w.Code)
	}
	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if got["error"] != http.StatusText(http.StatusServiceUnavailable) {
		t.Errorf("error = %q", got["error"])
	}
	if got["message"] != "mqtt disconnected" {
		t.Errorf("message = %q", got["message"])
	}
}

func TestWriteText(t *testing.T) {
	w := httptest.NewRecorder()
	WriteText(w, http.StatusOK, "OK")

	if got := w.Header().Get("Content-Type"); got != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if w.Body.String() != "OK" {
		t.Errorf("body = %q; want OK", w.Body.String())
	}
}
