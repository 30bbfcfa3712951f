// Package handlers exposes the upload-broker contract and the capture-side
// operations over HTTP.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/snapbinder/snapbinder/internal/broker"
	"github.com/snapbinder/snapbinder/internal/capture"
	"github.com/snapbinder/snapbinder/internal/poller"
	"github.com/snapbinder/snapbinder/internal/qr"
	"github.com/snapbinder/snapbinder/internal/recognition"
)

type Handler struct {
	registry *broker.Registry
	capture  *capture.Service
	queue    *recognition.Queue
	qrEnc    qr.Encoder

	baseURL      string
	pollInterval time.Duration

	mu      sync.Mutex
	channel *uploadChannel
}

// uploadChannel is the currently open cross-device channel: one broker
// session plus the poller pulling its uploads into the capture session.
type uploadChannel struct {
	sessionID string
	poller    *poller.Poller
}

func New(registry *broker.Registry, captureSvc *capture.Service, queue *recognition.Queue, qrEnc qr.Encoder, baseURL string, pollInterval time.Duration) *Handler {
	return &Handler{
		registry:     registry,
		capture:      captureSvc,
		queue:        queue,
		qrEnc:        qrEnc,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		pollInterval: pollInterval,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// writeError emits the stable error code as a JSON body.
func (h *Handler) writeError(w http.ResponseWriter, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": code}); err != nil {
		slog.Error("Unable to encode error response", "err", err)
	}
}

// Shutdown stops the active upload channel's poller, if any.
func (h *Handler) Shutdown() {
	h.mu.Lock()
	ch := h.channel
	h.channel = nil
	h.mu.Unlock()
	if ch != nil {
		ch.poller.Stop()
	}
}

// bearerToken pulls the upload token from the Authorization header or, as a
// fallback for QR-launched uploads, the token query parameter.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
