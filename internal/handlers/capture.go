package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/snapbinder/snapbinder/internal/export"
	"github.com/snapbinder/snapbinder/internal/models"
	"github.com/snapbinder/snapbinder/internal/poller"
	"github.com/snapbinder/snapbinder/internal/session"
)

// HandleCapture dispatches /api/capture/... for the controlling device's UI.
func (h *Handler) HandleCapture(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/capture/")
	parts := strings.Split(path, "/")

	switch {
	case path == "session" && r.Method == http.MethodGet:
		h.handleGetSession(w)
	case path == "start" && r.Method == http.MethodPost:
		h.handleStart(w, r, false)
	case path == "force-start" && r.Method == http.MethodPost:
		h.handleStart(w, r, true)
	case path == "end" && r.Method == http.MethodPost:
		h.handleSessionOp(w, h.capture.End)
	case path == "pause" && r.Method == http.MethodPost:
		h.handleSessionOp(w, h.capture.Pause)
	case path == "resume" && r.Method == http.MethodPost:
		h.handleSessionOp(w, h.capture.Resume)
	case path == "images" && r.Method == http.MethodPost:
		h.handleAddImage(w, r)
	case path == "images/last" && r.Method == http.MethodDelete:
		h.handleSessionOp(w, h.capture.DeleteLast)
	case len(parts) == 2 && parts[0] == "images" && r.Method == http.MethodDelete:
		h.handleDeleteAt(w, parts[1])
	case path == "undo" && r.Method == http.MethodPost:
		h.handleSessionOp(w, h.capture.UndoDelete)
	case path == "thumbnails" && r.Method == http.MethodGet:
		h.writeJSON(w, h.capture.GetThumbnails())
	case path == "export" && r.Method == http.MethodPost:
		h.handleExport(w, r)
	case path == "save" && r.Method == http.MethodGet:
		h.handleSaveSession(w)
	case path == "upload-channel" && r.Method == http.MethodPost:
		h.handleOpenUploadChannel(w, r)
	case path == "upload-channel" && r.Method == http.MethodDelete:
		h.handleCloseUploadChannel(w)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleGetSession(w http.ResponseWriter) {
	sess := h.capture.GetSession()
	if sess == nil {
		h.writeError(w, "NO_SESSION", http.StatusNotFound)
		return
	}
	h.writeJSON(w, sess)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request, force bool) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "INVALID_JSON", http.StatusBadRequest)
		return
	}

	if force {
		h.writeJSON(w, h.capture.ForceStart(req.Name))
		return
	}
	sess, err := h.capture.Start(req.Name)
	if err != nil {
		// The existing session rides along so the caller can offer a
		// force-restart.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		if encodeErr := json.NewEncoder(w).Encode(map[string]interface{}{
			"error":   session.ErrorCode(err),
			"session": sess,
		}); encodeErr != nil {
			slog.Error("Unable to encode error response", "err", encodeErr)
		}
		return
	}
	h.writeJSON(w, sess)
}

func (h *Handler) handleSessionOp(w http.ResponseWriter, op func() error) {
	if err := op(); err != nil {
		h.writeError(w, session.ErrorCode(err), statusForSessionError(err))
		return
	}
	h.writeJSON(w, map[string]interface{}{"success": true})
}

func (h *Handler) handleAddImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Image       string `json:"image"`
		SourceURL   string `json:"source_url"`
		SourceTitle string `json:"source_title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "INVALID_JSON", http.StatusBadRequest)
		return
	}
	payload, err := decodePayload(req.Image)
	if err != nil {
		h.writeError(w, "UNSUPPORTED_PAYLOAD", http.StatusBadRequest)
		return
	}

	res, err := h.capture.AddImage(payload, models.ImageMeta{
		SourceURL:   req.SourceURL,
		SourceTitle: req.SourceTitle,
	})
	if err != nil {
		h.writeError(w, session.ErrorCode(err), statusForSessionError(err))
		return
	}
	h.writeJSON(w, map[string]interface{}{
		"image_id":       res.ImageID,
		"image_count":    res.ImageCount,
		"usage_bytes":    res.UsageBytes,
		"memory_warning": res.MemoryWarning,
	})
}

func (h *Handler) handleDeleteAt(w http.ResponseWriter, rawIndex string) {
	index, err := strconv.Atoi(rawIndex)
	if err != nil {
		h.writeError(w, "INVALID_INDEX", http.StatusBadRequest)
		return
	}
	h.handleSessionOp(w, func() error { return h.capture.DeleteAt(index) })
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string `json:"filename"`
	}
	// Body is optional.
	_ = json.NewDecoder(r.Body).Decode(&req)

	doc, err := h.capture.ExportDocument(req.Filename)
	if err != nil {
		if errors.Is(err, export.ErrNoImages) {
			err = session.ErrNoScreenshots
		}
		h.writeError(w, session.ErrorCode(err), statusForSessionError(err))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	if _, err := w.Write(doc.Data); err != nil {
		slog.Error("Unable to write exported document", "err", err)
	}
}

// handleSaveSession streams the serialized session, payloads included, as a
// download the export command can reload.
func (h *Handler) handleSaveSession(w http.ResponseWriter) {
	var buf bytes.Buffer
	if err := h.capture.SaveSession(&buf); err != nil {
		h.writeError(w, session.ErrorCode(err), statusForSessionError(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="session.json"`)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("Unable to write saved session", "err", err)
	}
}

// handleOpenUploadChannel creates a broker session and starts the poller
// that pulls its uploads into the capture session. Only one channel is open
// at a time; opening a new one closes the previous.
func (h *Handler) handleOpenUploadChannel(w http.ResponseWriter, r *http.Request) {
	sess := h.capture.GetSession()
	if sess == nil || sess.Status != models.StatusActive {
		h.writeError(w, "NO_ACTIVE_SESSION", http.StatusConflict)
		return
	}

	upload, err := h.registry.Create(sess.Name)
	if err != nil {
		h.writeError(w, "MAX_SESSIONS_REACHED", http.StatusServiceUnavailable)
		return
	}

	// The poller's lifetime is the channel's, not the request's: it runs
	// until the channel is closed or the server shuts down.
	p := poller.New(h.registry, h.capture, upload.ID, h.pollInterval)
	p.Start(context.Background())

	h.mu.Lock()
	prev := h.channel
	h.channel = &uploadChannel{sessionID: upload.ID, poller: p}
	h.mu.Unlock()
	if prev != nil {
		prev.poller.Stop()
		if err := h.registry.Close(prev.sessionID); err != nil {
			slog.Warn("Failed to close previous upload session", "session_id", prev.sessionID, "err", err)
		}
	}

	h.writeJSON(w, h.uploadSessionResponse(upload))
}

// handleCloseUploadChannel stops the poller and closes the broker session's
// upload window. Uploaded data stays readable until retention expiry.
func (h *Handler) handleCloseUploadChannel(w http.ResponseWriter) {
	h.mu.Lock()
	ch := h.channel
	h.channel = nil
	h.mu.Unlock()
	if ch == nil {
		h.writeError(w, "NOT_FOUND", http.StatusNotFound)
		return
	}
	ch.poller.Stop()
	if err := h.registry.Close(ch.sessionID); err != nil {
		slog.Warn("Failed to close upload session", "session_id", ch.sessionID, "err", err)
	}
	h.writeJSON(w, map[string]interface{}{"success": true})
}

// statusForSessionError maps session error codes onto HTTP statuses.
func statusForSessionError(err error) int {
	switch {
	case errors.Is(err, session.ErrNoSession),
		errors.Is(err, session.ErrNoActiveSession),
		errors.Is(err, session.ErrNothingToDelete),
		errors.Is(err, session.ErrNothingToUndo):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidIndex):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrMemoryLimit):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, session.ErrSessionActive),
		errors.Is(err, session.ErrNotActive),
		errors.Is(err, session.ErrNotPaused),
		errors.Is(err, session.ErrMaxReached),
		errors.Is(err, session.ErrUndoExpired),
		errors.Is(err, session.ErrNoScreenshots):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
