package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/snapbinder/snapbinder/internal/broker"
	"github.com/snapbinder/snapbinder/internal/models"
	"github.com/snapbinder/snapbinder/internal/recognition"
)

// HandleUploadSessions serves the upload-session collection: POST creates a
// new broker session.
func (h *Handler) HandleUploadSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if r.Body != nil {
		// An empty body is fine; the name is optional.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	sess, err := h.registry.Create(req.Name)
	if err != nil {
		if errors.Is(err, broker.ErrMaxSessions) {
			h.writeError(w, "MAX_SESSIONS_REACHED", http.StatusServiceUnavailable)
			return
		}
		slog.Error("Failed to create upload session", "err", err)
		h.writeError(w, "INTERNAL", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, h.uploadSessionResponse(sess))
}

func (h *Handler) uploadSessionResponse(sess *models.UploadSession) map[string]interface{} {
	uploadURL := h.baseURL + "/u/" + sess.ID + "#" + sess.Token
	resp := map[string]interface{}{
		"sessionId": sess.ID,
		"token":     sess.Token,
		"uploadUrl": uploadURL,
	}
	if png, err := h.qrEnc.Encode(uploadURL, 256); err != nil {
		slog.Warn("QR generation failed", "session_id", sess.ID, "err", err)
	} else {
		resp["qrImage"] = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	}
	return resp
}

// HandleUploadSessionDetail dispatches /api/upload-sessions/{id}[/...].
func (h *Handler) HandleUploadSessionDetail(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/upload-sessions/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]

	switch {
	case len(parts) == 1:
		h.handleUploadSessionInfo(w, r, id)
	case parts[1] == "images" && len(parts) == 2:
		h.handleUploadImage(w, r, id)
	case parts[1] == "images" && len(parts) == 3:
		h.handleUploadImageByIndex(w, r, id, parts[2])
	case parts[1] == "validate":
		h.handleValidate(w, r, id)
	case parts[1] == "close":
		h.handleCloseUploads(w, r, id)
	case parts[1] == "search":
		h.handleSearch(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleUploadSessionInfo(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		h.writeError(w, "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
		return
	}
	sess := h.registry.Get(id)
	if sess == nil {
		h.writeError(w, "NOT_FOUND", http.StatusNotFound)
		return
	}
	days := int(math.Ceil(time.Until(sess.RetainUntil).Hours() / 24))
	if days < 0 {
		days = 0
	}
	h.writeJSON(w, map[string]interface{}{
		"imageCount":      len(sess.Images),
		"createdAt":       sess.CreatedAt,
		"uploadExpiresAt": sess.WindowDeadline,
		"daysRemaining":   days,
	})
}

// handleUploadImage accepts a cross-device upload. Existence, token, and
// window are checked in that order: a wrong token is rejected regardless of
// window state, and missing and expired sessions look identical.
func (h *Handler) handleUploadImage(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		h.writeError(w, "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
		return
	}
	if h.registry.Get(id) == nil {
		h.writeError(w, "NOT_FOUND", http.StatusNotFound)
		return
	}
	if !h.registry.Validate(id, bearerToken(r)) {
		h.writeError(w, "INVALID_TOKEN", http.StatusUnauthorized)
		return
	}
	if !h.registry.IsWindowOpen(id) {
		h.writeError(w, "UPLOAD_WINDOW_CLOSED", http.StatusForbidden)
		return
	}

	var req struct {
		Image string `json:"image"`
		Text  string `json:"text"`
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

	index, err := h.registry.AddImage(id, payload, req.Text)
	if err != nil {
		if errors.Is(err, broker.ErrWindowClosed) {
			h.writeError(w, "UPLOAD_WINDOW_CLOSED", http.StatusForbidden)
			return
		}
		h.writeError(w, "NOT_FOUND", http.StatusNotFound)
		return
	}

	// Recognized text arrives later; the slot index was fixed at append time
	// and the write is a no-op if the session is gone by then.
	if req.Text == "" && h.queue != nil {
		h.queue.Submit(recognition.Task{
			Label: "upload:" + id + ":" + strconv.Itoa(index),
			Fetch: func() ([]byte, bool) { return payload, true },
			Commit: func(ann models.Annotation) {
				h.registry.AttachText(id, index, ann.Text)
			},
		})
	}

	h.writeJSON(w, map[string]interface{}{
		"success":    true,
		"imageCount": index + 1,
	})
}

func (h *Handler) handleUploadImageByIndex(w http.ResponseWriter, r *http.Request, id, rawIndex string) {
	if r.Method != http.MethodGet {
		h.writeError(w, "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
		return
	}
	index, err := strconv.Atoi(rawIndex)
	if err != nil {
		h.writeError(w, "INVALID_INDEX", http.StatusBadRequest)
		return
	}
	img, ok := h.registry.Image(id, index)
	if !ok {
		h.writeError(w, "NOT_FOUND", http.StatusNotFound)
		return
	}
	mime := http.DetectContentType(img.Payload)
	h.writeJSON(w, map[string]interface{}{
		"dataUrl": "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Payload),
		"addedAt": img.AddedAt,
		"index":   index,
	})
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		h.writeError(w, "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, map[string]interface{}{
		"valid":            h.registry.Validate(id, bearerToken(r)),
		"uploadWindowOpen": h.registry.IsWindowOpen(id),
	})
}

func (h *Handler) handleCloseUploads(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		h.writeError(w, "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
		return
	}
	if err := h.registry.Close(id); err != nil {
		h.writeError(w, "NOT_FOUND", http.StatusNotFound)
		return
	}
	h.writeJSON(w, map[string]interface{}{"success": true})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		h.writeError(w, "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
		return
	}
	result, err := h.registry.Search(id, r.URL.Query().Get("q"))
	if err != nil {
		if errors.Is(err, broker.ErrEmptyQuery) {
			h.writeError(w, "EMPTY_QUERY", http.StatusBadRequest)
			return
		}
		h.writeError(w, "NOT_FOUND", http.StatusNotFound)
		return
	}
	h.writeJSON(w, result)
}
