// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the synchronization facade.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/event-registry/internal/codec"
	"github.com/Shivanand-hulikatti/event-registry/internal/model"
	"github.com/Shivanand-hulikatti/event-registry/internal/service"
)

// EventHandler holds all HTTP handlers for the registry API.
type EventHandler struct {
	svc      *service.SyncService
	recorder *service.Recorder
	logger   *logrus.Logger
}

// NewEventHandler constructs an EventHandler. recorder may be nil, in which
// case /notifications returns an empty list.
func NewEventHandler(svc *service.SyncService, recorder *service.Recorder, logger *logrus.Logger) *EventHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &EventHandler{svc: svc, recorder: recorder, logger: logger}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var codecErr *codec.Error
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrDuplicateEvent),
		errors.Is(err, model.ErrDuplicateUser),
		errors.Is(err, model.ErrCapacityExceeded),
		errors.Is(err, model.ErrAlreadyEnrolled):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidEvent),
		errors.Is(err, model.ErrInvalidUser),
		errors.Is(err, model.ErrWrongKind):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNoStorage):
		return http.StatusServiceUnavailable
	case errors.As(err, &codecErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *EventHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

// ─── Events ───────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.svc.CreateEvent(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, event.View())
}

// ListEvents handles GET /events, optionally filtered by ?location=.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if loc := r.URL.Query().Get("location"); loc != "" {
		writeJSON(w, http.StatusOK, h.svc.SearchByLocation(loc))
		return
	}
	writeJSON(w, http.StatusOK, h.svc.ListEvents())
}

// UpcomingEvents handles GET /events/upcoming
func (h *EventHandler) UpcomingEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.UpcomingEvents())
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.FindEvent(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event.View())
}

// DescribeEvent handles GET /events/{id}/summary with the plain-text summary.
func (h *EventHandler) DescribeEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.FindEvent(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(event.Describe()))
}

// DeleteEvent handles DELETE /events/{id}
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveEventWithSync(chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CancelEvent handles POST /events/{id}/cancel
func (h *EventHandler) CancelEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CancelEvent(chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// Enroll handles POST /events/{id}/participants
func (h *EventHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req model.EnrollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	p, err := h.svc.Enroll(chi.URLParam(r, "id"), model.Participant{ID: req.ID, Name: req.Name, Email: req.Email})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// Withdraw handles DELETE /events/{id}/participants/{pid}
func (h *EventHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Withdraw(chi.URLParam(r, "id"), chi.URLParam(r, "pid")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Accounts ─────────────────────────────────────────────────────────────────

// RegisterUser handles POST /users
func (h *EventHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req model.User
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	u, err := h.svc.RegisterUser(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// ListUsers handles GET /users
func (h *EventHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Users())
}

// ─── System ───────────────────────────────────────────────────────────────────

// Stats handles GET /stats
func (h *EventHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.GetSystemStats())
}

// Notifications handles GET /notifications with the recent change messages.
func (h *EventHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	msgs := []string{}
	if h.recorder != nil {
		msgs = h.recorder.Messages()
	}
	writeJSON(w, http.StatusOK, msgs)
}

// Save handles POST /admin/save
func (h *EventHandler) Save(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Save(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

type loadResponse struct {
	Events codec.Report `json:"events"`
	Users  codec.Report `json:"users"`
}

// Load handles POST /admin/load
func (h *EventHandler) Load(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Load(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loadResponse{Events: res.Events, Users: res.Users})
}

// Restore handles POST /admin/restore from the snapshot mirror.
func (h *EventHandler) Restore(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.RestoreFromSnapshots(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loadResponse{Events: res.Events, Users: res.Users})
}

// Export handles POST /admin/export?format=xml
func (h *EventHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := codec.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	paths, err := h.svc.Export(r.Context(), format)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paths)
}

// ReloadDemo handles POST /admin/demo
func (h *EventHandler) ReloadDemo(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ReloadDemoData(); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.GetSystemStats())
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
