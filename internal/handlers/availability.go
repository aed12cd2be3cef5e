package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/khidmaapp/availability/internal/exceptions"
	"github.com/khidmaapp/availability/internal/publish"
	"github.com/khidmaapp/availability/internal/schedule"
	"github.com/khidmaapp/availability/internal/storage"
)

type Handler struct {
	repo       *storage.Repository
	publishSvc *publish.Service
	runs       *publish.Repository
	logger     *slog.Logger
}

func New(repo *storage.Repository, publishSvc *publish.Service, runs *publish.Repository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:       repo,
		publishSvc: publishSvc,
		runs:       runs,
		logger:     logger,
	}
}

func listingID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Listing-Id"))
}

func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getSchedule(w, r)
	case http.MethodPut:
		h.putSchedule(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) getSchedule(w http.ResponseWriter, r *http.Request) {
	id := listingID(r)
	if id == "" {
		http.Error(w, "missing listing context", http.StatusBadRequest)
		return
	}

	rec, err := h.repo.GetSchedule(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "schedule not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"listingId": rec.ListingID,
		"weekly":    rec.Weekly,
		"timezone":  rec.Timezone,
		"updatedAt": rec.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

type putScheduleRequest struct {
	Weekly   schedule.Weekly `json:"weekly"`
	Timezone string          `json:"timezone"`
}

func (h *Handler) putSchedule(w http.ResponseWriter, r *http.Request) {
	id := listingID(r)
	if id == "" {
		http.Error(w, "missing listing context", http.StatusBadRequest)
		return
	}

	var req putScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.Weekly == nil {
		http.Error(w, "weekly is required", http.StatusBadRequest)
		return
	}
	if err := schedule.Validate(req.Weekly); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			http.Error(w, "invalid timezone", http.StatusBadRequest)
			return
		}
	}

	if err := h.repo.ReplaceSchedule(r.Context(), id, req.Weekly, req.Timezone); err != nil {
		http.Error(w, "failed to save schedule", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type dayRequest struct {
	Day string `json:"day"`
}

func (h *Handler) ToggleDay(w http.ResponseWriter, r *http.Request) {
	h.mutateSchedule(w, r, func(weekly schedule.Weekly, body []byte) (schedule.Weekly, error) {
		var req dayRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, errBadRequest("invalid json body")
		}
		return schedule.ToggleDay(weekly, strings.TrimSpace(req.Day))
	})
}

func (h *Handler) AddSlot(w http.ResponseWriter, r *http.Request) {
	h.mutateSchedule(w, r, func(weekly schedule.Weekly, body []byte) (schedule.Weekly, error) {
		var req dayRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, errBadRequest("invalid json body")
		}
		return schedule.AddSlot(weekly, strings.TrimSpace(req.Day))
	})
}

type updateSlotRequest struct {
	Day   string `json:"day"`
	Index int    `json:"index"`
	Field string `json:"field"`
	Value string `json:"value"`
}

func (h *Handler) UpdateSlot(w http.ResponseWriter, r *http.Request) {
	h.mutateSchedule(w, r, func(weekly schedule.Weekly, body []byte) (schedule.Weekly, error) {
		var req updateSlotRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, errBadRequest("invalid json body")
		}
		return schedule.UpdateSlot(weekly, strings.TrimSpace(req.Day), req.Index, schedule.SlotField(req.Field), strings.TrimSpace(req.Value))
	})
}

type removeSlotRequest struct {
	Day   string `json:"day"`
	Index int    `json:"index"`
}

func (h *Handler) RemoveSlot(w http.ResponseWriter, r *http.Request) {
	h.mutateSchedule(w, r, func(weekly schedule.Weekly, body []byte) (schedule.Weekly, error) {
		var req removeSlotRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, errBadRequest("invalid json body")
		}
		return schedule.RemoveSlot(weekly, strings.TrimSpace(req.Day), req.Index)
	})
}

type mutateFunc func(weekly schedule.Weekly, body []byte) (schedule.Weekly, error)

// mutateSchedule loads the draft, applies one editor operation and saves
// the result. Editor operations may leave the draft in a state Validate
// would reject (an inverted slot mid-edit); validation happens on PUT and
// on publish, not here.
func (h *Handler) mutateSchedule(w http.ResponseWriter, r *http.Request, fn mutateFunc) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := listingID(r)
	if id == "" {
		http.Error(w, "missing listing context", http.StatusBadRequest)
		return
	}

	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	rec, err := h.repo.GetSchedule(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "schedule not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}

	next, err := fn(rec.Weekly, body)
	if err != nil {
		var badReq badRequestError
		if errors.As(err, &badReq) {
			http.Error(w, badReq.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if err := h.repo.ReplaceSchedule(r.Context(), id, next, rec.Timezone); err != nil {
		http.Error(w, "failed to save schedule", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"weekly": next})
}

func (h *Handler) Exceptions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listExceptions(w, r)
	case http.MethodPost:
		h.createException(w, r)
	case http.MethodDelete:
		h.deleteException(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) listExceptions(w http.ResponseWriter, r *http.Request) {
	id := listingID(r)
	if id == "" {
		http.Error(w, "missing listing context", http.StatusBadRequest)
		return
	}
	list, err := h.repo.ListExceptions(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to load exceptions", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []exceptions.Exception{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"exceptions": list})
}

type createExceptionRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Available bool   `json:"available"`
}

func (h *Handler) createException(w http.ResponseWriter, r *http.Request) {
	id := listingID(r)
	if id == "" {
		http.Error(w, "missing listing context", http.StatusBadRequest)
		return
	}

	var req createExceptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	exc := exceptions.Exception{
		StartDate: strings.TrimSpace(req.StartDate),
		EndDate:   strings.TrimSpace(req.EndDate),
		Available: req.Available,
	}
	if err := exc.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	end, err := exceptions.ParseDate(exc.EndDate)
	if err != nil {
		http.Error(w, "invalid end date", http.StatusBadRequest)
		return
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if end.Before(today) {
		http.Error(w, "exception is entirely in the past", http.StatusUnprocessableEntity)
		return
	}

	existing, err := h.repo.ListExceptions(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to load exceptions", http.StatusInternalServerError)
		return
	}
	for _, other := range existing {
		if exc.Overlaps(other) {
			http.Error(w, "exception overlaps an existing one", http.StatusConflict)
			return
		}
	}

	list, err := exceptions.Add(existing, exc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	created := list[len(list)-1]

	if err := h.repo.InsertException(r.Context(), id, created); err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "exception already exists", http.StatusConflict)
			return
		}
		http.Error(w, "failed to save exception", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) deleteException(w http.ResponseWriter, r *http.Request) {
	id := listingID(r)
	if id == "" {
		http.Error(w, "missing listing context", http.StatusBadRequest)
		return
	}
	excID := strings.TrimSpace(r.URL.Query().Get("id"))
	if excID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	removed, err := h.repo.DeleteException(r.Context(), id, excID)
	if err != nil {
		http.Error(w, "failed to delete exception", http.StatusInternalServerError)
		return
	}
	if !removed {
		http.Error(w, "exception not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// DisabledDates returns the dates a date picker must grey out: the 365
// days before today plus every date covered by an existing exception.
func (h *Handler) DisabledDates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := listingID(r)
	if id == "" {
		http.Error(w, "missing listing context", http.StatusBadRequest)
		return
	}

	list, err := h.repo.ListExceptions(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to load exceptions", http.StatusInternalServerError)
		return
	}

	set := exceptions.DisabledDates(list, time.Now().UTC())
	dates := make([]string, 0, len(set))
	for d := range set {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	writeJSON(w, http.StatusOK, map[string]any{"disabledDates": dates})
}

// PublicAvailability answers whether a listing accepts bookings on one
// date, from the draft state. It is registered on the public mux behind
// the rate limiter, not on the provider mux.
func (h *Handler) PublicAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("listing_id"))
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if id == "" || date == "" {
		http.Error(w, "listing_id and date are required", http.StatusBadRequest)
		return
	}

	rec, err := h.repo.GetSchedule(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "listing not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}
	list, err := h.repo.ListExceptions(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to load exceptions", http.StatusInternalServerError)
		return
	}

	available, err := exceptions.IsDayAvailable(rec.Weekly, list, date)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"listingId": id,
		"date":      date,
		"available": available,
	})
}

func (h *Handler) StartPublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := listingID(r)
	if id == "" {
		http.Error(w, "missing listing context", http.StatusBadRequest)
		return
	}

	res, err := h.publishSvc.StartRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, publish.ErrRunInFlight) {
			http.Error(w, "a publish run is already in flight", http.StatusConflict)
			return
		}
		if storage.IsNotFound(err) {
			http.Error(w, "schedule not found", http.StatusNotFound)
			return
		}
		h.logger.Error("publish start failed", "err", err, "listing_id", id)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func (h *Handler) PublishRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := listingID(r)
	if id == "" {
		http.Error(w, "missing listing context", http.StatusBadRequest)
		return
	}

	runs, err := h.runs.ListByListing(r.Context(), id, 20)
	if err != nil {
		http.Error(w, "failed to load publish runs", http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		entry := map[string]any{
			"runId":     run.ID,
			"status":    run.Status,
			"steps":     run.Steps,
			"attempts":  run.Attempts,
			"createdAt": run.CreatedAt.UTC().Format(time.RFC3339),
			"updatedAt": run.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if run.LastError != "" {
			entry["lastError"] = run.LastError
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

type badRequestError string

func (e badRequestError) Error() string { return string(e) }

func errBadRequest(msg string) error { return badRequestError(msg) }

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
