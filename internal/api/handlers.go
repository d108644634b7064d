package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/ritual/internal/reflect"
	"github.com/hyperengineering/ritual/internal/store"
	"github.com/hyperengineering/ritual/internal/types"
	"github.com/hyperengineering/ritual/internal/validation"
)

// Handler implements the API handlers.
type Handler struct {
	store     *store.Store
	generator reflect.Generator // nil when reflection is not configured
	version   string
}

// NewHandler creates a new Handler. generator may be nil, which disables
// the reflect endpoint.
func NewHandler(s *store.Store, g reflect.Generator, version string) *Handler {
	return &Handler{
		store:     s,
		generator: g,
		version:   version,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Health returns the health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	habits, journals := h.store.Counts()
	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:       "healthy",
		Version:      h.version,
		HabitCount:   habits,
		JournalCount: journals,
	})
}

// ListHabits handles GET /api/v1/habits. It refreshes the collection from
// the persistence API (with bounded retry) before answering.
func (h *Handler) ListHabits(w http.ResponseWriter, r *http.Request) {
	if err := h.store.FetchHabits(r.Context()); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.store.Habits())
}

// HabitsByCategory handles GET /api/v1/habits/by-category from local state.
func (h *Handler) HabitsByCategory(w http.ResponseWriter, r *http.Request) {
	groups := h.store.HabitsByCategory()
	if groups == nil {
		groups = []store.CategoryGroup{}
	}
	writeJSON(w, http.StatusOK, groups)
}

// CreateHabit handles POST /api/v1/habits.
func (h *Handler) CreateHabit(w http.ResponseWriter, r *http.Request) {
	var draft types.NewHabit
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateNewHabit(draft); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Habit contains invalid fields", errs)
		return
	}

	created, err := h.store.AddHabit(r.Context(), draft)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateHabit handles PUT /api/v1/habits/{id}.
func (h *Handler) UpdateHabit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch types.HabitPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	if patch.Name != nil {
		c.Add(validation.ValidateRequired("name", *patch.Name))
		c.Add(validation.ValidateMaxLength("name", *patch.Name, validation.MaxNameLength))
	}
	if patch.Goal != nil {
		c.Add(validation.ValidatePositive("goal", *patch.Goal))
	}
	if patch.Frequency != nil {
		c.Add(validation.ValidateFrequency("frequency", *patch.Frequency))
	}
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Habit patch contains invalid fields", c.Errors())
		return
	}

	if err := h.store.EditHabit(r.Context(), id, patch); err != nil {
		MapStoreError(w, r, err)
		return
	}
	habit, _ := h.store.Habit(id)
	writeJSON(w, http.StatusOK, habit)
}

// DeleteHabit handles DELETE /api/v1/habits/{id}.
func (h *Handler) DeleteHabit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteHabit(r.Context(), id); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.DeleteAck{Success: true})
}

// ToggleCompletion handles PUT /api/v1/habits/{id}/toggle.
func (h *Handler) ToggleCompletion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req types.ToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}
	if err := validation.ValidateDate("date", req.Date); err != nil {
		WriteProblemWithErrors(w, r, "Toggle contains invalid fields", []validation.ValidationError{*err})
		return
	}

	if err := h.store.ToggleCompletion(r.Context(), id, req.Date); err != nil {
		MapStoreError(w, r, err)
		return
	}
	habit, _ := h.store.Habit(id)
	writeJSON(w, http.StatusOK, habit)
}

// HabitStats handles GET /api/v1/habits/{id}/stats. An unknown id yields the
// zero stats tuple, mirroring the store contract.
func (h *Handler) HabitStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, h.store.HabitStats(id))
}

// ListJournalEntries handles GET /api/v1/journals. With a date query
// parameter it returns the single entry for that date; otherwise it
// refreshes from the persistence API and returns all entries sorted by date
// descending.
func (h *Handler) ListJournalEntries(w http.ResponseWriter, r *http.Request) {
	if date := r.URL.Query().Get("date"); date != "" {
		entry, ok := h.store.JournalEntry(date)
		if !ok {
			WriteProblem(w, r, http.StatusNotFound, "No journal entry for "+date)
			return
		}
		writeJSON(w, http.StatusOK, entry)
		return
	}

	if err := h.store.FetchJournalEntries(r.Context()); err != nil {
		MapStoreError(w, r, err)
		return
	}
	entries := h.store.AllJournalEntries()
	if entries == nil {
		entries = []types.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// CreateJournalEntry handles POST /api/v1/journals.
func (h *Handler) CreateJournalEntry(w http.ResponseWriter, r *http.Request) {
	var draft types.NewJournalEntry
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateNewJournalEntry(draft); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Journal entry contains invalid fields", errs)
		return
	}

	created, err := h.store.AddJournalEntry(r.Context(), draft)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// updateJournalRequest is the body of PUT /api/v1/journals/{id}.
type updateJournalRequest struct {
	Content         string      `json:"content"`
	Mood            *types.Mood `json:"mood,omitempty"`
	SavedReflection *string     `json:"savedReflection,omitempty"`
}

// UpdateJournalEntry handles PUT /api/v1/journals/{id}.
func (h *Handler) UpdateJournalEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateJournalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("content", req.Content))
	c.Add(validation.ValidateMaxLength("content", req.Content, validation.MaxContentLength))
	if req.Mood != nil {
		c.Add(validation.ValidateMood("mood", *req.Mood))
	}
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Journal entry contains invalid fields", c.Errors())
		return
	}

	if err := h.store.EditJournalEntry(r.Context(), id, req.Content, req.Mood, req.SavedReflection); err != nil {
		MapStoreError(w, r, err)
		return
	}
	entries := h.store.AllJournalEntries()
	for _, e := range entries {
		if e.ID == id {
			writeJSON(w, http.StatusOK, e)
			return
		}
	}
	WriteProblem(w, r, http.StatusNotFound, "Journal entry not found after update")
}

// DeleteJournalEntry handles DELETE /api/v1/journals/{id}.
func (h *Handler) DeleteJournalEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteJournalEntry(r.Context(), id); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.DeleteAck{Success: true})
}

// SaveReflection handles PUT /api/v1/journals/{id}/reflection.
func (h *Handler) SaveReflection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req types.ReflectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if err := h.store.SaveReflection(r.Context(), id, req.SavedReflection); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ReflectionAck{SavedReflection: req.SavedReflection})
}

// reflectRequest is the body of POST /api/v1/reflect.
type reflectRequest struct {
	Content string `json:"content"`
}

// reflectResponse is the reply of POST /api/v1/reflect.
type reflectResponse struct {
	Reflection string `json:"reflection"`
}

// Reflect handles POST /api/v1/reflect: generate (but do not persist) an
// AI reflection for the given content.
func (h *Handler) Reflect(w http.ResponseWriter, r *http.Request) {
	if h.generator == nil {
		WriteProblem(w, r, http.StatusServiceUnavailable, "Reflection generation is not configured")
		return
	}

	var req reflectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}
	if err := validation.ValidateRequired("content", req.Content); err != nil {
		WriteProblemWithErrors(w, r, "Reflect request contains invalid fields", []validation.ValidationError{*err})
		return
	}

	reflection, err := h.generator.Generate(r.Context(), req.Content)
	if err != nil {
		slog.Error("reflection generation failed", "error", err)
		WriteProblem(w, r, http.StatusBadGateway, "Failed to generate reflection")
		return
	}
	writeJSON(w, http.StatusOK, reflectResponse{Reflection: reflection})
}

// currentDateRequest is the body of PUT /api/v1/current-date.
type currentDateRequest struct {
	Date string `json:"date"`
}

// SetCurrentDate handles PUT /api/v1/current-date: move the viewing cursor
// used for statistics computation. Pure state change, no remote call.
func (h *Handler) SetCurrentDate(w http.ResponseWriter, r *http.Request) {
	var req currentDateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}
	if err := validation.ValidateDate("date", req.Date); err != nil {
		WriteProblemWithErrors(w, r, "Current date is invalid", []validation.ValidationError{*err})
		return
	}

	date, _ := time.Parse("2006-01-02", req.Date)
	h.store.SetCurrentDate(date)
	writeJSON(w, http.StatusOK, currentDateRequest{Date: req.Date})
}

// CurrentDate handles GET /api/v1/current-date.
func (h *Handler) CurrentDate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentDateRequest{
		Date: h.store.CurrentDate().Format("2006-01-02"),
	})
}
