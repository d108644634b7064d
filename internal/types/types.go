package types

import (
	"encoding/json"
)

// Frequency determines the denominator used when computing a habit's
// completion percentage.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Mood classifies how the author felt when writing a journal entry.
type Mood string

const (
	MoodGreat    Mood = "great"
	MoodGood     Mood = "good"
	MoodNeutral  Mood = "neutral"
	MoodBad      Mood = "bad"
	MoodTerrible Mood = "terrible"
)

// Habit represents a user-defined recurring activity tracked by completion dates.
type Habit struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Goal        int       `json:"goal"`
	Frequency   Frequency `json:"frequency"`
	Color       string    `json:"color"`
	Category    string    `json:"category"`

	// CompletedDates holds YYYY-MM-DD calendar dates, each present at most
	// once. Order is not significant.
	CompletedDates []string `json:"completedDates"`
}

// Clone returns a deep copy of the habit. CompletedDates is copied so the
// clone can be mutated without aliasing the original.
func (h Habit) Clone() Habit {
	c := h
	c.CompletedDates = append([]string(nil), h.CompletedDates...)
	return c
}

// HasCompleted reports whether date is present in CompletedDates.
func (h Habit) HasCompleted(date string) bool {
	for _, d := range h.CompletedDates {
		if d == date {
			return true
		}
	}
	return false
}

// NewHabit is the input type for creating habits (without generated fields).
type NewHabit struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Goal        int       `json:"goal"`
	Frequency   Frequency `json:"frequency"`
	Color       string    `json:"color"`
	Category    string    `json:"category"`
}

// HabitPatch carries a partial habit update. Nil fields are left unchanged
// when the patch is applied.
type HabitPatch struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Goal        *int       `json:"goal,omitempty"`
	Frequency   *Frequency `json:"frequency,omitempty"`
	Color       *string    `json:"color,omitempty"`
	Category    *string    `json:"category,omitempty"`
}

// Apply merges the patch into the habit field-by-field.
func (p HabitPatch) Apply(h *Habit) {
	if p.Name != nil {
		h.Name = *p.Name
	}
	if p.Description != nil {
		h.Description = *p.Description
	}
	if p.Goal != nil {
		h.Goal = *p.Goal
	}
	if p.Frequency != nil {
		h.Frequency = *p.Frequency
	}
	if p.Color != nil {
		h.Color = *p.Color
	}
	if p.Category != nil {
		h.Category = *p.Category
	}
}

// JournalEntry represents a dated free-text journal record.
type JournalEntry struct {
	ID      string `json:"id"`
	Date    string `json:"date"`
	Content string `json:"content"`
	Mood    Mood   `json:"mood,omitempty"`

	// SavedReflection is AI-generated HTML the user chose to persist.
	// It is opaque markup; the store never parses it.
	SavedReflection string `json:"savedReflection,omitempty"`
}

// NewJournalEntry is the input type for creating journal entries.
type NewJournalEntry struct {
	Date    string `json:"date"`
	Content string `json:"content"`
	Mood    Mood   `json:"mood,omitempty"`
}

// JournalPatch carries a partial journal-entry update.
type JournalPatch struct {
	Content         *string `json:"content,omitempty"`
	Mood            *Mood   `json:"mood,omitempty"`
	SavedReflection *string `json:"savedReflection,omitempty"`
}

// Apply merges the patch into the entry field-by-field.
func (p JournalPatch) Apply(e *JournalEntry) {
	if p.Content != nil {
		e.Content = *p.Content
	}
	if p.Mood != nil {
		e.Mood = *p.Mood
	}
	if p.SavedReflection != nil {
		e.SavedReflection = *p.SavedReflection
	}
}

// HabitStats is the derived-metrics tuple for one habit over the month
// containing the reference date.
type HabitStats struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
	Streak     int `json:"streak"`
}

// ToggleRequest is the body of PUT /habits/{id}/toggle.
type ToggleRequest struct {
	Date string `json:"date"`
}

// DeleteAck is the remote API's acknowledgment of a delete.
type DeleteAck struct {
	Success bool `json:"success"`
}

// ReflectionRequest is the body of PUT /journals/{id}/reflection.
type ReflectionRequest struct {
	SavedReflection string `json:"savedReflection"`
}

// ReflectionAck is the remote API's acknowledgment of a saved reflection.
type ReflectionAck struct {
	SavedReflection string `json:"savedReflection"`
}

// HealthResponse is the service health check payload.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	HabitCount   int    `json:"habit_count"`
	JournalCount int    `json:"journal_count"`
}

// MarshalJSON ensures a nil CompletedDates marshals as [] not null.
func (h Habit) MarshalJSON() ([]byte, error) {
	if h.CompletedDates == nil {
		h.CompletedDates = []string{}
	}
	type Alias Habit
	return json.Marshal(Alias(h))
}
