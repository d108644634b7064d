package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hyperengineering/ritual/internal/types"
)

// MaxNameLength bounds habit names.
const MaxNameLength = 120

// MaxContentLength bounds journal entry content.
const MaxContentLength = 20000

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// ValidateUTF8 returns an error if the value is not valid UTF-8.
func ValidateUTF8(field, value string) *ValidationError {
	if !utf8.ValidString(value) {
		return &ValidationError{
			Field:   field,
			Message: "must be valid UTF-8",
		}
	}
	return nil
}

// ValidateNoNullBytes returns an error if the value contains null bytes.
func ValidateNoNullBytes(field, value string) *ValidationError {
	if strings.Contains(value, "\x00") {
		return &ValidationError{
			Field:   field,
			Message: "must not contain null bytes",
		}
	}
	return nil
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", max),
		}
	}
	return nil
}

// ValidateRequired returns an error if the value is empty or whitespace.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   field,
			Message: "is required",
		}
	}
	return nil
}

// ValidateDate returns an error if the value is not a real calendar date in
// YYYY-MM-DD form.
func ValidateDate(field, value string) *ValidationError {
	if _, err := time.Parse("2006-01-02", value); err != nil {
		return &ValidationError{
			Field:   field,
			Message: "must be a calendar date in YYYY-MM-DD format",
		}
	}
	return nil
}

// ValidateFrequency returns an error if the value is not a known frequency.
func ValidateFrequency(field string, value types.Frequency) *ValidationError {
	switch value {
	case types.FrequencyDaily, types.FrequencyWeekly, types.FrequencyMonthly:
		return nil
	}
	return &ValidationError{
		Field:   field,
		Message: "must be one of: daily, weekly, monthly",
	}
}

// ValidateMood returns an error if the value is not a known mood.
// Empty is allowed; mood is optional.
func ValidateMood(field string, value types.Mood) *ValidationError {
	switch value {
	case "", types.MoodGreat, types.MoodGood, types.MoodNeutral, types.MoodBad, types.MoodTerrible:
		return nil
	}
	return &ValidationError{
		Field:   field,
		Message: "must be one of: great, good, neutral, bad, terrible",
	}
}

// ValidatePositive returns an error if the value is not a positive integer.
func ValidatePositive(field string, value int) *ValidationError {
	if value <= 0 {
		return &ValidationError{
			Field:   field,
			Message: "must be a positive integer",
		}
	}
	return nil
}

// ValidateNewHabit validates a habit creation payload.
func ValidateNewHabit(h types.NewHabit) []ValidationError {
	var c Collector
	c.Add(ValidateRequired("name", h.Name))
	c.Add(ValidateUTF8("name", h.Name))
	c.Add(ValidateNoNullBytes("name", h.Name))
	c.Add(ValidateMaxLength("name", h.Name, MaxNameLength))
	c.Add(ValidateUTF8("description", h.Description))
	c.Add(ValidateNoNullBytes("description", h.Description))
	c.Add(ValidatePositive("goal", h.Goal))
	c.Add(ValidateFrequency("frequency", h.Frequency))
	return c.Errors()
}

// ValidateNewJournalEntry validates a journal-entry creation payload.
func ValidateNewJournalEntry(e types.NewJournalEntry) []ValidationError {
	var c Collector
	c.Add(ValidateDate("date", e.Date))
	c.Add(ValidateRequired("content", e.Content))
	c.Add(ValidateUTF8("content", e.Content))
	c.Add(ValidateNoNullBytes("content", e.Content))
	c.Add(ValidateMaxLength("content", e.Content, MaxContentLength))
	c.Add(ValidateMood("mood", e.Mood))
	return c.Errors()
}
