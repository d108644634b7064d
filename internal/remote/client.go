// Package remote implements the client for the external habit/journal
// persistence API. The store talks to it exclusively through the Client
// interface so tests can substitute failures at any call site.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/hyperengineering/ritual/internal/types"
)

// Client defines the persistence API operations consumed by the store.
type Client interface {
	ListHabits(ctx context.Context) ([]types.Habit, error)
	CreateHabit(ctx context.Context, habit types.NewHabit) (*types.Habit, error)
	UpdateHabit(ctx context.Context, id string, patch types.HabitPatch) (*types.Habit, error)
	DeleteHabit(ctx context.Context, id string) error
	ToggleCompletion(ctx context.Context, id, date string) (*types.Habit, error)

	ListJournalEntries(ctx context.Context) ([]types.JournalEntry, error)
	CreateJournalEntry(ctx context.Context, entry types.NewJournalEntry) (*types.JournalEntry, error)
	UpdateJournalEntry(ctx context.Context, id string, patch types.JournalPatch) (*types.JournalEntry, error)
	DeleteJournalEntry(ctx context.Context, id string) error
	SaveReflection(ctx context.Context, id, reflectionHTML string) (string, error)
}

// ServerError is returned when the API responded with a non-2xx status.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server responded with %d: %s", e.Status, e.Body)
}

// IsServerError reports whether err carries a non-2xx API response,
// returning the typed error when it does.
func IsServerError(err error) (*ServerError, bool) {
	var se *ServerError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsTimeout reports whether err was caused by a request timeout rather than
// a refused or absent connection.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Compile-time interface check
var _ Client = (*HTTPClient)(nil)

// HTTPClient is the http implementation of Client.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient creates a client for the API rooted at baseURL
// (e.g. "http://localhost:9000/api"). The timeout applies per request.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// do issues one request and decodes a 2xx JSON response into out (when
// out is non-nil). Non-2xx responses become *ServerError.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Bounded read; error bodies are diagnostic only.
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ServerError{Status: resp.StatusCode, Body: string(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *HTTPClient) ListHabits(ctx context.Context) ([]types.Habit, error) {
	var habits []types.Habit
	if err := c.do(ctx, http.MethodGet, "/habits", nil, &habits); err != nil {
		return nil, err
	}
	return habits, nil
}

func (c *HTTPClient) CreateHabit(ctx context.Context, habit types.NewHabit) (*types.Habit, error) {
	var created types.Habit
	if err := c.do(ctx, http.MethodPost, "/habits", habit, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *HTTPClient) UpdateHabit(ctx context.Context, id string, patch types.HabitPatch) (*types.Habit, error) {
	var updated types.Habit
	if err := c.do(ctx, http.MethodPut, "/habits/"+id, patch, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *HTTPClient) DeleteHabit(ctx context.Context, id string) error {
	var ack types.DeleteAck
	return c.do(ctx, http.MethodDelete, "/habits/"+id, nil, &ack)
}

// ToggleCompletion flips the completion state of date on the server. Some
// deployments answer with the updated habit, others with a bare ack; a
// response without a habit id yields a nil habit and no error.
func (c *HTTPClient) ToggleCompletion(ctx context.Context, id, date string) (*types.Habit, error) {
	var updated types.Habit
	if err := c.do(ctx, http.MethodPut, "/habits/"+id+"/toggle", types.ToggleRequest{Date: date}, &updated); err != nil {
		return nil, err
	}
	if updated.ID == "" {
		return nil, nil
	}
	return &updated, nil
}

func (c *HTTPClient) ListJournalEntries(ctx context.Context) ([]types.JournalEntry, error) {
	var entries []types.JournalEntry
	if err := c.do(ctx, http.MethodGet, "/journals", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *HTTPClient) CreateJournalEntry(ctx context.Context, entry types.NewJournalEntry) (*types.JournalEntry, error) {
	var created types.JournalEntry
	if err := c.do(ctx, http.MethodPost, "/journals", entry, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *HTTPClient) UpdateJournalEntry(ctx context.Context, id string, patch types.JournalPatch) (*types.JournalEntry, error) {
	var updated types.JournalEntry
	if err := c.do(ctx, http.MethodPut, "/journals/"+id, patch, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *HTTPClient) DeleteJournalEntry(ctx context.Context, id string) error {
	var ack types.DeleteAck
	return c.do(ctx, http.MethodDelete, "/journals/"+id, nil, &ack)
}

func (c *HTTPClient) SaveReflection(ctx context.Context, id, reflectionHTML string) (string, error) {
	var ack types.ReflectionAck
	err := c.do(ctx, http.MethodPut, "/journals/"+id+"/reflection",
		types.ReflectionRequest{SavedReflection: reflectionHTML}, &ack)
	if err != nil {
		return "", err
	}
	return ack.SavedReflection, nil
}
