// Package store holds the client-visible habit and journal state and keeps
// it consistent with the remote persistence API.
//
// Every mutating operation follows the same optimistic protocol: snapshot
// the affected collection, apply the change locally so reads see it
// immediately, issue the remote call, then either reconcile the server's
// authoritative response into local state or restore the snapshot and
// surface the failure. Rollback always restores the full snapshot, never a
// diff, so an out-of-order completion cannot corrupt unrelated records.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sethvargo/go-retry"

	"github.com/hyperengineering/ritual/internal/remote"
	"github.com/hyperengineering/ritual/internal/stats"
	"github.com/hyperengineering/ritual/internal/types"
)

const dateLayout = "2006-01-02"

// Snapshot is the persisted image of the store's state.
type Snapshot struct {
	Habits         []types.Habit        `json:"habits"`
	JournalEntries []types.JournalEntry `json:"journalEntries"`
	CurrentDate    string               `json:"currentDate"`
}

// Persister saves and restores state snapshots across process restarts.
type Persister interface {
	// Load returns the last saved snapshot, or nil when none exists.
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Close() error
}

// Options tunes store behaviour. Zero values fall back to defaults.
type Options struct {
	// FetchAttempts bounds FetchHabits retries. Default 3.
	FetchAttempts int
	// FetchDelay is the fixed wait between fetch attempts. Default 1s.
	FetchDelay time.Duration
}

// Store is the process-wide state container. One instance per process is
// the intended usage, constructed explicitly and shared by reference.
type Store struct {
	mu             sync.Mutex
	habits         []types.Habit
	journalEntries []types.JournalEntry
	currentDate    time.Time

	client  remote.Client
	persist Persister

	fetchAttempts int
	fetchDelay    time.Duration
}

// New builds a store backed by the given remote client and persister,
// restoring the persisted snapshot when one exists. A nil persister
// disables persistence.
func New(client remote.Client, persist Persister, opts Options) (*Store, error) {
	s := &Store{
		client:        client,
		persist:       persist,
		currentDate:   time.Now().UTC().Truncate(24 * time.Hour),
		fetchAttempts: opts.FetchAttempts,
		fetchDelay:    opts.FetchDelay,
	}
	if s.fetchAttempts <= 0 {
		s.fetchAttempts = 3
	}
	if s.fetchDelay <= 0 {
		s.fetchDelay = time.Second
	}

	if persist != nil {
		snap, err := persist.Load(context.Background())
		if err != nil {
			return nil, fmt.Errorf("restore snapshot: %w", err)
		}
		if snap != nil {
			s.habits = cloneHabits(snap.Habits)
			s.journalEntries = cloneEntries(snap.JournalEntries)
			if d, err := time.Parse(dateLayout, snap.CurrentDate); err == nil {
				s.currentDate = d
			}
		}
	}
	return s, nil
}

// tempID returns a provisional client-side id for an optimistically created
// record. ULIDs are timestamp-ordered and unique per process.
func tempID() string {
	return "tmp-" + ulid.Make().String()
}

// persistLocked writes the current state through the persister. Persistence
// is best-effort: the remote API is the source of truth, so failures are
// logged and never fail the operation. Callers must hold the lock.
func (s *Store) persistLocked() {
	if s.persist == nil {
		return
	}
	snap := Snapshot{
		Habits:         cloneHabits(s.habits),
		JournalEntries: cloneEntries(s.journalEntries),
		CurrentDate:    s.currentDate.Format(dateLayout),
	}
	if err := s.persist.Save(context.Background(), snap); err != nil {
		slog.Warn("snapshot persist failed", "error", err)
	}
}

// mutate runs the optimistic-mutate / reconcile-or-rollback protocol over
// one collection. apply mutates a working copy of the collection and is
// applied synchronously before call is issued; call performs the remote
// request and may return a reconcile step that folds the server response
// into the (possibly further mutated) collection.
//
// Two overlapping mutations on the same record are serialized at the
// snapshot step by the lock, but their reconcile/rollback steps run in
// response-arrival order: the later-resolving response wins. That is the
// documented behaviour, not an oversight.
func mutate[T any](
	ctx context.Context,
	s *Store,
	op string,
	get func() []T,
	set func([]T),
	clone func([]T) []T,
	apply func([]T) []T,
	call func(context.Context) (func([]T) []T, error),
) error {
	s.mu.Lock()
	snapshot := clone(get())
	set(apply(clone(get())))
	s.mu.Unlock()

	reconcile, err := call(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		set(snapshot)
		s.persistLocked()
		slog.Error("mutation failed, state rolled back", "op", op, "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	if reconcile != nil {
		set(reconcile(get()))
	}
	s.persistLocked()
	return nil
}

func (s *Store) mutateHabits(ctx context.Context, op string,
	apply func([]types.Habit) []types.Habit,
	call func(context.Context) (func([]types.Habit) []types.Habit, error),
) error {
	return mutate(ctx, s, op,
		func() []types.Habit { return s.habits },
		func(h []types.Habit) { s.habits = h },
		cloneHabits, apply, call)
}

func (s *Store) mutateJournals(ctx context.Context, op string,
	apply func([]types.JournalEntry) []types.JournalEntry,
	call func(context.Context) (func([]types.JournalEntry) []types.JournalEntry, error),
) error {
	return mutate(ctx, s, op,
		func() []types.JournalEntry { return s.journalEntries },
		func(e []types.JournalEntry) { s.journalEntries = e },
		cloneEntries, apply, call)
}

// AddHabit optimistically appends the habit under a provisional id, creates
// it remotely, and reconciles the server-assigned record over the
// provisional one. The returned habit is the reconciled record.
func (s *Store) AddHabit(ctx context.Context, draft types.NewHabit) (types.Habit, error) {
	provisional := tempID()
	var created types.Habit

	err := s.mutateHabits(ctx, "add habit",
		func(habits []types.Habit) []types.Habit {
			return append(habits, types.Habit{
				ID:             provisional,
				Name:           draft.Name,
				Description:    draft.Description,
				Goal:           draft.Goal,
				Frequency:      draft.Frequency,
				Color:          draft.Color,
				Category:       draft.Category,
				CompletedDates: []string{},
			})
		},
		func(ctx context.Context) (func([]types.Habit) []types.Habit, error) {
			server, err := s.client.CreateHabit(ctx, draft)
			if err != nil {
				return nil, err
			}
			created = server.Clone()
			if created.CompletedDates == nil {
				created.CompletedDates = []string{}
			}
			return func(habits []types.Habit) []types.Habit {
				// The provisional id must not remain referenceable anywhere.
				for i := range habits {
					if habits[i].ID == provisional {
						habits[i] = created.Clone()
						return habits
					}
				}
				// Provisional record already gone (e.g. deleted while this
				// create was in flight); trust the server and append.
				return append(habits, created.Clone())
			}, nil
		})
	if err != nil {
		return types.Habit{}, err
	}
	return created, nil
}

// ToggleCompletion flips the presence of date in the habit's completed set.
// Applying it twice returns the set to its original state.
func (s *Store) ToggleCompletion(ctx context.Context, habitID, date string) error {
	if !s.hasHabit(habitID) {
		return fmt.Errorf("toggle completion %s: %w", habitID, ErrNotFound)
	}

	return s.mutateHabits(ctx, "toggle completion",
		func(habits []types.Habit) []types.Habit {
			for i := range habits {
				if habits[i].ID != habitID {
					continue
				}
				if habits[i].HasCompleted(date) {
					kept := make([]string, 0, len(habits[i].CompletedDates))
					for _, d := range habits[i].CompletedDates {
						if d != date {
							kept = append(kept, d)
						}
					}
					habits[i].CompletedDates = kept
				} else {
					habits[i].CompletedDates = append(habits[i].CompletedDates, date)
				}
			}
			return habits
		},
		func(ctx context.Context) (func([]types.Habit) []types.Habit, error) {
			server, err := s.client.ToggleCompletion(ctx, habitID, date)
			if err != nil {
				return nil, err
			}
			if server == nil {
				// Bare ack; the optimistic flip stands.
				return nil, nil
			}
			return func(habits []types.Habit) []types.Habit {
				return mergeHabit(habits, habitID, *server)
			}, nil
		})
}

// DeleteHabit optimistically removes the habit, restoring it if the remote
// delete fails.
func (s *Store) DeleteHabit(ctx context.Context, habitID string) error {
	if !s.hasHabit(habitID) {
		return fmt.Errorf("delete habit %s: %w", habitID, ErrNotFound)
	}

	return s.mutateHabits(ctx, "delete habit",
		func(habits []types.Habit) []types.Habit {
			kept := habits[:0]
			for _, h := range habits {
				if h.ID != habitID {
					kept = append(kept, h)
				}
			}
			return kept
		},
		func(ctx context.Context) (func([]types.Habit) []types.Habit, error) {
			return nil, s.client.DeleteHabit(ctx, habitID)
		})
}

// EditHabit applies a partial update locally, then reconciles the server's
// authoritative record over it.
func (s *Store) EditHabit(ctx context.Context, habitID string, patch types.HabitPatch) error {
	if !s.hasHabit(habitID) {
		return fmt.Errorf("edit habit %s: %w", habitID, ErrNotFound)
	}

	return s.mutateHabits(ctx, "edit habit",
		func(habits []types.Habit) []types.Habit {
			for i := range habits {
				if habits[i].ID == habitID {
					patch.Apply(&habits[i])
				}
			}
			return habits
		},
		func(ctx context.Context) (func([]types.Habit) []types.Habit, error) {
			server, err := s.client.UpdateHabit(ctx, habitID, patch)
			if err != nil {
				return nil, err
			}
			return func(habits []types.Habit) []types.Habit {
				return mergeHabit(habits, habitID, *server)
			}, nil
		})
}

// AddJournalEntry optimistically appends the entry under a provisional id
// and reconciles the server-assigned record over it.
func (s *Store) AddJournalEntry(ctx context.Context, draft types.NewJournalEntry) (types.JournalEntry, error) {
	provisional := tempID()
	var created types.JournalEntry

	err := s.mutateJournals(ctx, "add journal entry",
		func(entries []types.JournalEntry) []types.JournalEntry {
			return append(entries, types.JournalEntry{
				ID:      provisional,
				Date:    draft.Date,
				Content: draft.Content,
				Mood:    draft.Mood,
			})
		},
		func(ctx context.Context) (func([]types.JournalEntry) []types.JournalEntry, error) {
			server, err := s.client.CreateJournalEntry(ctx, draft)
			if err != nil {
				return nil, err
			}
			created = *server
			return func(entries []types.JournalEntry) []types.JournalEntry {
				for i := range entries {
					if entries[i].ID == provisional {
						entries[i] = created
						return entries
					}
				}
				return append(entries, created)
			}, nil
		})
	if err != nil {
		return types.JournalEntry{}, err
	}
	return created, nil
}

// EditJournalEntry updates content and optionally mood and saved reflection.
func (s *Store) EditJournalEntry(ctx context.Context, id, content string, mood *types.Mood, savedReflection *string) error {
	patch := types.JournalPatch{Content: &content, Mood: mood, SavedReflection: savedReflection}
	if !s.hasJournalEntry(id) {
		return fmt.Errorf("edit journal entry %s: %w", id, ErrNotFound)
	}

	return s.mutateJournals(ctx, "edit journal entry",
		func(entries []types.JournalEntry) []types.JournalEntry {
			for i := range entries {
				if entries[i].ID == id {
					patch.Apply(&entries[i])
				}
			}
			return entries
		},
		func(ctx context.Context) (func([]types.JournalEntry) []types.JournalEntry, error) {
			server, err := s.client.UpdateJournalEntry(ctx, id, patch)
			if err != nil {
				return nil, err
			}
			return func(entries []types.JournalEntry) []types.JournalEntry {
				return mergeEntry(entries, id, *server)
			}, nil
		})
}

// DeleteJournalEntry optimistically removes the entry.
func (s *Store) DeleteJournalEntry(ctx context.Context, id string) error {
	if !s.hasJournalEntry(id) {
		return fmt.Errorf("delete journal entry %s: %w", id, ErrNotFound)
	}

	return s.mutateJournals(ctx, "delete journal entry",
		func(entries []types.JournalEntry) []types.JournalEntry {
			kept := entries[:0]
			for _, e := range entries {
				if e.ID != id {
					kept = append(kept, e)
				}
			}
			return kept
		},
		func(ctx context.Context) (func([]types.JournalEntry) []types.JournalEntry, error) {
			return nil, s.client.DeleteJournalEntry(ctx, id)
		})
}

// SaveReflection persists AI-generated reflection HTML onto the entry. The
// markup is opaque to the store.
func (s *Store) SaveReflection(ctx context.Context, id, reflectionHTML string) error {
	if !s.hasJournalEntry(id) {
		return fmt.Errorf("save reflection %s: %w", id, ErrNotFound)
	}

	return s.mutateJournals(ctx, "save reflection",
		func(entries []types.JournalEntry) []types.JournalEntry {
			for i := range entries {
				if entries[i].ID == id {
					entries[i].SavedReflection = reflectionHTML
				}
			}
			return entries
		},
		func(ctx context.Context) (func([]types.JournalEntry) []types.JournalEntry, error) {
			saved, err := s.client.SaveReflection(ctx, id, reflectionHTML)
			if err != nil {
				return nil, err
			}
			return func(entries []types.JournalEntry) []types.JournalEntry {
				for i := range entries {
					if entries[i].ID == id {
						entries[i].SavedReflection = saved
					}
				}
				return entries
			}, nil
		})
}

// FetchHabits replaces the habit collection with the remote list. Unlike the
// optimistic mutations it retries transient failures (bounded attempts with
// a fixed delay); on final failure the previous collection is untouched and
// a descriptive error is returned.
func (s *Store) FetchHabits(ctx context.Context) error {
	var habits []types.Habit

	backoff := retry.WithMaxRetries(uint64(s.fetchAttempts-1), retry.NewConstant(s.fetchDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		listed, err := s.client.ListHabits(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		habits = listed
		return nil
	})
	if err != nil {
		slog.Error("fetch habits failed after retries", "attempts", s.fetchAttempts, "error", err)
		return fmt.Errorf("fetch habits: %s", describeFetchFailure(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.habits = cloneHabits(habits)
	s.persistLocked()
	return nil
}

// describeFetchFailure distinguishes timeout, server rejection, and
// no-response cases for the user-facing message.
func describeFetchFailure(err error) string {
	if remote.IsTimeout(err) {
		return "request timed out; check your connection"
	}
	if se, ok := remote.IsServerError(err); ok {
		return fmt.Sprintf("server responded with %d: %s", se.Status, se.Body)
	}
	return fmt.Sprintf("no response received from the server: %v", err)
}

// FetchJournalEntries replaces the journal collection with the remote list.
// On failure the previous collection is left untouched.
func (s *Store) FetchJournalEntries(ctx context.Context) error {
	entries, err := s.client.ListJournalEntries(ctx)
	if err != nil {
		slog.Error("fetch journal entries failed", "error", err)
		return fmt.Errorf("fetch journal entries: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.journalEntries = cloneEntries(entries)
	s.persistLocked()
	return nil
}

// CategoryGroup is one bucket of HabitsByCategory. Groups are returned in
// first-seen-category order; the empty category is a valid bucket.
type CategoryGroup struct {
	Category string        `json:"category"`
	Habits   []types.Habit `json:"habits"`
}

// HabitsByCategory groups habits by category, preserving habit order within
// each group. Every habit appears in exactly one group.
func (s *Store) HabitsByCategory() []CategoryGroup {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := make(map[string]int)
	var groups []CategoryGroup
	for _, h := range s.habits {
		i, ok := index[h.Category]
		if !ok {
			i = len(groups)
			index[h.Category] = i
			groups = append(groups, CategoryGroup{Category: h.Category})
		}
		groups[i].Habits = append(groups[i].Habits, h.Clone())
	}
	return groups
}

// Habits returns a copy of the habit collection in server/append order.
func (s *Store) Habits() []types.Habit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneHabits(s.habits)
}

// Habit returns the habit with the given id.
func (s *Store) Habit(id string) (types.Habit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.habits {
		if h.ID == id {
			return h.Clone(), true
		}
	}
	return types.Habit{}, false
}

// JournalEntry returns the entry recorded for the given date, if any. When
// duplicates exist for a date the first in collection order is returned.
func (s *Store) JournalEntry(date string) (types.JournalEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.journalEntries {
		if e.Date == date {
			return e, true
		}
	}
	return types.JournalEntry{}, false
}

// AllJournalEntries returns all entries sorted by date descending. Entries
// sharing a date keep their original relative order.
func (s *Store) AllJournalEntries() []types.JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := cloneEntries(s.journalEntries)
	// YYYY-MM-DD sorts chronologically as a string.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date > entries[j].Date
	})
	return entries
}

// HabitStats computes derived metrics for the habit over the month
// containing the current viewing date. An unknown id yields zero stats,
// not an error.
func (s *Store) HabitStats(habitID string) types.HabitStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.habits {
		if h.ID == habitID {
			return stats.Compute(h, s.currentDate)
		}
	}
	return types.HabitStats{}
}

// SetCurrentDate moves the viewing cursor. Pure state change, no network
// effect.
func (s *Store) SetCurrentDate(date time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentDate = date
	s.persistLocked()
}

// CurrentDate returns the viewing cursor.
func (s *Store) CurrentDate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentDate
}

// Counts returns the sizes of both collections.
func (s *Store) Counts() (habits, journalEntries int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.habits), len(s.journalEntries)
}

// Close releases the persister.
func (s *Store) Close() error {
	if s.persist == nil {
		return nil
	}
	return s.persist.Close()
}

func (s *Store) hasHabit(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.habits {
		if h.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) hasJournalEntry(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.journalEntries {
		if e.ID == id {
			return true
		}
	}
	return false
}

// mergeHabit folds a server-returned habit over the local record with the
// given id. Server fields win; a nil server CompletedDates keeps the local
// set (the server omitted it rather than cleared it).
func mergeHabit(habits []types.Habit, id string, server types.Habit) []types.Habit {
	for i := range habits {
		if habits[i].ID != id {
			continue
		}
		merged := server.Clone()
		if server.CompletedDates == nil {
			merged.CompletedDates = append([]string(nil), habits[i].CompletedDates...)
		}
		if merged.ID == "" {
			merged.ID = id
		}
		habits[i] = merged
	}
	return habits
}

// mergeEntry folds a server-returned journal entry over the local record.
func mergeEntry(entries []types.JournalEntry, id string, server types.JournalEntry) []types.JournalEntry {
	for i := range entries {
		if entries[i].ID != id {
			continue
		}
		if server.ID == "" {
			server.ID = id
		}
		entries[i] = server
	}
	return entries
}

func cloneHabits(habits []types.Habit) []types.Habit {
	cloned := make([]types.Habit, len(habits))
	for i, h := range habits {
		cloned[i] = h.Clone()
	}
	return cloned
}

func cloneEntries(entries []types.JournalEntry) []types.JournalEntry {
	return append([]types.JournalEntry(nil), entries...)
}
