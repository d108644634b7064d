// Package stats computes derived habit metrics: completions within the
// month containing a reference date, a completion percentage, and the
// longest run of calendar-consecutive completion dates.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/hyperengineering/ritual/internal/types"
)

const dateLayout = "2006-01-02"

// Compute returns the stats tuple for a habit relative to ref.
//
// The period window is the calendar month containing ref, inclusive of both
// ends. The denominator is a fixed lookup on frequency: daily uses the number
// of days in that month, weekly is always 4, monthly is always 1. The streak
// is the longest run of consecutive days anywhere in CompletedDates, not just
// the trailing run.
//
// Compute is pure: identical inputs always produce identical output, and
// nothing reads the wall clock.
func Compute(habit types.Habit, ref time.Time) types.HabitStats {
	startOfMonth := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	endOfMonth := startOfMonth.AddDate(0, 1, -1)

	completed := 0
	for _, raw := range habit.CompletedDates {
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			// Malformed dates never fall inside the window.
			continue
		}
		if !d.Before(startOfMonth) && !d.After(endOfMonth) {
			completed++
		}
	}

	total := totalForFrequency(habit.Frequency, endOfMonth.Day())

	percentage := 0
	if total > 0 {
		percentage = int(math.Round(float64(completed) / float64(total) * 100))
	}

	return types.HabitStats{
		Completed:  completed,
		Total:      total,
		Percentage: percentage,
		Streak:     LongestStreak(habit.CompletedDates),
	}
}

// totalForFrequency selects the period denominator. Weekly and monthly are
// fixed constants, matching the product definition rather than the number of
// weeks actually in the month.
func totalForFrequency(f types.Frequency, daysInMonth int) int {
	switch f {
	case types.FrequencyDaily:
		return daysInMonth
	case types.FrequencyWeekly:
		return 4
	case types.FrequencyMonthly:
		return 1
	default:
		return 0
	}
}

// LongestStreak returns the length of the longest maximal run of
// calendar-consecutive dates in the set. Duplicates are collapsed,
// unparseable dates are skipped, and an empty set yields 0.
func LongestStreak(dates []string) int {
	parsed := make([]time.Time, 0, len(dates))
	seen := make(map[string]struct{}, len(dates))
	for _, raw := range dates {
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			continue
		}
		parsed = append(parsed, d)
	}
	if len(parsed) == 0 {
		return 0
	}

	// Walk newest-to-oldest; a run extends whenever the previous date is
	// exactly one day after the current one.
	sort.Slice(parsed, func(i, j int) bool { return parsed[i].After(parsed[j]) })

	longest := 0
	current := 0
	var previous time.Time
	for i, d := range parsed {
		if i == 0 || previous.Sub(d) == 24*time.Hour {
			current++
		} else {
			if current > longest {
				longest = current
			}
			current = 1
		}
		previous = d
	}
	if current > longest {
		longest = current
	}
	return longest
}
