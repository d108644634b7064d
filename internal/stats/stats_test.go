package stats

import (
	"testing"
	"time"

	"github.com/hyperengineering/ritual/internal/types"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

func TestCompute_EmptyCompletedDates(t *testing.T) {
	h := types.Habit{Frequency: types.FrequencyDaily}

	got := Compute(h, date(t, "2024-02-15"))

	if got.Completed != 0 {
		t.Errorf("completed = %d, want 0", got.Completed)
	}
	if got.Streak != 0 {
		t.Errorf("streak = %d, want 0", got.Streak)
	}
	if got.Percentage != 0 {
		t.Errorf("percentage = %d, want 0", got.Percentage)
	}
}

func TestCompute_LeapFebruaryDaily(t *testing.T) {
	// February 2024 has 29 days.
	h := types.Habit{
		Frequency:      types.FrequencyDaily,
		CompletedDates: []string{"2024-02-01", "2024-02-02"},
	}

	got := Compute(h, date(t, "2024-02-15"))

	want := types.HabitStats{Completed: 2, Total: 29, Percentage: 7, Streak: 2}
	if got != want {
		t.Errorf("Compute = %+v, want %+v", got, want)
	}
}

func TestCompute_FrequencyDenominators(t *testing.T) {
	tests := []struct {
		name      string
		frequency types.Frequency
		total     int
	}{
		{"daily uses days in month", types.FrequencyDaily, 31},
		{"weekly is constant 4", types.FrequencyWeekly, 4},
		{"monthly is constant 1", types.FrequencyMonthly, 1},
		{"unknown frequency yields 0", types.Frequency("yearly"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := types.Habit{Frequency: tt.frequency}
			got := Compute(h, date(t, "2024-01-10"))
			if got.Total != tt.total {
				t.Errorf("total = %d, want %d", got.Total, tt.total)
			}
			// total == 0 must not produce a bogus percentage
			if got.Percentage != 0 {
				t.Errorf("percentage = %d, want 0 with no completions", got.Percentage)
			}
		})
	}
}

func TestCompute_CompletedCountsOnlyReferenceMonth(t *testing.T) {
	h := types.Habit{
		Frequency: types.FrequencyMonthly,
		CompletedDates: []string{
			"2024-01-31", // before window
			"2024-02-01", // window start
			"2024-02-29", // window end
			"2024-03-01", // after window
		},
	}

	got := Compute(h, date(t, "2024-02-10"))

	if got.Completed != 2 {
		t.Errorf("completed = %d, want 2", got.Completed)
	}
	if got.Percentage != 200 {
		t.Errorf("percentage = %d, want 200", got.Percentage)
	}
}

func TestCompute_PercentageRounds(t *testing.T) {
	// 1 of 31 days = 3.2% -> 3; 16 of 31 = 51.6% -> 52.
	h := types.Habit{Frequency: types.FrequencyDaily, CompletedDates: []string{"2024-01-01"}}
	if got := Compute(h, date(t, "2024-01-15")); got.Percentage != 3 {
		t.Errorf("percentage = %d, want 3", got.Percentage)
	}

	var dates []string
	for day := 1; day <= 16; day++ {
		dates = append(dates, time.Date(2024, time.January, day, 0, 0, 0, 0, time.UTC).Format("2006-01-02"))
	}
	h = types.Habit{Frequency: types.FrequencyDaily, CompletedDates: dates}
	if got := Compute(h, date(t, "2024-01-15")); got.Percentage != 52 {
		t.Errorf("percentage = %d, want 52", got.Percentage)
	}
}

func TestCompute_SkipsMalformedDates(t *testing.T) {
	h := types.Habit{
		Frequency:      types.FrequencyDaily,
		CompletedDates: []string{"not-a-date", "2024-01-05"},
	}

	got := Compute(h, date(t, "2024-01-15"))

	if got.Completed != 1 {
		t.Errorf("completed = %d, want 1", got.Completed)
	}
	if got.Streak != 1 {
		t.Errorf("streak = %d, want 1", got.Streak)
	}
}

func TestLongestStreak(t *testing.T) {
	tests := []struct {
		name  string
		dates []string
		want  int
	}{
		{"empty", nil, 0},
		{"single date", []string{"2024-01-01"}, 1},
		{
			"longest run is not the trailing run",
			[]string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-10"},
			3,
		},
		{
			"run at the end",
			[]string{"2024-01-01", "2024-01-08", "2024-01-09", "2024-01-10", "2024-01-11"},
			4,
		},
		{
			"unsorted input",
			[]string{"2024-01-03", "2024-01-01", "2024-01-02"},
			3,
		},
		{
			"duplicates do not inflate",
			[]string{"2024-01-01", "2024-01-01", "2024-01-02"},
			2,
		},
		{
			"across month boundary",
			[]string{"2024-01-31", "2024-02-01", "2024-02-02"},
			3,
		},
		{
			"across leap day",
			[]string{"2024-02-28", "2024-02-29", "2024-03-01"},
			3,
		},
		{
			"all gaps",
			[]string{"2024-01-01", "2024-01-05", "2024-01-09"},
			1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LongestStreak(tt.dates); got != tt.want {
				t.Errorf("LongestStreak(%v) = %d, want %d", tt.dates, got, tt.want)
			}
		})
	}
}

func TestCompute_Deterministic(t *testing.T) {
	h := types.Habit{
		Frequency:      types.FrequencyDaily,
		CompletedDates: []string{"2024-03-04", "2024-03-05", "2024-03-09"},
	}
	ref := date(t, "2024-03-20")

	first := Compute(h, ref)
	for i := 0; i < 10; i++ {
		if got := Compute(h, ref); got != first {
			t.Fatalf("Compute not deterministic: %+v vs %+v", got, first)
		}
	}
}
