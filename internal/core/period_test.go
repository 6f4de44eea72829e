package core

import (
	"testing"
	"time"
)

func TestPeriodWindow(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		period    BudgetPeriod
		wantStart time.Time
		wantErr   bool
	}{
		{
			name:      "weekly is last seven days",
			period:    Weekly,
			wantStart: time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC),
		},
		{
			name:      "monthly is last calendar month",
			period:    Monthly,
			wantStart: time.Date(2024, 2, 15, 12, 0, 0, 0, time.UTC),
		},
		{
			name:      "yearly is last calendar year",
			period:    Yearly,
			wantStart: time.Date(2023, 3, 15, 12, 0, 0, 0, time.UTC),
		},
		{
			name:    "unknown period",
			period:  "daily",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			win, err := PeriodWindow(tt.period, now)
			if tt.wantErr {
				if err == nil {
					t.Fatal("PeriodWindow() expected error")
				}
				if !IsValidation(err) {
					t.Errorf("PeriodWindow() error = %T, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("PeriodWindow() unexpected error: %v", err)
			}
			if !win.Start.Equal(tt.wantStart) {
				t.Errorf("Start = %v, want %v", win.Start, tt.wantStart)
			}
			if !win.End.Equal(now) {
				t.Errorf("End = %v, want %v", win.End, now)
			}
		})
	}
}

func TestWindow_Contains(t *testing.T) {
	win := Window{
		Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC),
	}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"start boundary included", win.Start, true},
		{"end boundary included", win.End, true},
		{"inside", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"just before start", win.Start.Add(-time.Nanosecond), false},
		{"just after end", win.End.Add(time.Nanosecond), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := win.Contains(tt.at); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestMonthRange(t *testing.T) {
	win := MonthRange(2024, time.February, time.UTC)

	wantStart := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if !win.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", win.Start, wantStart)
	}
	// 2024 is a leap year; the window must end just before March 1st.
	wantEnd := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
	if !win.End.Equal(wantEnd) {
		t.Errorf("End = %v, want %v", win.End, wantEnd)
	}
	if !win.Contains(time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC)) {
		t.Error("Contains() = false for leap day")
	}
}
