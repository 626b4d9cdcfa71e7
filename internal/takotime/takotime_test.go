package takotime

import (
	"testing"
	"time"
)

func TestMarketDateCrossesMidnightInJST(t *testing.T) {
	tests := []struct {
		utc  time.Time
		want string
	}{
		// 23:00 UTC is already 08:00 next day in JST.
		{time.Date(2026, 1, 9, 23, 0, 0, 0, time.UTC), "2026-01-10"},
		{time.Date(2026, 1, 10, 14, 59, 0, 0, time.UTC), "2026-01-10"},
		{time.Date(2026, 1, 10, 15, 0, 0, 0, time.UTC), "2026-01-11"},
	}
	for _, tt := range tests {
		if got := MarketDate(tt.utc); got != tt.want {
			t.Errorf("MarketDate(%v) = %q, want %q", tt.utc, got, tt.want)
		}
	}
}

func TestAtClock(t *testing.T) {
	got, err := AtClock("2026-01-11", "09:00")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("09:00 JST = %v, want %v", got.UTC(), want)
	}
	if _, err := AtClock("2026-01-11", "25:00"); err == nil {
		t.Error("invalid clock must fail")
	}
}

func TestUTCStringRoundTrip(t *testing.T) {
	instant := time.Date(2026, 1, 11, 0, 30, 45, 0, time.UTC)
	s := UTCString(instant.In(JST))
	if s != "2026-01-11T00:30:45" {
		t.Fatalf("UTCString = %q", s)
	}
	back, err := ParseUTC(s)
	if err != nil {
		t.Fatal(err)
	}
	if !back.Equal(instant) {
		t.Errorf("round trip = %v, want %v", back, instant)
	}
}

func TestDayFloor(t *testing.T) {
	// 23:00 UTC on the 9th is 08:00 JST on the 10th.
	got := DayFloor(time.Date(2026, 1, 9, 23, 0, 0, 0, time.UTC))
	want := time.Date(2026, 1, 10, 0, 0, 0, 0, JST)
	if !got.Equal(want) {
		t.Errorf("DayFloor = %v, want %v", got, want)
	}
}

func TestTruncateMinute(t *testing.T) {
	in := time.Date(2026, 1, 11, 0, 0, 59, 999, time.UTC)
	want := time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC)
	if got := TruncateMinute(in); !got.Equal(want) {
		t.Errorf("TruncateMinute = %v, want %v", got, want)
	}
}
