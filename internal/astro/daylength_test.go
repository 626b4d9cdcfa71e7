package astro

import (
	"math"
	"testing"
	"time"
)

func TestDayLength(t *testing.T) {
	// Published sunrise/sunset times for Japanese cities.
	tests := []struct {
		city     string
		latitude float64
		date     string
		rising   string
		setting  string
	}{
		{"Naha", 26.2167, "2022-07-01", "05:40", "19:26"},
		{"Kochi", 33.5500, "2022-06-01", "04:57", "19:11"},
		{"Tottori", 35.5000, "2022-05-01", "05:12", "18:49"},
		{"Osaka", 34.6833, "2022-04-01", "05:46", "18:19"},
		{"Shizuoka", 34.9667, "2022-03-01", "06:16", "17:42"},
		{"Ogasawara", 27.0833, "2022-02-01", "06:17", "17:13"},
		{"Sendai", 38.2667, "2022-01-01", "06:53", "16:27"},
		{"Sapporo", 43.0667, "2021-12-01", "06:46", "16:01"},
	}
	const maxErrorHours = 0.05

	for _, tt := range tests {
		t.Run(tt.city, func(t *testing.T) {
			date, err := time.Parse("2006-01-02", tt.date)
			if err != nil {
				t.Fatal(err)
			}
			rise, err := time.Parse("2006-01-02T15:04", tt.date+"T"+tt.rising)
			if err != nil {
				t.Fatal(err)
			}
			set, err := time.Parse("2006-01-02T15:04", tt.date+"T"+tt.setting)
			if err != nil {
				t.Fatal(err)
			}
			want := set.Sub(rise).Hours()

			got := DayLength(date, tt.latitude)
			if math.Abs(got-want) > maxErrorHours {
				t.Errorf("day length = %.3fh, want %.3fh +/- %.2fh", got, want, maxErrorHours)
			}
		})
	}
}

func TestDayLengthPolarSaturation(t *testing.T) {
	midsummer := time.Date(2022, 6, 21, 0, 0, 0, 0, time.UTC)
	if got := DayLength(midsummer, 85); got != 24 {
		t.Errorf("polar day = %v, want 24", got)
	}
	if got := DayLength(midsummer, -85); got != 0 {
		t.Errorf("polar night = %v, want 0", got)
	}
}
