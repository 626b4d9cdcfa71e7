// Package astro computes the length of daylight for a date and latitude.
// It uses the NOAA solar-position approximation, which is accurate to a
// couple of minutes at the latitudes the market trades in.
package astro

import (
	"math"
	"time"
)

const (
	deg = math.Pi / 180
	// Sun center 0.833 degrees below the horizon at rise and set,
	// accounting for refraction and the solar radius.
	zenith = 90.833 * deg
)

// declination returns the solar declination in radians for the fractional
// year angle gamma.
func declination(gamma float64) float64 {
	return 0.006918 -
		0.399912*math.Cos(gamma) + 0.070257*math.Sin(gamma) -
		0.006758*math.Cos(2*gamma) + 0.000907*math.Sin(2*gamma) -
		0.002697*math.Cos(3*gamma) + 0.001480*math.Sin(3*gamma)
}

// DayLength returns the hours between sunrise and sunset on the given
// calendar date at the given latitude in degrees. Polar day and night
// saturate at 24 and 0.
func DayLength(date time.Time, latitudeDeg float64) float64 {
	yearDays := 365.0
	if date.YearDay() >= 365 && isLeap(date.Year()) {
		yearDays = 366.0
	}
	gamma := 2 * math.Pi / yearDays * (float64(date.YearDay()) - 1 + 0.5)
	decl := declination(gamma)
	lat := latitudeDeg * deg

	cosHA := math.Cos(zenith)/(math.Cos(lat)*math.Cos(decl)) -
		math.Tan(lat)*math.Tan(decl)
	if cosHA <= -1 {
		return 24
	}
	if cosHA >= 1 {
		return 0
	}
	return 2 * math.Acos(cosHA) / deg / 15
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
