// Package weather turns observed weather into the day's takoyaki demand.
// Observations and forecasts come from a JSON-over-HTTP weather service;
// the demand curve itself is pure arithmetic over sunshine and rainfall.
package weather

// Weather labels recorded on a settled market.
const (
	LabelSunny  = "sunny"
	LabelCloudy = "cloudy"
	LabelRainy  = "rainy"
)

// Observation is one day's weather at a station, plus the astronomical
// day length used to normalize it.
type Observation struct {
	SunshineHours  float64
	RainfallMM     float64
	DayLengthHours float64
}

// SalesParams shapes the demand curve. Sales start from the cloudy base;
// full sunshine adds the sunny bonus, saturating rain subtracts the rainy
// penalty.
type SalesParams struct {
	BaseCloudy   float64
	BonusSunny   float64
	PenaltyRainy float64
	// CorrectionHours shortens the day length before computing the
	// sunshine ratio; the sun near the horizon sells nothing.
	CorrectionHours float64
}

func DefaultSalesParams() SalesParams {
	return SalesParams{
		BaseCloudy:      300,
		BonusSunny:      200,
		PenaltyRainy:    -200,
		CorrectionHours: 2,
	}
}

// hardRainMMPerHour saturates the rainfall penalty: raining harder than
// this all day cannot hurt sales any further.
const hardRainMMPerHour = 5.0

// Sales returns the demand cap for the observation, truncated toward zero.
func (p SalesParams) Sales(o Observation) int64 {
	sunshineRatio := o.SunshineHours / (o.DayLengthHours - p.CorrectionHours)
	if sunshineRatio > 1.0 {
		sunshineRatio = 1.0
	}
	rainfallMax := hardRainMMPerHour * o.DayLengthHours
	rainfall := o.RainfallMM
	if rainfall > rainfallMax {
		rainfall = rainfallMax
	}
	rainfallRatio := rainfall / rainfallMax

	return int64(p.BaseCloudy +
		p.BonusSunny*sunshineRatio +
		p.PenaltyRainy*rainfallRatio)
}

// rainyMMPerHour marks the label threshold: more than this per daylight
// hour and the day reads as rainy whatever the sunshine said.
const rainyMMPerHour = 2.0

// Label classifies the observation as sunny, cloudy or rainy.
func (p SalesParams) Label(o Observation) string {
	label := LabelCloudy
	if o.SunshineHours/(o.DayLengthHours-p.CorrectionHours) > 0.1 {
		label = LabelSunny
	}
	if o.RainfallMM > rainyMMPerHour*o.DayLengthHours {
		label = LabelRainy
	}
	return label
}
