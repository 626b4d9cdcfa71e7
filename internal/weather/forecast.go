package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kumanofoo/tako/internal/takotime"
)

// ─── Forecast ───────────────────────────────────────────────────────────────

// Pop is one precipitation-probability slot.
type Pop struct {
	Time    time.Time
	Percent string
}

// Forecast is one day's forecast for a station's area.
type Forecast struct {
	ReportDatetime time.Time
	AreaName       string
	WeatherAt      time.Time
	WeatherText    string
	Pops           []Pop
}

// forecastReport mirrors the office forecast document: parallel time
// series where series 0 carries weather texts and series 1 carries pops,
// each sliced per area.
type forecastReport struct {
	ReportDatetime string `json:"reportDatetime"`
	TimeSeries     []struct {
		TimeDefines []string `json:"timeDefines"`
		Areas       []struct {
			Area struct {
				Name string `json:"name"`
				Code string `json:"code"`
			} `json:"area"`
			Weathers []string `json:"weathers"`
			Pops     []string `json:"pops"`
		} `json:"areas"`
	} `json:"timeSeries"`
}

// Forecast returns the station's area forecast for the given market date.
func (c *Client) Forecast(ctx context.Context, station, date string) (*Forecast, error) {
	meta, ok := c.stations.Meta(station)
	if !ok || meta.Office == "" {
		return nil, fmt.Errorf("no forecast area for station %s", station)
	}

	body, err := c.fetch(ctx, fmt.Sprintf("%s/forecast/data/forecast/%s.json", c.baseURL, meta.Office))
	if err != nil {
		return nil, fmt.Errorf("get forecast: %w", err)
	}
	var reports []forecastReport
	if err := json.Unmarshal(body, &reports); err != nil {
		return nil, fmt.Errorf("parse forecast: %w", err)
	}
	if len(reports) == 0 || len(reports[0].TimeSeries) < 2 {
		return nil, fmt.Errorf("forecast for office %s is empty", meta.Office)
	}
	report := reports[0]

	areaIndex := -1
	for i, area := range report.TimeSeries[0].Areas {
		if area.Area.Code == meta.Class10s {
			areaIndex = i
		}
	}
	if areaIndex < 0 {
		return nil, fmt.Errorf("area %s not in office %s forecast", meta.Class10s, meta.Office)
	}

	f := &Forecast{AreaName: report.TimeSeries[0].Areas[areaIndex].Area.Name}
	if t, err := time.Parse(time.RFC3339, report.ReportDatetime); err == nil {
		f.ReportDatetime = t
	}

	weathers := report.TimeSeries[0]
	for i, ts := range weathers.TimeDefines {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			continue
		}
		if takotime.MarketDate(t) == date && i < len(weathers.Areas[areaIndex].Weathers) {
			f.WeatherAt = t
			f.WeatherText = weathers.Areas[areaIndex].Weathers[i]
			break
		}
	}

	pops := report.TimeSeries[1]
	for i, ts := range pops.TimeDefines {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			continue
		}
		if takotime.MarketDate(t) == date && i < len(pops.Areas[areaIndex].Pops) {
			f.Pops = append(f.Pops, Pop{Time: t, Percent: pops.Areas[areaIndex].Pops[i]})
		}
	}
	return f, nil
}
