package weather

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand/v2"
)

//go:embed stations.json
var stationsJSON []byte

// StationMeta describes one observation station: its coordinates and the
// forecast area codes it belongs to. Stations without a class10s code have
// no forecast area and are never picked to host a market.
type StationMeta struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Class10s  string  `json:"class10s"`
	Office    string  `json:"office"`
}

// Stations is the embedded station catalog. It doubles as the market's
// location selector: Pick draws a random station with a forecast area.
type Stations struct {
	byName   map[string]StationMeta
	pickable []string
}

// LoadStations parses the embedded catalog.
func LoadStations() (*Stations, error) {
	var metas []StationMeta
	if err := json.Unmarshal(stationsJSON, &metas); err != nil {
		return nil, fmt.Errorf("parse station catalog: %w", err)
	}
	s := &Stations{byName: make(map[string]StationMeta, len(metas))}
	for _, m := range metas {
		s.byName[m.Name] = m
		if m.Class10s != "" {
			s.pickable = append(s.pickable, m.Name)
		}
	}
	if len(s.pickable) == 0 {
		return nil, fmt.Errorf("station catalog has no pickable stations")
	}
	return s, nil
}

// Pick returns a random station that has a forecast area.
func (s *Stations) Pick(ctx context.Context) (string, error) {
	return s.pickable[rand.IntN(len(s.pickable))], nil
}

// Meta looks up a station by name.
func (s *Stations) Meta(name string) (StationMeta, bool) {
	m, ok := s.byName[name]
	return m, ok
}

// Names returns every station name in the catalog.
func (s *Stations) Names() []string {
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	return names
}
