package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// DriverRef points at another driver in the workspace roster.
// The zero value means there is no neighbour (end of roster).
type DriverRef string

// IsZero reports whether the reference is absent.
func (r DriverRef) IsZero() bool {
	return r == ""
}

// String returns the referenced driver origin id.
func (r DriverRef) String() string {
	return string(r)
}

// UnmarshalJSON accepts null, a string or a number.
func (r *DriverRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = DriverRef(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("driver ref: unsupported value %s", string(data))
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("driver ref: %w", err)
	}
	*r = DriverRef(n.String())
	return nil
}

// MarshalJSON encodes the empty reference as null.
func (r DriverRef) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(string(r))
}

// DriverRecord is a driver profile as served by the remote driver API.
type DriverRecord struct {
	DriverOriginID       string          `json:"driver_origin_id"`
	FirstName            string          `json:"first_name"`
	LastName             string          `json:"last_name"`
	Phones               []string        `json:"phones"`
	Plaque               string          `json:"plaque,omitempty"`
	RevenueTotal         float64         `json:"revenuTotal"`
	PerformanceIndex     float64         `json:"performanceIndex"`
	PerformanceEvolution float64         `json:"performanceEvolution"`
	RecentWeeklyStats    map[string]int  `json:"recentWeeklyStats"`
	LastRide             json.RawMessage `json:"last_ride,omitempty"`
	Next                 DriverRef       `json:"next"`
	Previous             DriverRef       `json:"previous"`
}

// driverRecordWire mirrors DriverRecord and also captures the lowercase
// spelling of the weekly stats field some backend versions emit.
type driverRecordWire struct {
	DriverOriginID       json.RawMessage `json:"driver_origin_id"`
	FirstName            string          `json:"first_name"`
	LastName             string          `json:"last_name"`
	Phones               []string        `json:"phones"`
	Plaque               string          `json:"plaque"`
	RevenueTotal         float64         `json:"revenuTotal"`
	PerformanceIndex     float64         `json:"performanceIndex"`
	PerformanceEvolution float64         `json:"performanceEvolution"`
	RecentWeeklyStats    map[string]int  `json:"recentWeeklyStats"`
	RecentWeeklyStatsLC  map[string]int  `json:"recentweeklyStats"`
	LastRide             json.RawMessage `json:"last_ride"`
	Next                 DriverRef       `json:"next"`
	Previous             DriverRef       `json:"previous"`
}

// UnmarshalJSON decodes a driver record from the backend wire format.
func (d *DriverRecord) UnmarshalJSON(data []byte) error {
	var w driverRecordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	var id DriverRef
	if len(w.DriverOriginID) > 0 {
		if err := id.UnmarshalJSON(w.DriverOriginID); err != nil {
			return fmt.Errorf("driver_origin_id: %w", err)
		}
	}

	stats := w.RecentWeeklyStats
	if stats == nil {
		stats = w.RecentWeeklyStatsLC
	}

	lastRide := w.LastRide
	if bytes.Equal(bytes.TrimSpace(lastRide), []byte("null")) {
		lastRide = nil
	}

	*d = DriverRecord{
		DriverOriginID:       id.String(),
		FirstName:            w.FirstName,
		LastName:             w.LastName,
		Phones:               w.Phones,
		Plaque:               w.Plaque,
		RevenueTotal:         w.RevenueTotal,
		PerformanceIndex:     w.PerformanceIndex,
		PerformanceEvolution: w.PerformanceEvolution,
		RecentWeeklyStats:    stats,
		LastRide:             lastRide,
		Next:                 w.Next,
		Previous:             w.Previous,
	}
	return nil
}

// Clone returns a copy of d that shares no slices or maps with it.
func (d *DriverRecord) Clone() DriverRecord {
	c := *d
	c.Phones = slices.Clone(d.Phones)
	c.RecentWeeklyStats = maps.Clone(d.RecentWeeklyStats)
	c.LastRide = slices.Clone(d.LastRide)
	return c
}

// FullName returns "last first", the order operators read names in.
func (d *DriverRecord) FullName() string {
	switch {
	case d.LastName == "":
		return d.FirstName
	case d.FirstName == "":
		return d.LastName
	default:
		return d.LastName + " " + d.FirstName
	}
}

// AverageWeeklyRides returns the mean ride count over the recent week buckets.
func (d *DriverRecord) AverageWeeklyRides() float64 {
	if len(d.RecentWeeklyStats) == 0 {
		return 0
	}
	total := 0
	for _, n := range d.RecentWeeklyStats {
		total += n
	}
	return float64(total) / float64(len(d.RecentWeeklyStats))
}

// DriverPresence is the slice of roster data the status distribution needs.
type DriverPresence struct {
	DriverOriginID string
	CurrentStatus  string
	HasCar         bool
}
