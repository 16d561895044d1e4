package gps

import (
	"fmt"
	"math"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
)

// Unit selects how speed is reported.
type Unit string

const (
	UnitKPH   Unit = "kph"
	UnitMPH   Unit = "mph"
	UnitKnots Unit = "knots"
)

const (
	knotsToKPH = 1.852
	knotsToMPH = 1.150779
)

// ParseUnit accepts "kph", "mph", "knot" or "knots".
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "kph", "km/h":
		return UnitKPH, nil
	case "mph":
		return UnitMPH, nil
	case "knot", "knots", "kn":
		return UnitKnots, nil
	default:
		return "", fmt.Errorf("unknown speed unit %q", s)
	}
}

var directions = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// CompassDirection maps a course in degrees onto a 16-point compass label.
func CompassDirection(course float64) string {
	offset := math.Mod(course+11.25, 360)
	if offset < 0 {
		offset += 360
	}
	return directions[int(offset/22.5)%len(directions)]
}

// Fix is the GPS state assembled from NMEA sentences. A nil field has not been
// reported by any sentence yet.
type Fix struct {
	Latitude        *float64 // decimal degrees
	Longitude       *float64 // decimal degrees
	Altitude        *float64 // meters above mean sea level
	SpeedKnots      *float64
	Course          *float64 // degrees from true north
	SatellitesInUse *int
	HDOP            *float64
	FixType         string // GSA fix type: "1" none, "2" 2D, "3" 3D

	Date nmea.Date
	Time nmea.Time
}

// Speed converts the ground speed to the requested unit.
func (f Fix) Speed(unit Unit) *float64 {
	if f.SpeedKnots == nil {
		return nil
	}

	knots := *f.SpeedKnots
	switch unit {
	case UnitMPH:
		return ptr(knots * knotsToMPH)
	case UnitKnots:
		return ptr(knots)
	default:
		return ptr(knots * knotsToKPH)
	}
}

// Direction returns the compass label for the course, or "" without a course.
func (f Fix) Direction() string {
	if f.Course == nil {
		return ""
	}
	return CompassDirection(*f.Course)
}

// TimestampUTC renders the last date and time as ISO-8601. It reports false
// until both an RMC date and a time field have been seen.
func (f Fix) TimestampUTC() (string, bool) {
	if !f.Date.Valid || !f.Time.Valid {
		return "", false
	}
	return fmt.Sprintf("20%02d-%02d-%02dT%02d:%02d:%02dZ",
		f.Date.YY, f.Date.MM, f.Date.DD,
		f.Time.Hour, f.Time.Minute, f.Time.Second), true
}

// HasPosition reports whether both coordinates are known.
func (f Fix) HasPosition() bool {
	return f.Latitude != nil && f.Longitude != nil
}

// Clone returns a deep copy, so later parser updates are not visible.
func (f Fix) Clone() Fix {
	out := f
	out.Latitude = clonePtr(f.Latitude)
	out.Longitude = clonePtr(f.Longitude)
	out.Altitude = clonePtr(f.Altitude)
	out.SpeedKnots = clonePtr(f.SpeedKnots)
	out.Course = clonePtr(f.Course)
	out.SatellitesInUse = clonePtr(f.SatellitesInUse)
	out.HDOP = clonePtr(f.HDOP)
	return out
}

func ptr[T any](v T) *T {
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
