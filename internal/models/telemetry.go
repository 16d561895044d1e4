package models

import (
	"math"
	"time"

	"github.com/benmeehan/beacon-agent/pkg/gps"
	"github.com/benmeehan/beacon-agent/pkg/identity"
	"github.com/benmeehan/beacon-agent/pkg/sensors"
)

// SensorBlock is one entry of a record's sensors list.
type SensorBlock interface {
	SensorName() string
}

// EnvironmentReading is the "Environment" sensor block.
type EnvironmentReading struct {
	Sensor             string   `json:"sensor"`
	Temperature        *float64 `json:"temperature,omitempty"`
	Humidity           *float64 `json:"humidity,omitempty"`
	BarometricPressure *float64 `json:"barometricPressure,omitempty"`
	Lux                *float64 `json:"lux,omitempty"`
}

func (EnvironmentReading) SensorName() string { return "Environment" }

// GPSReading is the "GPS" sensor block.
type GPSReading struct {
	Sensor    string   `json:"sensor"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Course    *float64 `json:"course,omitempty"`
}

func (GPSReading) SensorName() string { return "GPS" }

// Record is the telemetry published once per cycle.
type Record struct {
	Header
	Sensors []SensorBlock
	Beacons []string
	Tags    []string
}

func (*Record) Kind() Kind { return KindTelemetry }

// Wire encodes the record. sensors is always present; beacons and tags only
// when non-empty.
func (r *Record) Wire() ([]byte, error) {
	w := newObjectWriter(r.Header)

	sensorList := r.Sensors
	if sensorList == nil {
		sensorList = []SensorBlock{}
	}
	w.field("sensors", sensorList)

	if len(r.Beacons) > 0 {
		w.field("beacons", r.Beacons)
	}
	if len(r.Tags) > 0 {
		w.field("tags", r.Tags)
	}
	return w.bytes()
}

// Limit returns a copy whose beacon and tag lists hold at most n items each.
// n <= 0 means no limit.
func (r *Record) Limit(n int) *Record {
	out := *r
	out.Beacons = truncate(r.Beacons, n)
	out.Tags = truncate(r.Tags, n)
	return &out
}

func truncate(items []string, n int) []string {
	if n <= 0 || len(items) <= n {
		return items
	}
	return append([]string(nil), items[:n]...)
}

// BuildGPS converts a fix into a GPS block, speed in the given unit. Fields the
// fix lacks are left out.
func BuildGPS(fix gps.Fix, unit gps.Unit) *GPSReading {
	return &GPSReading{
		Sensor:    GPSReading{}.SensorName(),
		Latitude:  copyFloat(fix.Latitude),
		Longitude: copyFloat(fix.Longitude),
		Speed:     fix.Speed(unit),
		Course:    copyFloat(fix.Course),
	}
}

// BuildEnvironment converts a sample into an Environment block. Temperature
// keeps two decimals; humidity, pressure and lux are whole numbers.
func BuildEnvironment(sample sensors.Sample) *EnvironmentReading {
	return &EnvironmentReading{
		Sensor:             EnvironmentReading{}.SensorName(),
		Temperature:        roundPtr(sample.Temperature, 2),
		Humidity:           roundPtr(sample.Humidity, 0),
		BarometricPressure: roundPtr(sample.Pressure, 0),
		Lux:                roundPtr(sample.Lux, 0),
	}
}

// BuildRecord assembles a record. env and gpsBlock may be nil. The fingerprint
// slices are copied.
func BuildRecord(id identity.Identity, keys IdentityKeys, now time.Time, env *EnvironmentReading, gpsBlock *GPSReading, beacons, tags []string) *Record {
	r := &Record{
		Header:  NewHeader(id, keys, now),
		Sensors: []SensorBlock{},
	}
	if env != nil {
		r.Sensors = append(r.Sensors, env)
	}
	if gpsBlock != nil {
		r.Sensors = append(r.Sensors, gpsBlock)
	}
	if len(beacons) > 0 {
		r.Beacons = append([]string(nil), beacons...)
	}
	if len(tags) > 0 {
		r.Tags = append([]string(nil), tags...)
	}
	return r
}

func roundPtr(v *float64, places int) *float64 {
	if v == nil {
		return nil
	}
	scale := math.Pow(10, float64(places))
	r := math.Round(*v*scale) / scale
	return &r
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
