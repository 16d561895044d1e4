package location

import (
	"context"

	"github.com/benmeehan/beacon-agent/pkg/gps"
)

// Provider interface defines the methods for location providers.
type Provider interface {
	// Update refreshes the position. Errors wrapping gps.ErrFixIncomplete
	// leave a partial fix readable.
	Update(ctx context.Context) error
	// Fix returns a snapshot of the last known position.
	Fix() gps.Fix
	Close() error
}

// FixedProvider reports configured coordinates for stationary installs
// without a receiver.
type FixedProvider struct {
	latitude  float64
	longitude float64
}

// NewFixedProvider creates a provider that always returns lat/lon.
func NewFixedProvider(latitude, longitude float64) *FixedProvider {
	return &FixedProvider{latitude: latitude, longitude: longitude}
}

func (f *FixedProvider) Update(context.Context) error { return nil }

func (f *FixedProvider) Fix() gps.Fix {
	lat, lon := f.latitude, f.longitude
	return gps.Fix{Latitude: &lat, Longitude: &lon}
}

func (f *FixedProvider) Close() error { return nil }
