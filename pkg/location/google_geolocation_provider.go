package location

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/beacon-agent/pkg/gps"
	"github.com/rs/zerolog"
	"googlemaps.github.io/maps"
)

const defaultGeolocateTimeout = 10 * time.Second

// Geolocator is the subset of *maps.Client the provider uses.
type Geolocator interface {
	Geolocate(ctx context.Context, r *maps.GeolocationRequest) (*maps.GeolocationResult, error)
}

// GoogleGeolocationProvider estimates the position from nearby WiFi access
// points and the serving cell with the Google Maps Geolocation API. It is the
// fallback for nodes without a GPS receiver.
type GoogleGeolocationProvider struct {
	client     Geolocator
	modemIndex int // negative disables cell lookup
	timeout    time.Duration
	logger     zerolog.Logger

	mu       sync.Mutex
	fix      gps.Fix
	accuracy float64
}

// NewGoogleGeolocationProvider creates a new GoogleGeolocationProvider instance.
func NewGoogleGeolocationProvider(apiKey string, modemIndex int, logger zerolog.Logger) (*GoogleGeolocationProvider, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return NewGeolocationProviderWithClient(c, modemIndex, logger), nil
}

// NewGeolocationProviderWithClient uses an already configured client.
func NewGeolocationProviderWithClient(client Geolocator, modemIndex int, logger zerolog.Logger) *GoogleGeolocationProvider {
	return &GoogleGeolocationProvider{
		client:     client,
		modemIndex: modemIndex,
		timeout:    defaultGeolocateTimeout,
		logger:     logger,
	}
}

// Update queries the Geolocation API. Missing WiFi or cell data narrows the
// request but is not an error; the API then falls back to the caller's IP.
func (g *GoogleGeolocationProvider) Update(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := &maps.GeolocationRequest{ConsiderIP: true}

	wifiAPs, err := getWiFiAccessPoints(ctx)
	if err != nil {
		g.logger.Warn().Err(err).Msg("Failed to list WiFi access points")
	}
	req.WiFiAccessPoints = wifiAPs

	if g.modemIndex >= 0 {
		cellTowers, err := getCellTowers(ctx, g.modemIndex)
		if err != nil {
			g.logger.Debug().Err(err).Int("modem", g.modemIndex).Msg("No cell tower data")
		}
		req.CellTowers = cellTowers
	}

	resp, err := g.client.Geolocate(ctx, req)
	if err != nil {
		return fmt.Errorf("geolocate: %w", err)
	}

	lat, lon := resp.Location.Lat, resp.Location.Lng
	g.mu.Lock()
	g.fix = gps.Fix{Latitude: &lat, Longitude: &lon}
	g.accuracy = resp.Accuracy
	g.mu.Unlock()

	g.logger.Debug().
		Float64("latitude", lat).
		Float64("longitude", lon).
		Float64("accuracy", resp.Accuracy).
		Int("wifi_aps", len(wifiAPs)).
		Msg("Geolocation updated")
	return nil
}

func (g *GoogleGeolocationProvider) Fix() gps.Fix {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fix.Clone()
}

// Accuracy is the radius in meters of the last estimate.
func (g *GoogleGeolocationProvider) Accuracy() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.accuracy
}

func (g *GoogleGeolocationProvider) Close() error { return nil }
