package scanner

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/benmeehan/beacon-agent/internal/constants"
	"github.com/benmeehan/beacon-agent/pkg/ble"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

// BeaconScanner runs timed BLE scan sessions and collects the unique tag and
// beacon fingerprints seen during each session.
type BeaconScanner struct {
	radio        ble.RadioDriver
	tagName      string
	maxListItems int
	logger       zerolog.Logger

	tags    cmap.ConcurrentMap[string, struct{}]
	beacons cmap.ConcurrentMap[string, struct{}]
	active  atomic.Bool
}

// NewBeaconScanner creates a scanner over the given radio. Advertisements
// whose complete local name equals tagName are classified as tags.
func NewBeaconScanner(radio ble.RadioDriver, tagName string, maxListItems int, logger zerolog.Logger) *BeaconScanner {
	if tagName == "" {
		tagName = constants.DefaultTagName
	}
	return &BeaconScanner{
		radio:        radio,
		tagName:      tagName,
		maxListItems: maxListItems,
		logger:       logger,
		tags:         cmap.New[struct{}](),
		beacons:      cmap.New[struct{}](),
	}
}

// Start scans until the timeout elapses, the radio stops on its own or ctx is
// cancelled. A negative timeout scans until stopped.
func (s *BeaconScanner) Start(ctx context.Context, timeout time.Duration) error {
	s.logger.Info().Dur("timeout", timeout).Msg("Start scanning for beacons and tags")

	if err := s.radio.BeginScan(timeout); err != nil {
		return fmt.Errorf("failed to start radio scan: %w", err)
	}
	s.active.Store(true)
	defer s.active.Store(false)

	if timeout >= 0 {
		alarm := time.AfterFunc(timeout, func() {
			if err := s.radio.EndScan(); err != nil {
				s.logger.Error().Err(err).Msg("Failed to stop radio scan on timeout")
			}
		})
		defer alarm.Stop()
	}

	for s.radio.IsScanning() {
		if ctx.Err() != nil {
			_ = s.radio.EndScan()
			return ctx.Err()
		}

		adv, ok := s.radio.NextAdvertisement()
		if !ok {
			continue
		}
		s.collect(adv)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.Info().
		Int("beacons", s.beacons.Count()).
		Int("tags", s.tags.Count()).
		Msg("Scan finished")
	return nil
}

// Stop ends an in-progress scan. Calling it with no active scan is a no-op.
func (s *BeaconScanner) Stop() {
	if !s.active.Load() && !s.radio.IsScanning() {
		return
	}

	s.logger.Info().Msg("Stop scanning for beacons and tags")
	if err := s.radio.EndScan(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to stop radio scan")
	}
}

// Reset clears the collected fingerprints. An in-progress scan keeps running.
func (s *BeaconScanner) Reset() {
	s.logger.Debug().Msg("Reset found beacon/tag sets")
	s.tags.Clear()
	s.beacons.Clear()
}

// Beacons returns a sorted copy of the beacon fingerprints.
func (s *BeaconScanner) Beacons() []string {
	return sortedKeys(s.beacons)
}

// Tags returns a sorted copy of the tag fingerprints.
func (s *BeaconScanner) Tags() []string {
	return sortedKeys(s.tags)
}

// MaxListItems is the number of items callers intend to transmit per list.
// The scanner does not truncate.
func (s *BeaconScanner) MaxListItems() int {
	return s.maxListItems
}

// collect classifies one advertisement, tag first.
func (s *BeaconScanner) collect(adv ble.Advertisement) {
	if adv.ResolveName() == s.tagName {
		tag := hex.EncodeToString(adv.MAC())
		if s.tags.SetIfAbsent(tag, struct{}{}) {
			s.logger.Debug().Str("tag", tag).Msg("Found tag")
		}
		return
	}

	data := adv.ResolveManufacturerData()
	if len(data) == 0 {
		return
	}

	beacon := hex.EncodeToString(data)
	if s.beacons.SetIfAbsent(beacon, struct{}{}) {
		s.logger.Debug().Str("beacon", beacon).Msg("Found beacon")
	}
}

func sortedKeys(m cmap.ConcurrentMap[string, struct{}]) []string {
	keys := m.Keys()
	sort.Strings(keys)
	return keys
}
