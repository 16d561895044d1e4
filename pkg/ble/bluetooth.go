package ble

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"tinygo.org/x/bluetooth"
)

const (
	defaultAdapter      = "hci0"
	defaultPollInterval = 100 * time.Millisecond
	reportQueueSize     = 256
)

// BluetoothRadio drives a BlueZ adapter through tinygo's bluetooth package.
// adapter.Scan blocks, so it runs on its own goroutine and hands reports to
// the scan loop through a bounded queue.
type BluetoothRadio struct {
	adapterID    string
	adapter      *bluetooth.Adapter
	pollInterval time.Duration
	logger       zerolog.Logger

	enableOnce sync.Once
	enableErr  error

	reports       chan Advertisement
	scanning      atomic.Bool
	stopRequested atomic.Bool
	dropped       atomic.Uint64
}

// NewBluetoothRadio creates a radio bound to the named adapter ("hci0" when empty).
func NewBluetoothRadio(adapterID string, pollInterval time.Duration, logger zerolog.Logger) *BluetoothRadio {
	if adapterID == "" {
		adapterID = defaultAdapter
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &BluetoothRadio{
		adapterID:    adapterID,
		adapter:      bluetooth.NewAdapter(adapterID),
		pollInterval: pollInterval,
		logger:       logger,
		reports:      make(chan Advertisement, reportQueueSize),
	}
}

// BeginScan enables the adapter on first use and starts scanning. The timeout
// is enforced by the caller's cancellation timer; it is only logged here.
func (r *BluetoothRadio) BeginScan(timeout time.Duration) error {
	r.enableOnce.Do(func() {
		r.logger.Info().Str("adapter", r.adapterID).Msg("Enabling bluetooth adapter")
		if err := r.adapter.Enable(); err != nil {
			r.enableErr = fmt.Errorf("ble enable (%s): %w", r.adapterID, err)
		}
	})
	if r.enableErr != nil {
		return r.enableErr
	}

	if !r.scanning.CompareAndSwap(false, true) {
		return ErrScanInProgress
	}

	r.stopRequested.Store(false)
	r.dropped.Store(0)
	r.drain()
	reports := r.reports

	go func() {
		defer r.scanning.Store(false)

		err := r.adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
			// StopScan issued before Scan registered is lost; catch it here.
			if r.stopRequested.Load() {
				_ = a.StopScan()
				return
			}

			select {
			case reports <- toReport(result):
			default:
				r.dropped.Add(1)
			}
		})
		if err != nil && !r.stopRequested.Load() {
			r.logger.Error().Err(err).Str("adapter", r.adapterID).Msg("Bluetooth scan terminated")
		}
	}()

	r.logger.Debug().
		Str("adapter", r.adapterID).
		Dur("timeout", timeout).
		Msg("Bluetooth scan started")
	return nil
}

// IsScanning reports whether the scan goroutine is still running or has
// reports left to drain.
func (r *BluetoothRadio) IsScanning() bool {
	return r.scanning.Load() || len(r.reports) > 0
}

// NextAdvertisement waits up to the poll interval for a queued report.
func (r *BluetoothRadio) NextAdvertisement() (Advertisement, bool) {
	timer := time.NewTimer(r.pollInterval)
	defer timer.Stop()

	select {
	case adv := <-r.reports:
		return adv, true
	case <-timer.C:
		return nil, false
	}
}

// EndScan stops the adapter scan. Safe to call from any goroutine and more
// than once.
func (r *BluetoothRadio) EndScan() error {
	if !r.scanning.Load() {
		return nil
	}
	r.stopRequested.Store(true)

	if err := r.adapter.StopScan(); err != nil {
		r.logger.Debug().Err(err).Msg("StopScan returned an error")
	}

	if dropped := r.dropped.Load(); dropped > 0 {
		r.logger.Warn().Uint64("dropped", dropped).Msg("Advertisement queue overflowed during scan")
	}
	return nil
}

// drain drops reports left over from a previous session.
func (r *BluetoothRadio) drain() {
	for {
		select {
		case <-r.reports:
		default:
			return
		}
	}
}

func toReport(result bluetooth.ScanResult) Report {
	report := Report{LocalName: result.LocalName()}

	if mac, err := net.ParseMAC(result.Address.String()); err == nil {
		report.Address = []byte(mac)
	}

	for _, md := range result.ManufacturerData() {
		var company [2]byte
		binary.LittleEndian.PutUint16(company[:], md.CompanyID)
		report.ManufacturerData = append(report.ManufacturerData, company[:]...)
		report.ManufacturerData = append(report.ManufacturerData, md.Data...)
	}

	return report
}
