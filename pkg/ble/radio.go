package ble

import (
	"errors"
	"time"
)

// ErrScanInProgress is returned by BeginScan when a session is already running.
var ErrScanInProgress = errors.New("ble scan already in progress")

// Advertisement is a single received advertising report.
type Advertisement interface {
	// MAC returns the advertiser's device address, most significant byte first.
	MAC() []byte
	// ResolveName returns the complete local name, or "" when absent.
	ResolveName() string
	// ResolveManufacturerData returns the manufacturer-specific AD payload
	// (company ID little-endian followed by the data), or nil when absent.
	ResolveManufacturerData() []byte
}

// RadioDriver owns a single scan session on the Bluetooth controller.
type RadioDriver interface {
	// BeginScan activates the radio. A negative timeout means unbounded.
	BeginScan(timeout time.Duration) error
	IsScanning() bool
	// NextAdvertisement returns the next queued report, or false if none
	// arrived within the driver's poll interval.
	NextAdvertisement() (Advertisement, bool)
	EndScan() error
}

// Report is a plain Advertisement value.
type Report struct {
	Address          []byte
	LocalName        string
	ManufacturerData []byte
}

func (r Report) MAC() []byte                     { return r.Address }
func (r Report) ResolveName() string             { return r.LocalName }
func (r Report) ResolveManufacturerData() []byte { return r.ManufacturerData }
