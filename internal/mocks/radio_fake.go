package mocks

import (
	"sync"
	"time"

	"github.com/benmeehan/beacon-agent/pkg/ble"
)

// FakeRadio is a scripted ble.RadioDriver. Queued advertisements are handed
// out one per NextAdvertisement call.
type FakeRadio struct {
	mu       sync.Mutex
	queue    []ble.Advertisement
	scanning bool
	begins   int
	ends     int

	// BeginErr is returned by BeginScan when set.
	BeginErr error
	// StopWhenDrained ends the scan once the queue is empty, as if the
	// radio's own timeout had fired.
	StopWhenDrained bool
}

func NewFakeRadio(advs ...ble.Advertisement) *FakeRadio {
	return &FakeRadio{queue: advs}
}

// Push queues more advertisements.
func (r *FakeRadio) Push(advs ...ble.Advertisement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, advs...)
}

func (r *FakeRadio) BeginScan(time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.BeginErr != nil {
		return r.BeginErr
	}
	if r.scanning {
		return ble.ErrScanInProgress
	}
	r.scanning = true
	r.begins++
	return nil
}

func (r *FakeRadio) IsScanning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scanning
}

func (r *FakeRadio) NextAdvertisement() (ble.Advertisement, bool) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		adv := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return adv, true
	}
	if r.StopWhenDrained {
		r.scanning = false
	}
	r.mu.Unlock()

	time.Sleep(time.Millisecond)
	return nil, false
}

func (r *FakeRadio) EndScan() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scanning {
		r.ends++
	}
	r.scanning = false
	return nil
}

// Begins counts successful BeginScan calls.
func (r *FakeRadio) Begins() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.begins
}

// Ends counts EndScan calls that stopped an active scan.
func (r *FakeRadio) Ends() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ends
}
