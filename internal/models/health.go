package models

import "math"

// Health is a device resource snapshot. Percentages are nil when the
// collector failed.
type Health struct {
	Header
	CPUUsage      *float64
	MemoryUsage   *float64
	DiskUsage     *float64
	UptimeSeconds float64
}

func (*Health) Kind() Kind { return KindHealth }

func (h *Health) Wire() ([]byte, error) {
	w := newObjectWriter(h.Header)
	if h.CPUUsage != nil {
		w.field("cpu_usage", roundPtr(h.CPUUsage, 1))
	}
	if h.MemoryUsage != nil {
		w.field("memory_usage", roundPtr(h.MemoryUsage, 1))
	}
	if h.DiskUsage != nil {
		w.field("disk_usage", roundPtr(h.DiskUsage, 1))
	}
	w.field("uptime", math.Floor(h.UptimeSeconds))
	return w.bytes()
}
