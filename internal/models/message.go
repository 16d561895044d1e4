package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/benmeehan/beacon-agent/pkg/identity"
)

// Kind tags the variants of Message.
type Kind string

const (
	KindTelemetry Kind = "telemetry"
	KindAlive     Kind = "alive"
	KindHealth    Kind = "health"
)

// Message is anything the agent publishes.
type Message interface {
	Kind() Kind
	// Wire returns the JSON payload.
	Wire() ([]byte, error)
}

// IdentityKeys names the identity fields on the wire. Older backends expect
// device_id/customer instead of dev_id/app_id.
type IdentityKeys struct {
	Device      string `yaml:"device_key"`
	Application string `yaml:"application_key"`
}

// DefaultIdentityKeys are dev_id and app_id.
var DefaultIdentityKeys = IdentityKeys{Device: "dev_id", Application: "app_id"}

func (k IdentityKeys) orDefault() IdentityKeys {
	if k.Device == "" {
		k.Device = DefaultIdentityKeys.Device
	}
	if k.Application == "" {
		k.Application = DefaultIdentityKeys.Application
	}
	return k
}

// Header is the identity and timestamp every message starts with.
type Header struct {
	Identity identity.Identity
	Keys     IdentityKeys
	Time     float64 // seconds since the Unix epoch
}

// NewHeader stamps id with now.
func NewHeader(id identity.Identity, keys IdentityKeys, now time.Time) Header {
	return Header{
		Identity: id,
		Keys:     keys.orDefault(),
		Time:     EpochSeconds(now),
	}
}

// EpochSeconds converts t into fractional Unix seconds.
func EpochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

// objectWriter emits a JSON object with keys in insertion order.
type objectWriter struct {
	buf bytes.Buffer
	err error
}

func newObjectWriter(h Header) *objectWriter {
	w := &objectWriter{}
	w.buf.WriteByte('{')
	keys := h.Keys.orDefault()
	w.field(keys.Device, h.Identity.DeviceID)
	w.field(keys.Application, h.Identity.ApplicationID)
	w.field("time", h.Time)
	return w
}

func (w *objectWriter) field(key string, value interface{}) {
	if w.err != nil {
		return
	}
	k, err := json.Marshal(key)
	if err != nil {
		w.err = err
		return
	}
	v, err := json.Marshal(value)
	if err != nil {
		w.err = fmt.Errorf("encode %s: %w", key, err)
		return
	}
	if w.buf.Len() > 1 {
		w.buf.WriteByte(',')
	}
	w.buf.Write(k)
	w.buf.WriteByte(':')
	w.buf.Write(v)
}

func (w *objectWriter) bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	w.buf.WriteByte('}')
	return w.buf.Bytes(), nil
}
