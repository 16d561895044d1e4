package gps

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// ErrFixIncomplete is returned when Update stops before every required
// sentence type has been seen. The fields parsed so far remain readable.
var ErrFixIncomplete = errors.New("gps fix incomplete")

// DefaultRequiredSentences covers fix data, satellite status, course/speed and
// geographic position.
var DefaultRequiredSentences = []string{"GPGGA", "GPGSA", "GPVTG", "GPGLL"}

// State is the reader's position in its update cycle.
type State int

const (
	StateIdle State = iota
	StateReading
	StateComplete
	StateCompleteWithGap
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateComplete:
		return "complete"
	case StateCompleteWithGap:
		return "complete_with_gap"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SerialSource is a non-blocking byte source.
type SerialSource interface {
	HasData() bool
	ReadAvailable() ([]byte, error)
}

// Discarder is implemented by sources that buffer between reads. Update drops
// the backlog so a fix is built from sentences that arrive after it starts.
type Discarder interface {
	Discard() int
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithRequiredSentences replaces the talker+type codes a fix must contain.
func WithRequiredSentences(codes []string) ReaderOption {
	return func(r *Reader) {
		if len(codes) > 0 {
			r.required = toSet(codes)
		}
	}
}

// WithPollInterval sets the sleep between empty polls.
func WithPollInterval(d time.Duration) ReaderOption {
	return func(r *Reader) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithMaxPolls bounds the number of loop iterations per Update. Zero means
// unbounded.
func WithMaxPolls(n int) ReaderOption {
	return func(r *Reader) { r.maxPolls = n }
}

// WithTimeout bounds the wall time of one Update. Zero means unbounded.
func WithTimeout(d time.Duration) ReaderOption {
	return func(r *Reader) { r.timeout = d }
}

// WithSleep replaces the poll sleep, mostly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ReaderOption {
	return func(r *Reader) { r.sleep = sleep }
}

// Reader pulls bytes from a SerialSource until a complete fix is assembled.
// It is not safe for concurrent use.
type Reader struct {
	source       SerialSource
	parser       *Parser
	required     map[string]struct{}
	parsed       map[string]struct{}
	state        State
	pollInterval time.Duration
	maxPolls     int
	timeout      time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	logger       zerolog.Logger
}

// NewReader creates an idle reader over source.
func NewReader(source SerialSource, logger zerolog.Logger, opts ...ReaderOption) *Reader {
	r := &Reader{
		source:       source,
		parser:       NewParser(logger),
		required:     toSet(DefaultRequiredSentences),
		parsed:       make(map[string]struct{}),
		state:        StateIdle,
		pollInterval: 2 * time.Second,
		sleep:        sleepContext,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Update reads until every required sentence type has been parsed at least
// once since the call began. It returns nil on a complete fix, an error
// wrapping ErrFixIncomplete when the loop stops early, or ctx.Err().
func (r *Reader) Update(ctx context.Context) error {
	r.parsed = make(map[string]struct{}, len(r.required))
	r.state = StateReading
	r.logger.Debug().Msg("Reading GPS data")

	if d, ok := r.source.(Discarder); ok {
		if n := d.Discard(); n > 0 {
			r.logger.Debug().Int("bytes", n).Msg("Discarded stale GPS data")
		}
		r.parser.Abort()
	}

	parent := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	for polls := 1; ; polls++ {
		if err := parent.Err(); err != nil {
			r.state = StateIdle
			return err
		}
		if ctx.Err() != nil {
			return r.incomplete(fmt.Errorf("%w: timed out after %s", ErrFixIncomplete, r.timeout))
		}
		if r.maxPolls > 0 && polls > r.maxPolls {
			return r.incomplete(fmt.Errorf("%w: gave up after %d polls", ErrFixIncomplete, r.maxPolls))
		}

		if !r.source.HasData() {
			// A cancelled sleep is picked up by the checks at the top.
			_ = r.sleep(ctx, r.pollInterval)
			continue
		}

		data, err := r.source.ReadAvailable()
		if err != nil {
			r.logger.Error().Err(err).Msg("Failed to read GPS data")
			return r.incomplete(fmt.Errorf("%w: serial read: %w", ErrFixIncomplete, err))
		}

		for _, c := range data {
			code, ok := r.parser.Update(c)
			if !ok {
				continue
			}
			if _, seen := r.parsed[code]; seen {
				continue
			}
			r.parsed[code] = struct{}{}
			r.logger.Debug().Str("segment", code).Msg("Found NMEA segment")

			if r.complete() {
				r.state = StateComplete
				r.logger.Debug().Int("segments", len(r.parsed)).Msg("GPS fix complete")
				return nil
			}
		}
	}
}

func (r *Reader) complete() bool {
	for code := range r.required {
		if _, ok := r.parsed[code]; !ok {
			return false
		}
	}
	return true
}

func (r *Reader) incomplete(err error) error {
	r.state = StateCompleteWithGap
	r.logger.Warn().Strs("missing", r.Missing()).Msg("GPS fix incomplete")
	return err
}

// State returns the current state.
func (r *Reader) State() State {
	return r.state
}

// Missing lists required sentence types not yet parsed in this update.
func (r *Reader) Missing() []string {
	var missing []string
	for code := range r.required {
		if _, ok := r.parsed[code]; !ok {
			missing = append(missing, code)
		}
	}
	sort.Strings(missing)
	return missing
}

// Fix returns a copy of the current fix.
func (r *Reader) Fix() Fix {
	return r.parser.Fix().Clone()
}

func (r *Reader) Latitude() *float64  { return r.parser.Fix().Latitude }
func (r *Reader) Longitude() *float64 { return r.parser.Fix().Longitude }
func (r *Reader) Altitude() *float64  { return r.parser.Fix().Altitude }
func (r *Reader) Course() *float64    { return r.parser.Fix().Course }
func (r *Reader) Direction() string   { return r.parser.Fix().Direction() }

// Speed returns the ground speed in the requested unit.
func (r *Reader) Speed(unit Unit) *float64 {
	return r.parser.Fix().Speed(unit)
}

// TimestampUTC returns the last fix time as ISO-8601.
func (r *Reader) TimestampUTC() (string, bool) {
	return r.parser.Fix().TimestampUTC()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func toSet(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}
