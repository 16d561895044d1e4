package gps_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benmeehan/beacon-agent/pkg/gps"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sentenceGGA        = "$GPGGA,092750.000,5321.6802,N,00630.3372,W,1,8,1.03,61.7,M,55.2,M,,*76\r\n"
	sentenceGSA        = "$GPGSA,A,3,10,07,05,02,29,04,08,13,,,,,1.72,1.03,1.38*0A\r\n"
	sentenceVTG        = "$GPVTG,054.7,T,034.4,M,005.5,N,010.2,K,A*25\r\n"
	sentenceGLL        = "$GPGLL,5321.6802,N,00630.3372,W,092750.000,A,A*4B\r\n"
	sentenceRMC        = "$GPRMC,092750.000,A,5321.6802,N,00630.3372,W,0.02,31.66,280511,,,A*43\r\n"
	sentenceGSV        = "$GPGSV,3,1,11,10,63,137,17,07,61,098,15,05,59,290,20,08,54,157,30*70\r\n"
	sentenceGGABadSum  = "$GPGGA,092750.000,5321.6802,N,00630.3372,W,1,8,1.03,61.7,M,55.2,M,,*00\r\n"
	expectedLatitude   = 53.361336666
	expectedLongitude  = -6.505620
	coordinateAccuracy = 1e-5
)

// chunkSource hands out one queued chunk per read, then err.
type chunkSource struct {
	chunks [][]byte
	err    error
	reads  int
}

func newChunkSource(chunks ...string) *chunkSource {
	src := &chunkSource{}
	for _, c := range chunks {
		src.chunks = append(src.chunks, []byte(c))
	}
	return src
}

func (s *chunkSource) HasData() bool {
	return len(s.chunks) > 0 || s.err != nil
}

func (s *chunkSource) ReadAvailable() ([]byte, error) {
	s.reads++
	if len(s.chunks) == 0 {
		return nil, s.err
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

// repeatSource always has the same data available.
type repeatSource struct {
	data []byte
}

func (s *repeatSource) HasData() bool                  { return true }
func (s *repeatSource) ReadAvailable() ([]byte, error) { return s.data, nil }

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// TestReader_Update_CompletesOnLastRequiredSegment checks that completion
// happens on the read carrying the last missing type and nothing after it is consumed.
func TestReader_Update_CompletesOnLastRequiredSegment(t *testing.T) {
	// Setup
	src := newChunkSource(
		sentenceGGA+sentenceGSA+sentenceVTG+sentenceGGA,
		sentenceGSV+sentenceGLL+sentenceRMC,
		sentenceRMC,
	)
	reader := gps.NewReader(src, zerolog.Nop(), gps.WithSleep(noSleep))

	// Execute
	err := reader.Update(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, gps.StateComplete, reader.State())
	assert.Equal(t, 2, src.reads)
	assert.Empty(t, reader.Missing())
	assert.True(t, src.HasData(), "data after the completing read must stay unread")

	_, ok := reader.TimestampUTC()
	assert.False(t, ok, "RMC after GLL in the same chunk must not be parsed")

	require.NotNil(t, reader.Latitude())
	require.NotNil(t, reader.Longitude())
	assert.InDelta(t, expectedLatitude, *reader.Latitude(), coordinateAccuracy)
	assert.InDelta(t, expectedLongitude, *reader.Longitude(), coordinateAccuracy)
	require.NotNil(t, reader.Altitude())
	assert.InDelta(t, 61.7, *reader.Altitude(), 1e-9)
	require.NotNil(t, reader.Course())
	assert.InDelta(t, 54.7, *reader.Course(), 1e-9)
	assert.Equal(t, "NE", reader.Direction())
	require.NotNil(t, reader.Speed(gps.UnitKnots))
	assert.InDelta(t, 5.5, *reader.Speed(gps.UnitKnots), 1e-9)
}

func TestReader_Update_SplitSentencesAcrossReads(t *testing.T) {
	// Setup
	all := sentenceGGA + sentenceGSA + sentenceVTG + sentenceGLL
	var chunks []string
	for i := 0; i < len(all); i += 7 {
		end := i + 7
		if end > len(all) {
			end = len(all)
		}
		chunks = append(chunks, all[i:end])
	}
	reader := gps.NewReader(newChunkSource(chunks...), zerolog.Nop(), gps.WithSleep(noSleep))

	// Execute
	err := reader.Update(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, gps.StateComplete, reader.State())
}

func TestReader_Update_IgnoresNoise(t *testing.T) {
	// Setup
	src := newChunkSource(
		"garbage\x00\xff"+sentenceGGABadSum,
		"$GPXXX,1,2,3*11\r\n"+"$GPGGA,truncated",
		sentenceGGA+sentenceGSA+sentenceVTG+sentenceGLL,
	)
	reader := gps.NewReader(src, zerolog.Nop(), gps.WithSleep(noSleep))

	// Execute
	err := reader.Update(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 3, src.reads)
}

func TestReader_Update_MaxPollsEndsIncomplete(t *testing.T) {
	// Setup
	src := &repeatSource{data: []byte(sentenceGGA + sentenceVTG)}
	reader := gps.NewReader(src, zerolog.Nop(),
		gps.WithSleep(noSleep),
		gps.WithMaxPolls(5),
	)

	// Execute
	err := reader.Update(context.Background())

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, gps.ErrFixIncomplete)
	assert.Equal(t, gps.StateCompleteWithGap, reader.State())
	assert.Equal(t, []string{"GPGLL", "GPGSA"}, reader.Missing())

	fix := reader.Fix()
	require.True(t, fix.HasPosition(), "partial data stays readable")
	assert.InDelta(t, expectedLatitude, *fix.Latitude, coordinateAccuracy)
}

func TestReader_Update_SleepsWhenNoData(t *testing.T) {
	// Setup
	sleeps := 0
	reader := gps.NewReader(newChunkSource(), zerolog.Nop(),
		gps.WithPollInterval(time.Second),
		gps.WithMaxPolls(3),
		gps.WithSleep(func(ctx context.Context, d time.Duration) error {
			sleeps++
			assert.Equal(t, time.Second, d)
			return nil
		}),
	)

	// Execute
	err := reader.Update(context.Background())

	// Assert
	assert.ErrorIs(t, err, gps.ErrFixIncomplete)
	assert.Equal(t, 3, sleeps)
}

func TestReader_Update_ReadErrorEndsIncomplete(t *testing.T) {
	// Setup
	readErr := errors.New("device unplugged")
	src := newChunkSource(sentenceGGA)
	src.err = readErr
	reader := gps.NewReader(src, zerolog.Nop(), gps.WithSleep(noSleep))

	// Execute
	err := reader.Update(context.Background())

	// Assert
	assert.ErrorIs(t, err, gps.ErrFixIncomplete)
	assert.ErrorIs(t, err, readErr)
	assert.Equal(t, gps.StateCompleteWithGap, reader.State())
	assert.NotNil(t, reader.Latitude())
}

func TestReader_Update_Timeout(t *testing.T) {
	// Setup
	reader := gps.NewReader(newChunkSource(), zerolog.Nop(),
		gps.WithPollInterval(5*time.Millisecond),
		gps.WithTimeout(30*time.Millisecond),
	)

	// Execute
	err := reader.Update(context.Background())

	// Assert
	assert.ErrorIs(t, err, gps.ErrFixIncomplete)
	assert.Equal(t, gps.StateCompleteWithGap, reader.State())
}

func TestReader_Update_ContextCancelled(t *testing.T) {
	// Setup
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reader := gps.NewReader(&repeatSource{data: []byte(sentenceGGA)}, zerolog.Nop())

	// Execute
	err := reader.Update(ctx)

	// Assert
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, gps.ErrFixIncomplete)
}

func TestReader_Update_ClearsParsedSetEachCall(t *testing.T) {
	// Setup
	src := newChunkSource(
		sentenceGGA+sentenceGSA+sentenceVTG+sentenceGLL,
		sentenceGGA+sentenceGSA,
	)
	reader := gps.NewReader(src, zerolog.Nop(), gps.WithSleep(noSleep), gps.WithMaxPolls(4))

	// Execute
	first := reader.Update(context.Background())
	second := reader.Update(context.Background())

	// Assert
	require.NoError(t, first)
	assert.ErrorIs(t, second, gps.ErrFixIncomplete)
	assert.Equal(t, []string{"GPGLL", "GPVTG"}, reader.Missing())
}

func TestReader_Update_CustomRequiredSentences(t *testing.T) {
	// Setup
	src := newChunkSource(sentenceRMC + sentenceGGA)
	reader := gps.NewReader(src, zerolog.Nop(),
		gps.WithSleep(noSleep),
		gps.WithRequiredSentences([]string{"GPRMC", "GPGGA"}),
	)

	// Execute
	err := reader.Update(context.Background())

	// Assert
	require.NoError(t, err)
	ts, ok := reader.TimestampUTC()
	require.True(t, ok)
	assert.Equal(t, "2011-05-28T09:27:50Z", ts)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", gps.StateIdle.String())
	assert.Equal(t, "complete_with_gap", gps.StateCompleteWithGap.String())
	assert.True(t, strings.HasPrefix(gps.State(42).String(), "state("))
}
