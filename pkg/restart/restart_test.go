package restart

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	r, err := New("", zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Reboot{}, r)

	r, err = New(ModeExit, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Exit{}, r)

	_, err = New("halt-and-catch-fire", zerolog.Nop())
	assert.Error(t, err)
}

func TestReboot_FallsBackToExit(t *testing.T) {
	r := NewReboot(zerolog.Nop())
	calls := 0
	r.reboot = func() error {
		calls++
		return errors.New("EPERM")
	}
	var codes []int
	r.exit = func(code int) { codes = append(codes, code) }

	r.Restart("test")
	r.Restart("again")

	assert.Equal(t, 1, calls)
	assert.Equal(t, []int{1}, codes)
}

func TestExit_Restart(t *testing.T) {
	e := NewExit(3, zerolog.Nop())
	var codes []int
	e.exit = func(code int) { codes = append(codes, code) }

	e.Restart("scheduled")
	e.Restart("scheduled")

	assert.Equal(t, []int{3}, codes)
}
