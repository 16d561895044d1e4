package services_test

import (
	"errors"
	"testing"
	"time"

	"github.com/benmeehan/beacon-agent/internal/mocks"
	"github.com/benmeehan/beacon-agent/internal/models"
	"github.com/benmeehan/beacon-agent/internal/services"
	"github.com/benmeehan/beacon-agent/pkg/identity"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newAliveMocks() (*mocks.MockDeviceInfo, *mocks.MockPublisher, chan *models.Alive) {
	deviceInfo := new(mocks.MockDeviceInfo)
	deviceInfo.On("GetDeviceIdentity").Return(identity.Identity{DeviceID: "dev-1", ApplicationID: "app-1"})

	sent := make(chan *models.Alive, 16)
	publisher := new(mocks.MockPublisher)
	publisher.On("Publish", mock.Anything, mock.AnythingOfType("*models.Alive")).
		Run(func(args mock.Arguments) { sent <- args.Get(1).(*models.Alive) }).
		Return(nil)
	return deviceInfo, publisher, sent
}

// TestAliveService_Start_PublishesOnce tests the startup announcement.
func TestAliveService_Start_PublishesOnce(t *testing.T) {
	// Setup
	deviceInfo, publisher, sent := newAliveMocks()
	a := services.NewAliveService(0, deviceInfo, models.IdentityKeys{Device: "device_id", Application: "customer"}, publisher, zerolog.Nop())

	// Execute
	err := a.Start()

	// Assert
	require.NoError(t, err)
	select {
	case msg := <-sent:
		wire, err := msg.Wire()
		require.NoError(t, err)
		assert.Contains(t, string(wire), `"device_id":"dev-1","customer":"app-1","time":`)
	case <-time.After(time.Second):
		t.Fatal("alive message was not published")
	}

	assert.EqualError(t, a.Start(), "alive service is already running")

	// Cleanup
	assert.NoError(t, a.Stop())
	publisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestAliveService_Interval(t *testing.T) {
	// Setup
	deviceInfo, publisher, sent := newAliveMocks()
	a := services.NewAliveService(10*time.Millisecond, deviceInfo, models.DefaultIdentityKeys, publisher, zerolog.Nop())

	// Execute
	require.NoError(t, a.Start())

	// Assert
	for i := 0; i < 3; i++ {
		select {
		case <-sent:
		case <-time.After(time.Second):
			t.Fatalf("alive message %d was not published", i+1)
		}
	}
	assert.NoError(t, a.Stop())
}

func TestAliveService_PublishErrorKeepsRunning(t *testing.T) {
	// Setup
	deviceInfo := new(mocks.MockDeviceInfo)
	deviceInfo.On("GetDeviceIdentity").Return(identity.Identity{DeviceID: "dev-1"})
	attempts := make(chan struct{}, 16)
	publisher := new(mocks.MockPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			select {
			case attempts <- struct{}{}:
			default:
			}
		}).
		Return(errors.New("not connected"))

	a := services.NewAliveService(5*time.Millisecond, deviceInfo, models.DefaultIdentityKeys, publisher, zerolog.Nop())

	// Execute
	require.NoError(t, a.Start())

	// Assert
	for i := 0; i < 2; i++ {
		select {
		case <-attempts:
		case <-time.After(time.Second):
			t.Fatal("alive loop stopped after a failed publish")
		}
	}
	assert.NoError(t, a.Stop())
}

func TestAliveService_Stop_NotRunning(t *testing.T) {
	deviceInfo, publisher, _ := newAliveMocks()
	a := services.NewAliveService(0, deviceInfo, models.DefaultIdentityKeys, publisher, zerolog.Nop())

	err := a.Stop()

	assert.EqualError(t, err, "alive service is not running")
}
