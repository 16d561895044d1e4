package publisher_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benmeehan/beacon-agent/internal/mocks"
	"github.com/benmeehan/beacon-agent/internal/models"
	"github.com/benmeehan/beacon-agent/internal/publisher"
	"github.com/benmeehan/beacon-agent/pkg/identity"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testOptions = publisher.Options{
	Topics: map[models.Kind]string{
		models.KindTelemetry: "beacons/node-7/telemetry",
		models.KindAlive:     "beacons/node-7/alive",
	},
	QOS:     1,
	Timeout: time.Second,
}

func testRecord(beacons ...string) *models.Record {
	return models.BuildRecord(
		identity.Identity{DeviceID: "node-7", ApplicationID: "yard"},
		models.IdentityKeys{},
		time.Unix(1700000000, 0),
		nil, nil, beacons, nil,
	)
}

// TestMQTTPublisher_Publish_Success tests publishing a record to its topic.
func TestMQTTPublisher_Publish_Success(t *testing.T) {
	// Setup
	client := new(mocks.MockMQTTClient)
	token := mocks.NewCompletedToken(nil)
	client.On("Publish", "beacons/node-7/telemetry", byte(1), false, mock.Anything).Return(token)
	p := publisher.NewMQTTPublisher(client, testOptions, zerolog.Nop())

	// Execute
	err := p.Publish(context.Background(), testRecord("b1"))

	// Assert
	require.NoError(t, err)
	payload := client.Calls[0].Arguments.Get(3).([]byte)
	assert.JSONEq(t, `{"dev_id":"node-7","app_id":"yard","time":1700000000,"sensors":[],"beacons":["b1"]}`, string(payload))
	client.AssertExpectations(t)
	token.AssertExpectations(t)
}

func TestMQTTPublisher_Publish_Alive(t *testing.T) {
	// Setup
	client := new(mocks.MockMQTTClient)
	client.On("Publish", "beacons/node-7/alive", byte(1), false, mock.Anything).Return(mocks.NewCompletedToken(nil))
	p := publisher.NewMQTTPublisher(client, testOptions, zerolog.Nop())
	alive := &models.Alive{Header: testRecord().Header}

	// Execute
	err := p.Publish(context.Background(), alive)

	// Assert
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestMQTTPublisher_Publish_NoTopic(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	p := publisher.NewMQTTPublisher(client, testOptions, zerolog.Nop())

	err := p.Publish(context.Background(), &models.Health{})

	assert.ErrorContains(t, err, "no topic configured for health")
	client.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMQTTPublisher_Publish_TokenError(t *testing.T) {
	// Setup
	client := new(mocks.MockMQTTClient)
	client.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(mocks.NewCompletedToken(errors.New("not connected")))
	p := publisher.NewMQTTPublisher(client, testOptions, zerolog.Nop())

	// Execute
	err := p.Publish(context.Background(), testRecord())

	// Assert
	assert.ErrorContains(t, err, "not connected")
}

func TestMQTTPublisher_Publish_Timeout(t *testing.T) {
	// Setup
	client := new(mocks.MockMQTTClient)
	token := new(mocks.MockToken)
	token.On("WaitTimeout", time.Second).Return(false)
	client.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(token)
	p := publisher.NewMQTTPublisher(client, testOptions, zerolog.Nop())

	// Execute
	err := p.Publish(context.Background(), testRecord())

	// Assert
	assert.ErrorContains(t, err, "timed out publishing")
	token.AssertNotCalled(t, "Error")
}

func TestMQTTPublisher_Publish_CancelledContext(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	p := publisher.NewMQTTPublisher(client, testOptions, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Publish(ctx, testRecord())

	assert.ErrorIs(t, err, context.Canceled)
}
