package mqtt

import (
	"errors"
	"testing"

	"github.com/benmeehan/beacon-agent/internal/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMqttService_TLSConfig_ReadError(t *testing.T) {
	// Setup
	fileOps := new(mocks.MockFileOperations)
	fileOps.On("ReadFileRaw", "/certs/ca.pem").Return(nil, errors.New("permission denied"))
	s := NewMqttService(fileOps, zerolog.Nop())

	// Execute
	_, err := s.tlsConfig(Options{CACertificate: "/certs/ca.pem"})

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read CA certificate")
}

func TestMqttService_TLSConfig_BadPEM(t *testing.T) {
	fileOps := new(mocks.MockFileOperations)
	fileOps.On("ReadFileRaw", "/certs/ca.pem").Return([]byte("not a certificate"), nil)
	s := NewMqttService(fileOps, zerolog.Nop())

	_, err := s.tlsConfig(Options{CACertificate: "/certs/ca.pem"})

	assert.EqualError(t, err, "failed to append CA certificate")
}

func TestMqttService_Initialize_FailsBeforeConnectOnTLSError(t *testing.T) {
	fileOps := new(mocks.MockFileOperations)
	fileOps.On("ReadFileRaw", "/certs/ca.pem").Return(nil, errors.New("no such file"))
	s := NewMqttService(fileOps, zerolog.Nop())

	err := s.Initialize(Options{Broker: "ssl://localhost:8883", ClientID: "test", CACertificate: "/certs/ca.pem"})

	assert.Error(t, err)
	assert.False(t, s.IsConnected())
}

func TestMqttService_NoClient(t *testing.T) {
	s := NewMqttService(new(mocks.MockFileOperations), zerolog.Nop())

	assert.False(t, s.IsConnected())
	assert.NotPanics(t, func() { s.Disconnect(0) })
}
