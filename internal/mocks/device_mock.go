package mocks

import (
	"context"

	"github.com/benmeehan/beacon-agent/internal/models"
	"github.com/benmeehan/beacon-agent/pkg/gps"
	"github.com/benmeehan/beacon-agent/pkg/sensors"
	"github.com/benmeehan/beacon-agent/pkg/status"
	"github.com/stretchr/testify/mock"
)

// MockPublisher is a mock implementation of the services.Publisher interface
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, msg models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockWatchdog is a mock implementation of the watchdog.Watchdog interface
type MockWatchdog struct {
	mock.Mock
}

func (m *MockWatchdog) Feed() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockWatchdog) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockRestarter is a mock implementation of the restart.Restarter interface
type MockRestarter struct {
	mock.Mock
}

func (m *MockRestarter) Restart(reason string) {
	m.Called(reason)
}

// MockIndicator is a mock implementation of the status.Indicator interface
type MockIndicator struct {
	mock.Mock
}

func (m *MockIndicator) Set(s status.Status) {
	m.Called(s)
}

// MockSensorBus is a mock implementation of the sensors.Bus interface
type MockSensorBus struct {
	mock.Mock
}

func (m *MockSensorBus) Read() (sensors.Sample, error) {
	args := m.Called()
	return args.Get(0).(sensors.Sample), args.Error(1)
}

// MockLocationProvider is a mock implementation of the location.Provider interface
type MockLocationProvider struct {
	mock.Mock
}

func (m *MockLocationProvider) Update(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockLocationProvider) Fix() gps.Fix {
	args := m.Called()
	return args.Get(0).(gps.Fix)
}

func (m *MockLocationProvider) Close() error {
	args := m.Called()
	return args.Error(0)
}
