// Package adapter translates raw instrument payloads into normalized
// algorithm input and selects the algorithm catalog of the device family.
package adapter

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/bearing-monitor/station/internal/algorithm"
	"github.com/bearing-monitor/station/internal/algorithm/icm20948"
	"github.com/bearing-monitor/station/internal/algorithm/testdevice"
)

var (
	// ErrUnknownDeviceType is returned for device types outside the registry.
	ErrUnknownDeviceType = errors.New("unknown device type")
	// ErrInvalidPayload is returned when a payload lacks device-specific fields.
	ErrInvalidPayload = errors.New("invalid device payload")
)

// Adapter is implemented once per device family. Implementations are
// stateless and safe to share between connections.
type Adapter interface {
	// Normalize converts one decoded message into algorithm input.
	Normalize(msg map[string]any) (algorithm.Data, error)
	// Factory returns the device family's algorithm catalog.
	Factory() algorithm.Factory
}

// Registry resolves device-type strings to adapters.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a registry over a fixed set of adapters.
func NewRegistry(adapters map[string]Adapter) *Registry {
	return &Registry{adapters: maps.Clone(adapters)}
}

// Default is the closed set of device families the station understands.
func Default() *Registry {
	return NewRegistry(map[string]Adapter{
		"Test":     Test{factory: testdevice.NewFactory()},
		"ICM20948": ICM20948{factory: icm20948.NewFactory()},
	})
}

// Lookup returns the adapter for deviceType.
func (r *Registry) Lookup(deviceType string) (Adapter, error) {
	a, ok := r.adapters[deviceType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDeviceType, deviceType)
	}
	return a, nil
}

// DeviceTypes lists registered device types, sorted.
func (r *Registry) DeviceTypes() []string {
	return slices.Sorted(maps.Keys(r.adapters))
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}
