package fraud

import (
	"context"
	"time"
)

// deviceLookback bounds how far back device history is considered.
const deviceLookback = 30 * 24 * time.Hour

// DeviceMultiplicityCollector flags accounts used from more devices than one
// person plausibly owns, and accounts that hop between devices within a
// single hour.
type DeviceMultiplicityCollector struct {
	activity ActivityHistory
	config   Config
}

// NewDeviceMultiplicityCollector creates a new DeviceMultiplicityCollector
func NewDeviceMultiplicityCollector(activity ActivityHistory, config Config) *DeviceMultiplicityCollector {
	return &DeviceMultiplicityCollector{activity: activity, config: config}
}

func (c *DeviceMultiplicityCollector) Name() string { return "device_multiplicity" }

func (c *DeviceMultiplicityCollector) Collect(ctx context.Context, userID string) (Signal, error) {
	var sig Signal
	now := time.Now()

	devices, err := c.activity.DistinctDevices(ctx, userID, now.Add(-deviceLookback))
	if err != nil {
		return Signal{}, err
	}

	if len(devices) > c.config.MaxDevicesPerAccount {
		sig.Flags = append(sig.Flags, "too_many_devices")
		sig.Score += 0.3 * float64(len(devices)) / float64(c.config.MaxDevicesPerAccount)
	}

	recentDevices, err := c.activity.DistinctDevices(ctx, userID, now.Add(-time.Hour))
	if err != nil {
		return Signal{}, err
	}

	if len(recentDevices) > 2 {
		sig.Flags = append(sig.Flags, "device_switching")
		sig.Score += 0.5
	}

	sig.Score = clamp(sig.Score)
	return sig, nil
}
