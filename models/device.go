package models

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Notification permission as reported by the browser (Notification.permission).
const (
	PermissionDefault = "default"
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
)

// DeviceRecord is a registered browser/device. It is created on first registration
// and never deleted by the dispatcher; only Subscribed is flipped when the relay
// reports the subscription as gone.
type DeviceRecord struct {
	DeviceID   string `json:"deviceId" validate:"required,max=120"`
	Username   string `json:"username" validate:"max=64"`
	Platform   string `json:"platform" validate:"max=32"`
	Browser    string `json:"browser" validate:"max=32"`
	Installed  bool   `json:"installed"`
	Permission string `json:"permission" validate:"omitempty,oneof=default granted denied"`
	Subscribed bool   `json:"subscribed"`
	// Unix milliseconds
	FirstSeen int64 `json:"first_seen" validate:"gte=0"`
	LastSeen  int64 `json:"last_seen" validate:"gte=0"`
}

// Validate checks the record against its schema.
func (d *DeviceRecord) Validate() error {
	return validate.Struct(d)
}

// ParseDeviceRecord decodes and validates a device record.
func ParseDeviceRecord(data []byte) (*DeviceRecord, error) {
	var device DeviceRecord
	if err := json.Unmarshal(data, &device); err != nil {
		return nil, fmt.Errorf("decoding device: %w", err)
	}
	if err := device.Validate(); err != nil {
		return nil, fmt.Errorf("invalid device %q: %w", device.DeviceID, err)
	}
	return &device, nil
}

// Encode serializes the record for storage.
func (d *DeviceRecord) Encode() ([]byte, error) {
	return json.Marshal(d)
}
