package device

import (
	"errors"
	"strings"
	"testing"
)

func validDevice() *Device {
	return &Device{
		DeviceID:  "living_room",
		Name:      "Living Room Fire TV",
		IPAddress: "192.168.1.42",
		APIKey:    "0987654321",
		Status:    StatusOffline,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Device)
		wantErr error
	}{
		{
			name:   "valid device",
			mutate: func(_ *Device) {},
		},
		{
			name:   "valid with hyphens",
			mutate: func(d *Device) { d.DeviceID = "guest-room-2" },
		},
		{
			name:   "empty status allowed",
			mutate: func(d *Device) { d.Status = "" },
		},
		{
			name:    "missing device id",
			mutate:  func(d *Device) { d.DeviceID = "" },
			wantErr: ErrInvalidID,
		},
		{
			name:    "uppercase device id",
			mutate:  func(d *Device) { d.DeviceID = "LivingRoom" },
			wantErr: ErrInvalidID,
		},
		{
			name:    "device id with spaces",
			mutate:  func(d *Device) { d.DeviceID = "living room" },
			wantErr: ErrInvalidID,
		},
		{
			name:    "device id too long",
			mutate:  func(d *Device) { d.DeviceID = strings.Repeat("a", 51) },
			wantErr: ErrInvalidID,
		},
		{
			name:    "empty name",
			mutate:  func(d *Device) { d.Name = "  " },
			wantErr: ErrInvalidName,
		},
		{
			name:    "name too long",
			mutate:  func(d *Device) { d.Name = strings.Repeat("x", 101) },
			wantErr: ErrInvalidName,
		},
		{
			name:    "bad ip address",
			mutate:  func(d *Device) { d.IPAddress = "not-an-ip" },
			wantErr: ErrInvalidAddress,
		},
		{
			name:    "missing api key",
			mutate:  func(d *Device) { d.APIKey = "" },
			wantErr: ErrInvalidDevice,
		},
		{
			name:    "unknown status",
			mutate:  func(d *Device) { d.Status = "sleeping" },
			wantErr: ErrInvalidStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDevice()
			tt.mutate(d)

			err := d.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDeviceIDIPv6Address(t *testing.T) {
	d := validDevice()
	d.IPAddress = "fd12:3456::1"
	if err := d.Validate(); err != nil {
		t.Errorf("IPv6 address rejected: %v", err)
	}
}
