package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePayload(t *testing.T) {
	tests := []struct {
		name         string
		payload      string
		wantDeviceID string
		wantOK       bool
	}{
		{
			name:         "strict json with device_id",
			payload:      `{"device_id":"dev-1","rssi":-61}`,
			wantDeviceID: "dev-1",
			wantOK:       true,
		},
		{
			name:    "strict json without device fields",
			payload: `{"temperature":22.5}`,
			wantOK:  true,
		},
		{
			name:         "python dict syntax from ble scanner",
			payload:      `{'data': {'mac': 'AA:BB:CC:DD:EE:FF', 'rssi': -70}}`,
			wantDeviceID: "AA:BB:CC:DD:EE:FF",
			wantOK:       true,
		},
		{
			name:         "regex fallback on broken quoting",
			payload:      `garbage 'mac': 'aa:bb:cc:dd:ee:ff' trailing`,
			wantDeviceID: "aa:bb:cc:dd:ee:ff",
			wantOK:       true,
		},
		{
			name:    "unparseable text",
			payload: "not structured at all",
			wantOK:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deviceID, ok := normalizePayload(tt.payload)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantDeviceID, deviceID)
		})
	}
}
