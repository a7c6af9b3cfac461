package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"AA:BB:CC:DD:EE:FF", "aa:bb:cc:dd:ee:ff", false},
		{"aa-bb-cc-dd-ee-ff", "aa:bb:cc:dd:ee:ff", false},
		{"aabb.ccdd.eeff", "aa:bb:cc:dd:ee:ff", false},
		{"", "", true},
		{"00:00:00:00:00:00", "", true},
		{"AA:BB", "", true},
		{"00:00:00:00:fe:80:00:00:00:00:00:00:02:00:5e:10:00:00:00:01", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeMAC(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseIPv4(t *testing.T) {
	addr, err := ParseIPv4("10.0.0.5")
	assert.NoError(t, err)
	assert.Equal(t, "10.0.0.5", addr.String())

	addr, err = ParseIPv4("::ffff:10.0.0.5")
	assert.NoError(t, err)
	assert.Equal(t, "10.0.0.5", addr.String())

	_, err = ParseIPv4("fe80::1")
	assert.Error(t, err)

	_, err = ParseIPv4("not-an-ip")
	assert.Error(t, err)
}
