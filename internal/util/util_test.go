package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCorrelationID_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := NewCorrelationID()
		assert.True(t, IsCorrelationID(id), "malformed id %q", id)
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %q", id)
		seen[id] = struct{}{}
	}
}

func TestIsCorrelationID_Rejects(t *testing.T) {
	assert.False(t, IsCorrelationID(""))
	assert.False(t, IsCorrelationID("not-an-id"))
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"whatsapp:+14155238886", "+14155238886"},
		{"+1 (415) 523-8886", "+14155238886"},
		{"0044 20 7946 0958", "+442079460958"},
		{"14155238886", "+14155238886"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhone(tt.in), "NormalizePhone(%q)", tt.in)
	}
}

func TestWhatsAppAddress(t *testing.T) {
	assert.Equal(t, "whatsapp:+14155238886", WhatsAppAddress("+14155238886"))
	assert.Equal(t, "whatsapp:+14155238886", WhatsAppAddress("whatsapp:+14155238886"))
	assert.Equal(t, "", WhatsAppAddress("   "))
}
