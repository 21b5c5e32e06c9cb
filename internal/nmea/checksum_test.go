package nmea

import (
	"fmt"
	"strings"
	"testing"

	gonmea "github.com/adrianmo/go-nmea"
	"github.com/stretchr/testify/assert"
)

// sentence wraps payload with '$' and its checksum.
func sentence(payload string) string {
	return fmt.Sprintf("$%s*%02X", payload, Checksum([]byte(payload)))
}

const (
	ggaPayload = "GNGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M"
	rmcPayload = "GNRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394"
	vtgPayload = "GNVTG,054.7,T,034.4,M,005.5,N,010.2,K"
	gsvPayload = "GPGSV,2,1,08,01,40,083,46,02,17,308,41,12,07,344,39,14,22,228,45"
)

func TestChecksum(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected byte
	}{
		{name: "Empty payload", payload: "", expected: 0x00},
		{name: "Single byte", payload: "A", expected: 'A'},
		{name: "GGA", payload: ggaPayload, expected: 0x01},
		{name: "RMC", payload: rmcPayload, expected: 0x0F},
		{name: "VTG", payload: vtgPayload, expected: 0x56},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Checksum([]byte(tt.payload)))
		})
	}
}

// TestChecksum_MatchesGoNMEA cross-checks the XOR against an independent
// NMEA implementation.
func TestChecksum_MatchesGoNMEA(t *testing.T) {
	for _, payload := range []string{ggaPayload, rmcPayload, vtgPayload, gsvPayload} {
		t.Run(payload[:5], func(t *testing.T) {
			want := gonmea.Checksum(payload)
			assert.Equal(t, want, fmt.Sprintf("%02X", Checksum([]byte(payload))))
		})
	}
}

func TestValidate(t *testing.T) {
	good := sentence(ggaPayload)

	tests := []struct {
		name     string
		input    string
		expected error
	}{
		{name: "Valid GGA", input: good, expected: nil},
		{name: "Valid GGA literal", input: "$" + ggaPayload + "*01", expected: nil},
		{name: "Valid with trailing CR", input: good + "\r", expected: nil},
		{name: "Valid RMC", input: sentence(rmcPayload), expected: nil},
		{name: "Valid unrecognized type", input: sentence(gsvPayload), expected: nil},
		{name: "Empty", input: "", expected: ErrMissingStart},
		{name: "Missing dollar", input: good[1:], expected: ErrMissingStart},
		{name: "Leading garbage", input: "x" + good, expected: ErrMissingStart},
		{name: "No separator", input: "$" + ggaPayload, expected: ErrMissingChecksum},
		{name: "NUL before separator", input: "$GNGGA\x00,1*00", expected: ErrMissingChecksum},
		{name: "Separator without digits", input: "$" + ggaPayload + "*", expected: ErrChecksumMismatch},
		{name: "Separator with one digit", input: "$" + ggaPayload + "*0", expected: ErrChecksumMismatch},
		{name: "Wrong checksum", input: "$" + ggaPayload + "*47", expected: ErrChecksumMismatch},
		{name: "Too long", input: "$" + strings.Repeat("A", 80) + "*00", expected: ErrTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]byte(tt.input))
			if tt.expected == nil {
				assert.NoError(t, err)
				assert.True(t, IsValid([]byte(tt.input)))
				return
			}
			assert.ErrorIs(t, err, tt.expected)
			assert.False(t, IsValid([]byte(tt.input)))
		})
	}
}

func TestValidate_CaseSensitive(t *testing.T) {
	// 0x0F renders as "0F"; a receiver sending "0f" is rejected.
	assert.NoError(t, Validate([]byte("$"+rmcPayload+"*0F")))
	assert.ErrorIs(t, Validate([]byte("$"+rmcPayload+"*0f")), ErrChecksumMismatch)
}

func TestValidate_LengthBound(t *testing.T) {
	// '*' at index 74 is the last position accepted.
	payload := strings.Repeat("B", MaxSentenceLength-2)
	accepted := sentence(payload)
	assert.Equal(t, MaxSentenceLength-1, strings.IndexByte(accepted, '*'))
	assert.NoError(t, Validate([]byte(accepted)))

	payload = strings.Repeat("B", MaxSentenceLength-1)
	rejected := sentence(payload)
	assert.ErrorIs(t, Validate([]byte(rejected)), ErrTooLong)
}

func TestValidate_BitFlipRejected(t *testing.T) {
	good := []byte(sentence(ggaPayload))
	assert.NoError(t, Validate(good))

	for i := 1; i < strings.IndexByte(string(good), '*'); i++ {
		corrupted := append([]byte(nil), good...)
		corrupted[i] ^= 0x01
		if corrupted[i] == '*' || corrupted[i] == 0 {
			continue
		}
		assert.Error(t, Validate(corrupted), "flip at index %d", i)
	}
}
