package nmea

import "errors"

// Validation errors returned by Validate
var (
	ErrMissingStart     = errors.New("nmea: sentence does not start with '$'")
	ErrTooLong          = errors.New("nmea: no checksum separator within maximum sentence length")
	ErrMissingChecksum  = errors.New("nmea: missing '*' checksum separator")
	ErrChecksumMismatch = errors.New("nmea: checksum mismatch")
)

const hexDigits = "0123456789ABCDEF"

// Checksum returns the XOR of every byte in payload.
func Checksum(payload []byte) byte {
	var sum byte
	for _, b := range payload {
		sum ^= b
	}
	return sum
}

// Validate checks the framing and checksum of a single sentence.
//
// The payload between '$' and '*' is XOR-accumulated and compared with the
// two characters following '*'. The comparison is against upper case hex
// digits, so a sentence carrying a lower case checksum is rejected. The scan
// also stops at a NUL byte, which leaves the sentence without a separator.
func Validate(sentence []byte) error {
	if len(sentence) == 0 || sentence[0] != StartDelimiter {
		return ErrMissingStart
	}

	var sum byte
	i := 1
	for i < len(sentence) && sentence[i] != 0 && sentence[i] != ChecksumDelimiter && i < MaxSentenceLength {
		sum ^= sentence[i]
		i++
	}

	if i >= MaxSentenceLength {
		return ErrTooLong
	}
	if i >= len(sentence) || sentence[i] != ChecksumDelimiter {
		return ErrMissingChecksum
	}

	// Fewer than two characters after '*' can never match.
	if i+2 >= len(sentence) {
		return ErrChecksumMismatch
	}
	if sentence[i+1] != hexDigits[sum>>4] || sentence[i+2] != hexDigits[sum&0x0F] {
		return ErrChecksumMismatch
	}

	return nil
}

// IsValid reports whether the sentence passes Validate.
func IsValid(sentence []byte) bool {
	return Validate(sentence) == nil
}
