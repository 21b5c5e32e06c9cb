package nmea

// Sentence prefixes recognized by the parser, checked in this order.
const (
	PrefixGGA = "$GNGGA" // Global positioning system fix data
	PrefixRMC = "$GNRMC" // Recommended minimum specific GNSS data
	PrefixVTG = "$GNVTG" // Course over ground and ground speed
)

// PrefixLength is the length of the talker/type header including '$'.
const PrefixLength = 6

// MaxSentenceLength bounds the checksum scan. A '*' separator must appear
// before this index for the sentence to be accepted.
const MaxSentenceLength = 75

// Sentence delimiters
const (
	StartDelimiter    = '$'
	ChecksumDelimiter = '*'
	FieldDelimiter    = ','
	LineTerminator    = '\n'
)

// Hemisphere letters that negate a converted coordinate
const (
	HemisphereSouth = 'S'
	HemisphereWest  = 'W'
)

const metersToFeet = 3.280839895013123

// Number of positional fields extracted per sentence type
const (
	ggaFieldCount = 10
	rmcFieldCount = 9
	vtgFieldCount = 7
)
