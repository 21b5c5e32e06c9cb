package nmea

import "math"

// NMEAToDecimal converts an NMEA ddmm.mmmm / dddmm.mmmm coordinate into
// decimal degrees. Southern and western hemispheres yield negative values.
func NMEAToDecimal(value float64, hemisphere byte) float64 {
	degrees := math.Trunc(value / 100)
	minutes := value - degrees*100
	decimal := degrees + minutes/60

	if hemisphere == HemisphereSouth || hemisphere == HemisphereWest {
		decimal = -decimal
	}
	return decimal
}

// ConvertTime splits a raw hhmmss.sss UTC time into hours, minutes and
// seconds, then shifts the hour by offsetHours.
//
// The hour is wrapped back into [0, 24) with a single correction step, so
// only offsets within one day are handled.
func ConvertTime(raw float64, offsetHours int) (hours, minutes, seconds int) {
	hours = int(raw / 10000)
	minutes = int(raw/100) % 100
	seconds = int(raw) % 100

	hours += offsetHours
	if hours >= 24 {
		hours -= 24
	} else if hours < 0 {
		hours += 24
	}

	return hours, minutes, seconds
}

// ConvertDate splits a raw ddmmyy date. The two digit year is placed in the
// 2000s; there is no range checking of any component.
func ConvertDate(raw int) (day, month, year int) {
	day = raw / 10000
	month = (raw / 100) % 100
	year = (raw % 100) + 2000
	return day, month, year
}
