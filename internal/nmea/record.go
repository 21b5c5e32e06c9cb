package nmea

import (
	"fmt"
	"sync"
)

// Char is a single character copied verbatim from a sentence field, such as
// a hemisphere letter or a unit tag. The zero value means never set.
type Char byte

// String returns the character, or an empty string when unset.
func (c Char) String() string {
	if c == 0 {
		return ""
	}
	return string(rune(c))
}

// MarshalText encodes the character as a one letter string.
func (c Char) MarshalText() ([]byte, error) {
	if c == 0 {
		return []byte{}, nil
	}
	return []byte{byte(c)}, nil
}

// Snapshot is a value copy of the decoded GNSS state.
type Snapshot struct {
	// Calculated from the GGA fix
	DecLatitude  float64 `json:"dec_latitude"`
	DecLongitude float64 `json:"dec_longitude"`

	// GGA - fix data
	NMEALatitude  float64 `json:"nmea_latitude"`
	NMEALongitude float64 `json:"nmea_longitude"`
	UTCTime       float64 `json:"utc_time"`
	NS            Char    `json:"ns"`
	EW            Char    `json:"ew"`
	Lock          int     `json:"lock"`
	Satellites    int     `json:"satellites"`
	HDOP          float64 `json:"hdop"`
	MSLAltitude   float64 `json:"msl_altitude"`
	MSLUnits      Char    `json:"msl_units"`

	// RMC - recommended minimum data
	RMCStatus  Char    `json:"rmc_status"`
	SpeedKnots float64 `json:"speed_knots"`
	CourseDeg  float64 `json:"course_deg"`
	Date       int     `json:"date"`

	// VTG - course and speed over ground
	CourseTrue         float64 `json:"course_true"`
	CourseTrueUnit     Char    `json:"course_true_unit"`
	CourseMagnetic     float64 `json:"course_magnetic"` // never written: the magnetic course value is skipped
	CourseMagneticUnit Char    `json:"course_magnetic_unit"`
	SpeedKnotsUnit     Char    `json:"speed_knots_unit"`
	SpeedKmh           float64 `json:"speed_kmh"`
	SpeedKmhUnit       Char    `json:"speed_kmh_unit"`

	// Converted time, shifted by the timezone offset
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`

	// Converted date
	Day   int `json:"day"`
	Month int `json:"month"`
	Year  int `json:"year"`
}

// AltitudeFeet returns the MSL altitude in feet. Altitudes already reported
// in feet are returned unchanged.
func (s Snapshot) AltitudeFeet() float64 {
	if s.MSLUnits == 'F' {
		return s.MSLAltitude
	}
	return s.MSLAltitude * metersToFeet
}

// Clock formats the converted time as hh:mm:ss.
func (s Snapshot) Clock() string {
	return fmt.Sprintf("%02d:%02d:%02d", s.Hours, s.Minutes, s.Seconds)
}

// CalendarDate formats the converted date as yyyy-mm-dd.
func (s Snapshot) CalendarDate() string {
	return fmt.Sprintf("%04d-%02d-%02d", s.Year, s.Month, s.Day)
}

// Record is the shared decoded state. It is written only by a Parser and may
// be read concurrently through Snapshot.
//
// A parse holds the write lock for a whole sentence, so a reader never sees
// a half-written field. It may still see a sentence whose field extraction
// stopped early.
type Record struct {
	mu   sync.RWMutex
	data Snapshot
}

// NewRecord creates a zero-initialized record.
func NewRecord() *Record {
	return &Record{}
}

// Snapshot returns a copy of the current state.
func (r *Record) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data
}

// update applies fn to the record under the write lock and returns the
// resulting state.
func (r *Record) update(fn func(s *Snapshot)) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.data)
	return r.data
}
