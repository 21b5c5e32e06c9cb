package nmea

import (
	"bytes"

	"github.com/sirupsen/logrus"
)

// Kind identifies the sentence type handled by a parse.
type Kind int

// Sentence kinds
const (
	KindUnknown Kind = iota
	KindGGA
	KindRMC
	KindVTG
)

func (k Kind) String() string {
	switch k {
	case KindGGA:
		return "GGA"
	case KindRMC:
		return "RMC"
	case KindVTG:
		return "VTG"
	default:
		return "unknown"
	}
}

// ParseResult describes what a call to Parse did to the record.
type ParseResult struct {
	Kind     Kind
	Fields   int // fields written to the record
	Expected int // fields the sentence type carries
}

// Updated reports whether at least one field was written.
func (r ParseResult) Updated() bool {
	return r.Fields > 0
}

// Partial reports whether extraction stopped before the last field.
func (r ParseResult) Partial() bool {
	return r.Fields > 0 && r.Fields < r.Expected
}

// Parser extracts fields from validated sentences into a Record.
type Parser struct {
	record         *Record
	timezoneOffset int
	logger         *logrus.Logger
}

// NewParser creates a parser writing into record. timezoneOffset is added to
// every converted UTC hour.
func NewParser(record *Record, timezoneOffset int, logger *logrus.Logger) *Parser {
	return &Parser{
		record:         record,
		timezoneOffset: timezoneOffset,
		logger:         logger,
	}
}

// Record returns the record the parser writes into.
func (p *Parser) Record() *Record {
	return p.record
}

// Parse dispatches a sentence on its 6 character prefix and updates the
// record. Unrecognized sentences leave the record untouched. Parse never
// fails; the result is informational only.
func (p *Parser) Parse(sentence []byte) ParseResult {
	var result ParseResult
	var snap Snapshot

	switch {
	case bytes.HasPrefix(sentence, []byte(PrefixGGA)):
		result, snap = p.parseGGA(sentence)
	case bytes.HasPrefix(sentence, []byte(PrefixRMC)):
		result, snap = p.parseRMC(sentence)
	case bytes.HasPrefix(sentence, []byte(PrefixVTG)):
		result, snap = p.parseVTG(sentence)
	default:
		return ParseResult{Kind: KindUnknown}
	}

	if result.Updated() && p.logger.IsLevelEnabled(logrus.DebugLevel) {
		p.logger.WithFields(logrus.Fields{
			"kind":      result.Kind.String(),
			"fields":    result.Fields,
			"latitude":  snap.DecLatitude,
			"longitude": snap.DecLongitude,
			"time":      snap.Clock(),
		}).Debug("Sentence parsed")
	}

	return result
}

// GGA: Global Positioning System Fix Data
//
//	1: UTC time (hhmmss.sss)
//	2: latitude (ddmm.mmmm)
//	3: N/S
//	4: longitude (dddmm.mmmm)
//	5: E/W
//	6: fix quality
//	7: satellites in use
//	8: HDOP
//	9: MSL altitude
//	10: altitude units
func (p *Parser) parseGGA(sentence []byte) (ParseResult, Snapshot) {
	sc := newFieldScanner(sentence)
	snap := p.record.update(func(r *Snapshot) {
		sc.float(&r.UTCTime)
		sc.float(&r.NMEALatitude)
		sc.char(&r.NS)
		sc.float(&r.NMEALongitude)
		sc.char(&r.EW)
		sc.integer(&r.Lock)
		sc.integer(&r.Satellites)
		sc.float(&r.HDOP)
		sc.float(&r.MSLAltitude)
		sc.char(&r.MSLUnits)

		if sc.written == 0 {
			return
		}
		r.DecLatitude = NMEAToDecimal(r.NMEALatitude, byte(r.NS))
		r.DecLongitude = NMEAToDecimal(r.NMEALongitude, byte(r.EW))
		r.Hours, r.Minutes, r.Seconds = ConvertTime(r.UTCTime, p.timezoneOffset)
	})

	return ParseResult{Kind: KindGGA, Fields: sc.written, Expected: ggaFieldCount}, snap
}

// RMC: Recommended Minimum Specific GNSS Data
//
//	1: UTC time (hhmmss.sss)
//	2: status (A=active, V=void)
//	3: latitude
//	4: N/S
//	5: longitude
//	6: E/W
//	7: speed over ground (knots)
//	8: course over ground (degrees true)
//	9: date (ddmmyy)
func (p *Parser) parseRMC(sentence []byte) (ParseResult, Snapshot) {
	sc := newFieldScanner(sentence)
	snap := p.record.update(func(r *Snapshot) {
		sc.float(&r.UTCTime)
		sc.char(&r.RMCStatus)
		sc.float(&r.NMEALatitude)
		sc.char(&r.NS)
		sc.float(&r.NMEALongitude)
		sc.char(&r.EW)
		sc.float(&r.SpeedKnots)
		sc.float(&r.CourseDeg)
		sc.integer(&r.Date)

		if sc.written == 0 {
			return
		}
		r.Hours, r.Minutes, r.Seconds = ConvertTime(r.UTCTime, p.timezoneOffset)
		r.Day, r.Month, r.Year = ConvertDate(r.Date)
	})

	return ParseResult{Kind: KindRMC, Fields: sc.written, Expected: rmcFieldCount}, snap
}

// VTG: Course Over Ground and Ground Speed
//
//	1: course (degrees true)
//	2: T
//	3: course (degrees magnetic), required but not stored
//	4: M
//	5: speed (knots)
//	6: N
//	7: speed (km/h)
//	8: K
func (p *Parser) parseVTG(sentence []byte) (ParseResult, Snapshot) {
	sc := newFieldScanner(sentence)
	snap := p.record.update(func(r *Snapshot) {
		sc.float(&r.CourseTrue)
		sc.char(&r.CourseTrueUnit)
		sc.skip()
		sc.char(&r.CourseMagneticUnit)
		sc.float(&r.SpeedKnots)
		sc.char(&r.SpeedKnotsUnit)
		sc.float(&r.SpeedKmh)
		sc.char(&r.SpeedKmhUnit)
	})

	return ParseResult{Kind: KindVTG, Fields: sc.written, Expected: vtgFieldCount}, snap
}
