package nmea

import (
	"bytes"
	"strconv"
)

// fieldScanner walks the comma-separated fields of a sentence in order.
//
// Once a field is missing or malformed the scanner halts and every later
// store is a no-op. Values stored before the halt are kept.
type fieldScanner struct {
	fields  [][]byte
	pos     int
	written int
	halted  bool
}

// newFieldScanner prepares the fields following the 6 byte prefix. The
// checksum suffix and any carriage return are cut off first.
func newFieldScanner(sentence []byte) *fieldScanner {
	s := &fieldScanner{}
	if len(sentence) <= PrefixLength {
		s.halted = true
		return s
	}

	body := sentence[PrefixLength:]
	if i := bytes.IndexByte(body, ChecksumDelimiter); i >= 0 {
		body = body[:i]
	}
	body = bytes.TrimRight(body, "\r\x00")

	if len(body) == 0 || body[0] != FieldDelimiter {
		s.halted = true
		return s
	}

	s.fields = bytes.Split(body[1:], []byte{FieldDelimiter})
	return s
}

func (s *fieldScanner) next() ([]byte, bool) {
	if s.halted {
		return nil, false
	}
	if s.pos >= len(s.fields) || len(s.fields[s.pos]) == 0 {
		s.halted = true
		return nil, false
	}
	f := s.fields[s.pos]
	s.pos++
	return f, true
}

// float stores the leading decimal number of the next field.
func (s *fieldScanner) float(dst *float64) {
	f, ok := s.next()
	if !ok {
		return
	}
	n := numericPrefix(f, true)
	if n == 0 {
		s.halted = true
		return
	}
	v, err := strconv.ParseFloat(string(f[:n]), 64)
	if err != nil {
		s.halted = true
		return
	}
	*dst = v
	s.written++
	if n < len(f) {
		s.halted = true
	}
}

// integer stores the leading decimal integer of the next field.
func (s *fieldScanner) integer(dst *int) {
	f, ok := s.next()
	if !ok {
		return
	}
	n := numericPrefix(f, false)
	if n == 0 {
		s.halted = true
		return
	}
	v, err := strconv.Atoi(string(f[:n]))
	if err != nil {
		s.halted = true
		return
	}
	*dst = v
	s.written++
	if n < len(f) {
		s.halted = true
	}
}

// char stores the first byte of the next field.
func (s *fieldScanner) char(dst *Char) {
	f, ok := s.next()
	if !ok {
		return
	}
	*dst = Char(f[0])
	s.written++
	if len(f) > 1 {
		s.halted = true
	}
}

// skip discards the next field without storing it. An empty field still
// halts the scan.
func (s *fieldScanner) skip() {
	s.next()
}

// numericPrefix returns the length of the leading run of f that reads as a
// signed decimal number, or 0 if there is none.
func numericPrefix(f []byte, fraction bool) int {
	i := 0
	if i < len(f) && (f[i] == '+' || f[i] == '-') {
		i++
	}

	digits := 0
	for i < len(f) && isDigit(f[i]) {
		i++
		digits++
	}

	if fraction && i < len(f) && f[i] == '.' {
		j := i + 1
		for j < len(f) && isDigit(f[j]) {
			j++
			digits++
		}
		i = j
	}

	if digits == 0 {
		return 0
	}
	return i
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
