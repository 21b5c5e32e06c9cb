package app

import (
	"fmt"

	"gpsnmea/internal/nmea"
)

// FormatTrackLine renders the record as one CSV track line:
//
//	date,time,latitude,longitude,altitude_m,altitude_ft,satellites,fix,hdop,speed_kmh,course
//
// Date and time are local, shifted by the configured timezone offset.
func FormatTrackLine(s nmea.Snapshot) string {
	return fmt.Sprintf("%s,%s,%.6f,%.6f,%.1f,%.0f,%d,%d,%.1f,%.1f,%.1f",
		s.CalendarDate(), s.Clock(),
		s.DecLatitude, s.DecLongitude,
		s.MSLAltitude, s.AltitudeFeet(),
		s.Satellites, s.Lock, s.HDOP,
		s.SpeedKmh, s.CourseTrue)
}

// writeTrack appends the record to the track log and stdout when it changed
// since the last call.
func (app *Application) writeTrack() {
	snap := app.record.Snapshot()
	if snap == app.lastTrack {
		return
	}
	app.lastTrack = snap

	line := FormatTrackLine(snap)
	if app.logRotator != nil {
		if err := app.logRotator.WriteLine(line); err != nil {
			app.logger.WithError(err).Warn("Failed to write track line")
		}
	}
	fmt.Fprintln(app.output, line)
}
