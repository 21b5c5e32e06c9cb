package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"gpsnmea/internal/frame"
	"gpsnmea/internal/nmea"
)

const namespace = "gpsnmea"

// StatsSource provides assembler counters.
type StatsSource interface {
	Stats() frame.Stats
}

// SnapshotSource provides the decoded record.
type SnapshotSource interface {
	Snapshot() nmea.Snapshot
}

// Collector exports assembler counters and the current fix. Values are read
// from the sources on every scrape, so nothing has to be pushed.
type Collector struct {
	stats  StatsSource
	record SnapshotSource

	bytes     *prometheus.Desc
	sentences *prometheus.Desc
	overflows *prometheus.Desc
	valid     *prometheus.Desc
	rejected  *prometheus.Desc
	parsed    *prometheus.Desc
	unknown   *prometheus.Desc
	partial   *prometheus.Desc
	empty     *prometheus.Desc

	fixQuality *prometheus.Desc
	satellites *prometheus.Desc
	hdop       *prometheus.Desc
	altitude   *prometheus.Desc
	latitude   *prometheus.Desc
	longitude  *prometheus.Desc
	speedKnots *prometheus.Desc
	speedKmh   *prometheus.Desc
}

// NewCollector creates a collector. record may be nil, in which case only
// the counters are exported.
func NewCollector(stats StatsSource, record SnapshotSource) *Collector {
	desc := func(subsystem, name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, labels, nil)
	}

	return &Collector{
		stats:  stats,
		record: record,

		bytes:     desc("", "bytes_total", "Bytes submitted to the sentence assembler."),
		sentences: desc("", "sentences_total", "Candidate sentences terminated by a line feed or a full buffer."),
		overflows: desc("", "buffer_overflows_total", "Candidate sentences terminated because the line buffer was full."),
		valid:     desc("", "sentences_valid_total", "Sentences that passed checksum validation."),
		rejected:  desc("", "sentences_rejected_total", "Sentences that failed validation, by reason.", "reason"),
		parsed:    desc("", "sentences_parsed_total", "Valid sentences decoded into the record, by kind.", "kind"),
		unknown:   desc("", "sentences_unknown_total", "Valid sentences of an unsupported kind."),
		partial:   desc("", "sentences_partial_total", "Sentences whose field extraction stopped early."),
		empty:     desc("", "sentences_empty_total", "Recognized sentences that updated no field."),

		fixQuality: desc("fix", "quality", "GGA fix quality indicator."),
		satellites: desc("fix", "satellites", "Satellites used in the fix."),
		hdop:       desc("fix", "hdop", "Horizontal dilution of precision."),
		altitude:   desc("fix", "altitude_meters", "Altitude above mean sea level."),
		latitude:   desc("fix", "latitude_degrees", "Latitude in signed decimal degrees."),
		longitude:  desc("fix", "longitude_degrees", "Longitude in signed decimal degrees."),
		speedKnots: desc("fix", "speed_knots", "Speed over ground from RMC."),
		speedKmh:   desc("fix", "speed_kmh", "Speed over ground from VTG."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.bytes, c.sentences, c.overflows, c.valid, c.rejected,
		c.parsed, c.unknown, c.partial, c.empty,
	} {
		ch <- d
	}
	if c.record == nil {
		return
	}
	for _, d := range []*prometheus.Desc{
		c.fixQuality, c.satellites, c.hdop, c.altitude,
		c.latitude, c.longitude, c.speedKnots, c.speedKmh,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats.Stats()

	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}

	counter(c.bytes, s.Bytes)
	counter(c.sentences, s.Sentences)
	counter(c.overflows, s.Overflows)
	counter(c.valid, s.Valid)
	counter(c.rejected, s.RejectedMissingStart, "missing_start")
	counter(c.rejected, s.RejectedTooLong, "too_long")
	counter(c.rejected, s.RejectedMissingChecksum, "missing_checksum")
	counter(c.rejected, s.RejectedChecksum, "checksum_mismatch")
	counter(c.parsed, s.ParsedGGA, nmea.KindGGA.String())
	counter(c.parsed, s.ParsedRMC, nmea.KindRMC.String())
	counter(c.parsed, s.ParsedVTG, nmea.KindVTG.String())
	counter(c.unknown, s.Unknown)
	counter(c.partial, s.Partial)
	counter(c.empty, s.Empty)

	if c.record == nil {
		return
	}

	snap := c.record.Snapshot()
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}

	gauge(c.fixQuality, float64(snap.Lock))
	gauge(c.satellites, float64(snap.Satellites))
	gauge(c.hdop, snap.HDOP)
	gauge(c.altitude, snap.MSLAltitude)
	gauge(c.latitude, snap.DecLatitude)
	gauge(c.longitude, snap.DecLongitude)
	gauge(c.speedKnots, snap.SpeedKnots)
	gauge(c.speedKmh, snap.SpeedKmh)
}
