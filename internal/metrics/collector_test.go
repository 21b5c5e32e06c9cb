package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpsnmea/internal/frame"
	"gpsnmea/internal/nmea"
)

type staticStats frame.Stats

func (s staticStats) Stats() frame.Stats { return frame.Stats(s) }

type staticRecord nmea.Snapshot

func (r staticRecord) Snapshot() nmea.Snapshot { return nmea.Snapshot(r) }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// gather returns metric values keyed by name and label values.
func gather(t *testing.T, c prometheus.Collector) map[string]float64 {
	t.Helper()
	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(c))

	families, err := registry.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "{" + lp.GetValue() + "}"
			}
			values[key] = metricValue(m)
		}
	}
	return values
}

func metricValue(m *dto.Metric) float64 {
	if m.GetCounter() != nil {
		return m.GetCounter().GetValue()
	}
	return m.GetGauge().GetValue()
}

func TestCollector_Counters(t *testing.T) {
	stats := staticStats{
		Bytes:                   1024,
		Sentences:               20,
		Overflows:               1,
		Valid:                   15,
		RejectedMissingStart:    2,
		RejectedTooLong:         1,
		RejectedMissingChecksum: 1,
		RejectedChecksum:        1,
		ParsedGGA:               5,
		ParsedRMC:               4,
		ParsedVTG:               3,
		Unknown:                 3,
		Partial:                 2,
		Empty:                   1,
	}

	values := gather(t, NewCollector(stats, nil))

	tests := []struct {
		name string
		want float64
	}{
		{"gpsnmea_bytes_total", 1024},
		{"gpsnmea_sentences_total", 20},
		{"gpsnmea_buffer_overflows_total", 1},
		{"gpsnmea_sentences_valid_total", 15},
		{"gpsnmea_sentences_rejected_total{missing_start}", 2},
		{"gpsnmea_sentences_rejected_total{too_long}", 1},
		{"gpsnmea_sentences_rejected_total{missing_checksum}", 1},
		{"gpsnmea_sentences_rejected_total{checksum_mismatch}", 1},
		{"gpsnmea_sentences_parsed_total{GGA}", 5},
		{"gpsnmea_sentences_parsed_total{RMC}", 4},
		{"gpsnmea_sentences_parsed_total{VTG}", 3},
		{"gpsnmea_sentences_unknown_total", 3},
		{"gpsnmea_sentences_partial_total", 2},
		{"gpsnmea_sentences_empty_total", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := values[tt.name]
			require.True(t, ok, "metric %s not exported", tt.name)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := values["gpsnmea_fix_satellites"]
	assert.False(t, ok, "fix gauges exported without a record")
}

func TestCollector_FixGauges(t *testing.T) {
	record := staticRecord{
		Lock:         1,
		Satellites:   8,
		HDOP:         0.9,
		MSLAltitude:  545.4,
		DecLatitude:  48.1173,
		DecLongitude: -11.516667,
		SpeedKnots:   22.4,
		SpeedKmh:     10.2,
	}

	values := gather(t, NewCollector(staticStats{}, record))

	assert.Equal(t, 1.0, values["gpsnmea_fix_quality"])
	assert.Equal(t, 8.0, values["gpsnmea_fix_satellites"])
	assert.Equal(t, 0.9, values["gpsnmea_fix_hdop"])
	assert.Equal(t, 545.4, values["gpsnmea_fix_altitude_meters"])
	assert.Equal(t, 48.1173, values["gpsnmea_fix_latitude_degrees"])
	assert.Equal(t, -11.516667, values["gpsnmea_fix_longitude_degrees"])
	assert.Equal(t, 22.4, values["gpsnmea_fix_speed_knots"])
	assert.Equal(t, 10.2, values["gpsnmea_fix_speed_kmh"])
}

func TestCollector_ReadsLiveAssembler(t *testing.T) {
	record := nmea.NewRecord()
	parser := nmea.NewParser(record, 1, quietLogger())
	assembler := frame.NewAssembler(frame.DefaultBufferSize, parser, quietLogger())

	c := NewCollector(assembler, record)
	before := testutil.CollectAndCount(c)

	_, err := assembler.Write([]byte("$GNGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M*01\r\n"))
	require.NoError(t, err)
	_, err = assembler.Write([]byte("garbage\n"))
	require.NoError(t, err)

	values := gather(t, c)
	assert.Equal(t, before, testutil.CollectAndCount(c))
	assert.Equal(t, 2.0, values["gpsnmea_sentences_total"])
	assert.Equal(t, 1.0, values["gpsnmea_sentences_parsed_total{GGA}"])
	assert.Equal(t, 1.0, values["gpsnmea_sentences_rejected_total{missing_start}"])
	assert.Equal(t, 8.0, values["gpsnmea_fix_satellites"])
	assert.InDelta(t, 48.1173, values["gpsnmea_fix_latitude_degrees"], 1e-9)
}

func TestServer_ServesMetrics(t *testing.T) {
	server, err := NewServer("127.0.0.1:0", NewCollector(staticStats{Bytes: 42}, nil), quietLogger())
	require.NoError(t, err)
	require.NoError(t, server.Start())

	resp, err := http.Get("http://" + server.Addr() + MetricsPath)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "gpsnmea_bytes_total 42")
	assert.Contains(t, string(body), "go_goroutines")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(ctx))
}

func TestServer_DuplicateCollector(t *testing.T) {
	// A second Go collector clashes with the one the server registers itself.
	_, err := NewServer("127.0.0.1:0", prometheus.NewGoCollector(), quietLogger())
	assert.Error(t, err)
}

func TestServer_ShutdownWithoutStart(t *testing.T) {
	server, err := NewServer("127.0.0.1:0", NewCollector(staticStats{}, nil), quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", server.Addr())
	assert.NoError(t, server.Shutdown(context.Background()))
}
