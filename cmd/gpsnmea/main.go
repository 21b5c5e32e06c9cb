package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"gpsnmea/internal/app"
)

func main() {
	rootCmd := newRootCmd(func(config app.Config) error {
		return app.NewApplication(config).Start()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command line. run receives the final configuration.
func newRootCmd(run func(config app.Config) error) *cobra.Command {
	config := app.DefaultConfig()
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "gpsnmea",
		Short: "NMEA-0183 GNSS decoder",
		Long: `NMEA-0183 GNSS decoder for serial GPS receivers.

Reads the receiver byte stream from a UART (or a capture file), reassembles
and checksum-validates sentences, decodes GGA, RMC and VTG into a shared
position record, and writes a daily track log. The record can also be
published to MQTT and exported as Prometheus metrics.

Example usage:
  gpsnmea --port /dev/ttyAMA0 --baud 9600 --timezone 1
  gpsnmea --replay capture.nmea --log-dir ./tracks`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.ShowVersion {
				app.ShowVersion()
				return nil
			}

			if configPath != "" {
				if err := applyConfigFile(cmd.Flags(), configPath, &config); err != nil {
					return err
				}
			}

			if err := config.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return run(config)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	flags.StringVarP(&config.SerialPort, "port", "p", app.DefaultSerialPort, "Serial port of the GNSS receiver")
	flags.IntVarP(&config.BaudRate, "baud", "b", app.DefaultBaudRate, "Serial baud rate")
	flags.StringVarP(&config.ReplayFile, "replay", "r", "", "Replay a captured NMEA file instead of reading the serial port")
	flags.DurationVar(&config.ReplayDelay, "replay-delay", 0, "Delay between replayed chunks")
	flags.IntVar(&config.BufferSize, "buffer-size", app.DefaultBufferSize, "Sentence buffer size (bytes)")
	flags.IntVarP(&config.TimezoneOffset, "timezone", "t", app.DefaultTimezoneOffset, "Timezone offset added to UTC (hours)")
	flags.StringVarP(&config.LogDir, "log-dir", "l", config.LogDir, "Track log directory (empty disables the track log)")
	flags.BoolVarP(&config.LogRotateUTC, "utc", "u", config.LogRotateUTC, "Use UTC for log rotation")
	flags.IntVar(&config.LogRetentionDays, "log-retention", 0, "Remove track logs older than this many days (0 keeps all)")
	flags.DurationVar(&config.TrackInterval, "track-interval", app.DefaultTrackInterval, "Interval between track lines")
	flags.DurationVar(&config.ReportInterval, "report-interval", app.DefaultReportInterval, "Interval between statistics reports")
	flags.StringVar(&config.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	flags.StringVar(&config.MQTTBroker, "mqtt-broker", "", "Publish the record to this MQTT broker (e.g. tcp://localhost:1883)")
	flags.StringVar(&config.MQTTTopic, "mqtt-topic", app.DefaultMQTTTopic, "MQTT topic for record snapshots")
	flags.StringVar(&config.MQTTClientID, "mqtt-client-id", app.DefaultMQTTClientID, "MQTT client identifier")
	flags.DurationVar(&config.PublishInterval, "publish-interval", app.DefaultPublishInterval, "Minimum interval between MQTT publishes")
	flags.BoolVarP(&config.Verbose, "verbose", "v", false, "Verbose logging")
	flags.BoolVar(&config.ShowVersion, "version", false, "Show version information")

	return rootCmd
}

// applyConfigFile reads the configuration file on top of config, then sets
// the flags given on the command line again so they win over the file. The
// flags are bound to the fields of config.
func applyConfigFile(flags *pflag.FlagSet, path string, config *app.Config) error {
	explicit := make(map[string]string)
	flags.Visit(func(f *pflag.Flag) {
		if f.Name != "config" {
			explicit[f.Name] = f.Value.String()
		}
	})

	loaded, err := app.LoadConfigFile(path, *config)
	if err != nil {
		return err
	}
	*config = loaded

	for name, value := range explicit {
		if err := flags.Set(name, value); err != nil {
			return fmt.Errorf("failed to apply --%s: %w", name, err)
		}
	}
	return nil
}
