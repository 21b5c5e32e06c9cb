package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"gpsnmea/internal/frame"
	"gpsnmea/internal/logging"
	"gpsnmea/internal/metrics"
	"gpsnmea/internal/nmea"
	"gpsnmea/internal/publish"
	"gpsnmea/internal/receiver"
)

const shutdownTimeout = 5 * time.Second

// ByteSource delivers the raw receiver stream in chunks.
type ByteSource interface {
	StartCapture(ctx context.Context, dataChan chan<- []byte) error
	Close() error
}

// Application represents the main application
type Application struct {
	config    Config
	logger    *logrus.Logger
	output    io.Writer
	record    *nmea.Record
	parser    *nmea.Parser
	assembler *frame.Assembler

	source     ByteSource
	logRotator *logging.LogRotator
	publisher  *publish.MQTTPublisher
	metrics    *metrics.Server

	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	sourceDone chan struct{}
	lastTrack  nmea.Snapshot
	started    time.Time
}

// NewApplication creates a new application instance
func NewApplication(config Config) *Application {
	ctx, cancel := context.WithCancel(context.Background())

	logger := logrus.New()
	if config.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	record := nmea.NewRecord()
	parser := nmea.NewParser(record, config.TimezoneOffset, logger)

	return &Application{
		config:     config,
		logger:     logger,
		output:     os.Stdout,
		record:     record,
		parser:     parser,
		assembler:  frame.NewAssembler(config.BufferSize, parser, logger),
		ctx:        ctx,
		cancel:     cancel,
		sourceDone: make(chan struct{}),
	}
}

// Logger returns the application logger.
func (app *Application) Logger() *logrus.Logger {
	return app.logger
}

// Record returns the shared decoded record.
func (app *Application) Record() *nmea.Record {
	return app.record
}

// Stats returns the sentence assembler counters.
func (app *Application) Stats() frame.Stats {
	return app.assembler.Stats()
}

// SetSource replaces the byte source chosen from the configuration. It must
// be called before Start.
func (app *Application) SetSource(source ByteSource) {
	app.source = source
}

// SetOutput redirects the track lines echoed to stdout.
func (app *Application) SetOutput(w io.Writer) {
	app.output = w
}

// Start starts the application and blocks until a shutdown signal arrives
// or the byte source is exhausted.
func (app *Application) Start() error {
	app.logger.WithFields(logrus.Fields{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	}).Info("Starting NMEA-0183 GNSS decoder")

	if err := app.initializeComponents(); err != nil {
		app.cleanup()
		return fmt.Errorf("failed to initialize components: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	app.run()

	select {
	case <-sigChan:
		app.logger.Info("Received shutdown signal")
	case <-app.sourceDone:
		app.logger.Info("Byte source exhausted")
	}
	app.shutdown()

	return nil
}

// initializeComponents opens the byte source and the optional outputs.
func (app *Application) initializeComponents() error {
	var err error

	if app.source == nil {
		app.source, err = app.openSource()
		if err != nil {
			return err
		}
	}

	if app.config.LogDir != "" {
		app.logRotator, err = logging.NewLogRotator(app.config.LogDir, logging.DefaultPrefix, app.config.LogRotateUTC, app.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize log rotator: %w", err)
		}
		if app.config.LogRetentionDays > 0 {
			if err := app.logRotator.CleanupOldLogs(app.config.LogRetentionDays); err != nil {
				app.logger.WithError(err).Warn("Failed to clean up old track logs")
			}
		}

		fields := logrus.Fields{"file": app.logRotator.GetCurrentLogFile()}
		if files, err := app.logRotator.GetLogFiles(); err == nil {
			fields["track_files"] = len(files)
		}
		app.logger.WithFields(fields).Info("Writing track log")
	}

	if app.config.MQTTBroker != "" {
		app.publisher, err = publish.NewMQTTPublisher(
			app.config.MQTTBroker,
			app.config.MQTTClientID,
			app.config.MQTTTopic,
			app.config.PublishInterval,
			app.logger,
		)
		if err != nil {
			return fmt.Errorf("failed to initialize MQTT publisher: %w", err)
		}
	}

	if app.config.MetricsAddr != "" {
		app.metrics, err = metrics.NewServer(app.config.MetricsAddr, metrics.NewCollector(app.assembler, app.record), app.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		if err := app.metrics.Start(); err != nil {
			app.metrics = nil
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	return nil
}

// openSource picks the replay file when one is configured, the serial port
// otherwise.
func (app *Application) openSource() (ByteSource, error) {
	if app.config.ReplayFile != "" {
		src, err := receiver.OpenReplay(app.config.ReplayFile, app.config.ReplayDelay, app.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open replay: %w", err)
		}
		return src, nil
	}

	device := receiver.NewDevice(app.config.SerialPort, app.config.BaudRate, app.logger)
	if err := device.Open(); err != nil {
		return nil, fmt.Errorf("failed to open receiver: %w", err)
	}
	return device, nil
}

// run starts the capture, assembly and output goroutines.
func (app *Application) run() {
	app.started = time.Now()
	app.logger.WithFields(logrus.Fields{
		"buffer_size":     app.assembler.Capacity(),
		"timezone_offset": app.config.TimezoneOffset,
	}).Info("Starting NMEA capture")

	dataChan := make(chan []byte, 100)

	// The capture goroutine owns dataChan; closing it lets the assembler
	// drain what is left and stop.
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		defer close(dataChan)
		if err := app.source.StartCapture(app.ctx, dataChan); err != nil {
			app.logger.WithError(err).Error("Capture failed")
		}
	}()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		defer close(app.sourceDone)
		app.assembler.Run(app.ctx, dataChan)
	}()

	if app.logRotator != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.logRotator.Start(app.ctx)
		}()
	}

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.trackLoop()
	}()

	if app.publisher != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.publisher.Run(app.ctx, app.record)
		}()
	}

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.reportStatistics()
	}()

	app.logger.Info("All components started successfully")
}

// trackLoop writes a track line every track interval while the record
// keeps changing.
func (app *Application) trackLoop() {
	ticker := time.NewTicker(app.config.TrackInterval)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			app.writeTrack()
		}
	}
}

// reportStatistics reports processing statistics periodically
func (app *Application) reportStatistics() {
	ticker := time.NewTicker(app.config.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			app.logStatistics("Decoder statistics")
		}
	}
}

func (app *Application) logStatistics(msg string) {
	s := app.assembler.Stats()

	rate := "n/a"
	if s.Sentences > 0 {
		rate = fmt.Sprintf("%.2f%%", float64(s.Valid)/float64(s.Sentences)*100)
	}

	fields := logrus.Fields{
		"bytes":         humanize.Bytes(s.Bytes),
		"sentences":     humanize.Comma(int64(s.Sentences)),
		"valid":         humanize.Comma(int64(s.Valid)),
		"rejected":      humanize.Comma(int64(s.Rejected())),
		"overflows":     s.Overflows,
		"gga":           s.ParsedGGA,
		"rmc":           s.ParsedRMC,
		"vtg":           s.ParsedVTG,
		"unknown":       s.Unknown,
		"partial":       s.Partial,
		"success_rate":  rate,
		"running_since": humanize.Time(app.started),
	}
	if app.publisher != nil {
		fields["published"] = app.publisher.Published()
	}
	app.logger.WithFields(fields).Info(msg)
}

// shutdown gracefully shuts down the application
func (app *Application) shutdown() {
	app.logger.Info("Shutting down application")
	app.cancel()

	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		app.logger.Info("All goroutines finished")
	case <-time.After(shutdownTimeout):
		app.logger.Warn("Shutdown timeout, forcing exit")
	}

	app.writeTrack()
	app.logStatistics("Final decoder statistics")
	app.cleanup()

	app.logger.Info("Shutdown completed")
}

// cleanup releases whatever initializeComponents managed to open.
func (app *Application) cleanup() {
	app.cancel()

	if app.source != nil {
		if err := app.source.Close(); err != nil {
			app.logger.WithError(err).Warn("Failed to close byte source")
		}
	}
	if app.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := app.metrics.Shutdown(ctx); err != nil {
			app.logger.WithError(err).Warn("Failed to stop metrics server")
		}
		cancel()
	}
	if app.publisher != nil {
		app.publisher.Close()
	}
	if app.logRotator != nil {
		app.logRotator.Close()
	}
}
