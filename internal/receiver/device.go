package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tarm/serial"
	"github.com/tevino/abool/v2"
	"go.uber.org/ratelimit"
)

// Read sizing for the UART
const (
	ReadChunkSize = 256                    // bytes requested per read
	ReadTimeout   = 500 * time.Millisecond // lets the capture loop notice cancellation
	ReopenPeriod  = 2 * time.Second        // minimum spacing between reopen attempts
)

// Port is the part of a serial port used by Device.
type Port interface {
	io.ReadWriteCloser
}

// OpenFunc opens a serial port from its configuration.
type OpenFunc func(cfg *serial.Config) (Port, error)

func openPort(cfg *serial.Config) (Port, error) {
	return serial.OpenPort(cfg)
}

// Device reads raw bytes from a GNSS receiver on a serial port.
type Device struct {
	config  *serial.Config
	logger  *logrus.Logger
	open    OpenFunc
	limiter ratelimit.Limiter

	mu       sync.Mutex
	port     Port
	isOpen   *abool.AtomicBool
	cancelFn context.CancelFunc
}

// NewDevice creates a device for the named port. The port is not opened
// until Open is called.
func NewDevice(name string, baud int, logger *logrus.Logger) *Device {
	return newDevice(name, baud, logger, openPort)
}

func newDevice(name string, baud int, logger *logrus.Logger, open OpenFunc) *Device {
	return &Device{
		config: &serial.Config{
			Name:        name,
			Baud:        baud,
			ReadTimeout: ReadTimeout,
		},
		logger:  logger,
		open:    open,
		limiter: ratelimit.New(1, ratelimit.Per(ReopenPeriod)),
		isOpen:  abool.New(),
	}
}

// Name returns the port path.
func (d *Device) Name() string {
	return d.config.Name
}

// IsOpen reports whether the port is currently open.
func (d *Device) IsOpen() bool {
	return d.isOpen.IsSet()
}

// Open opens the serial port.
func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isOpen.IsSet() {
		return nil
	}

	port, err := d.open(d.config)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.config.Name, err)
	}
	d.port = port
	d.isOpen.Set()

	d.logger.WithFields(logrus.Fields{
		"port": d.config.Name,
		"baud": d.config.Baud,
	}).Info("Serial port opened")

	return nil
}

// StartCapture reads from the port and sends every chunk on dataChan until
// the context is cancelled. Read errors close the port, which is then
// reopened at most once per ReopenPeriod.
func (d *Device) StartCapture(ctx context.Context, dataChan chan<- []byte) error {
	if !d.isOpen.IsSet() {
		return errors.New("device not open")
	}

	captureCtx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancelFn = cancel
	d.mu.Unlock()
	defer cancel()

	d.logger.Info("Starting serial capture")

	buf := make([]byte, ReadChunkSize)
	for {
		if captureCtx.Err() != nil {
			return nil
		}

		if !d.isOpen.IsSet() {
			d.limiter.Take()
			if captureCtx.Err() != nil {
				return nil
			}
			if err := d.Open(); err != nil {
				d.logger.WithError(err).Warn("Serial reopen failed")
				continue
			}
		}

		d.mu.Lock()
		port := d.port
		d.mu.Unlock()
		if port == nil {
			continue
		}

		n, err := port.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case dataChan <- chunk:
			case <-captureCtx.Done():
				return nil
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				// Read timeout with no data
				continue
			}
			if captureCtx.Err() != nil {
				return nil
			}
			d.logger.WithError(err).Error("Serial read failed, reopening port")
			d.closePort()
		}
	}
}

func (d *Device) closePort() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.port == nil || !d.isOpen.IsSet() {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	d.isOpen.UnSet()
	return err
}

// Close stops any capture in progress and closes the port.
func (d *Device) Close() error {
	d.mu.Lock()
	cancel := d.cancelFn
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if err := d.closePort(); err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	d.logger.WithField("port", d.config.Name).Info("Serial port closed")
	return nil
}
