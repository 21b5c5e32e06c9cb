package logging

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultPrefix names the daily track files: track_2006-01-02.log
const DefaultPrefix = "track"

const dateLayout = "2006-01-02"

// LogRotator writes lines to a daily file and gzips the previous day's file
// after rotation.
type LogRotator struct {
	logDir      string
	prefix      string
	useUTC      bool
	logger      *logrus.Logger
	now         func() time.Time
	currentFile *os.File
	currentDate string
	mutex       sync.RWMutex
	compressWG  sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewLogRotator creates the log directory if needed and opens today's file.
func NewLogRotator(logDir, prefix string, useUTC bool, logger *logrus.Logger) (*LogRotator, error) {
	return newLogRotator(logDir, prefix, useUTC, logger, time.Now)
}

func newLogRotator(logDir, prefix string, useUTC bool, logger *logrus.Logger, now func() time.Time) (*LogRotator, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	rotator := &LogRotator{
		logDir: logDir,
		prefix: prefix,
		useUTC: useUTC,
		logger: logger,
		now:    now,
		ctx:    ctx,
		cancel: cancel,
	}

	rotator.mutex.Lock()
	err := rotator.rotateLogFile()
	rotator.mutex.Unlock()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize log file: %w", err)
	}

	return rotator, nil
}

func (r *LogRotator) today() string {
	now := r.now()
	if r.useUTC {
		now = now.UTC()
	}
	return now.Format(dateLayout)
}

func (r *LogRotator) fileName(date string) string {
	return filepath.Join(r.logDir, fmt.Sprintf("%s_%s.log", r.prefix, date))
}

// Start checks once a minute whether the date changed, until ctx is done or
// the rotator is closed.
func (r *LogRotator) Start(ctx context.Context) {
	r.logger.Info("Starting log rotator")

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Log rotator stopping")
			return
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.checkRotation()
		}
	}
}

func (r *LogRotator) checkRotation() {
	currentDate := r.today()

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.currentDate != currentDate {
		r.logger.WithFields(logrus.Fields{
			"old_date": r.currentDate,
			"new_date": currentDate,
		}).Info("Rotating log file")

		if err := r.rotateLogFile(); err != nil {
			r.logger.WithError(err).Error("Failed to rotate log file")
		}
	}
}

// rotateLogFile closes the current file and opens the one for today. The
// caller holds the write lock.
func (r *LogRotator) rotateLogFile() error {
	newDate := r.today()
	if r.currentFile != nil && r.currentDate == newDate {
		return nil
	}

	if r.currentFile != nil {
		oldDate := r.currentDate
		if err := r.currentFile.Close(); err != nil {
			r.logger.WithError(err).Error("Failed to close old log file")
		}
		r.currentFile = nil

		r.compressWG.Add(1)
		go func() {
			defer r.compressWG.Done()
			r.compressLogFile(oldDate)
		}()
	}

	path := r.fileName(newDate)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file %s: %w", path, err)
	}

	r.currentFile = file
	r.currentDate = newDate

	r.logger.WithField("file", path).Info("Created new log file")
	return nil
}

// compressLogFile gzips the file for date and removes the original.
func (r *LogRotator) compressLogFile(date string) {
	logFile := r.fileName(date)
	gzipFile := logFile + ".gz"

	r.logger.WithFields(logrus.Fields{
		"source": logFile,
		"target": gzipFile,
	}).Info("Compressing log file")

	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		r.logger.WithField("file", logFile).Debug("Log file doesn't exist, skipping compression")
		return
	}

	if err := compressFile(logFile, gzipFile); err != nil {
		r.logger.WithError(err).WithField("file", logFile).Error("Failed to compress log file")
		os.Remove(gzipFile)
		return
	}

	if err := os.Remove(logFile); err != nil {
		r.logger.WithError(err).WithField("file", logFile).Error("Failed to remove original log file")
		return
	}

	r.logger.WithField("file", gzipFile).Info("Log file compressed successfully")
}

func compressFile(source, target string) error {
	src, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create target: %w", err)
	}
	defer dst.Close()

	gzWriter := gzip.NewWriter(dst)
	gzWriter.Name = filepath.Base(source)
	gzWriter.ModTime = time.Now()

	if _, err := io.Copy(gzWriter, src); err != nil {
		gzWriter.Close()
		return fmt.Errorf("copy: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("flush gzip: %w", err)
	}
	return dst.Close()
}

// Write appends p to the current file. Rotation cannot interleave with a
// write.
func (r *LogRotator) Write(p []byte) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.currentFile == nil {
		return 0, fmt.Errorf("no current log file")
	}
	return r.currentFile.Write(p)
}

// WriteLine appends line followed by a newline.
func (r *LogRotator) WriteLine(line string) error {
	if _, err := r.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("failed to write to log: %w", err)
	}
	return nil
}

// Close closes the current file and waits for pending compressions.
func (r *LogRotator) Close() error {
	r.logger.Info("Closing log rotator")

	r.cancel()

	r.mutex.Lock()
	var err error
	if r.currentFile != nil {
		if err = r.currentFile.Close(); err != nil {
			r.logger.WithError(err).Error("Failed to close current log file")
		}
		r.currentFile = nil
	}
	r.mutex.Unlock()

	r.compressWG.Wait()
	return err
}

// GetCurrentLogFile returns the current log file path.
func (r *LogRotator) GetCurrentLogFile() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.currentDate == "" {
		return ""
	}
	return r.fileName(r.currentDate)
}

// GetLogFiles returns every log file with this rotator's prefix, compressed
// ones included.
func (r *LogRotator) GetLogFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(r.logDir, r.prefix+"_*.log*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}
	return files, nil
}

// CleanupOldLogs removes log files last modified more than maxDays ago.
// The current file is never removed.
func (r *LogRotator) CleanupOldLogs(maxDays int) error {
	if maxDays <= 0 {
		return fmt.Errorf("maxDays must be positive")
	}

	files, err := r.GetLogFiles()
	if err != nil {
		return fmt.Errorf("failed to get log files: %w", err)
	}

	cutoff := r.now().AddDate(0, 0, -maxDays)
	current := r.GetCurrentLogFile()

	removed := 0
	for _, file := range files {
		if file == current {
			continue
		}

		info, err := os.Stat(file)
		if err != nil {
			r.logger.WithError(err).WithField("file", file).Warn("Failed to stat log file")
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(file); err != nil {
				r.logger.WithError(err).WithField("file", file).Error("Failed to remove old log file")
			} else {
				r.logger.WithField("file", file).Info("Removed old log file")
				removed++
			}
		}
	}

	r.logger.WithField("count", removed).Info("Cleaned up old log files")
	return nil
}
