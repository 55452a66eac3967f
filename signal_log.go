package main

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SignalLogger writes every decoded sequence to per-session log files
// in the enabled formats. One file per format per session, named after
// the tuned frequency and the session start time. Each write is
// flushed so a crash loses at most the record being written.
type SignalLogger struct {
	jsonFile *os.File
	jsonBuf  *bufio.Writer

	csvFile   *os.File
	csvWriter *csv.Writer

	textFile *os.File
	textBuf  *bufio.Writer

	frequencyMHz float64
	paths        []string
	mu           sync.Mutex
}

// NewSignalLogger creates the log directory and opens one file per
// enabled format. start names the files; it should be the session
// start time.
func NewSignalLogger(cfg *LoggingConfig, frequencyMHz float64, start time.Time) (*SignalLogger, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	sl := &SignalLogger{frequencyMHz: frequencyMHz}
	base := fmt.Sprintf("zvei_%.4fMHz_%s", frequencyMHz, start.Format("20060102_150405"))

	for _, format := range cfg.Formats {
		path := filepath.Join(cfg.Dir, base+"."+formatExt(format))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			sl.Close()
			return nil, fmt.Errorf("failed to open %s log: %w", format, err)
		}
		sl.paths = append(sl.paths, path)

		switch format {
		case "json":
			sl.jsonFile = f
			sl.jsonBuf = bufio.NewWriter(f)
		case "csv":
			sl.csvFile = f
			sl.csvWriter = csv.NewWriter(f)
			sl.csvWriter.Write([]string{"timestamp", "datetime", "code", "frequency_mhz", "confidence"})
			sl.csvWriter.Flush()
			if err := sl.csvWriter.Error(); err != nil {
				sl.Close()
				return nil, fmt.Errorf("failed to write csv header: %w", err)
			}
		case "text":
			sl.textFile = f
			sl.textBuf = bufio.NewWriter(f)
		}
	}

	return sl, nil
}

func formatExt(format string) string {
	if format == "text" {
		return "txt"
	}
	return format
}

// Paths returns the log file paths, for the session summary.
func (sl *SignalLogger) Paths() []string { return sl.paths }

// WriteRecord appends one decoded sequence to every enabled format and
// flushes. Implements RecordSink. The first write error is returned;
// later formats are still attempted so one bad file does not silence
// the others.
func (sl *SignalLogger) WriteRecord(rec SequenceRecord) error {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	var firstErr error

	if sl.jsonBuf != nil {
		entry := struct {
			SequenceRecord
			FrequencyMHz float64 `json:"frequency_mhz"`
		}{rec, sl.frequencyMHz}
		if data, err := json.Marshal(entry); err != nil {
			firstErr = err
		} else {
			sl.jsonBuf.Write(data)
			sl.jsonBuf.WriteByte('\n')
			if err := sl.jsonBuf.Flush(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	if sl.csvWriter != nil {
		sl.csvWriter.Write([]string{
			fmt.Sprintf("%d", rec.Start.Unix()),
			rec.Start.Format(time.RFC3339),
			rec.Code,
			fmt.Sprintf("%.4f", sl.frequencyMHz),
			fmt.Sprintf("%.3f", rec.Confidence),
		})
		sl.csvWriter.Flush()
		if err := sl.csvWriter.Error(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if sl.textBuf != nil {
		fmt.Fprintf(sl.textBuf, "%s  code=%s  freq=%.4fMHz  confidence=%.3f\n",
			rec.Start.Format("2006-01-02 15:04:05"), rec.Code, sl.frequencyMHz, rec.Confidence)
		if err := sl.textBuf.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Close flushes and closes all open log files.
func (sl *SignalLogger) Close() error {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	var firstErr error
	if sl.jsonBuf != nil {
		if err := sl.jsonBuf.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if sl.csvWriter != nil {
		sl.csvWriter.Flush()
		if err := sl.csvWriter.Error(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if sl.textBuf != nil {
		if err := sl.textBuf.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, f := range []*os.File{sl.jsonFile, sl.csvFile, sl.textFile} {
		if f != nil {
			if err := f.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	sl.jsonFile, sl.csvFile, sl.textFile = nil, nil, nil
	sl.jsonBuf, sl.textBuf = nil, nil
	sl.csvWriter = nil
	return firstErr
}
