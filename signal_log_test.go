package main

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalLoggerWritesAllFormats(t *testing.T) {
	dir := t.TempDir()
	cfg := &LoggingConfig{Dir: dir, Formats: []string{"json", "csv", "text"}}
	start := time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)

	logger, err := NewSignalLogger(cfg, 85.5, start)
	require.NoError(t, err)

	rec := SequenceRecord{
		Code:       "12345",
		Start:      start.Add(2 * time.Second),
		End:        start.Add(2*time.Second + 350*time.Millisecond),
		Confidence: 0.87,
	}
	require.NoError(t, logger.WriteRecord(rec))
	require.NoError(t, logger.Close())

	paths := logger.Paths()
	require.Len(t, paths, 3)
	for _, p := range paths {
		assert.Contains(t, filepath.Base(p), "zvei_85.5000MHz_20260301_143000")
	}

	// JSON: one object per line with the frequency attached
	jsonData, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	var entry struct {
		Code         string  `json:"code"`
		Confidence   float64 `json:"confidence"`
		FrequencyMHz float64 `json:"frequency_mhz"`
	}
	require.NoError(t, json.Unmarshal(jsonData, &entry))
	assert.Equal(t, "12345", entry.Code)
	assert.Equal(t, 85.5, entry.FrequencyMHz)

	// CSV: header plus one row
	csvFile, err := os.Open(paths[1])
	require.NoError(t, err)
	defer csvFile.Close()
	rows, err := csv.NewReader(csvFile).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"timestamp", "datetime", "code", "frequency_mhz", "confidence"}, rows[0])
	assert.Equal(t, "12345", rows[1][2])

	// Text: human-readable line
	textData, err := os.ReadFile(paths[2])
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(textData), "code=12345"))
}

func TestSignalLoggerSubsetOfFormats(t *testing.T) {
	dir := t.TempDir()
	cfg := &LoggingConfig{Dir: dir, Formats: []string{"csv"}}

	logger, err := NewSignalLogger(cfg, 170.0, time.Now())
	require.NoError(t, err)
	defer logger.Close()

	require.Len(t, logger.Paths(), 1)
	assert.True(t, strings.HasSuffix(logger.Paths()[0], ".csv"))
	require.NoError(t, logger.WriteRecord(SequenceRecord{Code: "A2B3C", Start: time.Now()}))
}

func TestSignalLoggerCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	cfg := &LoggingConfig{Dir: dir, Formats: []string{"text"}}

	logger, err := NewSignalLogger(cfg, 85.5, time.Now())
	require.NoError(t, err)
	defer logger.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
