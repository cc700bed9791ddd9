package sensor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileReaderReadsADCAndTemp(t *testing.T) {
	dir := t.TempDir()
	r := &FileReader{
		ADCPath:  writeFile(t, dir, "in_voltage0_raw", "713\n"),
		TempPath: writeFile(t, dir, "temp1_input", "21500\n"),
	}

	raw, tempC, err := r.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 713, raw)
	assert.InDelta(t, 21.5, tempC, 1e-9)
}

func TestFileReaderMissingTempReportsSentinel(t *testing.T) {
	dir := t.TempDir()
	r := &FileReader{
		ADCPath:  writeFile(t, dir, "in_voltage0_raw", "500"),
		TempPath: filepath.Join(dir, "missing"),
	}

	raw, tempC, err := r.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 500, raw)
	assert.Equal(t, TempDisconnectedC, tempC)
}

func TestFileReaderRejectsOutOfSpanADC(t *testing.T) {
	dir := t.TempDir()
	r := &FileReader{ADCPath: writeFile(t, dir, "in_voltage0_raw", "9999")}

	_, _, err := r.Read(context.Background())
	assert.Error(t, err)
}

func TestFileReaderMissingADCFails(t *testing.T) {
	r := &FileReader{ADCPath: filepath.Join(t.TempDir(), "missing")}

	_, _, err := r.Read(context.Background())
	assert.Error(t, err)
}
