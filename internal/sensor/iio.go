package sensor

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// FileReader reads the probe through sysfs: the moisture channel from an
// IIO raw voltage file and the temperature from a hwmon millidegree file.
// This is the hardware path on the deployed SBC.
type FileReader struct {
	ADCPath  string // e.g. /sys/bus/iio/devices/iio:device0/in_voltage0_raw
	TempPath string // e.g. /sys/class/hwmon/hwmon0/temp1_input; empty disables
}

// Read returns the current raw ADC count and probe temperature. A missing
// temperature file reports the disconnected sentinel so QC flags it.
func (r *FileReader) Read(_ context.Context) (int, float64, error) {
	raw, err := readIntFile(r.ADCPath)
	if err != nil {
		return 0, 0, fmt.Errorf("read adc: %w", err)
	}
	if raw < ADCMin || raw > ADCMax {
		return 0, 0, fmt.Errorf("adc reading %d outside %d..%d", raw, ADCMin, ADCMax)
	}

	tempC := TempDisconnectedC
	if r.TempPath != "" {
		milli, err := readIntFile(r.TempPath)
		if err == nil {
			tempC = float64(milli) / 1000.0
		}
	}
	return raw, tempC, nil
}

func readIntFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
