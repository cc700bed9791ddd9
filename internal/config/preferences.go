package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// Preferences is the operator-editable device state, kept as a small JSON
// file next to the database. Unlike Config it changes at runtime through
// the API.
type Preferences struct {
	OnboardingComplete bool    `json:"onboarding_complete"`
	DeviceName         string  `json:"device_name"`
	RootDepthCm        float64 `json:"root_depth_cm"`
	Crop               string  `json:"crop"`
	Soil               string  `json:"soil"`
	SetupDate          string  `json:"setup_date"`  // YYYY-MM-DD
	PlantingTs         int64   `json:"planting_ts"` // epoch seconds
	FarmerName         string  `json:"farmer_name,omitempty"`
	Notes              string  `json:"notes,omitempty"`
}

// DefaultPreferences returns the out-of-box preferences with a unique
// device name.
func DefaultPreferences() Preferences {
	return Preferences{
		DeviceName:  "agriscan-" + uuid.NewString()[:8],
		RootDepthCm: 30,
		Crop:        "tomato",
		Soil:        "loam",
	}
}

// LoadPreferences reads the preferences file. A missing file yields the
// defaults without error so first boot just works.
func LoadPreferences(path string) (Preferences, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultPreferences(), nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("read preferences: %w", err)
	}

	p := DefaultPreferences()
	if err := json.Unmarshal(data, &p); err != nil {
		return Preferences{}, fmt.Errorf("parse preferences: %w", err)
	}
	return p, nil
}

// SavePreferences writes the preferences file atomically.
func SavePreferences(path string, p Preferences) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return os.Rename(tmp, path)
}
