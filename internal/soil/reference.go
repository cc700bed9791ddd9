package soil

import (
	"encoding/json"
	"fmt"
	"os"
)

// CropStage is one growth stage of a crop, selected by days after planting.
type CropStage struct {
	Name     string  `json:"name"`
	DayStart int     `json:"day_start"`
	DayEnd   int     `json:"day_end"`
	ZrCm     float64 `json:"Zr_cm"` // rooting depth during this stage
	P        float64 `json:"p"`     // allowable depletion fraction
}

// Crop is the staged water-management profile for one crop.
type Crop struct {
	Stages []CropStage `json:"stages"`
}

// Class holds the textbook moisture landmarks for one soil texture class.
type Class struct {
	ThetaFC float64 `json:"theta_fc"`
	ThetaWP float64 `json:"theta_wp"`
}

// Reference is the crop/soil lookup table read at boot. It seeds the
// auto-calibration engine's initial thresholds.
type Reference struct {
	Crops map[string]Crop  `json:"crops"`
	Soils map[string]Class `json:"soils"`
}

// DefaultReference returns the built-in table used when the reference file
// is missing or invalid: default loam landmarks and a single generic stage.
func DefaultReference() *Reference {
	loam := DefaultLoam()
	return &Reference{
		Crops: map[string]Crop{
			"generic": {Stages: []CropStage{
				{Name: "season", DayStart: 0, DayEnd: 365, ZrCm: 30, P: 0.5},
			}},
		},
		Soils: map[string]Class{
			"loam": {ThetaFC: loam.FieldCapacity(), ThetaWP: loam.WiltingPoint()},
		},
	}
}

// LoadReference reads the crop/soil table from a JSON file.
func LoadReference(path string) (*Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference data: %w", err)
	}
	var ref Reference
	if err := json.Unmarshal(data, &ref); err != nil {
		return nil, fmt.Errorf("parse reference data: %w", err)
	}
	if len(ref.Crops) == 0 || len(ref.Soils) == 0 {
		return nil, fmt.Errorf("reference data missing crops or soils")
	}
	return &ref, nil
}

// StageFor selects the growth stage for a crop by days after planting.
// Falls back to the last stage once the season runs past the table, and
// reports false for an unknown crop.
func (r *Reference) StageFor(crop string, daysAfterPlanting int) (CropStage, bool) {
	c, ok := r.Crops[crop]
	if !ok || len(c.Stages) == 0 {
		return CropStage{}, false
	}
	for _, st := range c.Stages {
		if daysAfterPlanting >= st.DayStart && daysAfterPlanting <= st.DayEnd {
			return st, true
		}
	}
	return c.Stages[len(c.Stages)-1], true
}

// SeedThresholds derives the initial field capacity and refill point for a
// crop/soil pairing: theta_refill = theta_fc - p*(theta_fc - theta_wp).
// Unknown keys fall back to loam and the generic stage.
func (r *Reference) SeedThresholds(crop, soilClass string, daysAfterPlanting int) (thetaFC, thetaRefill float64) {
	cls, ok := r.Soils[soilClass]
	if !ok {
		loam := DefaultLoam()
		cls = Class{ThetaFC: loam.FieldCapacity(), ThetaWP: loam.WiltingPoint()}
	}
	stage, ok := r.StageFor(crop, daysAfterPlanting)
	if !ok {
		stage = CropStage{P: 0.5}
	}
	thetaFC = cls.ThetaFC
	thetaRefill = cls.ThetaFC - stage.P*(cls.ThetaFC-cls.ThetaWP)
	return thetaFC, thetaRefill
}
