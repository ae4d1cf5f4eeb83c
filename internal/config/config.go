// Package config loads the JSON tuning file that carries the handful of
// values that should be configuration constants rather than literals —
// values whose correct setting depends on context the frame protocol
// itself doesn't encode.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultPath is the canonical location for the tuning file. It need not
// exist; Load falls back to Defaults() when it doesn't.
const DefaultPath = "config/tuning.json"

// Tuning holds runtime-adjustable constants for the decode and pipeline
// packages. Pointer fields distinguish "not set in the file" from "set to
// the zero value," matching the optional-override pattern.
type Tuning struct {
	// VelocityScaleMPSPerLSB converts doppler_idx into metres/second.
	VelocityScaleMPSPerLSB *float64 `json:"velocity_scale_mps_per_lsb,omitempty"`

	// RingCapacity is the per-source ring stage size.
	RingCapacity *int `json:"ring_capacity,omitempty"`

	// OutputQueueCapacity is the processor's bounded output queue size.
	OutputQueueCapacity *int `json:"output_queue_capacity,omitempty"`

	// ReplaySpeed is the default replay-rate multiplier.
	ReplaySpeed *float64 `json:"replay_speed,omitempty"`
}

// Defaults returns the historical values this codebase has always used.
func Defaults() Tuning {
	return Tuning{
		VelocityScaleMPSPerLSB: ptrFloat64(0.1),
		RingCapacity:           ptrInt(30000),
		OutputQueueCapacity:    ptrInt(5000),
		ReplaySpeed:            ptrFloat64(2.0),
	}
}

// Load reads a JSON tuning file at path and overlays it onto Defaults(). A
// missing file is not an error — it just means "use the defaults."
func Load(path string) (Tuning, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading tuning config %q: %w", path, err)
	}

	var overrides Tuning
	if err := json.Unmarshal(data, &overrides); err != nil {
		return cfg, fmt.Errorf("parsing tuning config %q: %w", path, err)
	}

	if overrides.VelocityScaleMPSPerLSB != nil {
		cfg.VelocityScaleMPSPerLSB = overrides.VelocityScaleMPSPerLSB
	}
	if overrides.RingCapacity != nil {
		cfg.RingCapacity = overrides.RingCapacity
	}
	if overrides.OutputQueueCapacity != nil {
		cfg.OutputQueueCapacity = overrides.OutputQueueCapacity
	}
	if overrides.ReplaySpeed != nil {
		cfg.ReplaySpeed = overrides.ReplaySpeed
	}

	return cfg, nil
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
