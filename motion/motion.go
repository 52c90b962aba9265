// Package motion converts raw simulator accelerations into clamped,
// platform-safe G-force values.
package motion

import (
	"math"
	"time"

	"github.com/enVId-tech/Forza-Telemetry-Interpreter/forza"
)

const gravity = 9.81

// Safety limits for the motion platform. Anything the simulator reports
// beyond these is clamped before transmission.
const (
	maxLongitudinal = 3.0
	minLongitudinal = -3.0
	maxLateral      = 3.0
	minLateral      = -3.0
	maxVertical     = 4.0
	minVertical     = -1.0
)

// GForceSample is the derived motion signal, rounded to 3 decimal places.
type GForceSample struct {
	Longitudinal    float64 `json:"longitudinal"`
	Lateral         float64 `json:"lateral"`
	Vertical        float64 `json:"vertical"`
	TimestampMillis int64   `json:"timestamp_ms"`
}

// Compute derives a G-force sample from a decoded frame. The sign of the
// longitudinal axis is flipped so that braking reads as positive G, and
// 1G is added to the vertical axis as the gravity baseline. The timestamp
// is capture time, not packet time.
func Compute(f forza.Frame, now time.Time) GForceSample {
	longitudinal := clamp(-float64(f.AccelLongitudinal)/gravity, minLongitudinal, maxLongitudinal)
	lateral := clamp(float64(f.AccelLateral)/gravity, minLateral, maxLateral)
	vertical := clamp(float64(f.AccelVertical)/gravity+1.0, minVertical, maxVertical)

	return GForceSample{
		Longitudinal:    round3(longitudinal),
		Lateral:         round3(lateral),
		Vertical:        round3(vertical),
		TimestampMillis: now.UnixMilli(),
	}
}

// Neutral is the fixed sample transmitted while the car is idle: no
// horizontal force, gravity only.
func Neutral(now time.Time) GForceSample {
	return GForceSample{
		Longitudinal:    0.0,
		Lateral:         0.0,
		Vertical:        1.0,
		TimestampMillis: now.UnixMilli(),
	}
}

// Active reports whether the car is actively driving. Both comparisons
// are strict: a car at exactly 1 km/h with the engine at exactly 1000 RPM
// is idle.
func Active(f forza.Frame) bool {
	return f.Speed*3.6 > 1.0 || f.EngineRPM > 1000
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// round3 rounds half away from zero to 3 decimal places.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
