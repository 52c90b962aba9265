// Package lineproto implements the textual line protocol spoken to the
// actuator controller: comma-separated decimal fields terminated by a
// newline. Two frame arities exist, a legacy 3-field form carrying only
// G-forces and an extended 10-field form that adds control-input
// percentages and suspension travel. The consumer tells them apart by
// counting fields, never by a declared type.
package lineproto

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/enVId-tech/Forza-Telemetry-Interpreter/forza"
	"github.com/enVId-tech/Forza-Telemetry-Interpreter/motion"
)

const (
	legacyFields   = 3
	extendedFields = 10
)

// EncodeLegacy produces the 3-field frame: longitudinal, lateral,
// vertical.
func EncodeLegacy(g motion.GForceSample) []byte {
	return []byte(fmt.Sprintf("%.3f,%.3f,%.3f\n",
		g.Longitudinal, g.Lateral, g.Vertical))
}

// EncodeExtended produces the 10-field frame: G-forces, throttle and
// brake as percentages, steering as the raw signed integer, and the four
// suspension travel values.
func EncodeExtended(g motion.GForceSample, f forza.Frame) []byte {
	return []byte(fmt.Sprintf("%.3f,%.3f,%.3f,%.1f,%.1f,%d,%.2f,%.2f,%.2f,%.2f\n",
		g.Longitudinal, g.Lateral, g.Vertical,
		float64(f.Throttle)/255.0*100.0,
		float64(f.Brake)/255.0*100.0,
		f.Steering,
		f.SuspensionFL, f.SuspensionFR, f.SuspensionRL, f.SuspensionRR))
}

// Actuation is the consumer-side view of one frame. HasControls is false
// for legacy frames, which carry G-forces only.
type Actuation struct {
	Longitudinal float64
	Lateral      float64
	Vertical     float64

	HasControls     bool
	ThrottlePercent float64
	BrakePercent    float64
	Steering        int
	Suspension      [4]float64
}

// NeutralActuation is the fail-safe state: gravity only, controls
// centered.
func NeutralActuation() Actuation {
	return Actuation{Vertical: 1.0}
}

// Parse decodes one protocol line of either arity.
func Parse(line string) (Actuation, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")

	var a Actuation
	switch len(fields) {
	case legacyFields:
	case extendedFields:
		a.HasControls = true
	default:
		return Actuation{}, errors.Errorf("unexpected field count %d", len(fields))
	}

	vals := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return Actuation{}, errors.Wrapf(err, "field %d", i)
		}
		vals[i] = v
	}

	a.Longitudinal = vals[0]
	a.Lateral = vals[1]
	a.Vertical = vals[2]
	if a.HasControls {
		a.ThrottlePercent = vals[3]
		a.BrakePercent = vals[4]
		a.Steering = int(vals[5])
		copy(a.Suspension[:], vals[6:10])
	}
	return a, nil
}
