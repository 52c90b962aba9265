// Package forza decodes the Forza Horizon "Car Dash" Data Out packet.
//
// The game emits one 324-byte UDP datagram per tick. The first 308 bytes
// are 77 little-endian float32 values; a handful of single-byte control
// fields are read from the same buffer at a fixed byte offset. Only the
// fields needed to drive a motion platform are extracted.
package forza

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

const (
	numFloats = 77

	// MinPacketSize is the smallest datagram that can be decoded: the
	// full float block. Anything shorter is discarded.
	MinPacketSize = numFloats * 4

	// actuatorOffset is the byte offset of the throttle/brake/steering
	// block. Empirically determined for the Car Dash format and known to
	// move between format variants; recalibrate here if controls decode
	// as garbage.
	actuatorOffset = 232
)

// Float-slot indices within the Car Dash packet.
const (
	idxEngineRPM = 4
	idxAccelX    = 5 // lateral
	idxAccelY    = 6 // vertical
	idxAccelZ    = 7 // longitudinal
	idxVelX      = 8
	idxVelY      = 9
	idxVelZ      = 10
	idxSuspFL    = 17
	idxSuspFR    = 18
	idxSuspRL    = 19
	idxSuspRR    = 20
)

// metersPerSecToMPH converts m/s to miles per hour.
const metersPerSecToMPH = 2.23694

// ErrShortPacket is returned when a datagram is smaller than
// MinPacketSize.
var ErrShortPacket = errors.New("short telemetry packet")

// Frame is the decoded view of one datagram. Accelerations are raw
// simulator units (m/s²), velocities m/s. Suspension travel is nominally
// 0.0-1.0 but is sensor-reported and not clamped.
type Frame struct {
	EngineRPM float32 `json:"engine_rpm"`

	AccelLateral      float32 `json:"accel_lateral"`
	AccelVertical     float32 `json:"accel_vertical"`
	AccelLongitudinal float32 `json:"accel_longitudinal"`

	VelocityX float32 `json:"velocity_x"`
	VelocityY float32 `json:"velocity_y"`
	VelocityZ float32 `json:"velocity_z"`

	// Speed is derived from velocity, m/s.
	Speed    float64 `json:"speed"`
	SpeedMPH float64 `json:"speed_mph"`

	Throttle uint8 `json:"throttle"`
	Brake    uint8 `json:"brake"`
	Steering int8  `json:"steering"`

	SuspensionFL float32 `json:"suspension_fl"`
	SuspensionFR float32 `json:"suspension_fr"`
	SuspensionRL float32 `json:"suspension_rl"`
	SuspensionRR float32 `json:"suspension_rr"`
}

// Decode interprets buf as a Car Dash datagram. Decoding is all or
// nothing: a buffer shorter than MinPacketSize yields ErrShortPacket and
// no Frame.
func Decode(buf []byte) (Frame, error) {
	if len(buf) < MinPacketSize {
		return Frame{}, errors.Wrapf(ErrShortPacket, "%d bytes", len(buf))
	}

	f := Frame{
		EngineRPM:         floatAt(buf, idxEngineRPM),
		AccelLateral:      floatAt(buf, idxAccelX),
		AccelVertical:     floatAt(buf, idxAccelY),
		AccelLongitudinal: floatAt(buf, idxAccelZ),
		VelocityX:         floatAt(buf, idxVelX),
		VelocityY:         floatAt(buf, idxVelY),
		VelocityZ:         floatAt(buf, idxVelZ),
		SuspensionFL:      floatAt(buf, idxSuspFL),
		SuspensionFR:      floatAt(buf, idxSuspFR),
		SuspensionRL:      floatAt(buf, idxSuspRL),
		SuspensionRR:      floatAt(buf, idxSuspRR),
	}

	f.Speed = math.Sqrt(float64(f.VelocityX)*float64(f.VelocityX) +
		float64(f.VelocityY)*float64(f.VelocityY) +
		float64(f.VelocityZ)*float64(f.VelocityZ))
	f.SpeedMPH = f.Speed * metersPerSecToMPH

	// The control bytes overlap the float block; the same buffer is read
	// again as raw bytes at a fixed offset.
	f.Throttle = buf[actuatorOffset]
	f.Brake = buf[actuatorOffset+1]
	f.Steering = int8(buf[actuatorOffset+4])

	return f, nil
}

// floatAt reads the idx'th float32 slot. The buffer is addressed as plain
// bytes rather than an aliased float view.
func floatAt(buf []byte, idx int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[idx*4:]))
}
