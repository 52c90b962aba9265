package forza

import (
	"encoding/binary"
	"math"
)

// dashPacketSize is the full datagram the game emits.
const dashPacketSize = 324

// MarshalDash builds a synthetic Car Dash datagram carrying the fields
// Decode reads; everything else is zero. Derived fields (Speed,
// SpeedMPH) are ignored, they are recomputed on decode. Used by the
// test-mode generator and by tests.
func MarshalDash(f Frame) []byte {
	buf := make([]byte, dashPacketSize)
	putFloat(buf, idxEngineRPM, f.EngineRPM)
	putFloat(buf, idxAccelX, f.AccelLateral)
	putFloat(buf, idxAccelY, f.AccelVertical)
	putFloat(buf, idxAccelZ, f.AccelLongitudinal)
	putFloat(buf, idxVelX, f.VelocityX)
	putFloat(buf, idxVelY, f.VelocityY)
	putFloat(buf, idxVelZ, f.VelocityZ)
	putFloat(buf, idxSuspFL, f.SuspensionFL)
	putFloat(buf, idxSuspFR, f.SuspensionFR)
	putFloat(buf, idxSuspRL, f.SuspensionRL)
	putFloat(buf, idxSuspRR, f.SuspensionRR)

	// control bytes overwrite float slots, exactly as the game does
	buf[actuatorOffset] = f.Throttle
	buf[actuatorOffset+1] = f.Brake
	buf[actuatorOffset+4] = byte(f.Steering)
	return buf
}

func putFloat(buf []byte, idx int, v float32) {
	binary.LittleEndian.PutUint32(buf[idx*4:], math.Float32bits(v))
}
