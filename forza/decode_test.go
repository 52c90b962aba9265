package forza

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dashPacket builds a full-size Car Dash datagram with every float zeroed.
func dashPacket() []byte {
	return make([]byte, 324)
}

func setFloat(buf []byte, idx int, v float32) {
	binary.LittleEndian.PutUint32(buf[idx*4:], math.Float32bits(v))
}

func TestDecodeShortPacket(t *testing.T) {
	for _, size := range []int{0, 10, MinPacketSize - 1} {
		_, err := Decode(make([]byte, size))
		require.Error(t, err)
		assert.Equal(t, ErrShortPacket, errors.Cause(err))
	}
}

func TestDecodeMinimumSize(t *testing.T) {
	_, err := Decode(make([]byte, MinPacketSize))
	assert.NoError(t, err)
}

func TestDecodeFields(t *testing.T) {
	buf := dashPacket()
	setFloat(buf, idxEngineRPM, 4500)
	setFloat(buf, idxAccelX, 1.5)
	setFloat(buf, idxAccelY, -0.5)
	setFloat(buf, idxAccelZ, -9.81)
	setFloat(buf, idxVelX, 3)
	setFloat(buf, idxVelY, 4)
	setFloat(buf, idxVelZ, 0)
	setFloat(buf, idxSuspFL, 0.25)
	setFloat(buf, idxSuspFR, 0.5)
	setFloat(buf, idxSuspRL, 0.75)
	setFloat(buf, idxSuspRR, 1)

	f, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, float32(4500), f.EngineRPM)
	assert.Equal(t, float32(1.5), f.AccelLateral)
	assert.Equal(t, float32(-0.5), f.AccelVertical)
	assert.Equal(t, float32(-9.81), f.AccelLongitudinal)
	assert.Equal(t, 5.0, f.Speed, "3-4-5 velocity triangle")
	assert.InDelta(t, 11.1847, f.SpeedMPH, 0.0001)
	assert.Equal(t, float32(0.25), f.SuspensionFL)
	assert.Equal(t, float32(0.5), f.SuspensionFR)
	assert.Equal(t, float32(0.75), f.SuspensionRL)
	assert.Equal(t, float32(1), f.SuspensionRR)
}

func TestDecodeControlBytes(t *testing.T) {
	buf := dashPacket()
	buf[actuatorOffset] = 255
	buf[actuatorOffset+1] = 128
	buf[actuatorOffset+4] = 200 // as int8: -56

	f, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), f.Throttle)
	assert.Equal(t, uint8(128), f.Brake)
	assert.Equal(t, int8(-56), f.Steering)
}

func TestDecodeDeterministic(t *testing.T) {
	buf := dashPacket()
	setFloat(buf, idxEngineRPM, 1234.5)
	setFloat(buf, idxVelX, -7.25)
	buf[actuatorOffset] = 42

	a, err := Decode(buf)
	require.NoError(t, err)
	b, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
