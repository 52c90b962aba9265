package bridge

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/enVId-tech/Forza-Telemetry-Interpreter/forza"
)

const testSourceInterval = time.Millisecond * 20

// RunTestSource fabricates Car Dash datagrams into addr so the full
// pipeline can be exercised without the game: speed and RPM ramp up and
// down through the idle/active boundary, controls sweep their ranges.
// Blocks until ctx is cancelled.
func RunTestSource(ctx context.Context, addr string) error {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return errors.Wrapf(err, "unable to dial test target %s", addr)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.WithField("err", err).Warn("unable to close test source socket")
		}
	}()
	log.WithField("target", addr).Info("test mode: generating synthetic telemetry")

	frame := forza.Frame{}
	down := false
	ticker := time.NewTicker(testSourceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if down {
			frame.VelocityX -= 0.25
			frame.EngineRPM -= 25
		} else {
			frame.VelocityX += 0.25
			frame.EngineRPM += 25
		}
		if frame.VelocityX >= 50 {
			down = true
		} else if frame.VelocityX <= 0 {
			down = false
		}

		// braking hard at the top of the ramp, accelerating on the way up
		if down {
			frame.AccelLongitudinal = 9.81
			frame.Brake = 180
			frame.Throttle = 0
		} else {
			frame.AccelLongitudinal = -4.9
			frame.Brake = 0
			frame.Throttle = 220
		}
		frame.AccelLateral = frame.VelocityX / 10
		frame.Steering = int8(frame.VelocityX) - 25
		frame.SuspensionFL = 0.5
		frame.SuspensionFR = 0.5
		frame.SuspensionRL = 0.45
		frame.SuspensionRR = 0.45

		if _, err := conn.Write(forza.MarshalDash(frame)); err != nil {
			log.WithField("err", err).Warn("unable to send synthetic telemetry")
		}
	}
}
