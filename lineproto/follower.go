package lineproto

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultInactivityWindow is how long the consumer tolerates silence
// before falling back to the neutral state on its own.
const DefaultInactivityWindow = time.Second

// Follower tracks the actuation state of a line-protocol consumer. A
// parse failure leaves the previous state in effect for that cycle; after
// the inactivity window with no valid line the state reverts to neutral
// regardless of the sender. This mirrors the fail-safe the
// microcontroller firmware implements.
type Follower struct {
	window    time.Duration
	last      Actuation
	lastValid time.Time
	seenLine  bool
}

// NewFollower creates a Follower with the given inactivity window; zero
// selects DefaultInactivityWindow.
func NewFollower(window time.Duration) *Follower {
	if window <= 0 {
		window = DefaultInactivityWindow
	}
	return &Follower{window: window}
}

// Feed processes one received line. Unparseable input is logged and the
// held state is unchanged.
func (f *Follower) Feed(line string, now time.Time) error {
	a, err := Parse(line)
	if err != nil {
		log.WithField("err", err).Warn("unparseable actuation line, holding state")
		return err
	}
	f.last = a
	f.lastValid = now
	f.seenLine = true
	return nil
}

// Current returns the actuation to apply at time now: the last valid
// frame, or neutral once the inactivity window has elapsed.
func (f *Follower) Current(now time.Time) Actuation {
	if !f.seenLine || now.Sub(f.lastValid) > f.window {
		return NeutralActuation()
	}
	return f.last
}
