// actsim stands in for the actuator microcontroller: it reads the line
// protocol from a serial device (or stdin with -port "") and prints the
// actuation it would apply, including the hold-on-garbage and
// neutral-after-silence fail-safes the real firmware implements.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/enVId-tech/Forza-Telemetry-Interpreter/lineproto"
)

var port = flag.String("port", "/dev/ttyACM0", "serial device to read, empty for stdin")
var baud = flag.Int("baud", 115200, "baud rate")

func main() {
	log.SetLevel(log.InfoLevel)
	flag.Parse()

	var in io.Reader = os.Stdin
	if *port != "" {
		p, err := serial.Open(*port, &serial.Mode{
			BaudRate: *baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err != nil {
			log.Fatal("unable to open serial port: ", err)
		}
		defer p.Close()
		in = p
	}

	follower := lineproto.NewFollower(lineproto.DefaultInactivityWindow)
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var last lineproto.Actuation
	first := true
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			_ = follower.Feed(line, time.Now())
		case <-ticker.C:
			a := follower.Current(time.Now())
			if first || a != last {
				printActuation(a)
				last = a
				first = false
			}
		}
	}
}

func printActuation(a lineproto.Actuation) {
	if !a.HasControls {
		fmt.Printf("G long %+.3f lat %+.3f vert %+.3f\n",
			a.Longitudinal, a.Lateral, a.Vertical)
		return
	}
	fmt.Printf("G long %+.3f lat %+.3f vert %+.3f | throttle %5.1f%% brake %5.1f%% steer %+4d | susp %.2f %.2f %.2f %.2f\n",
		a.Longitudinal, a.Lateral, a.Vertical,
		a.ThrottlePercent, a.BrakePercent, a.Steering,
		a.Suspension[0], a.Suspension[1], a.Suspension[2], a.Suspension[3])
}
