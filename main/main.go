// Console deployment of the telemetry bridge: ingestion plus an inline
// status line printed at most once per refresh interval.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eiannone/keyboard"
	log "github.com/sirupsen/logrus"

	bridge "github.com/enVId-tech/Forza-Telemetry-Interpreter"
	"github.com/enVId-tech/Forza-Telemetry-Interpreter/config"
)

var configPath = flag.String("config", "bridge.toml", "path to configuration file")
var testMode = flag.Bool("testmode", false, "generate synthetic telemetry")

func main() {
	log.SetLevel(log.InfoLevel)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("unable to load configuration: ", err)
	}

	store := bridge.NewStateStore()
	b := bridge.New(cfg, store)
	if err := b.Start(); err != nil {
		log.Fatal("unable to start telemetry bridge: ", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *testMode {
		go func() {
			if err := bridge.RunTestSource(ctx, cfg.Addr()); err != nil && err != context.Canceled {
				log.Error("test source stopped: ", err)
			}
		}()
	}

	// Open the keyboard here so the terminal is restored on every exit
	// path, signals included. Running without a terminal is fine; signals
	// still work.
	quitChan := make(chan struct{}, 1)
	if err := keyboard.Open(); err == nil {
		defer func() {
			_ = keyboard.Close()
		}()
		go watchKeyboard(quitChan)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.RefreshInterval.Duration)
	defer ticker.Stop()

	log.Info("waiting for telemetry; press q to quit")
loop:
	for {
		select {
		case <-ticker.C:
			printStatus(store.Snapshot())
		case <-sigChan:
			break loop
		case <-quitChan:
			break loop
		}
	}

	cancel()
	if err := b.Stop(); err != nil {
		log.Error("unable to stop telemetry bridge: ", err)
	}
}

// watchKeyboard signals quitChan on 'q'. It exits when the keyboard is
// closed, as GetKey then returns an error.
func watchKeyboard(quitChan chan<- struct{}) {
	for {
		ch, key, err := keyboard.GetKey()
		if err != nil {
			return
		}
		if ch == 'q' || key == keyboard.KeyCtrlC {
			quitChan <- struct{}{}
			return
		}
	}
}

func printStatus(s bridge.Snapshot) {
	if !s.Connected {
		fmt.Printf("-- waiting | packets: %d\n", s.PacketCount)
		return
	}
	tx := "tx-ok"
	if !s.SinkOK {
		tx = "tx-FAIL"
	}
	activity := "IDLE  "
	if s.Active {
		activity = "ACTIVE"
	}
	fmt.Printf("%s %s | Speed: %5.1f mph (%6.1f km/h) | RPM: %4.0f | G long %+5.2f lat %+5.2f vert %+5.2f | packets: %d\n",
		activity, tx,
		s.Frame.SpeedMPH, s.Frame.Speed*3.6, s.Frame.EngineRPM,
		s.GForces.Longitudinal, s.GForces.Lateral, s.GForces.Vertical,
		s.PacketCount)
}
