// Web deployment of the telemetry bridge: ingestion plus the webstatus
// server pushing snapshots to a browser dashboard.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	bridge "github.com/enVId-tech/Forza-Telemetry-Interpreter"
	"github.com/enVId-tech/Forza-Telemetry-Interpreter/config"
	"github.com/enVId-tech/Forza-Telemetry-Interpreter/webstatus"
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

	srv := webstatus.New(store, cfg.RefreshInterval.Duration)
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run(cfg.HTTPListen)
	}()

	waitForShutdown(errChan)

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("unable to shut down status server: ", err)
	}
	if err := b.Stop(); err != nil {
		log.Error("unable to stop telemetry bridge: ", err)
	}
}

func waitForShutdown(errChan <-chan error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-errChan:
		if err != nil {
			log.Error("status server stopped: ", err)
		}
	}
}
