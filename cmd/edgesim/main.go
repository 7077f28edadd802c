// Command edgesim runs a discrete-event edge-computing packet lifecycle
// simulation from a topology and catalog document, either to completion
// (writing a report) or as a live HTTP server.
package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	flag "github.com/spf13/pflag"

	"github.com/jwmdev/edgesim/data"
	"github.com/jwmdev/edgesim/model"
	"github.com/jwmdev/edgesim/server"
	"github.com/jwmdev/edgesim/sim"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	topologyPath := flag.String("topology", "", "path to a topology JSON document (default: the bundled sample)")
	catalogPath := flag.String("catalog", "", "path to a service/application catalog JSON document (default: the bundled sample)")
	steps := flag.Int("steps", 500, "number of ticks to run (0 = run until --listen-addr is stopped)")
	seed := flag.Int64("seed", 1, "RNG seed for packet-size sampling")
	playbackSpeed := flag.Float64("playback-speed", 0, "real-time playback speed multiplier (0 = run as fast as possible)")
	reportPath := flag.String("report", "", "if set, write a CSV report to this file or directory (timestamp appended)")
	listenAddr := flag.String("listen-addr", "", "if set, serve the HTTP status/event API on this address instead of exiting after --steps")
	verbose := flag.Bool("verbose", false, "enable verbose (debug) logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	topoBytes := data.DefaultTopology
	if *topologyPath != "" {
		b, err := os.ReadFile(*topologyPath)
		if err != nil {
			return fmt.Errorf("read topology: %w", err)
		}
		topoBytes = b
	}
	topo, servers, err := model.LoadTopologyFromReader(bytes.NewReader(topoBytes))
	if err != nil {
		return fmt.Errorf("load topology: %w", err)
	}

	catalogBytes := data.DefaultCatalog
	if *catalogPath != "" {
		b, err := os.ReadFile(*catalogPath)
		if err != nil {
			return fmt.Errorf("read catalog: %w", err)
		}
		catalogBytes = b
	}
	catalog, err := model.LoadCatalogFromReader(bytes.NewReader(catalogBytes), servers)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	world := sim.NewWorld(topo, catalog, *seed)
	logger.Info("world built", "switches", len(topo.Switches()), "links", len(topo.Links()), "applications", len(catalog.Applications))

	opts := sim.RunOptions{Steps: *steps, Clock: clockwork.NewRealClock()}
	if *playbackSpeed > 0 {
		opts.TickDuration = time.Second
	}
	ctrl := sim.StaticControl{SpeedMult: *playbackSpeed}

	if *listenAddr != "" {
		srv := server.New(world, server.Options{Logger: logger})
		events, stop, wait := sim.StartRunner(world, opts, ctrl)
		go func() {
			for e := range events {
				srv.Publish(e)
			}
		}()
		defer wait()
		defer stop()

		logger.Info("serving HTTP API", "addr", *listenAddr)
		return http.ListenAndServe(*listenAddr, srv.Router())
	}

	events, _, wait := sim.StartRunner(world, opts, ctrl)
	generated := 0
	for e := range events {
		switch e.(type) {
		case sim.PacketCreatedEvent:
			generated++
		}
	}
	wait()

	sum := sim.Summarize(world, generated)
	sim.PrintConsoleReport(world, sum)
	if *reportPath != "" {
		path, err := sim.WriteCSVReport(*reportPath, world, sum)
		if err != nil {
			logger.Warn("report: write failed", "error", err)
		} else {
			logger.Info("CSV report written", "path", path)
		}
	}

	return nil
}
