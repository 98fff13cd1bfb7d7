package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/jd3nn1s/j1939/forwarder"
)

var (
	configFile     = flag.String("config", "j1939d.toml", "configuration file, defaults are used when absent")
	source         = flag.String("source", "", "log file or CAN interface, overrides the configuration")
	printPositions = flag.Bool("print-positions", false, "print positions to stdout")
	debug          = flag.Bool("debug", false, "verbose logging")
	testMode       = flag.Bool("testmode", false, "generate test data instead of opening a CAN interface")
)

func main() {
	flag.Parse()
	log.SetLevel(log.InfoLevel)
	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatal("unable to load configuration: ", err)
	}
	if *source != "" {
		cfg.Source = *source
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		log.Info("shutting down")
		cancel()
	}()

	if cfg.Metrics.Listen != "" {
		serveMetrics(cfg.Metrics.Listen)
	}

	ps := &positionStreamer{
		ctx:      ctx,
		cfg:      cfg,
		printPos: *printPositions,
	}
	if *testMode {
		ps.transport = testTransport
	}
	if cfg.UDP != nil {
		fwder, err := forwarder.NewUDPForwarderFromConfig(cfg.UDP)
		if err != nil {
			log.Fatal("unable to load UDP forwarder: ", err)
		}
		defer fwder.Close()
		go fwder.Start(ctx)
		ps.fwd = fwder
	}

	if err := retry(ctx, ps); err != nil && err != context.Canceled {
		log.Fatalf("positions done: %v", err)
	}
}
