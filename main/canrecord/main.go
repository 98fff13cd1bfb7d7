// Command canrecord writes the traffic on a CAN interface to a
// candump-format log file that a position stream can replay later.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jd3nn1s/j1939/canbus"
	"github.com/jd3nn1s/j1939/canlog"
)

var (
	ifaceName = flag.String("interface", "can0", "CAN interface to record")
	outFile   = flag.String("out", "", "output log file, stdout when empty")
)

func main() {
	flag.Parse()

	out := os.Stdout
	if *outFile != "" {
		f, err := os.OpenFile(*outFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Fatal("unable to open output file: ", err)
		}
		defer f.Close()
		out = f
	}

	rcv, err := canbus.Open(*ifaceName)
	if err != nil {
		log.Fatal("unable to open CAN interface: ", err)
	}
	defer rcv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		cancel()
	}()

	w := canlog.NewWriter(out)
	for {
		frm, ok, err := rcv.Receive(ctx, time.Second)
		if err == context.Canceled {
			return
		}
		if err != nil {
			log.Fatal("receive failed: ", err)
		}
		if !ok {
			continue
		}
		if err := w.WriteFrame(*ifaceName, frm); err != nil {
			log.Fatal("unable to write record: ", err)
		}
	}
}
