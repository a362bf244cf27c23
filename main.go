package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/rjboer/GoWSA/wsa"
)

// dial is replaced in tests.
var dial = func(ctx context.Context, addr string) (*wsa.Device, error) {
	return wsa.Open(ctx, addr, wsa.Options{})
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Getenv); err != nil {
		log.Fatal(err)
	}
}

// run connects to the analyser, prints its identity and sweep status, and
// disconnects.
func run(args []string, out io.Writer, getenv func(string) string) error {
	app := kingpin.New("gowsa", "Probe a WSA network RF analyser.")
	app.UsageWriter(out)
	app.ErrorWriter(out)
	addr := app.Flag("wsa-addr", "Analyser host (env WSA_ADDR).").Default(getenv("WSA_ADDR")).String()
	timeout := app.Flag("timeout", "Connect timeout.").Default("5s").Duration()
	if _, err := app.Parse(args); err != nil {
		return err
	}
	if *addr == "" {
		return fmt.Errorf("no analyser address: set --wsa-addr or WSA_ADDR")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	d, err := dial(ctx, *addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", *addr, err)
	}
	defer d.Close()

	fmt.Fprintf(out, "WSA IDENTITY: %s %s serial %s firmware %s\n",
		d.Identity.Manufacturer, d.Identity.Model, d.Identity.Serial, d.Identity.Firmware)
	st, err := d.Sweep.Status()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "SWEEP: %s (checked %s)\n", st, time.Now().Format(time.RFC3339))
	return nil
}
