package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rjboer/GoWSA/internal/wsatest"
	"github.com/rjboer/GoWSA/wsa"
)

func TestRunParsesAddressFromFlagAndEnv(t *testing.T) {
	mockedDial := func(_ context.Context, addr string) (*wsa.Device, error) {
		return nil, errors.New(addr)
	}
	prevDial := dial
	dial = mockedDial
	defer func() { dial = prevDial }()

	buf := &strings.Builder{}
	getenv := func(key string) string {
		if key == "WSA_ADDR" {
			return "env-host"
		}
		return ""
	}

	err := run([]string{"--wsa-addr", "flag-host"}, buf, getenv)
	if err == nil || !strings.Contains(err.Error(), "flag-host") {
		t.Fatalf("expected dial to receive flag address, got %v", err)
	}

	err = run(nil, buf, getenv)
	if err == nil || !strings.Contains(err.Error(), "env-host") {
		t.Fatalf("expected dial to receive env address, got %v", err)
	}
}

func TestRunRequiresAddress(t *testing.T) {
	if err := run(nil, &strings.Builder{}, func(string) string { return "" }); err == nil || !strings.Contains(err.Error(), "WSA_ADDR") {
		t.Fatalf("expected missing address error, got %v", err)
	}
}

func TestRunHandlesDialError(t *testing.T) {
	mockedDial := func(context.Context, string) (*wsa.Device, error) {
		return nil, errors.New("dial failed")
	}
	prevDial := dial
	dial = mockedDial
	defer func() { dial = prevDial }()

	if err := run([]string{"--wsa-addr", "x"}, &strings.Builder{}, func(string) string { return "" }); err == nil || !strings.Contains(err.Error(), "dial failed") {
		t.Fatalf("expected dial error, got %v", err)
	}
}

func TestRunPrintsIdentity(t *testing.T) {
	in := wsatest.NewInstrument(t)
	in.Respond("*IDN?", "ThinkRF,WSA5000-220,150602-007,4.5.3")
	in.Respond("SWEEP:LIST:STATUS?", "RUNNING")

	prevDial := dial
	dial = func(context.Context, string) (*wsa.Device, error) {
		return wsa.Attach(in.Conn(), wsa.Options{})
	}
	defer func() { dial = prevDial }()

	buf := &strings.Builder{}
	if err := run([]string{"--wsa-addr", "wsa"}, buf, func(string) string { return "" }); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(buf.String(), "WSA5000-220") || !strings.Contains(buf.String(), "SWEEP: RUNNING") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
