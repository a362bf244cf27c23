package capture

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rjboer/GoWSA/internal/device"
	"github.com/rjboer/GoWSA/internal/metrics"
	"github.com/rjboer/GoWSA/internal/scpi"
	"github.com/rjboer/GoWSA/internal/vrt"
	"github.com/rjboer/GoWSA/internal/wsaerr"
	"github.com/rjboer/GoWSA/internal/wsatest"
)

func newController(t *testing.T, m *metrics.Metrics) (*Controller, *wsatest.Instrument) {
	t.Helper()
	in := wsatest.NewInstrument(t)
	desc := device.RFE0560()
	c := scpi.NewClient(in.Conn(), nil)
	ctl := New(c, in.Conn(), &desc, Options{
		PacketTimeout: 200 * time.Millisecond,
		DrainWindow:   150 * time.Millisecond,
		Metrics:       m,
	})
	return ctl, in
}

func TestSettersValidateBeforeSending(t *testing.T) {
	tests := []struct {
		name string
		set  func(*Controller) error
		code wsaerr.Code
	}{
		{"spp too small", func(c *Controller) error { return c.SetSamplesPerPacket(64) }, wsaerr.InvSampleSize},
		{"spp too large", func(c *Controller) error { return c.SetSamplesPerPacket(65536) }, wsaerr.InvSampleSize},
		{"spp off step", func(c *Controller) error { return c.SetSamplesPerPacket(1000) }, wsaerr.InvSampleSize},
		{"ppb zero", func(c *Controller) error { return c.SetPacketsPerBlock(0) }, wsaerr.InvPacketsPerBlk},
		{"decimation below range", func(c *Controller) error { return c.SetDecimation(8) }, wsaerr.InvDecimationRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctl, in := newController(t, nil)
			if err := tt.set(ctl); wsaerr.CodeOf(err) != tt.code {
				t.Fatalf("got %v, want %v", err, tt.code)
			}
			if n := len(in.Lines()); n != 0 {
				t.Fatalf("sent %d lines for an invalid value", n)
			}
		})
	}
}

func TestApplyAndReadBack(t *testing.T) {
	ctl, in := newController(t, nil)
	in.Respond("TRACE:SPPACKET?", "1024")
	in.Respond("TRACE:BLOCK:PACKETS?", "4")
	in.Respond("SENSE:DEC?", "0")

	want := Config{SamplesPerPacket: 1024, PacketsPerBlock: 4, Decimation: 0}
	if err := ctl.Apply(want); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	cmds := in.Commands()
	if len(cmds) != 3 || cmds[0] != "TRACE:SPPACKET 1024" || cmds[1] != "TRACE:BLOCK:PACKETS 4" || cmds[2] != "SENSE:DEC 0" {
		t.Fatalf("unexpected commands %q", cmds)
	}
	got, err := ctl.Config()
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if got != want {
		t.Fatalf("Config = %+v, want %+v", got, want)
	}
}

func TestGetterRejectsOutOfRangeReply(t *testing.T) {
	ctl, in := newController(t, nil)
	in.Respond("TRACE:SPPACKET?", "17")
	if _, err := ctl.SamplesPerPacket(); wsaerr.CodeOf(err) != wsaerr.RespUnknown {
		t.Fatalf("expected RESPUNKNOWN, got %v", err)
	}
}

func TestCaptureBlockAndReadPackets(t *testing.T) {
	m := metrics.New()
	ctl, in := newController(t, m)
	i := []int16{1, 2, 3, 4}
	q := []int16{5, 6, 7, 8}
	ctx := wsatest.Context(wsatest.ReceiverStream, 1<<vrt.BitRFFrequency, wsatest.Fixed64(2.4e9))
	in.OnCommand("TRACE:BLOCK:DATA?", func(string) {
		in.SendData(ctx)
		in.SendData(wsatest.IFData(0, 10, i, q, 0))
		in.SendData(wsatest.IFData(1, 10, i, q, 0))
		in.SendData(wsatest.IFData(3, 10, i, q, 0))
	})

	if err := ctl.CaptureBlock(); err != nil {
		t.Fatalf("CaptureBlock: %v", err)
	}
	buf := vrt.NewBuffers(4)
	p, err := ctl.ReadPacket(buf, 4)
	if err != nil || p.Kind != vrt.KindReceiver {
		t.Fatalf("context read: %+v %v", p, err)
	}
	if ctl.Receiver.Frequency != 2.4e9 {
		t.Fatalf("receiver context not accumulated: %+v", ctl.Receiver)
	}
	for n := 0; n < 3; n++ {
		p, err := ctl.ReadPacket(buf, 4)
		if err != nil || p.Samples != 4 {
			t.Fatalf("packet %d: %+v %v", n, p, err)
		}
	}
	if in.Count("SYST:ERR?") != 0 {
		t.Fatal("block trigger should not check the error queue")
	}
	expected := `
# HELP wsa_data_packets_total Decoded data-plane packets by stream kind.
# TYPE wsa_data_packets_total counter
wsa_data_packets_total{kind="if-data"} 3
wsa_data_packets_total{kind="receiver-context"} 1
# HELP wsa_data_packet_count_gaps_total Discontinuities in the IF data packet counter.
# TYPE wsa_data_packet_count_gaps_total counter
wsa_data_packet_count_gaps_total 1
`
	if err := testutil.CollectAndCompare(m, strings.NewReader(expected), "wsa_data_packets_total", "wsa_data_packet_count_gaps_total"); err != nil {
		t.Fatal(err)
	}
}

func TestReadPacketAbortsOnDataError(t *testing.T) {
	ctl, in := newController(t, nil)
	in.Respond("SWEEP:LIST:STATUS?", "STOPPED")
	in.SendData(wsatest.IFData(0, 1, make([]int16, 8), make([]int16, 8), 0))

	_, err := ctl.ReadPacket(vrt.NewBuffers(16), 16)
	if wsaerr.CodeOf(err) != wsaerr.NotIQFrame {
		t.Fatalf("expected NOTIQFRAME, got %v", err)
	}
	if in.Count("SYSTEM:ABORT") != 1 {
		t.Fatalf("expected one abort, got lines %q", in.Lines())
	}
}

func TestReadPacketDoesNotAbortSweep(t *testing.T) {
	ctl, in := newController(t, nil)
	in.Respond("SWEEP:LIST:STATUS?", "RUNNING")
	in.SendData(wsatest.Header(0x1, 0, 1, 2, 6, 0xdeadbeef, 0, 0))

	if _, err := ctl.ReadPacket(vrt.NewBuffers(4), 4); wsaerr.CodeOf(err) != wsaerr.NotIQFrame {
		t.Fatalf("expected NOTIQFRAME, got %v", err)
	}
	if in.Count("SYSTEM:ABORT") != 0 {
		t.Fatal("abort sent while a sweep is running")
	}
}

func TestReadPacketDoesNotAbortOnBadTimestamp(t *testing.T) {
	ctl, in := newController(t, nil)
	bad := wsatest.IFData(0, 1, make([]int16, 4), make([]int16, 4), 0)
	bad[1] &^= 0xc0
	in.SendData(bad)
	in.SendData(wsatest.IFData(1, 2, make([]int16, 4), make([]int16, 4), 0))

	buf := vrt.NewBuffers(4)
	if _, err := ctl.ReadPacket(buf, 4); wsaerr.CodeOf(err) != wsaerr.InvTimestamp {
		t.Fatalf("expected INVTIMESTAMP, got %v", err)
	}
	p, err := ctl.ReadPacket(buf, 4)
	if err != nil || p.Header.PacketCount != 1 {
		t.Fatalf("next packet = %+v, %v", p, err)
	}
	if n := in.Count("SYSTEM:ABORT") + in.Count("SWEEP:LIST:STATUS?"); n != 0 {
		t.Fatalf("abort path taken: %q", in.Lines())
	}
}

func TestFlushAndAbortRefuseWhileSweeping(t *testing.T) {
	ctl, in := newController(t, nil)
	in.Respond("SWEEP:LIST:STATUS?", "RUNNING")
	if err := ctl.Flush(); wsaerr.CodeOf(err) != wsaerr.SweepAlreadyRunning {
		t.Fatalf("Flush: %v", err)
	}
	if err := ctl.Abort(); wsaerr.CodeOf(err) != wsaerr.SweepAlreadyRunning {
		t.Fatalf("Abort: %v", err)
	}
	if n := len(in.Commands()); n != 0 {
		t.Fatalf("sent commands while sweeping: %q", in.Commands())
	}
	mode, err := ctl.Mode()
	if err != nil || mode != "SWEEPING" {
		t.Fatalf("Mode = %q %v", mode, err)
	}
}

func TestFlushDrainsDataSocket(t *testing.T) {
	m := metrics.New()
	ctl, in := newController(t, m)
	in.Respond("SWEEP:LIST:STATUS?", "STOPPED")
	in.OnCommand("SWEEP:FLUSH", func(string) {
		in.SendData(make([]byte, 256))
	})
	if err := ctl.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	expected := `
# HELP wsa_data_drained_bytes_total Bytes discarded while draining the data socket.
# TYPE wsa_data_drained_bytes_total counter
wsa_data_drained_bytes_total 256
`
	if err := testutil.CollectAndCompare(m, strings.NewReader(expected), "wsa_data_drained_bytes_total"); err != nil {
		t.Fatal(err)
	}
}
