package sweep

import (
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rjboer/GoWSA/internal/device"
	"github.com/rjboer/GoWSA/internal/scpi"
	"github.com/rjboer/GoWSA/internal/telemetry"
	"github.com/rjboer/GoWSA/internal/wsaerr"
	"github.com/rjboer/GoWSA/internal/wsatest"
)

const entryNone = "100000,200000000,100000,0,0,1,HIGH,0,1024,1,0,0,NONE"

func newMachine(t *testing.T) (*Machine, *wsatest.Instrument, *telemetry.Hub) {
	t.Helper()
	in := wsatest.NewInstrument(t)
	desc := device.RFE0560()
	hub := telemetry.NewHub(16)
	m := NewMachine(scpi.NewClient(in.Conn(), nil), in.Conn(), &desc, Options{
		DrainWindow: 100 * time.Millisecond,
		Reporter:    hub,
	})
	return m, in, hub
}

func TestStartOnEmptyList(t *testing.T) {
	m, in, hub := newMachine(t)
	in.Respond("SWEEP:LIST:STATUS?", "STOPPED")
	in.Respond("SWEEP:ENTRY:COUNT?", "0")

	if err := m.Start(); wsaerr.CodeOf(err) != wsaerr.SweepListEmpty {
		t.Fatalf("expected SWEEPLISTEMPTY, got %v", err)
	}
	if in.Count("SWEEP:LIST:START") != 0 {
		t.Fatal("start command sent for an empty list")
	}
	st, err := m.Status()
	if err != nil || st != Stopped {
		t.Fatalf("Status = %v %v", st, err)
	}
	hist := hub.History()
	if len(hist) != 1 || hist[0].Detail != "start" || hist[0].Err == "" {
		t.Fatalf("expected refused start event, got %+v", hist)
	}
}

func TestStartWhileRunningDoesNotResend(t *testing.T) {
	m, in, _ := newMachine(t)
	in.Respond("SWEEP:LIST:STATUS?", "RUNNING")

	if err := m.Start(); wsaerr.CodeOf(err) != wsaerr.SweepAlreadyRunning {
		t.Fatalf("Start: expected SWEEPALREADYRUNNING, got %v", err)
	}
	if err := m.Resume(); wsaerr.CodeOf(err) != wsaerr.SweepAlreadyRunning {
		t.Fatalf("Resume: expected SWEEPALREADYRUNNING, got %v", err)
	}
	if n := len(in.Commands()); n != 0 {
		t.Fatalf("unexpected commands %q", in.Commands())
	}
}

func TestStartAndResume(t *testing.T) {
	m, in, _ := newMachine(t)
	in.Respond("SWEEP:LIST:STATUS?", "STOPPED")
	in.Respond("SWEEP:ENTRY:COUNT?", "2")

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	cmds := in.Commands()
	if len(cmds) != 2 || cmds[0] != "SWEEP:LIST:START" || cmds[1] != "SWEEP:LIST:RESUME" {
		t.Fatalf("unexpected commands %q", cmds)
	}
}

func TestSaveBounds(t *testing.T) {
	tests := []struct {
		id   int
		want wsaerr.Code
	}{
		{0, wsaerr.OK},
		{1, wsaerr.OK},
		{4, wsaerr.OK},
		{5, wsaerr.SweepIDOOB},
		{-1, wsaerr.SweepIDOOB},
	}
	for _, tt := range tests {
		m, in, _ := newMachine(t)
		in.Respond("SWEEP:LIST:STATUS?", "STOPPED")
		in.Respond("SWEEP:ENTRY:COUNT?", "3")
		err := m.Save(tt.id)
		if got := wsaerr.CodeOf(err); got != tt.want {
			t.Fatalf("Save(%d) = %v, want %s", tt.id, err, tt.want)
		}
		sent := in.Count("SWEEP:ENTRY:SAVE")
		if (tt.want == wsaerr.OK) != (sent == 1) {
			t.Fatalf("Save(%d) sent %d save commands", tt.id, sent)
		}
	}
}

func TestListEditsRefusedWhileRunning(t *testing.T) {
	m, in, _ := newMachine(t)
	in.Respond("SWEEP:LIST:STATUS?", "RUNNING")
	ops := map[string]func() error{
		"save":       func() error { return m.Save(0) },
		"delete":     func() error { return m.Delete(1) },
		"delete all": m.DeleteAll,
		"copy":       func() error { return m.Copy(1) },
	}
	for name, op := range ops {
		if err := op(); wsaerr.CodeOf(err) != wsaerr.SweepAlreadyRunning {
			t.Fatalf("%s: expected SWEEPALREADYRUNNING, got %v", name, err)
		}
	}
	if n := len(in.Commands()); n != 0 {
		t.Fatalf("unexpected commands %q", in.Commands())
	}
}

func TestDeleteAndCopyBounds(t *testing.T) {
	m, in, _ := newMachine(t)
	in.Respond("SWEEP:LIST:STATUS?", "STOPPED")
	var count atomic.Int32
	in.Handle("SWEEP:ENTRY:COUNT?", func(string) string { return strconv.Itoa(int(count.Load())) })

	if err := m.Copy(1); wsaerr.CodeOf(err) != wsaerr.SweepListEmpty {
		t.Fatalf("Copy on empty list: %v", err)
	}
	if err := m.Delete(1); wsaerr.CodeOf(err) != wsaerr.SweepIDOOB {
		t.Fatalf("Delete on empty list: %v", err)
	}
	count.Store(2)
	if err := m.Delete(3); wsaerr.CodeOf(err) != wsaerr.SweepIDOOB {
		t.Fatalf("Delete(3): %v", err)
	}
	if err := m.Copy(0); wsaerr.CodeOf(err) != wsaerr.SweepIDOOB {
		t.Fatalf("Copy(0): %v", err)
	}
	if err := m.Delete(2); err != nil {
		t.Fatalf("Delete(2): %v", err)
	}
	if err := m.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	cmds := in.Commands()
	if len(cmds) != 2 || cmds[0] != "SWEEP:ENTRY:DELETE 2" || cmds[1] != "SWEEP:ENTRY:DELETE ALL" {
		t.Fatalf("unexpected commands %q", cmds)
	}
}

func TestCopyRefreshesTemplate(t *testing.T) {
	m, in, _ := newMachine(t)
	in.Respond("SWEEP:LIST:STATUS?", "STOPPED")
	in.Respond("SWEEP:ENTRY:COUNT?", "1")
	in.Respond("SWEEP:ENTRY:READ?", entryNone)

	if err := m.Copy(1); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if got := m.Template(); got.StopFreq != 200_000_000 || got.SamplesPerPacket != 1024 {
		t.Fatalf("template not refreshed: %+v", got)
	}
	if in.Count("SWEEP:ENTRY:COPY 1") != 1 {
		t.Fatalf("copy command not sent: %q", in.Lines())
	}
}

func TestReadWithoutTrigger(t *testing.T) {
	m, in, _ := newMachine(t)
	var asked string
	in.Handle("SWEEP:ENTRY:READ?", func(args string) string {
		asked = args
		return entryNone
	})

	e, err := m.Read(3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if asked != "3" {
		t.Fatalf("queried id %q", asked)
	}
	want := Entry{
		StartFreq:        100_000,
		StopFreq:         200_000_000,
		FreqStep:         100_000,
		Antenna:          1,
		GainRF:           device.GainHigh,
		SamplesPerPacket: 1024,
		PacketsPerBlock:  1,
	}
	if e != want {
		t.Fatalf("got %+v, want %+v", e, want)
	}
}

func TestReadWithLevelTrigger(t *testing.T) {
	m, in, _ := newMachine(t)
	in.Respond("SWEEP:ENTRY:READ?", "2400000000,2500000000,1000000,-5000.5,32,2,VLOW,-10,512,4,1,250,LEVEL,2400000000,2450000000,-40")

	e, err := m.Read(1)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !e.TriggerEnable || e.TriggerStart != 2_400_000_000 || e.TriggerStop != 2_450_000_000 || e.TriggerAmplitude != -40 {
		t.Fatalf("trigger fields: %+v", e)
	}
	if e.GainRF != device.GainVLow || e.FreqShift != -5000.5 || e.DwellUsec != 250 || e.Decimation != 32 {
		t.Fatalf("fixed fields: %+v", e)
	}
}

func TestReadRejectsBadResponses(t *testing.T) {
	tests := []struct {
		name string
		resp string
	}{
		{"missing trigger amplitude", "100000,200000000,100000,0,0,1,HIGH,0,1024,1,0,0,LEVEL,100000,200000"},
		{"missing trigger type", "100000,200000000,100000,0,0,1,HIGH,0,1024,1,0,0"},
		{"unknown trigger type", "100000,200000000,100000,0,0,1,HIGH,0,1024,1,0,0,EDGE"},
		{"non numeric field", "100000,abc,100000,0,0,1,HIGH,0,1024,1,0,0,NONE"},
		{"antenna out of range", "100000,200000000,100000,0,0,7,HIGH,0,1024,1,0,0,NONE"},
		{"unknown gain", "100000,200000000,100000,0,0,1,MAX,0,1024,1,0,0,NONE"},
		{"trailing fields after NONE", "100000,200000000,100000,0,0,1,HIGH,0,1024,1,0,0,NONE,100000,200000,-40"},
		{"trailing field after LEVEL", "100000,200000000,100000,0,0,1,HIGH,0,1024,1,0,0,LEVEL,100000,200000,-40,7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, in, _ := newMachine(t)
			in.Respond("SWEEP:ENTRY:READ?", tt.resp)
			if _, err := m.Read(1); wsaerr.CodeOf(err) != wsaerr.RespUnknown {
				t.Fatalf("expected RESPUNKNOWN, got %v", err)
			}
		})
	}
}

func TestNewResetsTemplate(t *testing.T) {
	m, in, _ := newMachine(t)
	if err := m.SetGainIF(12); err != nil {
		t.Fatalf("SetGainIF: %v", err)
	}
	if err := m.SetAntenna(2); err != nil {
		t.Fatalf("SetAntenna: %v", err)
	}
	if err := m.SetTriggerEnable(true); err != nil {
		t.Fatalf("SetTriggerEnable: %v", err)
	}
	if m.Template() == DefaultEntry(m.desc) {
		t.Fatal("setters did not update the template")
	}
	if err := m.New(); err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, want := m.Template(), DefaultEntry(m.desc); got != want {
		t.Fatalf("template after New = %+v, want %+v", got, want)
	}
	if in.Count("SWEEP:ENTRY:NEW") != 1 {
		t.Fatal("reset command not sent")
	}
}

func TestTemplateSettersValidateBeforeSending(t *testing.T) {
	m, in, _ := newMachine(t)
	tests := []struct {
		name string
		set  func() error
		want wsaerr.Code
	}{
		{"stop below start", func() error { return m.SetFreq(2e9, 1e9) }, wsaerr.InvStopFreq},
		{"start out of range", func() error { return m.SetFreq(1, 1e9) }, wsaerr.StartOOB},
		{"step off resolution", func() error { return m.SetFreqStep(150_000) }, wsaerr.InvFreqRes},
		{"shift too wide", func() error { return m.SetFreqShift(200e6) }, wsaerr.FreqOutOfBound},
		{"antenna zero", func() error { return m.SetAntenna(0) }, wsaerr.InvAntennaPort},
		{"unknown gain", func() error { return m.SetGainRF(device.GainUnknown) }, wsaerr.InvRFGain},
		{"if gain high", func() error { return m.SetGainIF(40) }, wsaerr.InvIFGain},
		{"negative dwell", func() error { return m.SetDwell(-1, 0) }, wsaerr.InvDwell},
		{"trigger window", func() error { return m.SetTriggerLevel(3e9, 2e9, -40) }, wsaerr.InvStopFreq},
		{"iterations", func() error { return m.SetIterations(-1) }, wsaerr.InvIteration},
	}
	for _, tt := range tests {
		if err := tt.set(); wsaerr.CodeOf(err) != tt.want {
			t.Fatalf("%s: got %v, want %s", tt.name, err, tt.want)
		}
	}
	if n := len(in.Lines()); n != 0 {
		t.Fatalf("invalid values reached the device: %q", in.Lines())
	}
}

func TestApplyWritesTemplate(t *testing.T) {
	m, in, _ := newMachine(t)
	e := DefaultEntry(m.desc)
	e.StartFreq, e.StopFreq = 2_400_000_000, 2_500_000_000
	e.TriggerEnable = true
	e.TriggerStart, e.TriggerStop = 2_410_000_000, 2_420_000_000

	if err := m.Apply(e); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if m.Template() != e {
		t.Fatalf("template = %+v, want %+v", m.Template(), e)
	}
	cmds := in.Commands()
	if cmds[0] != "SWEEP:ENTRY:FREQ:CENT 2400000000 Hz,2500000000 Hz" {
		t.Fatalf("first command %q", cmds[0])
	}
	last := cmds[len(cmds)-1]
	if last != "SWEEP:ENTRY:TRIGGER:TYPE LEVEL" {
		t.Fatalf("last command %q", last)
	}
	if in.Count("SWEEP:ENTRY:TRIGGER:LEVEL 2410000000,2420000000,-50") != 1 {
		t.Fatalf("trigger level not staged: %q", cmds)
	}
}

func TestTemplateGettersRevalidate(t *testing.T) {
	m, in, _ := newMachine(t)
	in.Respond("SWEEP:ENTRY:FREQ:CENT?", "1000000000,2000000000")
	in.Respond("SWEEP:ENTRY:GAIN:RF?", "MED")
	in.Respond("SWEEP:ENTRY:DWELL?", "2,500")
	in.Respond("SWEEP:ENTRY:TRIGGER:TYPE?", "NONE")
	in.Respond("SWEEP:ENTRY:SPPACKET?", "17")

	start, stop, err := m.Freq()
	if err != nil || start != 1e9 || stop != 2e9 {
		t.Fatalf("Freq = %d %d %v", start, stop, err)
	}
	if g, err := m.GainRF(); err != nil || g != device.GainMed {
		t.Fatalf("GainRF = %v %v", g, err)
	}
	if s, us, err := m.Dwell(); err != nil || s != 2 || us != 500 {
		t.Fatalf("Dwell = %d %d %v", s, us, err)
	}
	if on, err := m.TriggerEnabled(); err != nil || on {
		t.Fatalf("TriggerEnabled = %v %v", on, err)
	}
	if _, err := m.SamplesPerPacket(); wsaerr.CodeOf(err) != wsaerr.RespUnknown {
		t.Fatalf("SamplesPerPacket: expected RESPUNKNOWN, got %v", err)
	}
}

func TestStopDrainsAndIsAlwaysAllowed(t *testing.T) {
	m, in, hub := newMachine(t)
	in.OnCommand("SWEEP:LIST:STOP", func(string) {
		in.SendData(make([]byte, 512))
	})

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	var sent []string
	for _, c := range in.Commands() {
		if strings.HasPrefix(c, "SWEEP:") {
			sent = append(sent, c)
		}
	}
	if len(sent) != 2 || sent[0] != "SWEEP:LIST:STOP" || sent[1] != "SWEEP:FLUSH" {
		t.Fatalf("unexpected commands %q", sent)
	}
	hist := hub.History()
	if len(hist) != 1 || hist[0].Bytes != 512 {
		t.Fatalf("expected stop event with drained bytes, got %+v", hist)
	}
}

func TestStatusUndefined(t *testing.T) {
	m, in, _ := newMachine(t)
	in.Respond("SWEEP:LIST:STATUS?", "PAUSED")
	if _, err := m.Status(); wsaerr.CodeOf(err) != wsaerr.SweepModeUndef {
		t.Fatalf("expected SWEEPMODEUNDEF, got %v", err)
	}
	if err := m.Start(); wsaerr.KindOf(err) != wsaerr.KindState {
		t.Fatalf("Start with undefined status: %v", err)
	}
}
