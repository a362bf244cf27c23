// Package sweep drives the analyser's persisted sweep list: staging entries
// in the device template, list edits and the start, stop and resume
// transitions.
package sweep

import (
	"strings"

	"github.com/rjboer/GoWSA/internal/device"
	"github.com/rjboer/GoWSA/internal/scpi"
	"github.com/rjboer/GoWSA/internal/wsaerr"
)

// Entry is the full parameter set of one sweep step.
type Entry struct {
	StartFreq        int64       `json:"start_freq"`
	StopFreq         int64       `json:"stop_freq"`
	FreqStep         int64       `json:"freq_step"`
	FreqShift        float64     `json:"freq_shift"`
	Decimation       int         `json:"decimation"`
	Antenna          int         `json:"antenna"`
	GainRF           device.Gain `json:"gain_rf"`
	GainIF           int         `json:"gain_if"`
	SamplesPerPacket int         `json:"samples_per_packet"`
	PacketsPerBlock  int         `json:"packets_per_block"`
	DwellSec         int         `json:"dwell_sec"`
	DwellUsec        int         `json:"dwell_usec"`

	TriggerEnable    bool    `json:"trigger_enable"`
	TriggerStart     int64   `json:"trigger_start"`
	TriggerStop      int64   `json:"trigger_stop"`
	TriggerAmplitude float64 `json:"trigger_amplitude"`
}

// DefaultEntry returns the template a freshly reset device holds: the full
// tuning range in steps of the instantaneous bandwidth, antenna 1, high RF
// gain, no decimation and no trigger.
func DefaultEntry(d *device.Descriptor) Entry {
	gainIF := 0
	if gainIF < d.MinIFGain || gainIF > d.MaxIFGain {
		gainIF = d.MinIFGain
	}
	return Entry{
		StartFreq:        d.MinTuneFreq,
		StopFreq:         d.MaxTuneFreq,
		FreqStep:         int64(d.InstBandwidth),
		Antenna:          1,
		GainRF:           device.GainHigh,
		GainIF:           gainIF,
		SamplesPerPacket: 1024,
		PacketsPerBlock:  1,
		TriggerStart:     d.MinTuneFreq,
		TriggerStop:      d.MaxTuneFreq,
		TriggerAmplitude: -50,
	}
}

// Validate checks every field against the descriptor bounds.
func (e Entry) Validate(d *device.Descriptor, op string) error {
	checks := []error{
		d.CheckFreqRange(op, e.StartFreq, e.StopFreq),
		d.CheckFreqStep(op, e.FreqStep),
		d.CheckFreqShift(op, e.FreqShift),
		d.CheckDecimation(op, e.Decimation),
		d.CheckAntenna(op, e.Antenna),
		d.CheckGain(op, e.GainRF),
		d.CheckIFGain(op, e.GainIF),
		d.CheckSamplesPerPacket(op, e.SamplesPerPacket),
		d.CheckPacketsPerBlock(op, e.PacketsPerBlock),
		d.CheckDwell(op, e.DwellSec, e.DwellUsec),
	}
	if e.TriggerEnable {
		checks = append(checks, d.CheckFreqRange(op, e.TriggerStart, e.TriggerStop))
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

// Trigger type tokens of SWEEP:ENTRY:READ? and SWEEP:ENTRY:TRIGGER:TYPE.
const (
	triggerLevel = "LEVEL"
	triggerNone  = "NONE"
)

func triggerToken(enable bool) string {
	if enable {
		return triggerLevel
	}
	return triggerNone
}

// parseEntry decodes a SWEEP:ENTRY:READ? response. The three trigger fields
// follow only when the trigger type is LEVEL.
func parseEntry(resp string) (Entry, error) {
	t := scpi.NewTokens(resp)
	var e Entry
	var err error
	ints := []struct {
		name string
		dst  *int64
	}{
		{"start frequency", &e.StartFreq},
		{"stop frequency", &e.StopFreq},
		{"frequency step", &e.FreqStep},
	}
	for _, f := range ints {
		if *f.dst, err = t.Int(f.name); err != nil {
			return Entry{}, err
		}
	}
	if e.FreqShift, err = t.Float("frequency shift"); err != nil {
		return Entry{}, err
	}
	if e.Decimation, err = nextInt(t, "decimation"); err != nil {
		return Entry{}, err
	}
	if e.Antenna, err = nextInt(t, "antenna"); err != nil {
		return Entry{}, err
	}
	gain, err := t.Next("rf gain")
	if err != nil {
		return Entry{}, err
	}
	e.GainRF = device.ParseGain(gain)
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{"if gain", &e.GainIF},
		{"samples per packet", &e.SamplesPerPacket},
		{"packets per block", &e.PacketsPerBlock},
		{"dwell seconds", &e.DwellSec},
		{"dwell microseconds", &e.DwellUsec},
	} {
		if *f.dst, err = nextInt(t, f.name); err != nil {
			return Entry{}, err
		}
	}

	trig, err := t.Next("trigger type")
	if err != nil {
		return Entry{}, err
	}
	switch {
	case strings.Contains(trig, triggerLevel):
		e.TriggerEnable = true
		if e.TriggerStart, err = t.Int("trigger start"); err != nil {
			return Entry{}, err
		}
		if e.TriggerStop, err = t.Int("trigger stop"); err != nil {
			return Entry{}, err
		}
		if e.TriggerAmplitude, err = t.Float("trigger amplitude"); err != nil {
			return Entry{}, err
		}
	case strings.Contains(trig, triggerNone):
		e.TriggerEnable = false
	default:
		return Entry{}, wsaerr.Errorf(wsaerr.RespUnknown, "parse sweep entry", "unknown trigger type %q", trig)
	}
	if err := t.Done(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func nextInt(t *scpi.Tokens, name string) (int, error) {
	v, err := t.Int(name)
	return int(v), err
}
