// Package frontend configures the analyser's RF front end: tuning, gains,
// antenna and filter selection, the level trigger and the reference PLL.
package frontend

import (
	"strings"

	"github.com/rjboer/GoWSA/internal/device"
	"github.com/rjboer/GoWSA/internal/logging"
	"github.com/rjboer/GoWSA/internal/scpi"
	"github.com/rjboer/GoWSA/internal/wsaerr"
)

// Reference selects the PLL reference clock.
type Reference string

const (
	RefInternal Reference = "INT"
	RefExternal Reference = "EXT"
)

// Frontend issues validated front-end settings. Every setter checks the
// value against the descriptor before anything is sent.
type Frontend struct {
	c      *scpi.Client
	desc   *device.Descriptor
	logger logging.Logger
}

// New builds a Frontend.
func New(c *scpi.Client, desc *device.Descriptor, logger logging.Logger) *Frontend {
	return &Frontend{
		c:      c,
		desc:   desc,
		logger: logging.OrDefault(logger).With(logging.Field{Key: "component", Value: "frontend"}),
	}
}

// SetFreq tunes the centre frequency in Hz.
func (f *Frontend) SetFreq(hz int64) error {
	if err := f.desc.CheckFreq("set freq", hz); err != nil {
		return err
	}
	return f.c.Exec("FREQ:CENT", scpi.Hz(hz))
}

// Freq reads the centre frequency back.
func (f *Frontend) Freq() (int64, error) {
	const op = "get freq"
	v, err := f.c.QueryInt("FREQ:CENT")
	if err != nil {
		return 0, err
	}
	if err := f.desc.CheckFreq(op, v); err != nil {
		return 0, wsaerr.Wrap(wsaerr.RespUnknown, op, err)
	}
	return v, nil
}

// SetFreqShift shifts the digital down-converter by hz.
func (f *Frontend) SetFreqShift(hz float64) error {
	if err := f.desc.CheckFreqShift("set freq shift", hz); err != nil {
		return err
	}
	return f.c.Exec("FREQ:SHIFT", scpi.HzF(hz))
}

// FreqShift reads the frequency shift back.
func (f *Frontend) FreqShift() (float64, error) {
	const op = "get freq shift"
	v, err := f.c.QueryFloat("FREQ:SHIFT")
	if err != nil {
		return 0, err
	}
	if err := f.desc.CheckFreqShift(op, v); err != nil {
		return 0, wsaerr.Wrap(wsaerr.RespUnknown, op, err)
	}
	return v, nil
}

// SetGainRF selects the RF gain stage.
func (f *Frontend) SetGainRF(g device.Gain) error {
	if err := f.desc.CheckGain("set rf gain", g); err != nil {
		return err
	}
	return f.c.Exec("INPUT:GAIN:RF", g.Token())
}

// GainRF reads the RF gain stage. An unrecognised reply is RESPUNKNOWN.
func (f *Frontend) GainRF() (device.Gain, error) {
	const op = "get rf gain"
	resp, err := f.c.Query("INPUT:GAIN:RF")
	if err != nil {
		return device.GainUnknown, err
	}
	g := device.ParseGain(resp)
	if err := f.desc.CheckGain(op, g); err != nil {
		return device.GainUnknown, wsaerr.Wrap(wsaerr.RespUnknown, op, err)
	}
	return g, nil
}

// SetGainIF sets the IF gain in dB.
func (f *Frontend) SetGainIF(db int) error {
	if err := f.desc.CheckIFGain("set if gain", db); err != nil {
		return err
	}
	return f.c.Exec("INPUT:GAIN:IF", scpi.DB(db))
}

// GainIF reads the IF gain in dB.
func (f *Frontend) GainIF() (int, error) {
	return f.queryInt("INPUT:GAIN:IF", f.desc.CheckIFGain)
}

// SetAntenna selects the 1-based antenna port.
func (f *Frontend) SetAntenna(port int) error {
	if err := f.desc.CheckAntenna("set antenna", port); err != nil {
		return err
	}
	return f.c.Exec("INPUT:ANTENNA", port)
}

// Antenna reads the selected antenna port.
func (f *Frontend) Antenna() (int, error) {
	return f.queryInt("INPUT:ANTENNA", f.desc.CheckAntenna)
}

// SetPreselectFilter switches the RFE pre-select band-pass filter.
func (f *Frontend) SetPreselectFilter(on bool) error {
	return f.c.Exec("INPUT:FILT:PRES", scpi.Bool(on))
}

// PreselectFilter reads the pre-select filter state.
func (f *Frontend) PreselectFilter() (bool, error) {
	v, err := f.c.QueryInt("INPUT:FILT:PRES")
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, wsaerr.Errorf(wsaerr.InvFilterMode, "get preselect filter", "mode %d", v)
	}
}

// SetTriggerLevel configures the level trigger window in Hz and its
// amplitude threshold in dBm.
func (f *Frontend) SetTriggerLevel(start, stop int64, amplitude float64) error {
	if err := f.desc.CheckFreqRange("set trigger level", start, stop); err != nil {
		return err
	}
	return f.c.Exec(":TRIG:LEVEL", start, stop, amplitude)
}

// TriggerLevel reads the level trigger window and amplitude.
func (f *Frontend) TriggerLevel() (start, stop int64, amplitude float64, err error) {
	const op = "get trigger level"
	t, err := f.c.QueryTokens(":TRIG:LEVEL")
	if err != nil {
		return 0, 0, 0, err
	}
	if start, err = t.Int("trigger start"); err != nil {
		return 0, 0, 0, err
	}
	if stop, err = t.Int("trigger stop"); err != nil {
		return 0, 0, 0, err
	}
	if amplitude, err = t.Float("trigger amplitude"); err != nil {
		return 0, 0, 0, err
	}
	if err := f.desc.CheckFreqRange(op, start, stop); err != nil {
		return 0, 0, 0, wsaerr.Wrap(wsaerr.RespUnknown, op, err)
	}
	return start, stop, amplitude, nil
}

// SetTriggerEnable arms or disarms the level trigger.
func (f *Frontend) SetTriggerEnable(on bool) error {
	return f.c.Exec(":TRIGGER:ENABLE", scpi.Bool(on))
}

// TriggerEnabled reports whether the level trigger is armed.
func (f *Frontend) TriggerEnabled() (bool, error) {
	return f.queryFlag(":TRIGGER:ENABLE")
}

// SetReference selects the PLL reference clock.
func (f *Frontend) SetReference(ref Reference) error {
	if ref != RefInternal && ref != RefExternal {
		return wsaerr.Errorf(wsaerr.InvRFESetting, "set pll reference", "reference %q", ref)
	}
	return f.c.Exec("SOURCE:REFERENCE:PLL", string(ref))
}

// Reference reads the PLL reference source.
func (f *Frontend) Reference() (Reference, error) {
	resp, err := f.c.Query("SOURCE:REFERENCE:PLL")
	if err != nil {
		return "", err
	}
	switch {
	case strings.Contains(resp, string(RefExternal)):
		return RefExternal, nil
	case strings.Contains(resp, string(RefInternal)):
		return RefInternal, nil
	default:
		return "", wsaerr.Errorf(wsaerr.RespUnknown, "get pll reference", "unexpected response %q", resp)
	}
}

// ResetReference resets the reference PLL.
func (f *Frontend) ResetReference() error {
	return f.c.Exec("SOURCE:REFERENCE:PLL:RESET")
}

// ReferenceLocked reports whether the reference PLL is locked.
func (f *Frontend) ReferenceLocked() (bool, error) {
	return f.queryFlag("LOCK:REF")
}

// CheckReferenceLock fails with PLLLOCKFAILED when the PLL is unlocked.
func (f *Frontend) CheckReferenceLock() error {
	locked, err := f.ReferenceLocked()
	if err != nil {
		return err
	}
	if !locked {
		f.logger.Warn("reference pll unlocked")
		return wsaerr.New(wsaerr.PLLLockFailed, "check reference lock")
	}
	return nil
}

// RequestAcquisitionLock asks for exclusive acquisition access. It reports
// whether the lock was granted.
func (f *Frontend) RequestAcquisitionLock() (bool, error) {
	granted, err := f.queryFlag("SYSTEM:LOCK:REQUEST", "ACQ")
	if err == nil && !granted {
		f.logger.Info("acquisition lock held by another client")
	}
	return granted, err
}

// HaveAcquisitionLock reports whether this connection holds acquisition
// access.
func (f *Frontend) HaveAcquisitionLock() (bool, error) {
	return f.queryFlag("SYSTEM:LOCK:HAVE", "ACQ")
}

// AbsMaxAmplitude returns the input ceiling in dBm for the current RF gain.
func (f *Frontend) AbsMaxAmplitude() (float64, error) {
	g, err := f.GainRF()
	if err != nil {
		return 0, err
	}
	return f.desc.AbsMaxAmplitude(g)
}

func (f *Frontend) queryInt(path string, check func(op string, v int) error) (int, error) {
	v, err := f.c.QueryInt(path)
	if err != nil {
		return 0, err
	}
	if err := check("query "+path, int(v)); err != nil {
		return 0, wsaerr.Wrap(wsaerr.RespUnknown, "query "+path, err)
	}
	return int(v), nil
}

func (f *Frontend) queryFlag(path string, args ...any) (bool, error) {
	v, err := f.c.QueryInt(path, args...)
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, wsaerr.Errorf(wsaerr.RespUnknown, "query "+path, "expected 0 or 1, got %d", v)
	}
}
