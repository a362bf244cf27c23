package sweep

import (
	"github.com/rjboer/GoWSA/internal/device"
	"github.com/rjboer/GoWSA/internal/scpi"
	"github.com/rjboer/GoWSA/internal/wsaerr"
)

// Template setters validate against the descriptor, write the device
// template and then update the local shadow. Getters read the device
// template back and re-validate it.

// SetFreq stages the centre frequency range swept by the entry.
func (m *Machine) SetFreq(start, stop int64) error {
	if err := m.desc.CheckFreqRange("sweep entry freq", start, stop); err != nil {
		return err
	}
	if err := m.c.Exec("SWEEP:ENTRY:FREQ:CENT", scpi.Hz(start), scpi.Hz(stop)); err != nil {
		return err
	}
	m.template.StartFreq, m.template.StopFreq = start, stop
	return nil
}

// Freq reads the staged start and stop centre frequencies.
func (m *Machine) Freq() (start, stop int64, err error) {
	const op = "sweep entry freq"
	t, err := m.c.QueryTokens("SWEEP:ENTRY:FREQ:CENT")
	if err != nil {
		return 0, 0, err
	}
	if start, err = t.Int("start frequency"); err != nil {
		return 0, 0, err
	}
	if stop, err = t.Int("stop frequency"); err != nil {
		return 0, 0, err
	}
	if err := m.desc.CheckFreqRange(op, start, stop); err != nil {
		return 0, 0, inconsistent(op, err)
	}
	return start, stop, nil
}

// SetFreqStep stages the tuning step. It must be a multiple of the
// frequency resolution.
func (m *Machine) SetFreqStep(step int64) error {
	if err := m.desc.CheckFreqStep("sweep entry freq step", step); err != nil {
		return err
	}
	if err := m.c.Exec("SWEEP:ENTRY:FREQ:STEP", scpi.Hz(step)); err != nil {
		return err
	}
	m.template.FreqStep = step
	return nil
}

// FreqStep reads the staged tuning step.
func (m *Machine) FreqStep() (int64, error) {
	const op = "sweep entry freq step"
	v, err := m.c.QueryInt("SWEEP:ENTRY:FREQ:STEP")
	if err != nil {
		return 0, err
	}
	if err := m.desc.CheckFreqStep(op, v); err != nil {
		return 0, inconsistent(op, err)
	}
	return v, nil
}

// SetFreqShift stages a shift within the instantaneous bandwidth.
func (m *Machine) SetFreqShift(hz float64) error {
	if err := m.desc.CheckFreqShift("sweep entry freq shift", hz); err != nil {
		return err
	}
	if err := m.c.Exec("SWEEP:ENTRY:FREQ:SHIFT", scpi.HzF(hz)); err != nil {
		return err
	}
	m.template.FreqShift = hz
	return nil
}

// FreqShift reads the staged frequency shift.
func (m *Machine) FreqShift() (float64, error) {
	const op = "sweep entry freq shift"
	v, err := m.c.QueryFloat("SWEEP:ENTRY:FREQ:SHIFT")
	if err != nil {
		return 0, err
	}
	if err := m.desc.CheckFreqShift(op, v); err != nil {
		return 0, inconsistent(op, err)
	}
	return v, nil
}

// SetDecimation stages the decimation rate. Zero disables decimation.
func (m *Machine) SetDecimation(rate int) error {
	if err := m.desc.CheckDecimation("sweep entry decimation", rate); err != nil {
		return err
	}
	if err := m.c.Exec("SWEEP:ENTRY:DECIMATION", rate); err != nil {
		return err
	}
	m.template.Decimation = rate
	return nil
}

// Decimation reads the staged decimation rate.
func (m *Machine) Decimation() (int, error) {
	return m.queryInt("SWEEP:ENTRY:DECIMATION", m.desc.CheckDecimation)
}

// SetAntenna stages the 1-based antenna port.
func (m *Machine) SetAntenna(port int) error {
	if err := m.desc.CheckAntenna("sweep entry antenna", port); err != nil {
		return err
	}
	if err := m.c.Exec("SWEEP:ENTRY:ANTENNA", port); err != nil {
		return err
	}
	m.template.Antenna = port
	return nil
}

// Antenna reads the staged antenna port.
func (m *Machine) Antenna() (int, error) {
	return m.queryInt("SWEEP:ENTRY:ANTENNA", m.desc.CheckAntenna)
}

// SetGainRF stages the RF gain. GainUnknown is rejected.
func (m *Machine) SetGainRF(g device.Gain) error {
	if err := m.desc.CheckGain("sweep entry rf gain", g); err != nil {
		return err
	}
	if err := m.c.Exec("SWEEP:ENTRY:GAIN:RF", g.Token()); err != nil {
		return err
	}
	m.template.GainRF = g
	return nil
}

// GainRF reads the staged RF gain.
func (m *Machine) GainRF() (device.Gain, error) {
	const op = "sweep entry rf gain"
	resp, err := m.c.Query("SWEEP:ENTRY:GAIN:RF")
	if err != nil {
		return device.GainUnknown, err
	}
	g := device.ParseGain(resp)
	if err := m.desc.CheckGain(op, g); err != nil {
		return device.GainUnknown, inconsistent(op, err)
	}
	return g, nil
}

// SetGainIF stages the IF gain in dB.
func (m *Machine) SetGainIF(db int) error {
	if err := m.desc.CheckIFGain("sweep entry if gain", db); err != nil {
		return err
	}
	if err := m.c.Exec("SWEEP:ENTRY:GAIN:IF", scpi.DB(db)); err != nil {
		return err
	}
	m.template.GainIF = db
	return nil
}

// GainIF reads the staged IF gain.
func (m *Machine) GainIF() (int, error) {
	return m.queryInt("SWEEP:ENTRY:GAIN:IF", m.desc.CheckIFGain)
}

// SetSamplesPerPacket stages the IQ samples per packet.
func (m *Machine) SetSamplesPerPacket(n int) error {
	if err := m.desc.CheckSamplesPerPacket("sweep entry spp", n); err != nil {
		return err
	}
	if err := m.c.Exec("SWEEP:ENTRY:SPPACKET", n); err != nil {
		return err
	}
	m.template.SamplesPerPacket = n
	return nil
}

// SamplesPerPacket reads the staged samples per packet.
func (m *Machine) SamplesPerPacket() (int, error) {
	return m.queryInt("SWEEP:ENTRY:SPPACKET", m.desc.CheckSamplesPerPacket)
}

// SetPacketsPerBlock stages the packets captured at each step.
func (m *Machine) SetPacketsPerBlock(n int) error {
	if err := m.desc.CheckPacketsPerBlock("sweep entry ppb", n); err != nil {
		return err
	}
	if err := m.c.Exec("SWEEP:ENTRY:PPBLOCK", n); err != nil {
		return err
	}
	m.template.PacketsPerBlock = n
	return nil
}

// PacketsPerBlock reads the staged packets per block.
func (m *Machine) PacketsPerBlock() (int, error) {
	return m.queryInt("SWEEP:ENTRY:PPBLOCK", m.desc.CheckPacketsPerBlock)
}

// SetDwell stages how long the entry stays on each step.
func (m *Machine) SetDwell(sec, usec int) error {
	if err := m.desc.CheckDwell("sweep entry dwell", sec, usec); err != nil {
		return err
	}
	if err := m.c.Exec("SWEEP:ENTRY:DWELL", sec, usec); err != nil {
		return err
	}
	m.template.DwellSec, m.template.DwellUsec = sec, usec
	return nil
}

// Dwell reads the staged dwell time.
func (m *Machine) Dwell() (sec, usec int, err error) {
	const op = "sweep entry dwell"
	fields, err := m.c.QueryFields(2, "SWEEP:ENTRY:DWELL")
	if err != nil {
		return 0, 0, err
	}
	s, err := scpi.ParseInt(fields[0])
	if err != nil {
		return 0, 0, err
	}
	us, err := scpi.ParseInt(fields[1])
	if err != nil {
		return 0, 0, err
	}
	if err := m.desc.CheckDwell(op, int(s), int(us)); err != nil {
		return 0, 0, inconsistent(op, err)
	}
	return int(s), int(us), nil
}

// SetTriggerLevel stages a level trigger window. It does not enable the
// trigger; see SetTriggerEnable.
func (m *Machine) SetTriggerLevel(start, stop int64, amplitude float64) error {
	if err := m.desc.CheckFreqRange("sweep entry trigger level", start, stop); err != nil {
		return err
	}
	if err := m.c.Exec("SWEEP:ENTRY:TRIGGER:LEVEL", start, stop, amplitude); err != nil {
		return err
	}
	m.template.TriggerStart, m.template.TriggerStop, m.template.TriggerAmplitude = start, stop, amplitude
	return nil
}

// TriggerLevel reads the staged level trigger window and amplitude.
func (m *Machine) TriggerLevel() (start, stop int64, amplitude float64, err error) {
	const op = "sweep entry trigger level"
	t, err := m.c.QueryTokens("SWEEP:ENTRY:TRIGGER:LEVEL")
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
	if err := m.desc.CheckFreqRange(op, start, stop); err != nil {
		return 0, 0, 0, inconsistent(op, err)
	}
	return start, stop, amplitude, nil
}

// SetTriggerEnable switches the trigger type between LEVEL and NONE.
func (m *Machine) SetTriggerEnable(enable bool) error {
	if err := m.c.Exec("SWEEP:ENTRY:TRIGGER:TYPE", triggerToken(enable)); err != nil {
		return err
	}
	m.template.TriggerEnable = enable
	return nil
}

// TriggerEnabled reports whether the staged trigger type is LEVEL.
func (m *Machine) TriggerEnabled() (bool, error) {
	resp, err := m.c.Query("SWEEP:ENTRY:TRIGGER:TYPE")
	if err != nil {
		return false, err
	}
	return normalizeTrigger(resp)
}

func (m *Machine) queryInt(path string, check func(op string, v int) error) (int, error) {
	v, err := m.c.QueryInt(path)
	if err != nil {
		return 0, err
	}
	if err := check("query "+path, int(v)); err != nil {
		return 0, inconsistent("query "+path, err)
	}
	return int(v), nil
}

// inconsistent reports a device reply that the descriptor forbids.
func inconsistent(op string, err error) error {
	return wsaerr.Wrap(wsaerr.RespUnknown, op, err)
}
