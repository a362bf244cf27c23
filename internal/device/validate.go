package device

import "github.com/rjboer/GoWSA/internal/wsaerr"

// CheckFreq validates a tuning frequency in Hz.
func (d *Descriptor) CheckFreq(op string, hz int64) error {
	if hz < d.MinTuneFreq || hz > d.MaxTuneFreq {
		return wsaerr.Errorf(wsaerr.FreqOutOfBound, op, "%d Hz outside [%d, %d]", hz, d.MinTuneFreq, d.MaxTuneFreq)
	}
	return nil
}

// CheckFreqRange validates start < stop with both ends tunable.
func (d *Descriptor) CheckFreqRange(op string, start, stop int64) error {
	if start < d.MinTuneFreq || start > d.MaxTuneFreq {
		return wsaerr.Errorf(wsaerr.StartOOB, op, "start %d Hz outside [%d, %d]", start, d.MinTuneFreq, d.MaxTuneFreq)
	}
	if stop < d.MinTuneFreq || stop > d.MaxTuneFreq {
		return wsaerr.Errorf(wsaerr.StopOOB, op, "stop %d Hz outside [%d, %d]", stop, d.MinTuneFreq, d.MaxTuneFreq)
	}
	if start >= stop {
		return wsaerr.Errorf(wsaerr.InvStopFreq, op, "start %d Hz not below stop %d Hz", start, stop)
	}
	return nil
}

// CheckFreqStep validates a sweep frequency step. The step must be a
// positive multiple of the tuning resolution no wider than the tuning range.
func (d *Descriptor) CheckFreqStep(op string, step int64) error {
	if step <= 0 || step > d.MaxTuneFreq-d.MinTuneFreq {
		return wsaerr.Errorf(wsaerr.InvFreqRes, op, "step %d Hz", step)
	}
	if d.FreqResolution > 0 && step%d.FreqResolution != 0 {
		return wsaerr.Errorf(wsaerr.InvFreqRes, op, "step %d Hz not a multiple of %d Hz", step, d.FreqResolution)
	}
	return nil
}

// CheckFreqShift validates a frequency shift against the instantaneous bandwidth.
func (d *Descriptor) CheckFreqShift(op string, hz float64) error {
	if hz < -d.InstBandwidth || hz > d.InstBandwidth {
		return wsaerr.Errorf(wsaerr.FreqOutOfBound, op, "shift %.3f Hz outside +/-%.0f", hz, d.InstBandwidth)
	}
	return nil
}

// CheckIFGain validates an IF gain in dB.
func (d *Descriptor) CheckIFGain(op string, db int) error {
	if db < d.MinIFGain || db > d.MaxIFGain {
		return wsaerr.Errorf(wsaerr.InvIFGain, op, "%d dB outside [%d, %d]", db, d.MinIFGain, d.MaxIFGain)
	}
	return nil
}

// CheckGain validates an RF gain setting.
func (d *Descriptor) CheckGain(op string, g Gain) error {
	if !g.Valid() {
		return wsaerr.Errorf(wsaerr.InvRFGain, op, "gain %s", g)
	}
	return nil
}

// CheckDecimation validates a decimation rate. Zero disables decimation.
func (d *Descriptor) CheckDecimation(op string, rate int) error {
	if rate == 0 {
		return nil
	}
	if rate < d.MinDecimation || rate > d.MaxDecimation {
		return wsaerr.Errorf(wsaerr.InvDecimationRate, op, "rate %d outside [%d, %d]", rate, d.MinDecimation, d.MaxDecimation)
	}
	return nil
}

// CheckSamplesPerPacket validates the IQ samples carried by one packet.
func (d *Descriptor) CheckSamplesPerPacket(op string, n int) error {
	if n < d.MinSamplesPerPacket || n > d.MaxSamplesPerPacket {
		return wsaerr.Errorf(wsaerr.InvSampleSize, op, "%d samples per packet outside [%d, %d]", n, d.MinSamplesPerPacket, d.MaxSamplesPerPacket)
	}
	if d.SamplesPerPacketStep > 0 && n%d.SamplesPerPacketStep != 0 {
		return wsaerr.Errorf(wsaerr.InvSampleSize, op, "%d samples per packet not a multiple of %d", n, d.SamplesPerPacketStep)
	}
	return nil
}

// CheckPacketsPerBlock validates the packets captured per block.
func (d *Descriptor) CheckPacketsPerBlock(op string, n int) error {
	if n < d.MinPacketsPerBlock || n > d.MaxPacketsPerBlock {
		return wsaerr.Errorf(wsaerr.InvPacketsPerBlk, op, "%d packets per block outside [%d, %d]", n, d.MinPacketsPerBlock, d.MaxPacketsPerBlock)
	}
	return nil
}

// CheckAntenna validates a 1-based antenna port.
func (d *Descriptor) CheckAntenna(op string, port int) error {
	if port < 1 || port > d.MaxAntennaPort {
		return wsaerr.Errorf(wsaerr.InvAntennaPort, op, "port %d outside [1, %d]", port, d.MaxAntennaPort)
	}
	return nil
}

// CheckDwell validates a dwell time split into seconds and microseconds.
func (d *Descriptor) CheckDwell(op string, sec, usec int) error {
	if sec < 0 || usec < 0 {
		return wsaerr.Errorf(wsaerr.InvDwell, op, "dwell %d s %d us", sec, usec)
	}
	return nil
}
