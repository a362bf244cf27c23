package device

import (
	"strings"

	"github.com/rjboer/GoWSA/internal/wsaerr"
)

// Gain is the RF front-end gain setting.
type Gain int

const (
	GainUnknown Gain = iota
	GainHigh
	GainMed
	GainLow
	GainVLow
)

// Token returns the wire token for g.
func (g Gain) Token() string {
	switch g {
	case GainHigh:
		return "HIGH"
	case GainMed:
		return "MED"
	case GainLow:
		return "LOW"
	case GainVLow:
		return "VLOW"
	default:
		return "UNKNOWN"
	}
}

func (g Gain) String() string { return g.Token() }

// Valid reports whether g is one of the four settable gains.
func (g Gain) Valid() bool {
	return g >= GainHigh && g <= GainVLow
}

// MarshalText encodes g as its wire token.
func (g Gain) MarshalText() ([]byte, error) {
	return []byte(g.Token()), nil
}

// UnmarshalText accepts the wire tokens only.
func (g *Gain) UnmarshalText(b []byte) error {
	v := ParseGain(string(b))
	if !v.Valid() {
		return wsaerr.Errorf(wsaerr.InvRFGain, "decode gain", "token %q", b)
	}
	*g = v
	return nil
}

// ParseGain maps a response to a Gain by substring. VLOW is checked before
// LOW since one contains the other. Unmatched text yields GainUnknown.
func ParseGain(s string) Gain {
	s = strings.ToUpper(s)
	switch {
	case strings.Contains(s, "HIGH"):
		return GainHigh
	case strings.Contains(s, "MED"):
		return GainMed
	case strings.Contains(s, "VLOW"):
		return GainVLow
	case strings.Contains(s, "LOW"):
		return GainLow
	default:
		return GainUnknown
	}
}

// Descriptor holds the capability bounds of a connected analyser. It is built
// once at connect time and never mutated afterwards.
type Descriptor struct {
	ProductModel    string
	ProductSerial   string
	FirmwareVersion string
	RFEName         string

	InstBandwidth  float64
	MinTuneFreq    int64
	MaxTuneFreq    int64
	FreqResolution int64

	MinIFGain int
	MaxIFGain int

	MinDecimation int
	MaxDecimation int

	MinSamplesPerPacket int
	MaxSamplesPerPacket int
	MinPacketsPerBlock  int
	MaxPacketsPerBlock  int
	MinSampleSize       int
	MaxSampleSize       int

	// SamplesPerPacketStep is the granularity of samples per packet.
	SamplesPerPacketStep int

	MaxAntennaPort int

	AbsMaxAmp map[Gain]float64
}

const (
	minSamplesPerPacket  = 128
	maxSamplesPerPacket  = 65520
	samplesPerPacketStep = 16
	minSampleSize        = 128
	maxSampleSize        = 2560 * 1024
	instBandwidth        = 125e6
)

// RFE0560 returns the bounds of the 11 GHz receiver front end.
func RFE0560() Descriptor {
	return Descriptor{
		RFEName:              "RFE0560",
		InstBandwidth:        instBandwidth,
		MinTuneFreq:          100_000,
		MaxTuneFreq:          11_000_000_000,
		FreqResolution:       100_000,
		MinIFGain:            -10,
		MaxIFGain:            34,
		MinDecimation:        16,
		MaxDecimation:        1023,
		MinSamplesPerPacket:  minSamplesPerPacket,
		MaxSamplesPerPacket:  maxSamplesPerPacket,
		SamplesPerPacketStep: samplesPerPacketStep,
		MinPacketsPerBlock:   1,
		MaxPacketsPerBlock:   maxSampleSize / minSamplesPerPacket,
		MinSampleSize:        minSampleSize,
		MaxSampleSize:        maxSampleSize,
		MaxAntennaPort:       2,
		AbsMaxAmp: map[Gain]float64{
			GainHigh: -15,
			GainMed:  0,
			GainLow:  13,
			GainVLow: 20,
		},
	}
}

// RFE0440 returns the bounds of the 4 GHz receiver front end.
func RFE0440() Descriptor {
	d := RFE0560()
	d.RFEName = "RFE0440"
	d.MinTuneFreq = 200_000_000
	d.MaxTuneFreq = 4_000_000_000
	d.FreqResolution = 10_000
	d.MaxAntennaPort = 1
	return d
}

// ForModel returns the descriptor matching the RF front-end name reported by
// the analyser.
func ForModel(rfe string) (Descriptor, error) {
	switch {
	case strings.Contains(strings.ToUpper(rfe), "RFE0560"):
		return RFE0560(), nil
	case strings.Contains(strings.ToUpper(rfe), "RFE0440"):
		return RFE0440(), nil
	default:
		return Descriptor{}, wsaerr.Errorf(wsaerr.UnknownRFEVersion, "descriptor", "unsupported front end %q", rfe)
	}
}

// AbsMaxAmplitude returns the absolute maximum input amplitude in dBm for gain.
func (d *Descriptor) AbsMaxAmplitude(g Gain) (float64, error) {
	v, ok := d.AbsMaxAmp[g]
	if !ok {
		return 0, wsaerr.Errorf(wsaerr.InvRFGain, "abs max amp", "gain %s", g)
	}
	return v, nil
}
