package vrt

import (
	"encoding/binary"

	"github.com/rjboer/GoWSA/internal/wsaerr"
)

// Context indicator bits (CIF0). Fields follow the indicator word in
// descending bit order.
const (
	BitReferencePoint  = 30
	BitBandwidth       = 29
	BitRFFrequency     = 27
	BitFrequencyOffset = 26
	BitReferenceLevel  = 24
	BitGain            = 23
	BitTemperature     = 18
)

// ReceiverContext is the receiver metadata stream. Fields whose indicator bit
// is clear in a packet are left as they were.
type ReceiverContext struct {
	Indicator      uint32
	ReferencePoint uint32
	Frequency      float64 // Hz
	GainIF         float64 // dB
	GainRF         float64 // dB
	Temperature    float64 // degrees C
}

// DigitizerContext is the digitizer metadata stream. Fields whose indicator
// bit is clear in a packet are left as they were.
type DigitizerContext struct {
	Indicator       uint32
	Bandwidth       float64 // Hz
	ReferenceLevel  float64 // dBm
	FrequencyOffset float64 // Hz
}

// Has reports whether bit is set in the indicator word.
func Has(indicator uint32, bit uint) bool {
	return indicator&(1<<bit) != 0
}

type fieldReader struct {
	b   []byte
	pos int
}

func (r *fieldReader) words(n int, name string) ([]byte, error) {
	end := r.pos + n*WordSize
	if end > len(r.b) {
		return nil, wsaerr.Errorf(wsaerr.RespUnknown, "decode context", "%s field runs past end of packet", name)
	}
	w := r.b[r.pos:end]
	r.pos = end
	return w, nil
}

// fixed64 decodes a 64-bit value with a 20-bit fractional part.
func fixed64(b []byte) float64 {
	return float64(int64(binary.BigEndian.Uint64(b))) / (1 << 20)
}

// fixed16 decodes a signed 16-bit value with radix fractional bits.
func fixed16(v uint16, radix uint) float64 {
	return float64(int16(v)) / float64(uint32(1)<<radix)
}

// decodeReceiver fills dst from fields, which starts at the indicator word.
func decodeReceiver(fields []byte, dst *ReceiverContext) error {
	ind := binary.BigEndian.Uint32(fields[:4])
	r := &fieldReader{b: fields, pos: 4}

	// Decode into a copy so a truncated packet leaves dst untouched.
	out := *dst
	out.Indicator = ind
	if Has(ind, BitReferencePoint) {
		w, err := r.words(1, "reference point")
		if err != nil {
			return err
		}
		out.ReferencePoint = binary.BigEndian.Uint32(w)
	}
	if Has(ind, BitRFFrequency) {
		w, err := r.words(2, "frequency")
		if err != nil {
			return err
		}
		out.Frequency = fixed64(w)
	}
	if Has(ind, BitGain) {
		w, err := r.words(1, "gain")
		if err != nil {
			return err
		}
		out.GainIF = fixed16(binary.BigEndian.Uint16(w[0:2]), 7)
		out.GainRF = fixed16(binary.BigEndian.Uint16(w[2:4]), 7)
	}
	if Has(ind, BitTemperature) {
		w, err := r.words(1, "temperature")
		if err != nil {
			return err
		}
		out.Temperature = fixed16(binary.BigEndian.Uint16(w[2:4]), 6)
	}
	*dst = out
	return nil
}

// decodeDigitizer fills dst from fields, which starts at the indicator word.
func decodeDigitizer(fields []byte, dst *DigitizerContext) error {
	ind := binary.BigEndian.Uint32(fields[:4])
	r := &fieldReader{b: fields, pos: 4}

	out := *dst
	out.Indicator = ind
	if Has(ind, BitBandwidth) {
		w, err := r.words(2, "bandwidth")
		if err != nil {
			return err
		}
		out.Bandwidth = fixed64(w)
	}
	if Has(ind, BitFrequencyOffset) {
		w, err := r.words(2, "frequency offset")
		if err != nil {
			return err
		}
		out.FrequencyOffset = fixed64(w)
	}
	if Has(ind, BitReferenceLevel) {
		w, err := r.words(1, "reference level")
		if err != nil {
			return err
		}
		out.ReferenceLevel = fixed16(binary.BigEndian.Uint16(w[2:4]), 7)
	}
	*dst = out
	return nil
}
