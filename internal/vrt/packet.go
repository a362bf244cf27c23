// Package vrt decodes the VITA-49 style packets streamed on the data socket.
package vrt

import "encoding/binary"

const (
	WordSize     = 4
	HeaderWords  = 5
	TrailerWords = 1

	// prefixWords is read first to learn the packet size and stream.
	prefixWords = 2
)

// Stream identifiers used by the analyser.
const (
	ReceiverStreamID  uint32 = 0x90000001
	DigitizerStreamID uint32 = 0x90000002
	IFDataStreamID    uint32 = 0x90000003
)

// Packet type nibble of header word 0.
const (
	TypeIFData  uint8 = 0x1
	TypeContext uint8 = 0x4
)

// Kind says what a decoded packet carried.
type Kind int

const (
	KindIFData Kind = iota + 1
	KindReceiver
	KindDigitizer
)

func (k Kind) String() string {
	switch k {
	case KindIFData:
		return "if-data"
	case KindReceiver:
		return "receiver-context"
	case KindDigitizer:
		return "digitizer-context"
	default:
		return "unknown"
	}
}

// Header is the fixed packet prefix.
type Header struct {
	Type        uint8
	PacketCount uint8
	TSI         uint8
	TSF         uint8
	SizeWords   uint16
	StreamID    uint32
	Seconds     uint32
	Picoseconds uint64
}

func parsePrefix(b []byte) Header {
	return Header{
		Type:        b[0] >> 4,
		TSI:         (b[1] >> 6) & 0x3,
		TSF:         (b[1] >> 4) & 0x3,
		PacketCount: b[1] & 0x0f,
		SizeWords:   binary.BigEndian.Uint16(b[2:4]),
		StreamID:    binary.BigEndian.Uint32(b[4:8]),
	}
}

// parseTimestamp reads words 2..4 of the packet.
func (h *Header) parseTimestamp(b []byte) {
	h.Seconds = binary.BigEndian.Uint32(b[8:12])
	if h.TSF != 0 {
		h.Picoseconds = binary.BigEndian.Uint64(b[12:20])
	}
}

// Flag is one trailer indicator with its enable bit.
type Flag struct {
	Enabled bool
	Set     bool
}

// Trailer is the last word of an IF data packet.
type Trailer struct {
	Raw        uint32
	ValidData  Flag
	RefLock    Flag
	OverRange  Flag
	SampleLoss Flag
}

func flag(w uint32, enable uint) Flag {
	return Flag{Enabled: w&(1<<enable) != 0, Set: w&(1<<(enable-12)) != 0}
}

func parseTrailer(w uint32) Trailer {
	return Trailer{
		Raw:        w,
		ValidData:  flag(w, 30),
		RefLock:    flag(w, 29),
		OverRange:  flag(w, 25),
		SampleLoss: flag(w, 24),
	}
}

// Packet describes one decoded packet. Samples is the number of IQ pairs
// written to the caller's buffers.
type Packet struct {
	Kind    Kind
	Header  Header
	Trailer Trailer
	Samples int
}

// Buffers is the caller-owned arena the decoder writes into. Size it once
// with NewBuffers and reuse it for every packet.
type Buffers struct {
	Raw []byte
	I   []int16
	Q   []int16
}

// maxContextWords bounds a context packet.
const maxContextWords = 32

// NewBuffers sizes an arena for packets of up to maxSamples IQ pairs.
func NewBuffers(maxSamples int) *Buffers {
	words := maxSamples + HeaderWords + TrailerWords
	if words < maxContextWords {
		words = maxContextWords
	}
	return &Buffers{
		Raw: make([]byte, words*WordSize),
		I:   make([]int16, maxSamples),
		Q:   make([]int16, maxSamples),
	}
}
