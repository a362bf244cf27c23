package wsatest

import "encoding/binary"

// Stream identifiers and header layout of the analyser's data stream.
const (
	ReceiverStream  uint32 = 0x90000001
	DigitizerStream uint32 = 0x90000002
	IFDataStream    uint32 = 0x90000003
)

// Header builds the five header words. tsi and tsf are the two-bit
// timestamp codes.
func Header(pktType uint8, count uint8, tsi, tsf uint8, sizeWords uint16, stream uint32, sec uint32, psec uint64) []byte {
	b := make([]byte, 20)
	b[0] = pktType << 4
	b[1] = (tsi&0x3)<<6 | (tsf&0x3)<<4 | count&0x0f
	binary.BigEndian.PutUint16(b[2:4], sizeWords)
	binary.BigEndian.PutUint32(b[4:8], stream)
	binary.BigEndian.PutUint32(b[8:12], sec)
	binary.BigEndian.PutUint64(b[12:20], psec)
	return b
}

// IFData builds an IF data packet carrying the given I and Q samples.
func IFData(count uint8, sec uint32, i, q []int16, trailer uint32) []byte {
	size := uint16(len(i) + 6)
	b := Header(0x1, count, 1, 2, size, IFDataStream, sec, 0)
	for k := range i {
		var w [4]byte
		binary.BigEndian.PutUint16(w[0:2], uint16(i[k]))
		binary.BigEndian.PutUint16(w[2:4], uint16(q[k]))
		b = append(b, w[:]...)
	}
	var t [4]byte
	binary.BigEndian.PutUint32(t[:], trailer)
	return append(b, t[:]...)
}

// Context builds a context packet on stream with an indicator word followed by
// the already encoded field words.
func Context(stream uint32, indicator uint32, fields ...[]byte) []byte {
	var body []byte
	var ind [4]byte
	binary.BigEndian.PutUint32(ind[:], indicator)
	body = append(body, ind[:]...)
	for _, f := range fields {
		body = append(body, f...)
	}
	size := uint16(5 + len(body)/4)
	return append(Header(0x4, 0, 1, 2, size, stream, 0, 0), body...)
}

// Word encodes one 32-bit field.
func Word(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

// Fixed64 encodes a 64-bit field with a 20-bit fractional part.
func Fixed64(v float64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(int64(v*(1<<20))))
	return b[:]
}

// Fixed16 encodes a value in the low 16 bits of a word with radix
// fractional bits.
func Fixed16(v float64, radix uint) []byte {
	return Word(uint32(uint16(int16(v * float64(uint32(1)<<radix)))))
}

// Gain encodes the IF (high half) and RF (low half) gain word.
func Gain(ifDB, rfDB float64) []byte {
	hi := uint16(int16(ifDB * 128))
	lo := uint16(int16(rfDB * 128))
	return Word(uint32(hi)<<16 | uint32(lo))
}
