package vrt

import (
	"encoding/binary"
	"time"

	"github.com/rjboer/GoWSA/internal/wsaerr"
)

// Source is the data socket.
type Source interface {
	RecvData(buf []byte, timeout time.Duration) (int, error)
}

// Decoder reads one packet per call from Src. It keeps no state between
// calls and never allocates: all bytes land in the caller's Buffers.
type Decoder struct {
	Src     Source
	Timeout time.Duration
	// SignExtend14 treats IQ words as 14-bit values padded to 16 bits, as
	// sent by early firmware.
	SignExtend14 bool
}

// Read decodes the next packet. IF data goes to buf.I and buf.Q, which must
// hold samplesPerPacket entries; receiver and digitizer context updates rx
// and dg. Either context destination may be nil when the caller does not
// expect that stream, in which case such a packet is consumed and reported
// but not decoded.
//
// An IF packet whose size does not match samplesPerPacket, or a packet on an
// unknown stream, fails with NOTIQFRAME without reading further: framing is
// lost and the capture must be aborted. Errors raised after a whole packet
// was consumed, such as INVTIMESTAMP, leave framing intact.
func (d *Decoder) Read(buf *Buffers, samplesPerPacket int, rx *ReceiverContext, dg *DigitizerContext) (Packet, error) {
	if n, err := d.Src.RecvData(buf.Raw[:prefixWords*WordSize], d.Timeout); err != nil {
		if n > 0 {
			return Packet{}, wsaerr.Wrap(wsaerr.NotIQFrame, "read header", err)
		}
		return Packet{}, err
	}
	h := parsePrefix(buf.Raw)

	switch h.StreamID {
	case IFDataStreamID:
		return d.readIF(buf, h, samplesPerPacket)
	case ReceiverStreamID, DigitizerStreamID:
		return d.readContext(buf, h, rx, dg)
	default:
		return Packet{Header: h}, wsaerr.Errorf(wsaerr.NotIQFrame, "read header", "unexpected stream id 0x%08x", h.StreamID)
	}
}

func (d *Decoder) readIF(buf *Buffers, h Header, spp int) (Packet, error) {
	p := Packet{Kind: KindIFData, Header: h}
	if spp <= 0 || spp > len(buf.I) || spp > len(buf.Q) {
		return p, wsaerr.Errorf(wsaerr.InvSampleSize, "read if data", "buffers hold %d samples, %d requested", min(len(buf.I), len(buf.Q)), spp)
	}
	declared := int(h.SizeWords) - HeaderWords - TrailerWords
	if declared != spp {
		return p, wsaerr.Errorf(wsaerr.NotIQFrame, "read if data", "packet carries %d samples, expected %d", declared, spp)
	}
	total := int(h.SizeWords) * WordSize
	if total > len(buf.Raw) {
		return p, wsaerr.Errorf(wsaerr.InvSampleSize, "read if data", "packet of %d bytes exceeds buffer", total)
	}

	n, err := d.Src.RecvData(buf.Raw[prefixWords*WordSize:total], d.Timeout)
	if err != nil {
		// Decode only the samples that arrived whole.
		got := (prefixWords*WordSize + n - HeaderWords*WordSize) / WordSize
		if got > spp {
			got = spp
		}
		if got > 0 {
			d.decodeIQ(buf.Raw[HeaderWords*WordSize:], buf.I[:got], buf.Q[:got])
			p.Samples = got
		}
		return p, wsaerr.Wrap(wsaerr.NotIQFrame, "read if data", err)
	}

	p.Header.parseTimestamp(buf.Raw)
	if h.TSI == 0 {
		return p, wsaerr.New(wsaerr.InvTimestamp, "read if data")
	}
	d.decodeIQ(buf.Raw[HeaderWords*WordSize:], buf.I[:spp], buf.Q[:spp])
	p.Samples = spp
	p.Trailer = parseTrailer(binary.BigEndian.Uint32(buf.Raw[total-WordSize : total]))
	return p, nil
}

func (d *Decoder) decodeIQ(payload []byte, i, q []int16) {
	for k := range i {
		w := payload[k*WordSize:]
		iv := binary.BigEndian.Uint16(w[0:2])
		qv := binary.BigEndian.Uint16(w[2:4])
		if d.SignExtend14 {
			iv = signExtend14(iv)
			qv = signExtend14(qv)
		}
		i[k] = int16(iv)
		q[k] = int16(qv)
	}
}

func signExtend14(v uint16) uint16 {
	if v&0x2000 != 0 {
		return v | 0xc000
	}
	return v & 0x3fff
}

func (d *Decoder) readContext(buf *Buffers, h Header, rx *ReceiverContext, dg *DigitizerContext) (Packet, error) {
	p := Packet{Header: h, Kind: KindReceiver}
	if h.StreamID == DigitizerStreamID {
		p.Kind = KindDigitizer
	}
	total := int(h.SizeWords) * WordSize
	if h.SizeWords < prefixWords {
		return p, wsaerr.Errorf(wsaerr.NotIQFrame, "read context", "context packet of %d words is shorter than its prefix", h.SizeWords)
	}
	if h.SizeWords < HeaderWords+1 {
		// Consume the declared words so the next packet starts on a boundary.
		if _, err := d.Src.RecvData(buf.Raw[prefixWords*WordSize:total], d.Timeout); err != nil {
			return p, wsaerr.Wrap(wsaerr.NotIQFrame, "read context", err)
		}
		return p, wsaerr.Errorf(wsaerr.RespUnknown, "read context", "context packet of %d words has no indicator field", h.SizeWords)
	}
	if total > len(buf.Raw) {
		return p, wsaerr.Errorf(wsaerr.NotIQFrame, "read context", "context packet of %d bytes exceeds buffer", total)
	}
	if _, err := d.Src.RecvData(buf.Raw[prefixWords*WordSize:total], d.Timeout); err != nil {
		return p, wsaerr.Wrap(wsaerr.NotIQFrame, "read context", err)
	}
	p.Header.parseTimestamp(buf.Raw)

	fields := buf.Raw[HeaderWords*WordSize : total]
	switch p.Kind {
	case KindReceiver:
		if rx != nil {
			return p, decodeReceiver(fields, rx)
		}
	case KindDigitizer:
		if dg != nil {
			return p, decodeDigitizer(fields, dg)
		}
	}
	return p, nil
}
