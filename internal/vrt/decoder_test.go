package vrt

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/rjboer/GoWSA/internal/wsaerr"
	"github.com/rjboer/GoWSA/internal/wsatest"
)

type byteSource struct {
	r *bytes.Reader
}

func (s *byteSource) RecvData(buf []byte, _ time.Duration) (int, error) {
	n, err := io.ReadFull(s.r, buf)
	if err != nil {
		return n, wsaerr.Wrap(wsaerr.QueryNoResp, "recv data", err)
	}
	return n, nil
}

func newDecoder(stream ...[]byte) (*Decoder, *byteSource) {
	src := &byteSource{r: bytes.NewReader(bytes.Join(stream, nil))}
	return &Decoder{Src: src, Timeout: time.Second}, src
}

func TestReadIFData(t *testing.T) {
	i := []int16{1, -2, 3, -32768}
	q := []int16{-1, 2, -3, 32767}
	trailer := uint32(1<<30 | 1<<18 | 1<<25)
	d, _ := newDecoder(wsatest.IFData(7, 1234, i, q, trailer))

	buf := NewBuffers(8)
	p, err := d.Read(buf, len(i), nil, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if p.Kind != KindIFData || p.Samples != 4 {
		t.Fatalf("unexpected packet %+v", p)
	}
	if p.Header.PacketCount != 7 || p.Header.Seconds != 1234 || p.Header.StreamID != IFDataStreamID {
		t.Fatalf("unexpected header %+v", p.Header)
	}
	for k := range i {
		if buf.I[k] != i[k] || buf.Q[k] != q[k] {
			t.Fatalf("sample %d = (%d,%d), want (%d,%d)", k, buf.I[k], buf.Q[k], i[k], q[k])
		}
	}
	if !p.Trailer.ValidData.Enabled || !p.Trailer.ValidData.Set {
		t.Fatalf("valid data flag not decoded: %+v", p.Trailer)
	}
	if !p.Trailer.OverRange.Enabled || p.Trailer.OverRange.Set {
		t.Fatalf("over range flag not decoded: %+v", p.Trailer)
	}
}

func TestReadIFDataSizeMismatchStopsReading(t *testing.T) {
	pkt := wsatest.IFData(0, 1, make([]int16, 16), make([]int16, 16), 0)
	d, src := newDecoder(pkt)

	buf := NewBuffers(32)
	_, err := d.Read(buf, 32, nil, nil)
	if wsaerr.CodeOf(err) != wsaerr.NotIQFrame || wsaerr.KindOf(err) != wsaerr.KindData {
		t.Fatalf("expected NOTIQFRAME, got %v", err)
	}
	if got, want := src.r.Len(), len(pkt)-8; got != want {
		t.Fatalf("decoder consumed past the header: %d bytes left, want %d", got, want)
	}
}

func TestReadUnknownStream(t *testing.T) {
	pkt := wsatest.Header(0x1, 0, 1, 2, 6, 0x12345678, 0, 0)
	d, _ := newDecoder(pkt)
	_, err := d.Read(NewBuffers(8), 8, nil, nil)
	if wsaerr.CodeOf(err) != wsaerr.NotIQFrame {
		t.Fatalf("expected NOTIQFRAME, got %v", err)
	}
}

func TestReadShortPayloadKeepsOnlyValidPrefix(t *testing.T) {
	i := []int16{10, 20, 30, 40}
	q := []int16{-10, -20, -30, -40}
	pkt := wsatest.IFData(0, 1, i, q, 0)
	// Header plus two whole samples and half of the third.
	cut := pkt[:20+2*4+2]
	d, _ := newDecoder(cut)

	buf := NewBuffers(4)
	for k := range buf.I {
		buf.I[k], buf.Q[k] = 999, 999
	}
	p, err := d.Read(buf, 4, nil, nil)
	if wsaerr.KindOf(err) != wsaerr.KindData {
		t.Fatalf("expected data error, got %v", err)
	}
	if p.Samples != 2 {
		t.Fatalf("decoded %d samples, want 2", p.Samples)
	}
	if buf.I[0] != 10 || buf.Q[1] != -20 {
		t.Fatalf("valid prefix not decoded: %v %v", buf.I, buf.Q)
	}
	if buf.I[2] != 999 || buf.Q[2] != 999 || buf.I[3] != 999 {
		t.Fatalf("samples beyond the valid prefix were written: %v %v", buf.I, buf.Q)
	}
}

func TestReadIFDataWithoutIntegerTimestamp(t *testing.T) {
	pkt := wsatest.IFData(0, 1, []int16{1}, []int16{1}, 0)
	pkt[1] &^= 0xc0
	d, _ := newDecoder(pkt)
	_, err := d.Read(NewBuffers(1), 1, nil, nil)
	if wsaerr.CodeOf(err) != wsaerr.InvTimestamp {
		t.Fatalf("expected INVTIMESTAMP, got %v", err)
	}
}

func TestUndersizedContextKeepsFraming(t *testing.T) {
	short := wsatest.Header(0x4, 0, 1, 2, 4, wsatest.ReceiverStream, 0, 0)[:16]
	i := []int16{5, 6}
	q := []int16{-5, -6}
	d, _ := newDecoder(short, wsatest.IFData(3, 9, i, q, 0))

	buf := NewBuffers(4)
	var rx ReceiverContext
	_, err := d.Read(buf, len(i), &rx, nil)
	if wsaerr.CodeOf(err) != wsaerr.RespUnknown {
		t.Fatalf("expected RESPUNKNOWN, got %v", err)
	}

	p, err := d.Read(buf, len(i), &rx, nil)
	if err != nil {
		t.Fatalf("packet after undersized context: %v", err)
	}
	if p.Kind != KindIFData || p.Header.PacketCount != 3 || buf.I[1] != 6 || buf.Q[1] != -6 {
		t.Fatalf("unexpected packet %+v I=%v Q=%v", p, buf.I, buf.Q)
	}
}

func TestContextShorterThanPrefixIsFramingError(t *testing.T) {
	d, _ := newDecoder(wsatest.Header(0x4, 0, 1, 2, 1, wsatest.ReceiverStream, 0, 0)[:8])
	_, err := d.Read(NewBuffers(4), 4, &ReceiverContext{}, nil)
	if wsaerr.CodeOf(err) != wsaerr.NotIQFrame {
		t.Fatalf("expected NOTIQFRAME, got %v", err)
	}
}

func TestSignExtend14(t *testing.T) {
	pkt := wsatest.IFData(0, 1, []int16{0x2000, 0x1fff}, []int16{0x3fff, 0}, 0)
	d, _ := newDecoder(pkt)
	d.SignExtend14 = true
	buf := NewBuffers(2)
	if _, err := d.Read(buf, 2, nil, nil); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if buf.I[0] != -8192 || buf.I[1] != 8191 || buf.Q[0] != -1 || buf.Q[1] != 0 {
		t.Fatalf("unexpected sign extension: %v %v", buf.I, buf.Q)
	}
}

func TestReceiverContextLeavesUnreportedFieldsUntouched(t *testing.T) {
	ind := uint32(1<<BitRFFrequency | 1<<BitTemperature)
	first := wsatest.Context(wsatest.ReceiverStream, ind, wsatest.Fixed64(2.4e9), wsatest.Fixed16(41.5, 6))
	second := wsatest.Context(wsatest.ReceiverStream, ind, wsatest.Fixed64(2.4e9), wsatest.Fixed16(43.25, 6))
	d, _ := newDecoder(first, second)

	rx := ReceiverContext{GainRF: -7.5, GainIF: 12}
	buf := NewBuffers(16)
	p, err := d.Read(buf, 16, &rx, nil)
	if err != nil || p.Kind != KindReceiver {
		t.Fatalf("first decode: %+v %v", p, err)
	}
	if rx.Frequency != 2.4e9 || rx.Temperature != 41.5 {
		t.Fatalf("first decode values: %+v", rx)
	}
	if _, err := d.Read(buf, 16, &rx, nil); err != nil {
		t.Fatalf("second decode: %v", err)
	}
	if rx.Temperature != 43.25 || rx.Frequency != 2.4e9 {
		t.Fatalf("second decode values: %+v", rx)
	}
	if rx.GainRF != -7.5 || rx.GainIF != 12 {
		t.Fatalf("gain fields were overwritten: %+v", rx)
	}
}

func TestReceiverContextAllFields(t *testing.T) {
	ind := uint32(1<<31 | 1<<BitReferencePoint | 1<<BitRFFrequency | 1<<BitGain | 1<<BitTemperature)
	pkt := wsatest.Context(wsatest.ReceiverStream, ind,
		wsatest.Word(0x01000001),
		wsatest.Fixed64(100.5e6),
		wsatest.Gain(-10, 2.5),
		wsatest.Fixed16(-5, 6),
	)
	d, _ := newDecoder(pkt)
	var rx ReceiverContext
	if _, err := d.Read(NewBuffers(16), 16, &rx, nil); err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := ReceiverContext{Indicator: ind, ReferencePoint: 0x01000001, Frequency: 100.5e6, GainIF: -10, GainRF: 2.5, Temperature: -5}
	if rx != want {
		t.Fatalf("got %+v, want %+v", rx, want)
	}
}

func TestDigitizerContext(t *testing.T) {
	ind := uint32(1<<BitBandwidth | 1<<BitFrequencyOffset | 1<<BitReferenceLevel)
	pkt := wsatest.Context(wsatest.DigitizerStream, ind,
		wsatest.Fixed64(125e6),
		wsatest.Fixed64(-7.5e6),
		wsatest.Fixed16(-20.5, 7),
	)
	d, _ := newDecoder(pkt)
	dg := DigitizerContext{}
	p, err := d.Read(NewBuffers(16), 16, nil, &dg)
	if err != nil || p.Kind != KindDigitizer {
		t.Fatalf("Read: %+v %v", p, err)
	}
	if dg.Bandwidth != 125e6 || dg.FrequencyOffset != -7.5e6 || dg.ReferenceLevel != -20.5 {
		t.Fatalf("unexpected digitizer context %+v", dg)
	}
}

func TestTruncatedContextFieldLeavesDestination(t *testing.T) {
	ind := uint32(1<<BitBandwidth | 1<<BitReferenceLevel)
	// Bandwidth present, reference level missing.
	pkt := wsatest.Context(wsatest.DigitizerStream, ind, wsatest.Fixed64(40e6))
	d, _ := newDecoder(pkt)
	dg := DigitizerContext{Bandwidth: 1, ReferenceLevel: 2}
	_, err := d.Read(NewBuffers(16), 16, nil, &dg)
	if wsaerr.CodeOf(err) != wsaerr.RespUnknown {
		t.Fatalf("expected RESPUNKNOWN, got %v", err)
	}
	if dg.Bandwidth != 1 || dg.ReferenceLevel != 2 {
		t.Fatalf("destination modified by failed decode: %+v", dg)
	}
}

func TestContextWithoutDestinationIsConsumed(t *testing.T) {
	ctx := wsatest.Context(wsatest.DigitizerStream, 1<<BitReferenceLevel, wsatest.Fixed16(-10, 7))
	iq := wsatest.IFData(1, 5, []int16{4}, []int16{5}, 0)
	d, _ := newDecoder(ctx, iq)
	buf := NewBuffers(1)

	p, err := d.Read(buf, 1, nil, nil)
	if err != nil || p.Kind != KindDigitizer {
		t.Fatalf("context read: %+v %v", p, err)
	}
	p, err = d.Read(buf, 1, nil, nil)
	if err != nil || p.Kind != KindIFData || buf.I[0] != 4 {
		t.Fatalf("if read after context: %+v %v", p, err)
	}
}
