// Package recorder stores decoded IQ packets as parquet rows, one row per
// sample.
package recorder

import (
	"encoding/json"
	"io"
	"os"

	"github.com/segmentio/parquet-go"

	"github.com/rjboer/GoWSA/internal/vrt"
)

// Sample is one IQ pair with the packet it arrived in.
type Sample struct {
	Seq    int64 `parquet:"seq"`
	Packet int64 `parquet:"packet"`
	Count  int32 `parquet:"count"`
	Sec    int64 `parquet:"sec"`
	Psec   int64 `parquet:"psec"`
	I      int32 `parquet:"i"`
	Q      int32 `parquet:"q"`
}

// Metadata describes the capture and is stored as JSON under the "capture"
// key of the file metadata.
type Metadata struct {
	Model            string `json:"model"`
	Serial           string `json:"serial"`
	CenterFreq       int64  `json:"center_freq"`
	SamplesPerPacket int    `json:"samples_per_packet"`
	PacketsPerBlock  int    `json:"packets_per_block"`
	Decimation       int    `json:"decimation"`
}

// MetadataKey is the file metadata key holding the JSON Metadata.
const MetadataKey = "capture"

// Recorder appends IF data packets to a parquet stream.
type Recorder struct {
	file    io.Closer
	writer  *parquet.GenericWriter[Sample]
	rows    []Sample
	seq     int64
	packets int64
}

// New writes to w, which is closed by Close.
func New(w io.WriteCloser, meta Metadata) *Recorder {
	metaStr := "{}"
	if b, err := json.Marshal(meta); err == nil {
		metaStr = string(b)
	}
	return &Recorder{
		file:   w,
		writer: parquet.NewGenericWriter[Sample](w, parquet.KeyValueMetadata(MetadataKey, metaStr)),
	}
}

// Create opens path for writing.
func Create(path string, meta Metadata) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return New(f, meta), nil
}

// WritePacket appends the first p.Samples entries of i and q. Context
// packets are ignored.
func (r *Recorder) WritePacket(p vrt.Packet, i, q []int16) (int, error) {
	if p.Kind != vrt.KindIFData || p.Samples == 0 {
		return 0, nil
	}
	n := min(p.Samples, len(i), len(q))
	r.rows = r.rows[:0]
	for k := 0; k < n; k++ {
		r.rows = append(r.rows, Sample{
			Seq:    r.seq,
			Packet: r.packets,
			Count:  int32(p.Header.PacketCount),
			Sec:    int64(p.Header.Seconds),
			Psec:   int64(p.Header.Picoseconds),
			I:      int32(i[k]),
			Q:      int32(q[k]),
		})
		r.seq++
	}
	r.packets++
	return r.writer.Write(r.rows)
}

// Packets returns the number of IF packets written.
func (r *Recorder) Packets() int64 { return r.packets }

// Close flushes the parquet footer and closes the underlying writer.
func (r *Recorder) Close() error {
	if err := r.writer.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}
