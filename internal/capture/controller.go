// Package capture drives single-block IQ captures: capture settings, the
// block trigger, packet reads and the flush and abort recovery commands.
package capture

import (
	"time"

	"github.com/rjboer/GoWSA/internal/device"
	"github.com/rjboer/GoWSA/internal/logging"
	"github.com/rjboer/GoWSA/internal/metrics"
	"github.com/rjboer/GoWSA/internal/scpi"
	"github.com/rjboer/GoWSA/internal/sweep"
	"github.com/rjboer/GoWSA/internal/telemetry"
	"github.com/rjboer/GoWSA/internal/vrt"
	"github.com/rjboer/GoWSA/internal/wsaerr"
)

// DataPlane is the data socket as used by the controller.
type DataPlane interface {
	vrt.Source
	Drain(window time.Duration) (int64, error)
}

// Options tunes a Controller. Zero values select the defaults.
type Options struct {
	PacketTimeout time.Duration
	DrainWindow   time.Duration
	SignExtend14  bool
	Logger        logging.Logger
	Metrics       *metrics.Metrics
	Reporter      telemetry.Reporter
}

// Config is the capture configuration stored on the device.
type Config struct {
	SamplesPerPacket int `json:"samples_per_packet"`
	PacketsPerBlock  int `json:"packets_per_block"`
	Decimation       int `json:"decimation"`
}

// Controller orchestrates manual block captures on one device.
type Controller struct {
	c       *scpi.Client
	data    DataPlane
	desc    *device.Descriptor
	dec     vrt.Decoder
	opts    Options
	logger  logging.Logger
	metrics *metrics.Metrics

	lastCount int

	// Context metadata accumulates across ReadPacket calls.
	Receiver  vrt.ReceiverContext
	Digitizer vrt.DigitizerContext
}

// New builds a Controller.
func New(c *scpi.Client, data DataPlane, desc *device.Descriptor, opts Options) *Controller {
	if opts.PacketTimeout <= 0 {
		opts.PacketTimeout = time.Second
	}
	if opts.DrainWindow <= 0 {
		opts.DrainWindow = time.Second
	}
	logger := logging.OrDefault(opts.Logger).With(logging.Field{Key: "component", Value: "capture"})
	return &Controller{
		c:         c,
		data:      data,
		desc:      desc,
		dec:       vrt.Decoder{Src: data, Timeout: opts.PacketTimeout, SignExtend14: opts.SignExtend14},
		opts:      opts,
		logger:    logger,
		metrics:   opts.Metrics,
		lastCount: -1,
	}
}

// SetSamplesPerPacket stores the IQ samples carried by each packet.
func (ctl *Controller) SetSamplesPerPacket(n int) error {
	if err := ctl.desc.CheckSamplesPerPacket("set samples per packet", n); err != nil {
		return err
	}
	return ctl.c.Exec("TRACE:SPPACKET", n)
}

// SamplesPerPacket reads the samples per packet back from the device.
func (ctl *Controller) SamplesPerPacket() (int, error) {
	return ctl.queryChecked("TRACE:SPPACKET", ctl.desc.CheckSamplesPerPacket)
}

// SetPacketsPerBlock stores the packets captured per block.
func (ctl *Controller) SetPacketsPerBlock(n int) error {
	if err := ctl.desc.CheckPacketsPerBlock("set packets per block", n); err != nil {
		return err
	}
	return ctl.c.Exec("TRACE:BLOCK:PACKETS", n)
}

// PacketsPerBlock reads the packets per block back from the device.
func (ctl *Controller) PacketsPerBlock() (int, error) {
	return ctl.queryChecked("TRACE:BLOCK:PACKETS", ctl.desc.CheckPacketsPerBlock)
}

// SetDecimation stores the decimation rate. Zero disables decimation.
func (ctl *Controller) SetDecimation(rate int) error {
	if err := ctl.desc.CheckDecimation("set decimation", rate); err != nil {
		return err
	}
	return ctl.c.Exec("SENSE:DEC", rate)
}

// Decimation reads the decimation rate back from the device.
func (ctl *Controller) Decimation() (int, error) {
	return ctl.queryChecked("SENSE:DEC", ctl.desc.CheckDecimation)
}

// Apply stores every field of cfg, stopping at the first failure.
func (ctl *Controller) Apply(cfg Config) error {
	if err := ctl.SetSamplesPerPacket(cfg.SamplesPerPacket); err != nil {
		return err
	}
	if err := ctl.SetPacketsPerBlock(cfg.PacketsPerBlock); err != nil {
		return err
	}
	return ctl.SetDecimation(cfg.Decimation)
}

// Config reads the full capture configuration back.
func (ctl *Controller) Config() (Config, error) {
	var cfg Config
	var err error
	if cfg.SamplesPerPacket, err = ctl.SamplesPerPacket(); err != nil {
		return Config{}, err
	}
	if cfg.PacketsPerBlock, err = ctl.PacketsPerBlock(); err != nil {
		return Config{}, err
	}
	if cfg.Decimation, err = ctl.Decimation(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// queryChecked reads an integer setting and re-validates it. A value the
// descriptor forbids means the device and client disagree, reported as
// RESPUNKNOWN.
func (ctl *Controller) queryChecked(path string, check func(op string, v int) error) (int, error) {
	v, err := ctl.c.QueryInt(path)
	if err != nil {
		return 0, err
	}
	if err := check("query "+path, int(v)); err != nil {
		return 0, wsaerr.Wrap(wsaerr.RespUnknown, "query "+path, err)
	}
	return int(v), nil
}

// CaptureBlock starts filling device memory with one block of packets using
// the stored configuration. The caller then calls ReadPacket once per packet.
func (ctl *Controller) CaptureBlock() error {
	ctl.lastCount = -1
	err := ctl.c.Send("TRACE:BLOCK:DATA?")
	telemetry.Emit(ctl.opts.Reporter, telemetry.Event{Kind: telemetry.KindCapture, Detail: "block"}, err)
	if err != nil {
		return err
	}
	ctl.logger.Debug("block capture started")
	return nil
}

// ReadPacket decodes one packet into buf. Context packets update Receiver
// and Digitizer. On a data error the device capture is aborted before the
// error is returned.
func (ctl *Controller) ReadPacket(buf *vrt.Buffers, samplesPerPacket int) (vrt.Packet, error) {
	p, err := ctl.dec.Read(buf, samplesPerPacket, &ctl.Receiver, &ctl.Digitizer)
	if err != nil {
		ctl.metrics.ObserveDecodeError(err)
		if wsaerr.KindOf(err) == wsaerr.KindTimeout {
			ctl.logger.Debug("no packet before timeout", logging.Field{Key: "timeout", Value: ctl.opts.PacketTimeout})
			return p, err
		}
		telemetry.Emit(ctl.opts.Reporter, telemetry.Event{Kind: telemetry.KindDecodeError, Detail: wsaerr.CodeOf(err).String()}, err)
		ctl.logger.Error("packet decode failed",
			logging.Field{Key: "stream", Value: p.Header.StreamID},
			logging.Field{Key: "err", Value: err},
		)
		if wsaerr.KindOf(err) == wsaerr.KindData {
			if aerr := ctl.Abort(); aerr != nil {
				ctl.logger.Warn("abort after decode failure", logging.Field{Key: "err", Value: aerr})
			}
		}
		return p, err
	}

	ctl.metrics.ObservePacket(p.Kind.String(), p.Samples)
	if p.Kind == vrt.KindIFData {
		ctl.checkSequence(p.Header.PacketCount)
	}
	return p, nil
}

func (ctl *Controller) checkSequence(count uint8) {
	if ctl.lastCount >= 0 {
		want := uint8(ctl.lastCount+1) & 0x0f
		if count != want {
			ctl.metrics.ObserveGap()
			ctl.logger.Warn("packet counter gap",
				logging.Field{Key: "expected", Value: want},
				logging.Field{Key: "got", Value: count},
			)
		}
	}
	ctl.lastCount = int(count)
}

// Flush discards capture data buffered on the device and in flight on the
// data socket. It refuses while a sweep is running.
func (ctl *Controller) Flush() error {
	if err := sweep.RefuseIfRunning(ctl.c, "flush"); err != nil {
		return err
	}
	if err := ctl.c.Exec("SWEEP:FLUSH"); err != nil {
		return err
	}
	n, err := ctl.data.Drain(ctl.opts.DrainWindow)
	ctl.metrics.ObserveDrain(n)
	telemetry.Emit(ctl.opts.Reporter, telemetry.Event{Kind: telemetry.KindFlush, Bytes: n}, err)
	ctl.logger.Info("data socket flushed", logging.Field{Key: "bytes", Value: n})
	return err
}

// Abort stops a block capture in progress. It refuses while a sweep is
// running.
func (ctl *Controller) Abort() error {
	if err := sweep.RefuseIfRunning(ctl.c, "abort"); err != nil {
		return err
	}
	ctl.lastCount = -1
	err := ctl.c.Exec("SYSTEM:ABORT")
	telemetry.Emit(ctl.opts.Reporter, telemetry.Event{Kind: telemetry.KindAbort}, err)
	return err
}

// Mode reports whether the device is block capturing or sweeping.
func (ctl *Controller) Mode() (string, error) {
	st, err := sweep.QueryStatus(ctl.c)
	if err != nil {
		return "", err
	}
	if st == sweep.Running {
		return "SWEEPING", nil
	}
	return "BLOCK", nil
}
