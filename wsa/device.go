// Package wsa connects to a WSA network RF analyser and wires the control
// client, front end, capture controller and sweep state machine for one
// connection.
package wsa

import (
	"context"
	"time"

	"github.com/rjboer/GoWSA/internal/capture"
	"github.com/rjboer/GoWSA/internal/device"
	"github.com/rjboer/GoWSA/internal/frontend"
	"github.com/rjboer/GoWSA/internal/logging"
	"github.com/rjboer/GoWSA/internal/metrics"
	"github.com/rjboer/GoWSA/internal/scpi"
	"github.com/rjboer/GoWSA/internal/sweep"
	"github.com/rjboer/GoWSA/internal/telemetry"
	"github.com/rjboer/GoWSA/internal/transport"
	"github.com/rjboer/GoWSA/internal/vrt"
	"github.com/rjboer/GoWSA/internal/wsaerr"
)

// Options configures Open. Zero values select the defaults.
type Options struct {
	Transport transport.Options

	// QueryTimeout bounds every control-plane query. Default 1s.
	QueryTimeout time.Duration
	// PacketTimeout bounds each data-plane packet read. Default 1s.
	PacketTimeout time.Duration
	// DrainWindow is how long Sweep.Stop discards in-flight data. Default 5s.
	DrainWindow time.Duration
	// DisableErrorCheck skips the SYST:ERR? read after each command.
	DisableErrorCheck bool
	SignExtend14      bool

	Logger   logging.Logger
	Metrics  *metrics.Metrics
	Reporter telemetry.Reporter
}

// Device is one open analyser. It is not safe for concurrent use on the
// control plane; a second goroutine may read packets while the first sends
// commands.
type Device struct {
	Identity   device.Identity
	Descriptor device.Descriptor

	Conn     *transport.Conn
	Client   *scpi.Client
	Frontend *frontend.Frontend
	Capture  *capture.Controller
	Sweep    *sweep.Machine

	// Buffers is sized for the largest packet the analyser can send.
	Buffers *vrt.Buffers

	logger   logging.Logger
	reporter telemetry.Reporter
}

// Open dials host and identifies the analyser. The returned Device owns both
// sockets; release them with Close.
func Open(ctx context.Context, host string, opts Options) (*Device, error) {
	if opts.Transport.Logger == nil {
		opts.Transport.Logger = opts.Logger
	}
	conn, err := transport.Dial(ctx, host, opts.Transport)
	if err != nil {
		return nil, err
	}
	d, err := Attach(conn, opts)
	if err != nil {
		_ = conn.Disconnect()
		return nil, err
	}
	return d, nil
}

// Attach builds a Device on an open connection. On error the connection is
// left open for the caller to close.
func Attach(conn *transport.Conn, opts Options) (*Device, error) {
	logger := logging.OrDefault(opts.Logger)

	client := scpi.NewClient(conn, logger)
	if opts.QueryTimeout > 0 {
		client.Timeout = opts.QueryTimeout
	}
	client.CheckErrors = !opts.DisableErrorCheck
	if opts.Metrics != nil {
		client.Observer = opts.Metrics
	}

	id, err := client.Identify()
	if err != nil {
		return nil, err
	}
	desc, err := device.FromIdentity(id)
	if err != nil {
		return nil, err
	}

	d := &Device{
		Identity:   id,
		Descriptor: desc,
		Conn:       conn,
		Client:     client,
		Buffers:    vrt.NewBuffers(desc.MaxSamplesPerPacket),
		logger: logger.With(
			logging.Field{Key: "model", Value: id.Model},
			logging.Field{Key: "serial", Value: id.Serial},
		),
		reporter: opts.Reporter,
	}
	d.Frontend = frontend.New(client, &d.Descriptor, logger)
	d.Capture = capture.New(client, conn, &d.Descriptor, capture.Options{
		PacketTimeout: opts.PacketTimeout,
		SignExtend14:  opts.SignExtend14,
		Logger:        logger,
		Metrics:       opts.Metrics,
		Reporter:      opts.Reporter,
	})
	d.Sweep = sweep.NewMachine(client, conn, &d.Descriptor, sweep.Options{
		DrainWindow: opts.DrainWindow,
		Logger:      logger,
		Metrics:     opts.Metrics,
		Reporter:    opts.Reporter,
	})

	d.logger.Info("analyser ready",
		logging.Field{Key: "rfe", Value: desc.RFEName},
		logging.Field{Key: "firmware", Value: id.Firmware},
	)
	telemetry.Emit(d.reporter, telemetry.Event{
		Kind:   telemetry.KindConnection,
		Detail: "open " + id.Model,
	}, nil)
	return d, nil
}

// ReadPacket decodes one packet into d.Buffers. See capture.Controller.
func (d *Device) ReadPacket(samplesPerPacket int) (vrt.Packet, error) {
	return d.Capture.ReadPacket(d.Buffers, samplesPerPacket)
}

// IQ returns the samples of the last IF packet read with ReadPacket.
func (d *Device) IQ(p vrt.Packet) (i, q []int16) {
	return d.Buffers.I[:p.Samples], d.Buffers.Q[:p.Samples]
}

// Close releases both sockets. Calling it again is a no-op.
func (d *Device) Close() error {
	if d == nil || d.Conn == nil || !d.Conn.IsOpen() {
		return nil
	}
	err := d.Conn.Disconnect()
	telemetry.Emit(d.reporter, telemetry.Event{Kind: telemetry.KindConnection, Detail: "close"}, err)
	return err
}

// Status returns the signed status code of err: 0 for nil, the negative
// library code otherwise.
func Status(err error) int16 { return wsaerr.Status(err) }
