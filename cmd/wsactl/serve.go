package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/version"

	"github.com/rjboer/GoWSA/internal/logging"
	"github.com/rjboer/GoWSA/internal/metrics"
	"github.com/rjboer/GoWSA/internal/telemetry"
	"github.com/rjboer/GoWSA/internal/wsaerr"
	"github.com/rjboer/GoWSA/wsa"
)

func newRegistry(m *metrics.Metrics) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(m)
	reg.MustRegister(version.NewCollector(appName))
	return reg
}

func runServe(ctx context.Context, cfg *cliConfig, logger logging.Logger) error {
	m := metrics.New()
	reg := newRegistry(m)
	hub := telemetry.NewHub(cfg.historyLimit)
	reporter := telemetry.MultiReporter{hub, telemetry.NewLogReporter(logger)}

	d, err := connect(ctx, cfg, logger, func(o *wsa.Options) {
		o.Metrics = m
		o.Reporter = reporter
	})
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := telemetry.NewWebServer(cfg.webAddr, hub, logger, map[string]http.Handler{
		"/metrics": promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Start(ctx) }()

	var stream sync.WaitGroup
	if cfg.startSweep {
		if err := d.Sweep.Start(); err != nil {
			return err
		}
		streamCtx, stopStream := context.WithCancel(ctx)
		stream.Add(1)
		go func() {
			defer stream.Done()
			streamPackets(streamCtx, d, cfg.samplesPerPacket, logger)
		}()
		defer func() {
			stopStream()
			stream.Wait()
			if err := d.Sweep.Stop(); err != nil {
				logger.Error("sweep stop", logging.Field{Key: "err", Value: err})
			}
		}()
	}

	if cfg.pollInterval <= 0 {
		cfg.pollInterval = 5 * time.Second
	}
	ticker := time.NewTicker(cfg.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-srvErr:
			return err
		case <-ticker.C:
			st, err := sweepStatus(ctx, d, cfg.retries)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Warn("sweep status", logging.Field{Key: "err", Value: err})
				continue
			}
			logger.Debug("sweep status", logging.Field{Key: "status", Value: st.String()})
		}
	}
}

// streamPackets reads packets until ctx is done. Timeouts are expected
// between sweep entries and do not end the stream.
func streamPackets(ctx context.Context, d *wsa.Device, spp int, logger logging.Logger) {
	var packets int
	for ctx.Err() == nil {
		p, err := d.ReadPacket(spp)
		switch {
		case err == nil:
			if p.Kind == wsa.PacketIFData {
				packets++
			}
		case wsaerr.KindOf(err) == wsaerr.KindTimeout:
		case wsaerr.KindOf(err) == wsaerr.KindTransport:
			logger.Error("data socket lost", logging.Field{Key: "err", Value: err})
			return
		default:
			logger.Warn("packet decode", logging.Field{Key: "err", Value: err})
		}
	}
	logger.Info("packet stream stopped", logging.Field{Key: "packets", Value: packets})
}
