package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/cenkalti/backoff"
	"github.com/olekukonko/tablewriter"

	"github.com/rjboer/GoWSA/internal/logging"
	"github.com/rjboer/GoWSA/internal/recorder"
	"github.com/rjboer/GoWSA/internal/wsaerr"
	"github.com/rjboer/GoWSA/wsa"
)

// retryPolicy bounds caller-side retries of connects and idle queries.
func retryPolicy(ctx context.Context, retries int) backoff.BackOff {
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)), ctx)
}

// retryable reports whether err is worth another attempt: only transport
// failures and timeouts are.
func retryable(err error) bool {
	switch wsaerr.KindOf(err) {
	case wsaerr.KindTransport, wsaerr.KindTimeout:
		return true
	default:
		return false
	}
}

func connect(ctx context.Context, cfg *cliConfig, logger logging.Logger, tune func(*wsa.Options)) (*wsa.Device, error) {
	if cfg.host == "" {
		return nil, errors.New("no analyser host: set --host or WSA_ADDR")
	}
	opts := cfg.options(logger)
	if tune != nil {
		tune(&opts)
	}

	var d *wsa.Device
	attempt := 0
	op := func() error {
		attempt++
		var err error
		d, err = dial(ctx, cfg.host, opts)
		if err == nil {
			return nil
		}
		logger.Warn("connect failed",
			logging.Field{Key: "host", Value: cfg.host},
			logging.Field{Key: "attempt", Value: attempt},
			logging.Field{Key: "err", Value: err},
		)
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, retryPolicy(ctx, cfg.retries)); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.host, err)
	}
	return d, nil
}

func withDevice(ctx context.Context, cfg *cliConfig, logger logging.Logger, tune func(*wsa.Options), fn func(*wsa.Device) error) error {
	d, err := connect(ctx, cfg, logger, tune)
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(d)
}

// sweepStatus queries the sweep status, retrying timeouts.
func sweepStatus(ctx context.Context, d *wsa.Device, retries int) (wsa.SweepStatus, error) {
	var st wsa.SweepStatus
	op := func() error {
		var err error
		st, err = d.Sweep.Status()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	err := backoff.Retry(op, retryPolicy(ctx, retries))
	return st, err
}

func runInfo(ctx context.Context, d *wsa.Device, cfg *cliConfig, out io.Writer) error {
	desc := d.Descriptor
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Property", "Value"})
	table.Append([]string{"manufacturer", d.Identity.Manufacturer})
	table.Append([]string{"model", d.Identity.Model})
	table.Append([]string{"serial", d.Identity.Serial})
	table.Append([]string{"firmware", d.Identity.Firmware})
	table.Append([]string{"front end", desc.RFEName})
	table.Append([]string{"tuning range", fmt.Sprintf("%d-%d Hz", desc.MinTuneFreq, desc.MaxTuneFreq)})
	table.Append([]string{"frequency resolution", fmt.Sprintf("%d Hz", desc.FreqResolution)})
	table.Append([]string{"if gain", fmt.Sprintf("%d..%d dB", desc.MinIFGain, desc.MaxIFGain)})
	table.Append([]string{"decimation", fmt.Sprintf("0, %d..%d", desc.MinDecimation, desc.MaxDecimation)})
	table.Append([]string{"antenna ports", strconv.Itoa(desc.MaxAntennaPort)})

	capCfg, err := d.Capture.Config()
	if err != nil {
		return err
	}
	table.Append([]string{"samples per packet", strconv.Itoa(capCfg.SamplesPerPacket)})
	table.Append([]string{"packets per block", strconv.Itoa(capCfg.PacketsPerBlock)})
	table.Append([]string{"capture decimation", strconv.Itoa(capCfg.Decimation)})

	st, err := sweepStatus(ctx, d, cfg.retries)
	if err != nil {
		return err
	}
	table.Append([]string{"sweep status", st.String()})
	table.Render()
	return nil
}

func runCapture(ctx context.Context, d *wsa.Device, cfg *cliConfig, out io.Writer) (err error) {
	capCfg := wsa.CaptureConfig{
		SamplesPerPacket: cfg.samplesPerPacket,
		PacketsPerBlock:  cfg.packetsPerBlock,
		Decimation:       cfg.decimation,
	}
	if err := d.Capture.Apply(capCfg); err != nil {
		return err
	}

	var rec *recorder.Recorder
	if cfg.out != "" {
		freq, ferr := d.Frontend.Freq()
		if ferr != nil {
			return ferr
		}
		var cerr error
		rec, cerr = recorder.Create(cfg.out, recorder.Metadata{
			Model:            d.Identity.Model,
			Serial:           d.Identity.Serial,
			CenterFreq:       freq,
			SamplesPerPacket: capCfg.SamplesPerPacket,
			PacketsPerBlock:  capCfg.PacketsPerBlock,
			Decimation:       capCfg.Decimation,
		})
		if cerr != nil {
			return cerr
		}
		defer func() {
			if cerr := rec.Close(); err == nil {
				err = cerr
			}
		}()
	}

	if err := d.Capture.CaptureBlock(); err != nil {
		return err
	}
	read := 0
	for read < capCfg.PacketsPerBlock {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := d.ReadPacket(capCfg.SamplesPerPacket)
		if err != nil {
			return err
		}
		if p.Kind != wsa.PacketIFData {
			continue
		}
		read++
		if rec != nil {
			i, q := d.IQ(p)
			if _, err := rec.WritePacket(p, i, q); err != nil {
				return err
			}
		}
	}
	fmt.Fprintf(out, "captured %d packets of %d samples\n", read, capCfg.SamplesPerPacket)
	if rec != nil {
		fmt.Fprintf(out, "wrote %s\n", cfg.out)
	}
	return nil
}

func runSweep(ctx context.Context, d *wsa.Device, command string, cfg *cliConfig, out io.Writer) error {
	switch command {
	case "sweep status":
		st, err := sweepStatus(ctx, d, cfg.retries)
		if err != nil {
			return err
		}
		size, err := d.Sweep.Size()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s, %d entries\n", st, size)
	case "sweep start":
		return d.Sweep.Start()
	case "sweep stop":
		return d.Sweep.Stop()
	case "sweep resume":
		return d.Sweep.Resume()
	case "sweep list":
		entries, err := d.Sweep.List()
		if err != nil {
			return err
		}
		printEntries(out, entries)
	case "sweep add":
		return addEntry(d, cfg.entryFile, cfg.saveID)
	case "sweep delete":
		if cfg.deleteAll {
			return d.Sweep.DeleteAll()
		}
		if cfg.sweepID == 0 {
			return errors.New("sweep delete: give an entry id or --all")
		}
		return d.Sweep.Delete(cfg.sweepID)
	case "sweep iterations":
		if cfg.setIterations >= 0 {
			return d.Sweep.SetIterations(cfg.setIterations)
		}
		n, err := d.Sweep.Iterations()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, n)
	}
	return nil
}

// addEntry resets the device template, overlays the JSON entry at path,
// stages it and saves it at id.
func addEntry(d *wsa.Device, path string, id int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := d.Sweep.New(); err != nil {
		return err
	}
	e := d.Sweep.Template()
	if err := json.Unmarshal(data, &e); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if err := d.Sweep.Apply(e); err != nil {
		return err
	}
	return d.Sweep.Save(id)
}

func printEntries(out io.Writer, entries []wsa.SweepEntry) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ID", "Start Hz", "Stop Hz", "Step Hz", "Dec", "Ant", "RF", "IF dB", "SPP", "PPB", "Dwell", "Trigger"})
	for k, e := range entries {
		trigger := "none"
		if e.TriggerEnable {
			trigger = fmt.Sprintf("%d-%d @ %g dBm", e.TriggerStart, e.TriggerStop, e.TriggerAmplitude)
		}
		table.Append([]string{
			strconv.Itoa(k + 1),
			strconv.FormatInt(e.StartFreq, 10),
			strconv.FormatInt(e.StopFreq, 10),
			strconv.FormatInt(e.FreqStep, 10),
			strconv.Itoa(e.Decimation),
			strconv.Itoa(e.Antenna),
			e.GainRF.Token(),
			strconv.Itoa(e.GainIF),
			strconv.Itoa(e.SamplesPerPacket),
			strconv.Itoa(e.PacketsPerBlock),
			fmt.Sprintf("%d.%06ds", e.DwellSec, e.DwellUsec),
			trigger,
		})
	}
	table.Render()
}
