// Command wsactl queries and drives a WSA network RF analyser: identity,
// single block captures, the sweep list and a metrics/telemetry server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/common/version"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/rjboer/GoWSA/internal/logging"
	"github.com/rjboer/GoWSA/internal/transport"
	"github.com/rjboer/GoWSA/wsa"
)

const appName = "wsactl"

// dial is replaced in tests.
var dial = wsa.Open

type cliConfig struct {
	host         string
	controlPort  string
	dataPort     string
	recvBuffer   int
	queryTimeout time.Duration
	drainWindow  time.Duration
	retries      int
	logLevel     string
	logFormat    string

	samplesPerPacket int
	packetsPerBlock  int
	decimation       int
	out              string

	webAddr      string
	historyLimit int
	startSweep   bool
	pollInterval time.Duration

	sweepID       int
	saveID        int
	entryFile     string
	deleteAll     bool
	setIterations int
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, getenv func(string) string) error {
	path := getenv("WSA_CONFIG")
	if path == "" {
		path = defaultConfigPath
	}
	stored, err := loadOrCreateConfig(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	app, cfg := newApp(stored, out)
	command, err := app.Parse(args)
	if err != nil {
		return err
	}
	if err := saveConfig(path, persistentFromCLI(*cfg)); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	logger.Debug("starting", logging.Field{Key: "version", Value: version.Info()}, logging.Field{Key: "command", Value: command})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return dispatch(ctx, command, cfg, out, logger)
}

func newApp(stored persistentConfig, out io.Writer) (*kingpin.Application, *cliConfig) {
	cfg := &cliConfig{}
	app := kingpin.New(appName, "Control client for WSA network RF analysers.")
	app.Version(version.Print(appName))
	app.HelpFlag.Short('h')
	app.UsageWriter(out)
	app.ErrorWriter(out)

	app.Flag("host", "Analyser host name or address.").Default(stored.Host).Envar("WSA_ADDR").StringVar(&cfg.host)
	app.Flag("control-port", "SCPI control port.").Default(stored.ControlPort).Envar("WSA_CONTROL_PORT").StringVar(&cfg.controlPort)
	app.Flag("data-port", "VRT data port.").Default(stored.DataPort).Envar("WSA_DATA_PORT").StringVar(&cfg.dataPort)
	app.Flag("recv-buffer", "Data socket receive buffer in bytes, 0 for the OS default.").Default(itoa(stored.RecvBuffer)).Envar("WSA_RECV_BUFFER").IntVar(&cfg.recvBuffer)
	app.Flag("timeout", "Control query timeout.").Default(durationOr(stored.QueryTimeout, time.Second)).Envar("WSA_TIMEOUT").DurationVar(&cfg.queryTimeout)
	app.Flag("drain-window", "How long a sweep stop discards in-flight data.").Default(durationOr(stored.DrainWindow, 5*time.Second)).Envar("WSA_DRAIN_WINDOW").DurationVar(&cfg.drainWindow)
	app.Flag("retries", "Connect and status query retries.").Default(itoa(stored.Retries)).Envar("WSA_RETRIES").IntVar(&cfg.retries)
	app.Flag("log.level", "Log level (debug|info|warn|error).").Default(stored.LogLevel).Envar("WSA_LOG_LEVEL").StringVar(&cfg.logLevel)
	app.Flag("log.format", "Log format (text|json).").Default(stored.LogFormat).Envar("WSA_LOG_FORMAT").StringVar(&cfg.logFormat)
	app.Flag("spp", "Samples per packet.").Default(itoa(stored.SamplesPerPacket)).Envar("WSA_SPP").IntVar(&cfg.samplesPerPacket)
	app.Flag("ppb", "Packets per block.").Default(itoa(stored.PacketsPerBlock)).Envar("WSA_PPB").IntVar(&cfg.packetsPerBlock)
	app.Flag("decimation", "Decimation rate, 0 for none.").Default(itoa(stored.Decimation)).Envar("WSA_DECIMATION").IntVar(&cfg.decimation)
	app.Flag("web.listen-address", "Address for metrics and telemetry.").Default(stored.WebAddr).Envar("WSA_WEB_ADDR").StringVar(&cfg.webAddr)
	app.Flag("web.history-limit", "Telemetry events kept in history.").Default(itoa(stored.HistoryLimit)).Envar("WSA_HISTORY_LIMIT").IntVar(&cfg.historyLimit)

	app.Command("info", "Print identity, capability bounds and current state.")

	captureCmd := app.Command("capture", "Capture one block.")
	captureCmd.Flag("out", "Write IQ samples to this parquet file.").StringVar(&cfg.out)

	sweepCmd := app.Command("sweep", "Sweep list control.")
	sweepCmd.Command("status", "Print the sweep list status and size.")
	sweepCmd.Command("start", "Start the sweep list.")
	sweepCmd.Command("stop", "Stop the sweep list and drain the data socket.")
	sweepCmd.Command("resume", "Resume the sweep list.")
	sweepCmd.Command("list", "Print every sweep entry.")
	deleteCmd := sweepCmd.Command("delete", "Delete one sweep entry.")
	deleteCmd.Arg("id", "1-based entry id.").IntVar(&cfg.sweepID)
	deleteCmd.Flag("all", "Delete every entry.").BoolVar(&cfg.deleteAll)
	addCmd := sweepCmd.Command("add", "Stage an entry from a JSON file and save it to the list.")
	addCmd.Flag("entry", "JSON sweep entry; omitted fields keep the template defaults.").Required().StringVar(&cfg.entryFile)
	addCmd.Flag("id", "List position, 0 appends.").Default("0").IntVar(&cfg.saveID)
	iterCmd := sweepCmd.Command("iterations", "Print or set the sweep iteration count.")
	iterCmd.Flag("set", "New iteration count, 0 sweeps forever.").Default("-1").IntVar(&cfg.setIterations)

	serveCmd := app.Command("serve", "Serve Prometheus metrics and live telemetry.")
	serveCmd.Flag("start-sweep", "Start the sweep list and stream its packets.").BoolVar(&cfg.startSweep)
	serveCmd.Flag("poll", "Sweep status poll interval.").Default("5s").DurationVar(&cfg.pollInterval)

	return app, cfg
}

func newLogger(cfg *cliConfig, w io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.logLevel)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.logFormat)
	if err != nil {
		return nil, err
	}
	logger := logging.New(level, format, w)
	logging.SetDefault(logger)
	return logger, nil
}

func (cfg *cliConfig) options(logger logging.Logger) wsa.Options {
	return wsa.Options{
		Transport: transport.Options{
			ControlPort: cfg.controlPort,
			DataPort:    cfg.dataPort,
			RecvBuffer:  cfg.recvBuffer,
			Logger:      logger,
		},
		QueryTimeout: cfg.queryTimeout,
		DrainWindow:  cfg.drainWindow,
		Logger:       logger,
	}
}

func dispatch(ctx context.Context, command string, cfg *cliConfig, out io.Writer, logger logging.Logger) error {
	switch command {
	case "info":
		return withDevice(ctx, cfg, logger, nil, func(d *wsa.Device) error { return runInfo(ctx, d, cfg, out) })
	case "capture":
		return withDevice(ctx, cfg, logger, nil, func(d *wsa.Device) error { return runCapture(ctx, d, cfg, out) })
	case "sweep status", "sweep start", "sweep stop", "sweep resume", "sweep list", "sweep add", "sweep delete", "sweep iterations":
		return withDevice(ctx, cfg, logger, nil, func(d *wsa.Device) error { return runSweep(ctx, d, command, cfg, out) })
	case "serve":
		return runServe(ctx, cfg, logger)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
