package main

import (
	"encoding/json"
	"os"
	"strconv"
	"time"
)

const defaultConfigPath = "wsactl.json"

type persistentConfig struct {
	Host         string `json:"host"`
	ControlPort  string `json:"control_port"`
	DataPort     string `json:"data_port"`
	RecvBuffer   int    `json:"recv_buffer"`
	QueryTimeout string `json:"query_timeout"`
	DrainWindow  string `json:"drain_window"`
	Retries      int    `json:"retries"`
	LogLevel     string `json:"log_level"`
	LogFormat    string `json:"log_format"`

	SamplesPerPacket int `json:"samples_per_packet"`
	PacketsPerBlock  int `json:"packets_per_block"`
	Decimation       int `json:"decimation"`

	WebAddr      string `json:"web_addr"`
	HistoryLimit int    `json:"history_limit"`
}

func defaultPersistentConfig() persistentConfig {
	return persistentConfig{
		Host:             "",
		ControlPort:      "37001",
		DataPort:         "37000",
		RecvBuffer:       4 << 20,
		QueryTimeout:     "1s",
		DrainWindow:      "5s",
		Retries:          3,
		LogLevel:         "info",
		LogFormat:        "text",
		SamplesPerPacket: 1024,
		PacketsPerBlock:  1,
		Decimation:       0,
		WebAddr:          ":9624",
		HistoryLimit:     500,
	}
}

func persistentFromCLI(cfg cliConfig) persistentConfig {
	return persistentConfig{
		Host:             cfg.host,
		ControlPort:      cfg.controlPort,
		DataPort:         cfg.dataPort,
		RecvBuffer:       cfg.recvBuffer,
		QueryTimeout:     cfg.queryTimeout.String(),
		DrainWindow:      cfg.drainWindow.String(),
		Retries:          cfg.retries,
		LogLevel:         cfg.logLevel,
		LogFormat:        cfg.logFormat,
		SamplesPerPacket: cfg.samplesPerPacket,
		PacketsPerBlock:  cfg.packetsPerBlock,
		Decimation:       cfg.decimation,
		WebAddr:          cfg.webAddr,
		HistoryLimit:     cfg.historyLimit,
	}
}

func loadOrCreateConfig(path string) (persistentConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := defaultPersistentConfig()
			if saveErr := saveConfig(path, cfg); saveErr != nil {
				return persistentConfig{}, saveErr
			}
			return cfg, nil
		}
		return persistentConfig{}, err
	}
	defer f.Close()

	cfg := defaultPersistentConfig()
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return persistentConfig{}, err
	}
	return cfg, nil
}

func saveConfig(path string, cfg persistentConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// durationOr keeps a stored duration usable as a flag default.
func durationOr(s string, def time.Duration) string {
	if _, err := time.ParseDuration(s); err != nil {
		return def.String()
	}
	return s
}

func itoa(n int) string { return strconv.Itoa(n) }
