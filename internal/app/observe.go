package app

import (
	"fmt"
	"net"
	"os"
	"strings"

	"go.uber.org/zap"

	"logreduce/internal/config"
	"logreduce/internal/metrics"
	"logreduce/internal/metrics/datadog"
	"logreduce/internal/metrics/prompush"
)

// NewLogger builds the process logger. Format "json" yields zap's
// production encoder; anything else the console encoder.
func NewLogger(c config.Log) (*zap.Logger, error) {
	var zc zap.Config
	if strings.EqualFold(c.Format, "json") {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
	}
	level := c.Level
	if level == "" {
		level = "info"
	}
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc.Level = lvl
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// NewRecorder returns the metrics recorder selected by f.Metrics.
func NewRecorder(f config.File) (*metrics.Recorder, error) {
	switch f.Metrics.Backend {
	case "", "none":
		return metrics.NewRecorder(nil, f.Job), nil

	case "prometheus":
		b, err := prompush.NewBackend(f.Job, f.Metrics.PushgatewayURL)
		if err != nil {
			return nil, err
		}
		return metrics.NewRecorder(b, f.Job), nil

	case "datadog":
		addr := f.Metrics.DatadogAddr
		if addr == "" {
			host := os.Getenv("DD_AGENT_HOST")
			if host == "" {
				host = "127.0.0.1"
			}
			addr = net.JoinHostPort(host, "8125")
		}
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       addr,
			GlobalTags: []string{"service:logreduce"},
		})
		if err != nil {
			return nil, err
		}
		return metrics.NewRecorder(b, f.Job), nil

	default:
		return nil, fmt.Errorf("metrics: unsupported backend %q", f.Metrics.Backend)
	}
}
