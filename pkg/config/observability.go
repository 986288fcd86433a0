package config

import (
	"io"
	"strings"

	"github.com/pzverkov/quantum-agility/pkg/metrics"
)

// Logger builds the logger described by c.Log, writing to w.
func (c *Config) Logger(w io.Writer) *metrics.Logger {
	format := metrics.FormatText
	if strings.EqualFold(c.Log.Format, "json") {
		format = metrics.FormatJSON
	}
	return metrics.NewLogger(
		metrics.WithOutput(w),
		metrics.WithLevel(metrics.ParseLevel(c.Log.Level)),
		metrics.WithFormat(format),
		metrics.WithName("pqledger"),
	)
}

// Tracer builds the tracer described by c.Tracing.
func (c *Config) Tracer() metrics.Tracer {
	switch c.Tracing.Mode {
	case "simple":
		return metrics.NewSimpleTracer()
	case "otel":
		return metrics.NewOTelTracer(c.Tracing.ServiceName)
	}
	return metrics.NoOpTracer{}
}
