package telemetry

import (
	"github.com/rjboer/GoWSA/internal/logging"
)

// Reporter captures telemetry events.
type Reporter interface {
	Report(ev Event)
}

// LogReporter writes events through a structured logger.
type LogReporter struct {
	logger logging.Logger
}

// NewLogReporter builds a log reporter with the provided logger.
func NewLogReporter(logger logging.Logger) LogReporter {
	return LogReporter{logger: logging.OrDefault(logger)}
}

func (r LogReporter) Report(ev Event) {
	fields := []logging.Field{
		{Key: "subsystem", Value: "telemetry"},
		{Key: "kind", Value: ev.Kind},
	}
	if ev.Detail != "" {
		fields = append(fields, logging.Field{Key: "detail", Value: ev.Detail})
	}
	if ev.Packets != 0 {
		fields = append(fields, logging.Field{Key: "packets", Value: ev.Packets})
	}
	if ev.Bytes != 0 {
		fields = append(fields, logging.Field{Key: "bytes", Value: ev.Bytes})
	}
	if ev.Err != "" {
		fields = append(fields, logging.Field{Key: "err", Value: ev.Err})
		r.logger.Warn("telemetry event", fields...)
		return
	}
	r.logger.Info("telemetry event", fields...)
}

// Emit reports ev to r when r is set, filling Err from err.
func Emit(r Reporter, ev Event, err error) {
	if r == nil {
		return
	}
	if err != nil {
		ev.Err = err.Error()
	}
	r.Report(ev)
}
