package sim

import (
	"github.com/sirupsen/logrus"
)

// DispatchLogger is a hook that logs every dispatch decision.
type DispatchLogger struct {
	logger logrus.FieldLogger
	level  logrus.Level
}

// NewDispatchLogger returns a new DispatchLogger which will write into the
// logger at debug level.
func NewDispatchLogger(logger logrus.FieldLogger) *DispatchLogger {
	return &DispatchLogger{
		logger: logger,
		level:  logrus.DebugLevel,
	}
}

// WithLevel sets the level the dispatches are logged at.
func (h *DispatchLogger) WithLevel(level logrus.Level) *DispatchLogger {
	h.level = level
	return h
}

// Func writes the dispatch information into the logger.
func (h *DispatchLogger) Func(ctx HookCtx) {
	p, ok := ctx.Item.(*Process)
	if !ok {
		return
	}

	entry := h.logger.WithFields(logrus.Fields{
		"sim_time": float64(ctx.Now),
		"process":  p.Name(),
		"id":       p.ID(),
	})

	switch ctx.Pos {
	case HookPosBeforeDispatch:
		h.log(entry, "dispatch")
	case HookPosTerminate:
		h.log(entry, "terminate")
	}
}

func (h *DispatchLogger) log(entry *logrus.Entry, msg string) {
	switch h.level {
	case logrus.TraceLevel, logrus.DebugLevel:
		entry.Debug(msg)
	case logrus.InfoLevel:
		entry.Info(msg)
	default:
		entry.Warn(msg)
	}
}
