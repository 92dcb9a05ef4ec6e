package sim

import (
	"github.com/sirupsen/logrus"
)

// Builder can be used to build a Scheduler.
type Builder struct {
	logger      logrus.FieldLogger
	idGenerator IDGenerator
	hooks       []Hook
	start       bool
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithLogger sets the logger the scheduler reports to. The default is the
// standard logrus logger.
func (b Builder) WithLogger(logger logrus.FieldLogger) Builder {
	b.logger = logger
	return b
}

// WithIDGenerator sets the generator of process IDs. The default generates
// sequential IDs.
func (b Builder) WithIDGenerator(g IDGenerator) Builder {
	b.idGenerator = g
	return b
}

// WithParallelIDGenerator makes the scheduler use globally unique process IDs.
func (b Builder) WithParallelIDGenerator() Builder {
	b.idGenerator = NewParallelIDGenerator()
	return b
}

// WithHook registers a hook on the scheduler.
func (b Builder) WithHook(h Hook) Builder {
	b.hooks = append(b.hooks[:len(b.hooks):len(b.hooks)], h)
	return b
}

// Started makes the scheduler start in the running state.
func (b Builder) Started() Builder {
	b.start = true
	return b
}

// Build builds the scheduler.
func (b Builder) Build() *Scheduler {
	s := &Scheduler{
		HookableBase: NewHookableBase(),
		queue:        newEventQueueFunc(processWakeUp),
		registry:     newProcessRegistry(),
		live:         make(map[*Process]struct{}),
		resetAck:     make(chan struct{}),
		done:         make(chan struct{}, 1),
		idGenerator:  b.idGenerator,
		log:          b.logger,
		started:      b.start,
	}

	if s.idGenerator == nil {
		s.idGenerator = NewSequentialIDGenerator()
	}

	if s.log == nil {
		s.log = logrus.StandardLogger()
	}

	for _, h := range b.hooks {
		s.AcceptHook(h)
	}

	return s
}
