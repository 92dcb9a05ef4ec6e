// Package tracing provides hooks that aggregate the activity of a scheduler,
// such as how often processes are dispatched and for how long they are busy.
package tracing

import (
	"strings"

	"github.com/sarchlab/procsim/sim"
)

// ProcessFilter decides if a process is traced.
type ProcessFilter func(p *sim.Process) bool

// AllProcesses traces every process.
func AllProcesses(_ *sim.Process) bool {
	return true
}

// NamePrefix traces the processes whose name starts with prefix.
func NamePrefix(prefix string) ProcessFilter {
	return func(p *sim.Process) bool {
		return strings.HasPrefix(p.Name(), prefix)
	}
}

func processOf(ctx sim.HookCtx, filter ProcessFilter) (*sim.Process, bool) {
	p, ok := ctx.Item.(*sim.Process)
	if !ok || p == nil {
		return nil, false
	}

	if filter != nil && !filter(p) {
		return nil, false
	}

	return p, true
}
