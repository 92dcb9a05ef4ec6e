package tracing

import (
	"sync"

	"github.com/sarchlab/procsim/sim"
)

// DispatchCountTracer counts the kernel events of each process, keyed by the
// name of the hook position, such as "BeforeDispatch" or "Activate".
type DispatchCountTracer struct {
	filter       ProcessFilter
	lock         sync.Mutex
	processNames []string
	posNames     []string
	counts       map[string]map[string]uint64
	totals       map[string]uint64
}

// NewDispatchCountTracer creates a new DispatchCountTracer.
func NewDispatchCountTracer(filter ProcessFilter) *DispatchCountTracer {
	return &DispatchCountTracer{
		filter: filter,
		counts: make(map[string]map[string]uint64),
		totals: make(map[string]uint64),
	}
}

// Func counts the event.
func (t *DispatchCountTracer) Func(ctx sim.HookCtx) {
	p, ok := processOf(ctx, t.filter)
	if !ok {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	counts, found := t.counts[p.Name()]
	if !found {
		counts = make(map[string]uint64)
		t.counts[p.Name()] = counts
		t.processNames = append(t.processNames, p.Name())
	}

	if _, seen := t.totals[ctx.Pos.Name]; !seen {
		t.posNames = append(t.posNames, ctx.Pos.Name)
	}

	counts[ctx.Pos.Name]++
	t.totals[ctx.Pos.Name]++
}

// GetProcessNames returns the names of the processes seen so far, in the
// order they first showed up.
func (t *DispatchCountTracer) GetProcessNames() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]string(nil), t.processNames...)
}

// GetPosNames returns the names of the hook positions seen so far.
func (t *DispatchCountTracer) GetPosNames() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]string(nil), t.posNames...)
}

// GetCount returns how many times the named process went through a hook
// position.
func (t *DispatchCountTracer) GetCount(processName, posName string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.counts[processName][posName]
}

// GetDispatchCount returns how many times the named process was dispatched.
func (t *DispatchCountTracer) GetDispatchCount(processName string) uint64 {
	return t.GetCount(processName, sim.HookPosBeforeDispatch.Name)
}

// GetTotal returns how many times any process went through a hook position.
func (t *DispatchCountTracer) GetTotal(posName string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.totals[posName]
}
