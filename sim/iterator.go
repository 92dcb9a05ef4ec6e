package sim

// A ProcessIterator walks a fixed sequence of processes. The sequence is
// captured when the iterator is created, so the walk is not disturbed by
// processes that are scheduled, cancelled or terminated while it runs.
type ProcessIterator struct {
	procs []*Process
	pos   int
}

// NewProcessIterator creates an iterator over the given processes.
func NewProcessIterator(procs []*Process) *ProcessIterator {
	return &ProcessIterator{procs: procs}
}

// HasNext tells if Next would return a process.
func (it *ProcessIterator) HasNext() bool {
	return it.pos < len(it.procs)
}

// Next returns the process under the cursor and moves the cursor forward. It
// returns nil after the last process.
func (it *ProcessIterator) Next() *Process {
	if !it.HasNext() {
		return nil
	}

	p := it.procs[it.pos]
	it.pos++

	return p
}

// processRegistry keeps the live processes in registration order.
type processRegistry struct {
	procs []*Process
	index map[*Process]int
}

func newProcessRegistry() *processRegistry {
	return &processRegistry{
		index: make(map[*Process]int),
	}
}

func (r *processRegistry) add(p *Process) {
	if _, ok := r.index[p]; ok {
		return
	}

	r.index[p] = len(r.procs)
	r.procs = append(r.procs, p)
}

func (r *processRegistry) remove(p *Process) bool {
	i, ok := r.index[p]
	if !ok {
		return false
	}

	r.procs = append(r.procs[:i], r.procs[i+1:]...)
	delete(r.index, p)

	for j := i; j < len(r.procs); j++ {
		r.index[r.procs[j]] = j
	}

	return true
}

func (r *processRegistry) contains(p *Process) bool {
	_, ok := r.index[p]
	return ok
}

func (r *processRegistry) len() int {
	return len(r.procs)
}

func (r *processRegistry) snapshot() []*Process {
	procs := make([]*Process, len(r.procs))
	copy(procs, r.procs)

	return procs
}

func (r *processRegistry) iterator() *ProcessIterator {
	return NewProcessIterator(r.snapshot())
}
