package sim

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// A Scheduler owns the simulated clock and the ready queue of a simulation.
// It decides which process runs next and hands control to it. At most one
// process body makes progress at any time; all the others are parked.
//
// All the kernel state, including the state of every process created on the
// scheduler, is guarded by a single lock.
type Scheduler struct {
	*HookableBase

	lock     sync.Mutex
	now      VTimeInSec
	queue    *EventQueue
	registry *processRegistry

	// current is the process the last dispatch selected. active is the
	// process whose goroutine is executing. They only differ after a reset,
	// which clears current while its invoker keeps running.
	current *Process
	active  *Process

	started bool
	live    map[*Process]struct{}

	resetting    bool
	resetInvoker *Process
	restarting   *Process
	resetAck     chan struct{}

	singleRunLock sync.Mutex
	done          chan struct{}
	wg            sync.WaitGroup

	idGenerator IDGenerator
	log         logrus.FieldLogger
}

// NewScheduler creates a Scheduler with the default configuration.
func NewScheduler() *Scheduler {
	return MakeBuilder().Build()
}

// Start marks the simulation as running. Dispatching fails before Start is
// called.
func (s *Scheduler) Start() {
	s.lock.Lock()
	s.started = true
	s.lock.Unlock()
}

// Stop marks the simulation as not running and wakes the driver blocked in
// Run. The process that calls Stop keeps running until it returns from its
// body; any further suspension fails with ErrNotStarted.
func (s *Scheduler) Stop() {
	s.lock.Lock()
	s.started = false
	s.lock.Unlock()

	s.notifyDriver()
}

// IsStarted tells if the simulation is running.
func (s *Scheduler) IsStarted() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.started
}

// IsResetting tells if a reset is in progress.
func (s *Scheduler) IsResetting() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.resetting
}

// CurrentTime returns the simulated clock.
func (s *Scheduler) CurrentTime() VTimeInSec {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.now
}

// Current returns the process selected by the last dispatch.
func (s *Scheduler) Current() (*Process, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.current == nil {
		return nil, newSimulationError("Current", ErrCurrentNotSet, "")
	}

	return s.current, nil
}

// QueueSnapshot returns the scheduled processes in dispatch order.
func (s *Scheduler) QueueSnapshot() []*Process {
	s.lock.Lock()
	defer s.lock.Unlock()

	entries := s.queue.Entries()
	procs := make([]*Process, 0, len(entries))
	for _, e := range entries {
		procs = append(procs, e.(*Process))
	}

	return procs
}

// QueueIterator returns an iterator over the scheduled processes in dispatch
// order.
func (s *Scheduler) QueueIterator() *ProcessIterator {
	return NewProcessIterator(s.QueueSnapshot())
}

// Processes returns the live processes in registration order.
func (s *Scheduler) Processes() []*Process {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.registry.snapshot()
}

// ProcessIterator returns an iterator over the live processes in registration
// order.
func (s *Scheduler) ProcessIterator() *ProcessIterator {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.registry.iterator()
}

// NextAfter returns the process that will run after p. If p is not on the
// ready queue, it is the running process and the head of the queue is
// returned. It returns nil if p is the last process on the queue.
func (s *Scheduler) NextAfter(p *Process) (*Process, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.nextAfterLocked(p)
}

func (s *Scheduler) nextAfterLocked(p *Process) (*Process, error) {
	e, err := s.queue.NextAfter(p)
	if err != nil || e == nil {
		return nil, err
	}

	return e.(*Process), nil
}

// Unschedule removes p from the ready queue, if it is there, and makes it
// idle.
func (s *Scheduler) Unschedule(p *Process) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.unscheduleLocked(p)
}

func (s *Scheduler) unscheduleLocked(p *Process) {
	_ = s.queue.Remove(p)
	p.deactivateLocked()
}

// Run is the entry point of the driver. It dispatches the earliest scheduled
// process and blocks until the ready queue runs dry or Stop is called.
func (s *Scheduler) Run() error {
	s.singleRunLock.Lock()
	defer s.singleRunLock.Unlock()

	s.lock.Lock()
	if s.active != nil {
		s.lock.Unlock()
		return newSimulationError("Run", ErrAlreadyRunning,
			"process "+s.active.name+" is running")
	}

	s.drainDriverSignal()

	next, err := s.dispatchLocked(nil)
	s.lock.Unlock()

	if err != nil {
		return err
	}

	if next == nil {
		s.drainDriverSignal()
		return nil
	}

	<-s.done

	return nil
}

// Shutdown stops the simulation and terminates every live process. It waits
// until all the process goroutines have exited. It must be called by the
// driver, not by a process.
func (s *Scheduler) Shutdown() {
	s.lock.Lock()
	s.started = false

	procs := s.registry.snapshot()
	for p := range s.live {
		if !s.registry.contains(p) {
			procs = append(procs, p)
		}
	}
	s.lock.Unlock()

	for _, p := range procs {
		p.Terminate()
	}

	s.notifyDriver()
	s.wg.Wait()
}

// dispatchLocked selects the earliest scheduled process, advances the clock
// to its wake-up time and resumes it, unless it is the caller itself. It
// returns nil if there is no more work.
func (s *Scheduler) dispatchLocked(caller *Process) (*Process, error) {
	if !s.started {
		return nil, newSimulationError("Schedule", ErrNotStarted, "")
	}

	for {
		e, err := s.queue.RemoveHead()
		if err != nil {
			s.log.WithField("sim_time", float64(s.now)).
				Debug("simulation queue empty")

			s.current = nil
			s.active = nil
			s.notifyDriver()

			return nil, nil
		}

		next := e.(*Process)
		if next.terminated {
			s.log.WithField("process", next.name).
				Warn("skipping terminated process found on the ready queue")
			continue
		}

		if next.wakeUp < 0 {
			next.deactivateLocked()
			return nil, newSimulationError("Schedule", ErrInvalidWakeUp,
				fmt.Sprintf("%s @ %.10f", next.name, next.wakeUp))
		}

		if next.wakeUp < s.now {
			panic(fmt.Sprintf(
				"sim: cannot run process in the past, %s @ %.10f, now %.10f",
				next.name, next.wakeUp, s.now,
			))
		}

		s.now = next.wakeUp
		s.current = next

		s.InvokeHook(HookCtx{
			Domain: s,
			Now:    s.now,
			Pos:    HookPosBeforeDispatch,
			Item:   next,
		})

		if next != caller {
			s.resumeLocked(next)
		}

		return next, nil
	}
}

// resumeLocked hands control to p, starting its body if it has never run.
// Resuming the running process is a contract violation.
func (s *Scheduler) resumeLocked(p *Process) {
	if s.active == p && p.started {
		panic("sim: resume called on the running process " + p.name)
	}

	s.active = p

	if !p.started {
		p.started = true
		s.live[p] = struct{}{}
		s.wg.Add(1)

		go p.run()

		return
	}

	select {
	case p.resume <- struct{}{}:
	default:
		panic("sim: process " + p.name + " resumed twice")
	}
}

// wakeLocked unparks a terminated process so that its goroutine can exit.
func (s *Scheduler) wakeLocked(p *Process) {
	select {
	case p.resume <- struct{}{}:
	default:
	}
}

// handOffLocked passes control on after the running process p terminated.
func (s *Scheduler) handOffLocked(p *Process) {
	if !s.started {
		s.current = nil
		s.active = nil
		return
	}

	_, err := s.dispatchLocked(p)
	if err != nil {
		s.log.WithError(err).WithField("process", p.name).
			Warn("cannot dispatch after termination")
		s.active = nil
	}
}

func (s *Scheduler) terminateLocked(p *Process) {
	if p.terminated {
		return
	}

	p.terminated = true
	p.passivated = true
	p.wakeUp = Never

	_ = s.queue.Remove(p)
	s.registry.remove(p)

	s.InvokeHook(HookCtx{
		Domain: s,
		Now:    s.now,
		Pos:    HookPosTerminate,
		Item:   p,
	})
}

func (s *Scheduler) processExited(p *Process) {
	s.lock.Lock()
	delete(s.live, p)
	s.lock.Unlock()

	s.wg.Done()
}

func processWakeUp(e QueueEntry) VTimeInSec {
	return e.(*Process).wakeUp
}

func (s *Scheduler) notifyDriver() {
	select {
	case s.done <- struct{}{}:
	default:
	}
}

func (s *Scheduler) drainDriverSignal() {
	select {
	case <-s.done:
	default:
	}
}
