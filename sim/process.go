package sim

import (
	"fmt"
	"runtime"
)

// A Body is the application logic of a process. Run is invoked once, on the
// goroutine of the process, the first time the process is dispatched. When
// Run returns, the process terminates.
type Body interface {
	Run(p *Process) error
}

// BodyFunc adapts a function to the Body interface.
type BodyFunc func(p *Process) error

// Run calls f(p).
func (f BodyFunc) Run(p *Process) error {
	return f(p)
}

// A Process is a schedulable unit of sequential logic. It runs its body on a
// goroutine of its own, but only while the scheduler has handed control to
// it. Suspension points (Hold, Cancel and Passivate on itself, and the
// Reactivate family on itself) give control back to the scheduler.
//
// A process is created idle. Activation puts it on the ready queue; the
// scheduler makes it the current process when its wake-up time comes; it
// becomes idle again when it suspends without an appointment, and it is
// inert forever once terminated.
type Process struct {
	sched *Scheduler
	id    string
	name  string
	body  Body

	wakeUp     VTimeInSec
	terminated bool
	passivated bool
	started    bool

	// resume is the hand-off slot. The scheduler puts a token in it to let the
	// parked goroutine continue.
	resume chan struct{}
}

// NewProcess creates an idle process on the scheduler. The process is
// registered as live until it terminates.
func NewProcess(s *Scheduler, name string, body Body) *Process {
	p := &Process{
		sched:      s,
		id:         s.idGenerator.Generate(),
		name:       name,
		body:       body,
		wakeUp:     Never,
		passivated: true,
		resume:     make(chan struct{}, 1),
	}

	s.lock.Lock()
	s.registry.add(p)
	s.lock.Unlock()

	return p
}

// ID returns the ID of the process.
func (p *Process) ID() string {
	return p.id
}

// Name returns the name of the process.
func (p *Process) Name() string {
	return p.name
}

func (p *Process) String() string {
	return p.name
}

// Scheduler returns the scheduler the process runs on.
func (p *Process) Scheduler() *Scheduler {
	return p.sched
}

// Time returns the current simulation time.
func (p *Process) Time() VTimeInSec {
	return p.sched.CurrentTime()
}

// EvTime returns the simulation time at which the process will run, or Never.
func (p *Process) EvTime() VTimeInSec {
	p.sched.lock.Lock()
	defer p.sched.lock.Unlock()

	return p.wakeUp
}

// Idle tells if the process is neither running nor scheduled.
func (p *Process) Idle() bool {
	p.sched.lock.Lock()
	defer p.sched.lock.Unlock()

	return p.idleLocked()
}

// The clock only ever advances to the wake-up time of the process being
// dispatched, so the running process and every scheduled process have a
// wake-up time no earlier than the clock.
func (p *Process) idleLocked() bool {
	return p.wakeUp < p.sched.now
}

// Passivated tells if the process has been made passive.
func (p *Process) Passivated() bool {
	p.sched.lock.Lock()
	defer p.sched.lock.Unlock()

	return p.passivated
}

// Terminated tells if the process has been terminated.
func (p *Process) Terminated() bool {
	p.sched.lock.Lock()
	defer p.sched.lock.Unlock()

	return p.terminated
}

// NextEv returns the process that will run after this one. The process must
// be scheduled or running. It returns nil if nothing runs after it.
func (p *Process) NextEv() (*Process, error) {
	s := p.sched
	s.lock.Lock()
	defer s.lock.Unlock()

	if p.idleLocked() {
		return nil, newSimulationError("NextEv", ErrNotScheduled, p.name)
	}

	next, err := s.nextAfterLocked(p)
	if err != nil {
		return nil, nil
	}

	return next, nil
}

// SetEvTime moves the appointment of a scheduled or running process.
func (p *Process) SetEvTime(t VTimeInSec) error {
	s := p.sched
	s.lock.Lock()
	defer s.lock.Unlock()

	if p.idleLocked() {
		return newSimulationError("SetEvTime", ErrIdleProcess, p.name)
	}

	if t < s.now {
		return newSimulationError("SetEvTime", ErrInvalidTime, formatTime(t))
	}

	p.wakeUp = t

	if s.queue.Contains(p) {
		_ = s.queue.Remove(p)
		return s.queue.Insert(p, false)
	}

	return nil
}

// Activate schedules the process at the current time, in front of the other
// processes scheduled at the same time. It does nothing if the process is
// not idle.
func (p *Process) Activate() error {
	s := p.sched
	s.lock.Lock()
	defer s.lock.Unlock()

	return p.activateAtLocked("Activate", s.now, true)
}

// ActivateAt schedules the process at time t, which must not be in the past.
// If prior is set, the process runs before the other processes scheduled at
// t. It does nothing if the process is not idle.
func (p *Process) ActivateAt(t VTimeInSec, prior bool) error {
	s := p.sched
	s.lock.Lock()
	defer s.lock.Unlock()

	return p.activateAtLocked("ActivateAt", t, prior)
}

// ActivateDelay schedules the process d units of simulation time from now. d
// must not be negative. If prior is set, the process runs before the other
// processes scheduled at the same time. It does nothing if the process is
// not idle.
func (p *Process) ActivateDelay(d VTimeInSec, prior bool) error {
	s := p.sched
	s.lock.Lock()
	defer s.lock.Unlock()

	return p.activateDelayLocked("ActivateDelay", d, prior)
}

// ActivateBefore schedules the process immediately before the scheduled
// process anchor, at the same time. It does nothing if the process is not
// idle.
func (p *Process) ActivateBefore(anchor *Process) error {
	s := p.sched
	s.lock.Lock()
	defer s.lock.Unlock()

	return p.activateBesideLocked("ActivateBefore", anchor, true)
}

// ActivateAfter schedules the process immediately after the scheduled process
// anchor, at the same time. It does nothing if the process is not idle.
func (p *Process) ActivateAfter(anchor *Process) error {
	s := p.sched
	s.lock.Lock()
	defer s.lock.Unlock()

	return p.activateBesideLocked("ActivateAfter", anchor, false)
}

// Reactivate unschedules the process and activates it at the current time. A
// process reactivating itself gives up control.
func (p *Process) Reactivate() error {
	return p.reactivate(func() error {
		return p.activateAtLocked("Reactivate", p.sched.now, true)
	})
}

// ReactivateAt unschedules the process and activates it at time t. A process
// reactivating itself gives up control.
func (p *Process) ReactivateAt(t VTimeInSec, prior bool) error {
	return p.reactivate(func() error {
		return p.activateAtLocked("ReactivateAt", t, prior)
	})
}

// ReactivateDelay unschedules the process and activates it d units of time
// from now. A process reactivating itself gives up control.
func (p *Process) ReactivateDelay(d VTimeInSec, prior bool) error {
	return p.reactivate(func() error {
		return p.activateDelayLocked("ReactivateDelay", d, prior)
	})
}

// ReactivateBefore unschedules the process and activates it immediately
// before anchor. A process reactivating itself gives up control.
func (p *Process) ReactivateBefore(anchor *Process) error {
	return p.reactivate(func() error {
		return p.activateBesideLocked("ReactivateBefore", anchor, true)
	})
}

// ReactivateAfter unschedules the process and activates it immediately after
// anchor. A process reactivating itself gives up control.
func (p *Process) ReactivateAfter(anchor *Process) error {
	return p.reactivate(func() error {
		return p.activateBesideLocked("ReactivateAfter", anchor, false)
	})
}

func (p *Process) reactivate(activate func() error) error {
	s := p.sched
	s.lock.Lock()

	if !p.idleLocked() {
		s.unscheduleLocked(p)
	}

	err := activate()
	self := s.active == p
	s.lock.Unlock()

	if err != nil {
		return err
	}

	if self {
		return p.suspend()
	}

	return nil
}

// activatableLocked tells if an activation should go ahead. Activating a
// terminated or a non-idle process is silently ignored.
func (p *Process) activatableLocked(op string) (bool, error) {
	if p.terminated || !p.idleLocked() {
		return false, nil
	}

	if p.sched.resetting {
		return false, newSimulationError(op, ErrResetInProgress, p.name)
	}

	return true, nil
}

func (p *Process) activateAtLocked(op string, t VTimeInSec, prior bool) error {
	ok, err := p.activatableLocked(op)
	if !ok {
		return err
	}

	s := p.sched
	if t < s.now {
		return newSimulationError(op, ErrInvalidTime, formatTime(t))
	}

	p.wakeUp = t
	if err := s.queue.Insert(p, prior); err != nil {
		return newSimulationError(op, err, p.name)
	}

	p.scheduledLocked()

	return nil
}

func (p *Process) activateDelayLocked(op string, d VTimeInSec, prior bool) error {
	ok, err := p.activatableLocked(op)
	if !ok {
		return err
	}

	if d < 0 {
		return newSimulationError(op, ErrInvalidDelay, formatTime(d))
	}

	return p.activateAtLocked(op, p.sched.now+d, prior)
}

func (p *Process) activateBesideLocked(
	op string,
	anchor *Process,
	before bool,
) error {
	if anchor == p {
		return newSimulationError(op, ErrSelfAnchor, p.name)
	}

	ok, err := p.activatableLocked(op)
	if !ok {
		return err
	}

	s := p.sched
	if anchor == nil || !s.queue.Contains(anchor) {
		return newSimulationError(op, ErrAnchorNotScheduled, "")
	}

	p.wakeUp = anchor.wakeUp
	if before {
		err = s.queue.InsertBefore(p, anchor)
	} else {
		err = s.queue.InsertAfter(p, anchor)
	}

	if err != nil {
		p.wakeUp = Never
		return newSimulationError(op, err, p.name)
	}

	p.scheduledLocked()

	return nil
}

// scheduledLocked records that the process is on the ready queue. A process
// that outlived a reset joins the new registry when it is scheduled again.
func (p *Process) scheduledLocked() {
	s := p.sched

	p.passivated = false
	s.registry.add(p)

	s.InvokeHook(HookCtx{
		Domain: s,
		Now:    s.now,
		Pos:    HookPosActivate,
		Item:   p,
	})
}

// Cancel makes the process idle without running it. A process cancelling
// itself gives up control and does not run again until it is activated.
func (p *Process) Cancel() error {
	s := p.sched
	s.lock.Lock()

	if s.resetting && s.restarting == p {
		s.lock.Unlock()
		return p.suspend()
	}

	if p.idleLocked() {
		s.lock.Unlock()
		return nil
	}

	hookCtx := HookCtx{Domain: s, Now: s.now, Pos: HookPosCancel, Item: p}

	if s.active == p {
		p.wakeUp = Never
		p.passivated = true
		s.InvokeHook(hookCtx)
		s.lock.Unlock()

		return p.suspend()
	}

	s.unscheduleLocked(p)
	s.InvokeHook(hookCtx)
	s.lock.Unlock()

	return nil
}

// Passivate cancels the process if it is the running process and has not been
// passivated yet.
func (p *Process) Passivate() error {
	s := p.sched
	s.lock.Lock()
	restarting := s.resetting && s.restarting == p
	shouldCancel := restarting || (!p.passivated && s.active == p)
	s.lock.Unlock()

	if !shouldCancel {
		return nil
	}

	return p.Cancel()
}

// Hold delays the running process by d units of simulation time. The process
// gives up control and continues when the time comes.
func (p *Process) Hold(d VTimeInSec) error {
	s := p.sched
	s.lock.Lock()

	if s.resetting && s.restarting == p {
		s.lock.Unlock()
		return p.suspend()
	}

	if p.terminated || (s.current != p && s.active != p) {
		s.lock.Unlock()
		return newSimulationError("Hold", ErrInactiveHold, p.name)
	}

	prev := p.wakeUp
	p.wakeUp = Never

	if err := p.activateDelayLocked("Hold", d, false); err != nil {
		p.wakeUp = prev
		s.lock.Unlock()

		return err
	}

	s.lock.Unlock()

	return p.suspend()
}

// Terminate ends the process for good. It leaves the ready queue and the
// registry of live processes, and every later activation is ignored. When the
// running process terminates itself, control passes to the next process and
// Terminate does not return: the goroutine of the process exits.
//
// Once Stop has been called, the driver may terminate the stopping process
// while it still runs, so Terminate returns to its caller. A process that
// terminates itself after Stop keeps running until its body returns. In the
// meantime Hold fails with ErrInactiveHold and the other scheduling calls do
// nothing.
func (p *Process) Terminate() {
	s := p.sched
	s.lock.Lock()

	if p.terminated {
		s.lock.Unlock()
		return
	}

	if s.resetting && s.restarting == p {
		s.terminateLocked(p)
		s.active = s.resetInvoker
		s.lock.Unlock()

		s.resetAck <- struct{}{}
		runtime.Goexit()
	}

	running := s.active == p
	selfExit := running && s.started

	s.terminateLocked(p)

	switch {
	case running:
		s.handOffLocked(p)
	case p.started:
		s.wakeLocked(p)
	}

	s.lock.Unlock()

	if selfExit {
		runtime.Goexit()
	}
}

// suspend gives control back to the scheduler and blocks until the process
// is resumed. It returns ErrRestart if the process was woken by a reset.
func (p *Process) suspend() error {
	s := p.sched
	s.lock.Lock()

	if p.terminated {
		s.lock.Unlock()
		runtime.Goexit()
	}

	if s.resetting {
		if s.restarting != p {
			s.lock.Unlock()
			return newSimulationError("Suspend", ErrResetInProgress, p.name)
		}

		p.deactivateLocked()
		s.active = s.resetInvoker
		s.lock.Unlock()

		s.resetAck <- struct{}{}

		return p.park()
	}

	next, err := s.dispatchLocked(p)
	if err != nil {
		p.keepRunningLocked()
		s.lock.Unlock()

		return err
	}

	s.lock.Unlock()

	if next == p {
		return nil
	}

	return p.park()
}

func (p *Process) park() error {
	<-p.resume

	s := p.sched
	s.lock.Lock()
	terminated := p.terminated
	restart := s.resetting && s.restarting == p
	s.lock.Unlock()

	if terminated {
		runtime.Goexit()
	}

	if restart {
		return ErrRestart
	}

	return nil
}

// keepRunningLocked withdraws the appointment a process made for itself right
// before a suspension that could not hand control on. The process carries on
// as the running process and is not left on its own ready queue.
func (p *Process) keepRunningLocked() {
	s := p.sched
	if s.active != p || !s.queue.Contains(p) {
		return
	}

	_ = s.queue.Remove(p)
	p.wakeUp = s.now
}

func (p *Process) deactivateLocked() {
	p.passivated = true
	p.wakeUp = Never
}

func (p *Process) run() {
	s := p.sched
	defer s.processExited(p)

	err := p.body.Run(p)
	switch {
	case err == nil:
	case IsRestart(err):
		s.log.WithField("process", p.name).
			Debug("process body unwound by restart")
	default:
		s.log.WithError(err).WithField("process", p.name).
			Warn("process body returned an error")
	}

	p.finish()
}

// finish terminates the process after its body returned.
func (p *Process) finish() {
	s := p.sched
	s.lock.Lock()

	if s.resetting && s.restarting == p {
		s.terminateLocked(p)
		s.active = s.resetInvoker
		s.lock.Unlock()

		s.resetAck <- struct{}{}

		return
	}

	running := s.active == p
	s.terminateLocked(p)

	if running {
		s.handOffLocked(p)
	}

	s.lock.Unlock()
}

func formatTime(t VTimeInSec) string {
	return fmt.Sprintf("%.10f", float64(t))
}
