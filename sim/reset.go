package sim

// Reset rewinds the simulation. It is invoked by the running process, or by
// the driver when no process is running.
//
// The invoker and every scheduled process become idle, since their
// appointments are meaningless once the clock goes back to zero. Then every
// live process that is parked in a suspension point is woken, one at a time,
// in registration order. The suspension point returns ErrRestart; the process
// is expected to rewind its own state and call Cancel, which hands control
// back to Reset. A process may also return from its body instead, which
// terminates it. Finally, the clock is set to zero and the registry of live
// processes starts over empty. Processes rejoin it when they are scheduled
// again.
func (s *Scheduler) Reset() error {
	s.lock.Lock()
	if s.resetting {
		s.lock.Unlock()
		return newSimulationError("Reset", ErrResetInProgress, "")
	}

	invoker := s.active
	s.resetting = true
	s.resetInvoker = invoker

	s.log.WithField("sim_time", float64(s.now)).Info("simulation reset")

	s.InvokeHook(HookCtx{
		Domain: s,
		Now:    s.now,
		Pos:    HookPosReset,
		Item:   invoker,
	})

	if invoker != nil {
		s.unscheduleLocked(invoker)
	}

	for _, e := range s.queue.Clear() {
		e.(*Process).deactivateLocked()
	}

	it := s.registry.iterator()
	s.lock.Unlock()

	for p := it.Next(); p != nil; p = it.Next() {
		s.restartProcess(p, invoker)
	}

	s.lock.Lock()
	s.now = 0
	s.current = nil
	s.active = invoker
	s.registry = newProcessRegistry()
	s.restarting = nil
	s.resetInvoker = nil
	s.resetting = false
	s.lock.Unlock()

	s.log.Info("simulation reset done")

	return nil
}

// restartProcess wakes a parked process with the restart signal and waits
// until it acknowledges by suspending again or by terminating.
func (s *Scheduler) restartProcess(p, invoker *Process) {
	s.lock.Lock()
	if p == invoker || p.terminated || !p.started {
		s.lock.Unlock()
		return
	}

	s.restarting = p
	s.resumeLocked(p)
	s.lock.Unlock()

	<-s.resetAck
}
