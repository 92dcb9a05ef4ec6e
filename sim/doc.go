// Package sim is a process-interaction discrete-event simulation kernel.
//
// A simulation is made of processes. Each process runs its body on a
// goroutine, but the Scheduler makes sure that only one body makes progress
// at a time: a process runs until it suspends itself (Hold, Cancel,
// Passivate, or a Reactivate call on itself) or terminates, and the scheduler
// then advances the simulated clock to the earliest appointment on the ready
// queue and hands control to that process.
//
// A typical driver looks like:
//
//	s := sim.NewScheduler()
//	p := sim.NewProcess(s, "worker", sim.BodyFunc(func(p *sim.Process) error {
//		for i := 0; i < 3; i++ {
//			if err := p.Hold(5); err != nil {
//				return err
//			}
//		}
//		return nil
//	}))
//
//	s.Start()
//	_ = p.Activate()
//	_ = s.Run()
//	s.Shutdown()
//
// Misuse is reported as a *SimulationError. A global Reset wakes every
// suspended process with ErrRestart so that the application can rewind its
// own state before calling Cancel.
package sim
