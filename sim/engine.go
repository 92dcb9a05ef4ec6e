package sim

// VTimeInSec defines the time in the simulated space in the unit of second
type VTimeInSec float64

// Never is the wake-up time of a process that is not scheduled. It is smaller
// than any valid simulation time, so a process carrying it is always idle.
const Never VTimeInSec = -1

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	CurrentTime() VTimeInSec
}

// A Kernel is the part of the scheduler that tools outside the package rely
// on. The monitor and the recorders only ever read through it.
type Kernel interface {
	Hookable
	TimeTeller

	// QueueSnapshot returns the scheduled processes in dispatch order.
	QueueSnapshot() []*Process

	// Processes returns the live processes in registration order.
	Processes() []*Process

	// IsStarted tells if the simulation is running.
	IsStarted() bool

	// IsResetting tells if a reset is in progress.
	IsResetting() bool
}
