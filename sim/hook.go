package sim

import "sync"

// HookPos defines the enum of possible hooking positions
type HookPos struct {
	Name string
}

// HookCtx is the context that holds all the information about the site that a
// hook is triggered
type HookCtx struct {
	Domain Hookable
	Now    VTimeInSec
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// Hookable defines an object that accept Hooks
type Hookable interface {
	// AcceptHook registers a hook
	AcceptHook(hook Hook)
}

// HookPosBeforeDispatch triggers after the clock has advanced to the wake-up
// time of the selected process and before the process is resumed. The Item is
// the selected *Process.
var HookPosBeforeDispatch = &HookPos{Name: "BeforeDispatch"}

// HookPosActivate triggers when a process is put on the ready queue. The Item
// is the *Process.
var HookPosActivate = &HookPos{Name: "Activate"}

// HookPosCancel triggers when a scheduled or running process becomes idle
// without running. The Item is the *Process.
var HookPosCancel = &HookPos{Name: "Cancel"}

// HookPosTerminate triggers when a process terminates. The Item is the
// *Process.
var HookPosTerminate = &HookPos{Name: "Terminate"}

// HookPosReset triggers when a reset starts, before the clock is rewound. The
// Item is the process that invoked the reset, or nil for the driver.
var HookPosReset = &HookPos{Name: "Reset"}

// Hook is a short piece of program that can be invoked by a hookable object.
//
// The scheduler invokes hooks while holding its lock. A hook must not call
// back into the scheduler or any process.
type Hook interface {
	// Func determines what to do if hook is invoked.
	Func(ctx HookCtx)
}

// A HookableBase provides some utility function for other type that implement
// the Hookable interface.
type HookableBase struct {
	lock  sync.RWMutex
	Hooks []Hook
}

// NewHookableBase creates a HookableBase object
func NewHookableBase() *HookableBase {
	h := new(HookableBase)
	h.Hooks = make([]Hook, 0)
	return h
}

// AcceptHook register a hook
func (h *HookableBase) AcceptHook(hook Hook) {
	h.lock.Lock()
	h.Hooks = append(h.Hooks, hook)
	h.lock.Unlock()
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	h.lock.RLock()
	defer h.lock.RUnlock()

	return len(h.Hooks)
}

// InvokeHook triggers the register Hooks
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	for _, hook := range h.Hooks {
		hook.Func(ctx)
	}
}
