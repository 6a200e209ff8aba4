package runner

import (
	"context"

	"github.com/qmuntal/stateless"
)

// State is a lifecycle state of a Runner.
type State string

const (
	StateUninitialized State = "Uninitialized"
	StateReady         State = "Ready"
	StateRunning       State = "Running"
	StateFailed        State = "Failed"
	StateClosed        State = "Closed" // Terminal: transport released
)

type trigger string

const (
	triggerInitialize trigger = "Initialize"
	triggerRun        trigger = "Run"
	triggerCompleted  trigger = "Completed"
	triggerFailed     trigger = "Failed"
	triggerClose      trigger = "Close"
)

// newLifecycle builds the runner state machine:
//
//	Uninitialized -> Ready -> (Running -> Ready | Failed) -> Closed
//
// Close is accepted from every state and ignored once Closed, so release runs
// exactly once. Completion triggers arriving after a Close are dropped.
func newLifecycle(release func() error) *stateless.StateMachine {
	fsm := stateless.NewStateMachine(StateUninitialized)

	fsm.Configure(StateUninitialized).
		Permit(triggerInitialize, StateReady).
		Permit(triggerClose, StateClosed)

	fsm.Configure(StateReady).
		Permit(triggerRun, StateRunning).
		Permit(triggerClose, StateClosed)

	fsm.Configure(StateRunning).
		Permit(triggerCompleted, StateReady).
		Permit(triggerFailed, StateFailed).
		Permit(triggerClose, StateClosed)

	fsm.Configure(StateFailed).
		Permit(triggerClose, StateClosed)

	fsm.Configure(StateClosed).
		OnEntry(func(_ context.Context, _ ...any) error {
			return release()
		}).
		Ignore(triggerClose).
		Ignore(triggerCompleted).
		Ignore(triggerFailed)

	return fsm
}
