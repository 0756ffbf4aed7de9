package fsm

// Status constants used by the purchase attempt state machine.
const (
	StatusIdle          = "idle"
	StatusRequested     = "requested"
	StatusAwaitingQueue = "awaiting_queue"
	StatusCompleted     = "completed"
	StatusRestored      = "restored"
	StatusFailed        = "failed"
	StatusCanceled      = "canceled"
)

var transitions = map[string]map[string]struct{}{
	StatusIdle:      {StatusRequested: {}},
	StatusRequested: {StatusAwaitingQueue: {}, StatusFailed: {}},
	StatusAwaitingQueue: {
		StatusCompleted: {},
		StatusRestored:  {},
		StatusFailed:    {},
		StatusCanceled:  {},
	},
	StatusCompleted: {StatusIdle: {}},
	StatusRestored:  {StatusIdle: {}},
	StatusFailed:    {StatusIdle: {}},
	StatusCanceled:  {StatusIdle: {}},
}

// CanTransition returns whether a purchase attempt can move from the current
// status to the target status.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// Terminal reports whether a status ends a purchase attempt. Every terminal
// status leads back to idle.
func Terminal(status string) bool {
	switch status {
	case StatusCompleted, StatusRestored, StatusFailed, StatusCanceled:
		return true
	}
	return false
}
