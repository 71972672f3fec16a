package domain

// Phase lifecycle state of a simulation run. Transitions are strictly linear.
type Phase int

const (
	PhaseUnstarted Phase = iota
	PhaseStarted
	PhaseTrained
	PhaseRunning
	PhaseDone
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseUnstarted:
		return "unstarted"
	case PhaseStarted:
		return "started"
	case PhaseTrained:
		return "trained"
	case PhaseRunning:
		return "running"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}
