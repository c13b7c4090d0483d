package pacing

// State is the lifecycle of one generation as the user sees it.
type State int

const (
	Idle State = iota
	Streaming
	Draining
)

func (s State) String() string {
	switch s {
	case Streaming:
		return "streaming"
	case Draining:
		return "draining"
	}
	return "idle"
}

// Signal is an input to the lifecycle.
type Signal int

const (
	// SignalStart begins a generation.
	SignalStart Signal = iota
	// SignalContent reports tokens enqueued.
	SignalContent
	// SignalStep reports one token rendered.
	SignalStep
	// SignalFinish reports the terminal event (Done or Error).
	SignalFinish
	// SignalReset abandons the generation.
	SignalReset
)

// Next returns the state after sig, given the queue length once sig has
// been applied. The lifecycle only returns to Idle once the stream finished
// and the queue is empty.
func Next(s State, sig Signal, queueLen int) State {
	switch sig {
	case SignalReset:
		return Idle
	case SignalStart:
		if s == Idle {
			return Streaming
		}
	case SignalFinish:
		if s == Streaming {
			if queueLen > 0 {
				return Draining
			}
			return Idle
		}
	case SignalStep:
		if s == Draining && queueLen == 0 {
			return Idle
		}
	}
	return s
}
