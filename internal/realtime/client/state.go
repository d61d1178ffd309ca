package client

// State is the logical connection state exposed to the UI.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	// Failed means the reconnect budget is exhausted; only Connect leaves it.
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
