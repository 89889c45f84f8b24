package stream

// Observer receives session lifecycle signals. Implemented by the
// telemetry package; the zero observer discards everything.
type Observer interface {
	StateChanged(exchange string, state State)
	Reconnecting(exchange string)
	HeartbeatTimeout(exchange string)
	MessageReceived(exchange string)
}

// NopObserver ignores all signals.
type NopObserver struct{}

func (NopObserver) StateChanged(string, State) {}
func (NopObserver) Reconnecting(string)        {}
func (NopObserver) HeartbeatTimeout(string)    {}
func (NopObserver) MessageReceived(string)     {}
