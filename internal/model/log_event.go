package model

// EventKey identifies a log within the retrieved collection.
type EventKey struct {
	BlockNumber uint64 `json:"block_number"`
	LogIndex    uint64 `json:"log_index"`
}

// Arg is one decoded event argument in ABI declaration order.
type Arg struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Value   string `json:"value"`
	Display string `json:"display,omitempty"`
}

// LogEvent is a decoded contract event occurrence.
type LogEvent struct {
	Contract    string `json:"contract"`
	Event       string `json:"event"`
	Args        []Arg  `json:"args"`
	BlockNumber uint64 `json:"block_number"`
	BlockHash   string `json:"block_hash"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// Key returns the (block number, log index) pair of the event.
func (e LogEvent) Key() EventKey {
	return EventKey{BlockNumber: e.BlockNumber, LogIndex: e.LogIndex}
}

// Arg returns the argument with the given name.
func (e LogEvent) Arg(name string) (Arg, bool) {
	for _, arg := range e.Args {
		if arg.Name == name {
			return arg, true
		}
	}
	return Arg{}, false
}

// Clone returns a copy that does not share the argument slice.
func (e LogEvent) Clone() LogEvent {
	out := e
	if e.Args != nil {
		out.Args = make([]Arg, len(e.Args))
		copy(out.Args, e.Args)
	}
	return out
}
