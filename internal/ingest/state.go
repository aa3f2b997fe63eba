package ingest

// State is a pipeline run state.
type State int32

const (
	StateIdle State = iota
	StateHeaderParsed
	StateStreaming
	StateBatchFull
	StateFlushing
	StateDraining
	StateCompleted
	StateFailed
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateHeaderParsed: "header_parsed",
	StateStreaming:    "streaming",
	StateBatchFull:    "batch_full",
	StateFlushing:     "flushing",
	StateDraining:     "draining",
	StateCompleted:    "completed",
	StateFailed:       "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
