package sim

import (
	"encoding/json"

	"github.com/strideml/simlink/types"
	"github.com/strideml/simlink/util"
)

// TraceStep is one simulate round trip of an episode.
type TraceStep struct {
	Action   types.Values `json:"action"`
	State    types.Values `json:"state"`
	Reward   float64      `json:"reward"`
	Terminal bool         `json:"terminal"`
}

// Trace of an episode as the sequence of steps taken.
type Trace struct {
	Episode int         `json:"episode"`
	Steps   []TraceStep `json:"steps"`
	Reward  float64     `json:"reward"`
}

func NewTrace(episode int) *Trace {
	return &Trace{
		Episode: episode,
		Steps:   make([]TraceStep, 0),
	}
}

func (t *Trace) Append(action, state types.Values, reward float64, terminal bool) {
	t.Steps = append(t.Steps, TraceStep{
		Action:   action,
		State:    state,
		Reward:   reward,
		Terminal: terminal,
	})
	t.Reward += reward
}

func (t *Trace) Len() int {
	return len(t.Steps)
}

// record appends the trace as one JSONL line to the given file.
func (t *Trace) record(path string) error {
	bs, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return util.AppendToFile(path, string(bs))
}
