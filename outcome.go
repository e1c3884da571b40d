package phasetwo

import (
	"encoding/hex"
	"encoding/json"
)

func newBudget(b EngineBudget) Budget {
	return Budget{CPU: b.CPU, Mem: b.Mem}
}

func newTrace(t EngineTrace) Trace {
	switch t := t.(type) {
	case LogTrace:
		return Trace{Kind: TraceLog, Value: string(t)}
	case LabelTrace:
		return Trace{Kind: TraceLabel, Value: string(t)}
	default:
		// A nil trace is the only other value the sealed interface admits.
		return Trace{Kind: TraceLog}
	}
}

// newOutcome snapshots an engine result. The returned Outcome shares no
// memory with redeemer or result.
func newOutcome(redeemer []byte, result *EngineResult) Outcome {
	logs := result.Logs()
	traces := make([]Trace, 0, len(logs))
	for _, t := range logs {
		traces = append(traces, newTrace(t))
	}

	redeemerCopy := make([]byte, len(redeemer))
	copy(redeemerCopy, redeemer)

	return Outcome{
		Redeemer:        redeemerCopy,
		RemainingBudget: newBudget(result.RemainingBudget),
		InitialBudget:   newBudget(result.InitialBudget),
		Traces:          traces,
	}
}

// Consumed returns the budget spent by the script.
func (o Outcome) Consumed() Budget {
	return Budget{
		CPU: o.InitialBudget.CPU - o.RemainingBudget.CPU,
		Mem: o.InitialBudget.Mem - o.RemainingBudget.Mem,
	}
}

type outcomeJSON struct {
	Redeemer        string  `json:"redeemer"`
	RemainingBudget Budget  `json:"remaining_budget"`
	InitialBudget   Budget  `json:"initial_budget"`
	Traces          []Trace `json:"traces"`
}

// MarshalJSON encodes the redeemer as hex.
func (o Outcome) MarshalJSON() ([]byte, error) {
	traces := o.Traces
	if traces == nil {
		traces = []Trace{}
	}
	return json.Marshal(outcomeJSON{
		Redeemer:        hex.EncodeToString(o.Redeemer),
		RemainingBudget: o.RemainingBudget,
		InitialBudget:   o.InitialBudget,
		Traces:          traces,
	})
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var raw outcomeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	redeemer, err := hex.DecodeString(raw.Redeemer)
	if err != nil {
		return err
	}
	*o = Outcome{
		Redeemer:        redeemer,
		RemainingBudget: raw.RemainingBudget,
		InitialBudget:   raw.InitialBudget,
		Traces:          raw.Traces,
	}
	return nil
}
