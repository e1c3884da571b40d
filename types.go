package phasetwo

// Budget is an execution budget in CPU steps and memory units. Values are
// signed: a negative remaining budget reports a deficit after an overrun.
type Budget struct {
	CPU int64 `json:"cpu"`
	Mem int64 `json:"mem"`
}

// TraceKind tells the caller how to read Trace.Value.
type TraceKind string

const (
	// TraceLog is a free-form log line emitted by a script.
	TraceLog TraceKind = "log"
	// TraceLabel is a structural label emitted by a script.
	TraceLabel TraceKind = "label"
)

// Trace is a single diagnostic event emitted during script execution.
type Trace struct {
	Kind  TraceKind `json:"kind"`
	Value string    `json:"value"`
}

// Outcome is the result of evaluating one script of a transaction. Redeemer
// holds the redeemer bytes (with execution units filled in by the engine) that
// selected this execution.
type Outcome struct {
	Redeemer        []byte
	RemainingBudget Budget
	InitialBudget   Budget
	Traces          []Trace
}

// UTxOJSON is one transaction entry of a UTxO dump, as produced by chain
// indexers.
type UTxOJSON struct {
	Hash    string       `json:"hash"`
	Outputs []OutputJSON `json:"outputs"`
}

type OutputJSON struct {
	TxHash      string      `json:"tx_hash"`
	OutputIndex int         `json:"output_index"`
	Address     string      `json:"address"`
	Amount      []AssetJSON `json:"amount"`
	InlineDatum string      `json:"inline_datum"`
	DataHash    string      `json:"data_hash"`
}

type AssetJSON struct {
	Unit     string `json:"unit"`
	Quantity int64  `json:"quantity"`
}
