package phasetwo

import (
	"fmt"
	"math"

	apolloCbor "github.com/Salvionied/cbor/v2"
	"github.com/pkg/errors"
)

// RedeemerTag is the script purpose a redeemer is attached to.
type RedeemerTag uint64

const (
	RedeemerSpend RedeemerTag = iota
	RedeemerMint
	RedeemerCert
	RedeemerReward
	RedeemerVoting
	RedeemerProposing
)

func (t RedeemerTag) String() string {
	switch t {
	case RedeemerSpend:
		return "spend"
	case RedeemerMint:
		return "mint"
	case RedeemerCert:
		return "cert"
	case RedeemerReward:
		return "reward"
	case RedeemerVoting:
		return "voting"
	case RedeemerProposing:
		return "proposing"
	default:
		return fmt.Sprintf("tag(%d)", uint64(t))
	}
}

type exUnits struct {
	_     struct{} `cbor:",toarray"`
	Mem   uint64
	Steps uint64
}

type redeemerWire struct {
	_       struct{} `cbor:",toarray"`
	Tag     RedeemerTag
	Index   uint64
	Data    apolloCbor.RawMessage
	ExUnits exUnits
}

// Redeemer is a decoded redeemer as returned in Outcome.Redeemer.
type Redeemer struct {
	Tag   RedeemerTag
	Index uint64
	Data  []byte // Plutus data CBOR
	Mem   uint64
	Steps uint64
}

func DecodeRedeemer(b []byte) (Redeemer, error) {
	var w redeemerWire
	if err := apolloCbor.Unmarshal(b, &w); err != nil {
		return Redeemer{}, errors.Wrap(err, "decode redeemer")
	}
	return Redeemer{
		Tag:   w.Tag,
		Index: w.Index,
		Data:  append([]byte(nil), w.Data...),
		Mem:   w.ExUnits.Mem,
		Steps: w.ExUnits.Steps,
	}, nil
}

func (r Redeemer) Encode() ([]byte, error) {
	data := r.Data
	if len(data) == 0 {
		return nil, errors.New("redeemer has no data")
	}
	return apolloCbor.Marshal(redeemerWire{
		Tag:     r.Tag,
		Index:   r.Index,
		Data:    apolloCbor.RawMessage(data),
		ExUnits: exUnits{Mem: r.Mem, Steps: r.Steps},
	})
}

// DecodeRedeemer decodes the outcome's redeemer bytes.
func (o Outcome) DecodeRedeemer() (Redeemer, error) {
	return DecodeRedeemer(o.Redeemer)
}

// ScaleExUnits multiplies the execution units of an encoded redeemer by the
// given factors, rounding to the nearest unit. Results saturate at
// math.MaxUint64.
func ScaleExUnits(redeemer []byte, stepsFactor, memFactor float64) ([]byte, error) {
	for _, f := range []float64{stepsFactor, memFactor} {
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			return nil, errors.Errorf("invalid execution units factor %v", f)
		}
	}
	r, err := DecodeRedeemer(redeemer)
	if err != nil {
		return nil, err
	}
	r.Steps = scaleUnits(r.Steps, stepsFactor)
	r.Mem = scaleUnits(r.Mem, memFactor)
	return r.Encode()
}

func scaleUnits(units uint64, factor float64) uint64 {
	scaled := math.Round(float64(units) * factor)
	// float64(math.MaxUint64) rounds up to 2^64.
	if scaled >= float64(math.MaxUint64) {
		return math.MaxUint64
	}
	return uint64(scaled)
}
