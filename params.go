package phasetwo

import (
	"github.com/Salvionied/apollo/serialization/PlutusData"
	apolloCbor "github.com/Salvionied/cbor/v2"
	"github.com/pkg/errors"
)

// EncodeParams encodes script parameters as the CBOR list expected by
// ApplyParamsToScript.
func EncodeParams(params ...PlutusData.PlutusData) ([]byte, error) {
	if params == nil {
		params = []PlutusData.PlutusData{}
	}
	b, err := apolloCbor.Marshal(params)
	if err != nil {
		return nil, errors.Wrap(err, "encode params")
	}
	return b, nil
}

const cborMajorArray = 4

// paramCount returns the number of items in a CBOR list of parameters.
func paramCount(params []byte) (int, error) {
	if len(params) == 0 || params[0]>>5 != cborMajorArray {
		return 0, errors.New("parameters are not a CBOR list")
	}
	var items []apolloCbor.RawMessage
	if err := apolloCbor.Unmarshal(params, &items); err != nil {
		return 0, err
	}
	return len(items), nil
}
