package phasetwo

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/Salvionied/apollo/serialization"
	"github.com/Salvionied/apollo/serialization/Address"
	"github.com/Salvionied/apollo/serialization/Amount"
	"github.com/Salvionied/apollo/serialization/Asset"
	"github.com/Salvionied/apollo/serialization/AssetName"
	"github.com/Salvionied/apollo/serialization/MultiAsset"
	"github.com/Salvionied/apollo/serialization/PlutusData"
	"github.com/Salvionied/apollo/serialization/Policy"
	"github.com/Salvionied/apollo/serialization/Transaction"
	"github.com/Salvionied/apollo/serialization/TransactionInput"
	"github.com/Salvionied/apollo/serialization/TransactionOutput"
	apolloUTxO "github.com/Salvionied/apollo/serialization/UTxO"
	"github.com/Salvionied/apollo/serialization/Value"
	apolloCbor "github.com/Salvionied/cbor/v2"
	"github.com/pkg/errors"
)

// policyIdHexLen is the length of a hex policy id prefix in an asset unit.
const policyIdHexLen = 56

func GetTxFromBytes(txBytes []byte) (*Transaction.Transaction, error) {
	tx := &Transaction.Transaction{}
	if err := apolloCbor.Unmarshal(txBytes, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func outRefKey(txId []byte, index int) string {
	return fmt.Sprintf("%s#%d", hex.EncodeToString(txId), index)
}

// checkInputsResolved reports the first transaction input that has no UTxO.
func checkInputsResolved(tx *Transaction.Transaction, utxos []apolloUTxO.UTxO) error {
	known := make(map[string]struct{}, len(utxos))
	for _, utxo := range utxos {
		known[outRefKey(utxo.Input.TransactionId, utxo.Input.Index)] = struct{}{}
	}

	for i, input := range tx.TransactionBody.Inputs {
		key := outRefKey(input.TransactionId, input.Index)
		if _, ok := known[key]; !ok {
			be := newError(OpEvalPhaseTwo, KindMissingUTxO, "missing UTxO for input "+key)
			be.Field = fmt.Sprintf("inputs[%d]", i)
			return be
		}
	}
	return nil
}

// utxoPairs serializes the reference and output of every UTxO.
func utxoPairs(utxos []apolloUTxO.UTxO) ([]UTxOPair, error) {
	pairs := make([]UTxOPair, 0, len(utxos))
	for i := range utxos {
		ref, err := apolloCbor.Marshal(utxos[i].Input)
		if err != nil {
			return nil, errors.Wrapf(err, "encode reference of utxo %d", i)
		}
		output, err := apolloCbor.Marshal(&utxos[i].Output)
		if err != nil {
			return nil, errors.Wrapf(err, "encode output of utxo %d", i)
		}
		pairs = append(pairs, UTxOPair{Ref: ref, Output: output})
	}
	return pairs, nil
}

// ParseUTxOsFromJSON parses the UTxOs consumed by inputs from a JSON dump.
// Inputs with no matching output are skipped.
func ParseUTxOsFromJSON(jsonData []byte, inputs []TransactionInput.TransactionInput) ([]apolloUTxO.UTxO, error) {
	var txs []UTxOJSON
	if err := json.Unmarshal(jsonData, &txs); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal JSON")
	}

	outputs := make(map[string]OutputJSON)
	for _, tx := range txs {
		for _, output := range tx.Outputs {
			txHash, err := hex.DecodeString(output.TxHash)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid tx_hash %q", output.TxHash)
			}
			outputs[outRefKey(txHash, output.OutputIndex)] = output
		}
	}

	utxos := make([]apolloUTxO.UTxO, 0, len(inputs))
	for _, input := range inputs {
		output, ok := outputs[outRefKey(input.TransactionId, input.Index)]
		if !ok {
			continue
		}
		utxo, err := convertJSONOutputToUTxO(output, input)
		if err != nil {
			return nil, errors.Wrap(err, "failed to convert output to UTxO")
		}
		utxos = append(utxos, utxo)
	}

	return utxos, nil
}

// convertJSONOutputToUTxO converts a JSON output to an Apollo UTxO
func convertJSONOutputToUTxO(output OutputJSON, input TransactionInput.TransactionInput) (apolloUTxO.UTxO, error) {
	addr, err := Address.DecodeAddress(output.Address)
	if err != nil {
		return apolloUTxO.UTxO{}, errors.Wrap(err, "failed to decode address")
	}

	lovelace, multiAssets, err := parseAmounts(output.Amount)
	if err != nil {
		return apolloUTxO.UTxO{}, err
	}

	var txOut TransactionOutput.TransactionOutput
	if output.InlineDatum != "" {
		txOut, err = createAlonzoOutput(addr, lovelace, multiAssets, output.InlineDatum)
	} else {
		txOut, err = createShelleyOutput(addr, lovelace, multiAssets, output.DataHash)
	}
	if err != nil {
		return apolloUTxO.UTxO{}, err
	}

	return apolloUTxO.UTxO{
		Input:  input,
		Output: txOut,
	}, nil
}

func parseAmounts(amounts []AssetJSON) (int64, MultiAsset.MultiAsset[int64], error) {
	lovelace := int64(0)
	multiAssets := MultiAsset.MultiAsset[int64]{}

	for _, amt := range amounts {
		if amt.Unit == "lovelace" {
			lovelace = amt.Quantity
			continue
		}
		if len(amt.Unit) < policyIdHexLen {
			return 0, nil, fmt.Errorf("invalid asset unit %q", amt.Unit)
		}

		policyId := Policy.PolicyId{Value: amt.Unit[:policyIdHexLen]}
		assetName := *AssetName.NewAssetNameFromHexString(amt.Unit[policyIdHexLen:])

		if _, ok := multiAssets[policyId]; !ok {
			multiAssets[policyId] = Asset.Asset[int64]{}
		}
		multiAssets[policyId][assetName] = amt.Quantity
	}

	return lovelace, multiAssets, nil
}

// createAlonzoOutput creates an output carrying an inline datum.
func createAlonzoOutput(
	addr Address.Address,
	lovelace int64,
	multiAssets MultiAsset.MultiAsset[int64],
	inlineDatumHex string,
) (TransactionOutput.TransactionOutput, error) {
	decoded, err := hex.DecodeString(inlineDatumHex)
	if err != nil {
		return TransactionOutput.TransactionOutput{}, errors.Wrap(err, "failed to decode inline datum")
	}

	var plutusData PlutusData.PlutusData
	if err := apolloCbor.Unmarshal(decoded, &plutusData); err != nil {
		return TransactionOutput.TransactionOutput{}, errors.Wrap(err, "failed to unmarshal plutus data")
	}
	datumOption := PlutusData.DatumOptionInline(&plutusData)

	return TransactionOutput.TransactionOutput{
		IsPostAlonzo: true,
		PostAlonzo: TransactionOutput.TransactionOutputAlonzo{
			Address: addr,
			Amount:  createValue(lovelace, multiAssets).ToAlonzoValue(),
			Datum:   &datumOption,
		},
	}, nil
}

// createShelleyOutput creates an output with an optional datum hash.
func createShelleyOutput(
	addr Address.Address,
	lovelace int64,
	multiAssets MultiAsset.MultiAsset[int64],
	datumHashHex string,
) (TransactionOutput.TransactionOutput, error) {
	datumHash := serialization.DatumHash{}
	if datumHashHex != "" {
		decoded, err := hex.DecodeString(datumHashHex)
		if err != nil {
			return TransactionOutput.TransactionOutput{}, errors.Wrap(err, "failed to decode datum hash")
		}
		datumHash.Payload = decoded
	}

	return TransactionOutput.TransactionOutput{
		IsPostAlonzo: false,
		PreAlonzo: TransactionOutput.TransactionOutputShelley{
			Address:   addr,
			Amount:    createValue(lovelace, multiAssets),
			DatumHash: datumHash,
			HasDatum:  len(datumHash.Payload) > 0,
		},
	}, nil
}

func createValue(lovelace int64, multiAssets MultiAsset.MultiAsset[int64]) Value.Value {
	if len(multiAssets) > 0 {
		return Value.Value{
			Am: Amount.Amount{
				Coin:  lovelace,
				Value: multiAssets,
			},
			HasAssets: true,
		}
	}
	return Value.Value{
		Coin:      lovelace,
		HasAssets: false,
	}
}
