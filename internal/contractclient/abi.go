// Package contractclient is an ABI-aware, read-only contract caller and
// event decoder. Grounded on the teacher's pkg/contractclient (exercised by
// pkg/contractclient/contractclient_test.go, which loads a Hardhat artifact
// ABI and calls a view function through NewContractClient) — adapted to
// drop every transaction-sending path (approve/swap/mint/stake), since this
// engine never signs or broadcasts a transaction (spec §1 non-goals).
package contractclient

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// hardhatArtifact is the subset of a Hardhat compilation artifact this
// engine needs: the ABI array.
type hardhatArtifact struct {
	ABI json.RawMessage `json:"abi"`
}

// LoadABI parses a plain ABI JSON file (an array of ABI entries).
func LoadABI(path string) (abi.ABI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to read ABI file %s: %w", path, err)
	}
	parsed, err := abi.JSON(strings.NewReader(string(data)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI %s: %w", path, err)
	}
	return parsed, nil
}

// LoadABIFromHardhatArtifact parses a full Hardhat artifact JSON (which
// wraps the ABI under an "abi" key alongside bytecode and source metadata)
// and extracts just the ABI.
func LoadABIFromHardhatArtifact(path string) (abi.ABI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}
	var artifact hardhatArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse artifact %s: %w", path, err)
	}
	parsed, err := abi.JSON(strings.NewReader(string(artifact.ABI)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse embedded ABI in %s: %w", path, err)
	}
	return parsed, nil
}

// Hex2Bytes strips an optional "0x" prefix and decodes the remaining hex.
func Hex2Bytes(s string) []byte {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}
