package contractclient

import (
	"context"
	"fmt"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ContractClient reads on-chain state (view-function calls) and decodes the
// contract's own ABI-encoded logs and calldata. Every indexer in
// internal/indexers is handed one ContractClient per contract address.
type ContractClient interface {
	ContractAddress() common.Address
	Abi() abi.ABI
	// Call invokes a view/pure function and returns its ABI-unpacked outputs.
	Call(ctx context.Context, caller *common.Address, method string, args ...interface{}) ([]interface{}, error)
	// DecodeLog unpacks a raw event log's data against the named event.
	DecodeLog(eventName string, data []byte) ([]interface{}, error)
	// DecodeTransaction decodes ABI-encoded calldata (4-byte selector plus
	// packed arguments) into a method name and positional arguments.
	DecodeTransaction(data []byte) (*DecodedTx, error)
	// TransactionData fetches the calldata of a mined transaction by hash.
	TransactionData(ctx context.Context, txHash common.Hash) ([]byte, error)
}

// DecodedTx is the result of decoding ABI-packed calldata.
type DecodedTx struct {
	MethodName string
	Parameter  map[string]interface{}
}

type contractClient struct {
	client  *ethclient.Client
	address common.Address
	abi     abi.ABI
}

// NewContractClient builds a ContractClient bound to one contract address
// and ABI, backed by an *ethclient.Client for on-chain calls.
func NewContractClient(client *ethclient.Client, address common.Address, contractABI abi.ABI) ContractClient {
	return &contractClient{client: client, address: address, abi: contractABI}
}

func (c *contractClient) ContractAddress() common.Address { return c.address }

func (c *contractClient) Abi() abi.ABI { return c.abi }

func (c *contractClient) Call(ctx context.Context, from *common.Address, method string, args ...interface{}) ([]interface{}, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack call to %s: %w", method, err)
	}

	msg := ethereum.CallMsg{To: &c.address, Data: input}
	if from != nil {
		msg.From = *from
	}
	output, err := c.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call to %s reverted: %w", method, err)
	}

	results, err := c.abi.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack result of %s: %w", method, err)
	}
	return results, nil
}

func (c *contractClient) DecodeLog(eventName string, data []byte) ([]interface{}, error) {
	event, ok := c.abi.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("unknown event %s", eventName)
	}
	// Indexed fields live in the log's topics, not its data; only the
	// non-indexed fields are ABI-packed into data.
	return event.Inputs.NonIndexed().UnpackValues(data)
}

func (c *contractClient) DecodeTransaction(data []byte) (*DecodedTx, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("calldata too short to contain a method selector")
	}
	method, err := c.abi.MethodById(data[:4])
	if err != nil {
		return nil, fmt.Errorf("failed to resolve method selector: %w", err)
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("failed to unpack calldata for %s: %w", method.Name, err)
	}
	params := make(map[string]interface{}, len(values))
	for i, input := range method.Inputs {
		if i < len(values) {
			params[input.Name] = values[i]
		}
	}
	return &DecodedTx{MethodName: method.Name, Parameter: params}, nil
}

func (c *contractClient) TransactionData(ctx context.Context, txHash common.Hash) ([]byte, error) {
	tx, _, err := c.client.TransactionByHash(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction %s: %w", txHash.Hex(), err)
	}
	return tx.Data(), nil
}

