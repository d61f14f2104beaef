package indexers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/hedgeledger/core/internal/contractclient"
)

var errUnknownEvent = errors.New("unknown event")

const stakingABIJSON = `[
	{"type":"event","name":"Deposit","anonymous":false,"inputs":[
		{"name":"user","type":"address","indexed":true},
		{"name":"pid","type":"uint256","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"Withdraw","anonymous":false,"inputs":[
		{"name":"user","type":"address","indexed":true},
		{"name":"pid","type":"uint256","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"RewardCollected","anonymous":false,"inputs":[
		{"name":"user","type":"address","indexed":true},
		{"name":"rewardToken","type":"address","indexed":false},
		{"name":"amount","type":"uint256","indexed":false}
	]}
]`

const pairABIJSON = `[
	{"type":"event","name":"Swap","anonymous":false,"inputs":[
		{"name":"sender","type":"address","indexed":true},
		{"name":"amount0In","type":"uint256","indexed":false},
		{"name":"amount1In","type":"uint256","indexed":false},
		{"name":"amount0Out","type":"uint256","indexed":false},
		{"name":"amount1Out","type":"uint256","indexed":false},
		{"name":"to","type":"address","indexed":true}
	]}
]`

const bridgeABIJSON = `[
	{"type":"event","name":"BridgeOut","anonymous":false,"inputs":[
		{"name":"wallet","type":"address","indexed":true},
		{"name":"bridgeType","type":"uint8","indexed":false},
		{"name":"token","type":"address","indexed":false},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"assetId","type":"uint256","indexed":false},
		{"name":"dstChainId","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"BridgeIn","anonymous":false,"inputs":[
		{"name":"wallet","type":"address","indexed":true},
		{"name":"bridgeType","type":"uint8","indexed":false},
		{"name":"token","type":"address","indexed":false},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"assetId","type":"uint256","indexed":false},
		{"name":"srcChainId","type":"uint256","indexed":false}
	]}
]`

const huntABIJSON = `[
	{"type":"event","name":"HuntDrop","anonymous":false,"inputs":[
		{"name":"wallet","type":"address","indexed":true},
		{"name":"heroId","type":"uint256","indexed":false},
		{"name":"partyLuck","type":"uint256","indexed":false},
		{"name":"droppedItem","type":"address","indexed":false},
		{"name":"droppedAmount","type":"uint256","indexed":false}
	]}
]`

const arenaABIJSON = `[
	{"type":"event","name":"TournamentStarted","anonymous":false,"inputs":[
		{"name":"tournamentId","type":"uint256","indexed":true}
	]},
	{"type":"event","name":"TournamentEntry","anonymous":false,"inputs":[
		{"name":"tournamentId","type":"uint256","indexed":true},
		{"name":"heroId","type":"uint256","indexed":true},
		{"name":"statBlock","type":"string","indexed":false}
	]},
	{"type":"event","name":"MatchResolved","anonymous":false,"inputs":[
		{"name":"attackerHero","type":"uint256","indexed":true},
		{"name":"defenderHero","type":"uint256","indexed":false},
		{"name":"winnerHero","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"TournamentPlacement","anonymous":false,"inputs":[
		{"name":"tournamentId","type":"uint256","indexed":true},
		{"name":"heroId","type":"uint256","indexed":true},
		{"name":"wallet","type":"address","indexed":false},
		{"name":"placement","type":"uint256","indexed":false},
		{"name":"rewardCents","type":"uint256","indexed":false}
	]}
]`

const nurseryABIJSON = `[
	{"type":"event","name":"SummonCompleted","anonymous":false,"inputs":[
		{"name":"summonerHero","type":"uint256","indexed":true},
		{"name":"assistantHero","type":"uint256","indexed":true},
		{"name":"owner","type":"address","indexed":false},
		{"name":"cost","type":"uint256","indexed":false},
		{"name":"offspringHero","type":"uint256","indexed":false},
		{"name":"genesSummary","type":"string","indexed":false}
	]}
]`

func mustParseABI(t *testing.T, jsonStr string) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(jsonStr))
	if err != nil {
		t.Fatalf("failed to parse test ABI: %v", err)
	}
	return parsed
}

type fakeContract struct {
	address  common.Address
	contractABI abi.ABI
	callFn   func(ctx context.Context, caller *common.Address, method string, args ...interface{}) ([]interface{}, error)
}

func (f *fakeContract) ContractAddress() common.Address { return f.address }
func (f *fakeContract) Abi() abi.ABI                     { return f.contractABI }

func (f *fakeContract) Call(ctx context.Context, caller *common.Address, method string, args ...interface{}) ([]interface{}, error) {
	if f.callFn != nil {
		return f.callFn(ctx, caller, method, args...)
	}
	return nil, nil
}

func (f *fakeContract) DecodeLog(eventName string, data []byte) ([]interface{}, error) {
	event, ok := f.contractABI.Events[eventName]
	if !ok {
		return nil, errUnknownEvent
	}
	return event.Inputs.NonIndexed().UnpackValues(data)
}

func (f *fakeContract) DecodeTransaction(data []byte) (*contractclient.DecodedTx, error) {
	return nil, nil
}

func (f *fakeContract) TransactionData(ctx context.Context, txHash common.Hash) ([]byte, error) {
	return nil, nil
}
