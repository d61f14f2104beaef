package indexers

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// topic0 returns a log's event-signature topic, or the zero hash if the
// log is anonymous (has no topics).
func topic0(l types.Log) common.Hash {
	if len(l.Topics) == 0 {
		return common.Hash{}
	}
	return l.Topics[0]
}

// eventNameForTopic resolves a log's topic0 to its declared event name in
// contractABI, so a decoder can pick the right DecodeLog(eventName, ...)
// call for an arbitrary log pulled from a multi-event filter.
func eventNameForTopic(contractABI abi.ABI, topic common.Hash) (string, bool) {
	for name, event := range contractABI.Events {
		if event.ID == topic {
			return name, true
		}
	}
	return "", false
}
