// Package pools discovers a staking contract's pool list and caches its
// metadata in-process (spec §4.D). Metadata is stable modulo contract
// upgrades, so it is cached with a short TTL rather than re-read on every
// request; grounded on the teacher's AMMState snapshot struct (a read
// straight off the pool's view functions) and on the LRU caching already
// present in the pack via AKJUS-bsc-erigon and orbas1-Synnergy.
package pools

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/hedgeledger/core/internal/contractclient"
	"github.com/hedgeledger/core/internal/pricegraph"
)

// defaultTTL matches the "short TTL" the spec calls for without pinning a
// number; staking-contract pool metadata rarely changes mid-session.
const defaultTTL = 2 * time.Minute

// Metadata is one pool's on-chain-derived description.
type Metadata struct {
	Pid           int64
	LpToken       common.Address
	Token0        common.Address
	Token1        common.Address
	Decimals0     uint8
	Decimals1     uint8
	Symbol0       string
	Symbol1       string
	AllocPoint    *big.Int
	TotalStakedV2 *big.Int
}

// Reserves is a pool's current, un-cached LP reserve snapshot.
type Reserves struct {
	Reserve0 *big.Int
	Reserve1 *big.Int
}

// Directory enumerates pools from a staking contract and caches metadata.
type Directory struct {
	staking contractclient.ContractClient
	cache   *lru.LRU[int64, Metadata]
}

// New builds a Directory bound to a staking contract client.
func New(staking contractclient.ContractClient) *Directory {
	return &Directory{
		staking: staking,
		cache:   lru.NewLRU[int64, Metadata](4096, nil, defaultTTL),
	}
}

// PoolCount reads the staking contract's pool-length view function.
func (d *Directory) PoolCount(ctx context.Context) (int64, error) {
	out, err := d.staking.Call(ctx, nil, "poolLength")
	if err != nil {
		return 0, fmt.Errorf("failed to read pool count: %w", err)
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("poolLength returned no values")
	}
	n, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("poolLength returned unexpected type %T", out[0])
	}
	return n.Int64(), nil
}

// Metadata returns pid's cached metadata, fetching and caching it on a
// miss.
func (d *Directory) Metadata(ctx context.Context, pid int64) (Metadata, error) {
	if m, ok := d.cache.Get(pid); ok {
		return m, nil
	}

	out, err := d.staking.Call(ctx, nil, "poolInfo", big.NewInt(pid))
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read poolInfo(%d): %w", pid, err)
	}
	m, err := decodePoolInfo(pid, out)
	if err != nil {
		return Metadata{}, err
	}

	d.cache.Add(pid, m)
	return m, nil
}

// Invalidate drops pid's cached metadata, forcing the next Metadata call to
// re-read the chain (used after an operator-triggered pool-cache refresh).
func (d *Directory) Invalidate(pid int64) {
	d.cache.Remove(pid)
}

// ToPoolDescriptor adapts a Metadata+Reserves pair into the shape
// internal/pricegraph needs to add a graph edge.
func ToPoolDescriptor(m Metadata, r Reserves) pricegraph.PoolDescriptor {
	return pricegraph.PoolDescriptor{
		Address:   m.LpToken.Hex(),
		Token0:    m.Token0.Hex(),
		Token1:    m.Token1.Hex(),
		Reserve0:  r.Reserve0,
		Reserve1:  r.Reserve1,
		Decimals0: m.Decimals0,
		Decimals1: m.Decimals1,
	}
}

func decodePoolInfo(pid int64, out []interface{}) (Metadata, error) {
	if len(out) < 3 {
		return Metadata{}, fmt.Errorf("poolInfo(%d) returned %d values, expected at least 3", pid, len(out))
	}
	lpToken, ok := out[0].(common.Address)
	if !ok {
		return Metadata{}, fmt.Errorf("poolInfo(%d) field 0 has unexpected type %T", pid, out[0])
	}
	allocPoint, ok := out[1].(*big.Int)
	if !ok {
		return Metadata{}, fmt.Errorf("poolInfo(%d) field 1 has unexpected type %T", pid, out[1])
	}
	return Metadata{
		Pid:        pid,
		LpToken:    lpToken,
		AllocPoint: allocPoint,
	}, nil
}
