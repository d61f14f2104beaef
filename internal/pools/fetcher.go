package pools

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/hedgeledger/core/internal/contractclient"
	"github.com/hedgeledger/core/internal/pricegraph"
)

// DirectoryPoolFetcher adapts a Directory's staking-contract pool
// enumeration, plus a live getReserves read per pool's LP token, into the
// pricegraph.PoolFetcher shape (spec §4.C "build a focused or full price
// graph over every discoverable pool"). Grounded on ToPoolDescriptor,
// already defined alongside Directory for exactly this conversion.
type DirectoryPoolFetcher struct {
	directory *Directory
	client    *ethclient.Client
	pairABI   abi.ABI
}

func NewDirectoryPoolFetcher(directory *Directory, client *ethclient.Client, pairABI abi.ABI) *DirectoryPoolFetcher {
	return &DirectoryPoolFetcher{directory: directory, client: client, pairABI: pairABI}
}

// ListAll enumerates every pool the staking contract knows about (spec
// §4.C "full" mode), skipping any pool whose reserves can't currently be
// read rather than failing the whole graph build.
func (f *DirectoryPoolFetcher) ListAll(ctx context.Context) ([]pricegraph.PoolDescriptor, error) {
	count, err := f.directory.PoolCount(ctx)
	if err != nil {
		return nil, err
	}

	descriptors := make([]pricegraph.PoolDescriptor, 0, count)
	for pid := int64(0); pid < count; pid++ {
		d, err := f.describe(ctx, pid)
		if err != nil {
			continue
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

// ListFocused narrows ListAll to pools touching any of addresses (spec
// §4.C "focused" mode).
func (f *DirectoryPoolFetcher) ListFocused(ctx context.Context, addresses []string) ([]pricegraph.PoolDescriptor, error) {
	focus := make(map[string]bool, len(addresses))
	for _, a := range addresses {
		focus[strings.ToLower(a)] = true
	}

	all, err := f.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]pricegraph.PoolDescriptor, 0, len(all))
	for _, d := range all {
		if focus[strings.ToLower(d.Token0)] || focus[strings.ToLower(d.Token1)] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *DirectoryPoolFetcher) describe(ctx context.Context, pid int64) (pricegraph.PoolDescriptor, error) {
	m, err := f.directory.Metadata(ctx, pid)
	if err != nil {
		return pricegraph.PoolDescriptor{}, err
	}

	pair := contractclient.NewContractClient(f.client, m.LpToken, f.pairABI)
	out, err := pair.Call(ctx, nil, "getReserves")
	if err != nil {
		return pricegraph.PoolDescriptor{}, fmt.Errorf("failed to read reserves for pool %d: %w", pid, err)
	}
	if len(out) < 2 {
		return pricegraph.PoolDescriptor{}, fmt.Errorf("getReserves(%d) returned %d values", pid, len(out))
	}
	reserve0, ok0 := out[0].(*big.Int)
	reserve1, ok1 := out[1].(*big.Int)
	if !ok0 || !ok1 {
		return pricegraph.PoolDescriptor{}, fmt.Errorf("getReserves(%d) returned unexpected types", pid)
	}

	return ToPoolDescriptor(m, Reserves{Reserve0: reserve0, Reserve1: reserve1}), nil
}
