// Package pricegraph builds a BFS-propagated USD price for every token
// reachable from a stablecoin anchor through non-empty LP reserve edges
// (spec §4.C). Grounded on the teacher's AMMState/decimal-normalization
// helpers (internal/util, pkg/util), generalized from a single-pool
// concentrated-liquidity read into a graph over many constant-product
// pools, using internal/ammmath for the per-edge rate arithmetic.
package pricegraph

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hedgeledger/core/internal/ammmath"
	"github.com/hedgeledger/core/internal/applog"
)

// fullModeConcurrency bounds the goroutines of hydrateAndBuild's per-pool
// pass in "full" mode. That pass issues no RPC of its own; the reserve
// reads happen inside the fetcher's ListAll, which for
// pools.DirectoryPoolFetcher reads one pool at a time.
const fullModeConcurrency = 6

// PoolDescriptor is one LP pool's address, token pair, reserves and
// decimals, as required to add an edge to the graph.
type PoolDescriptor struct {
	Address   string
	Token0    string
	Token1    string
	Reserve0  *big.Int
	Reserve1  *big.Int
	Decimals0 uint8
	Decimals1 uint8
}

// PriorityPair pins a direct anchor-adjacent edge for a key token so BFS
// prefers it over a longer propagation path (spec §4.C).
type PriorityPair struct {
	Token string
	Pool  string
}

// edge is one directed hop: token -> neighbor at the given rate.
type edge struct {
	neighbor string
	rate     *big.Float
}

// Graph is an adjacency list over normalized (lowercased) token addresses.
type Graph struct {
	adjacency map[string][]edge
}

// PoolFetcher retrieves pool descriptors. ListFocused returns only the
// pools relevant to a supplied set of addresses; ListAll enumerates every
// factory pair and is expected to be slow.
type PoolFetcher interface {
	ListFocused(ctx context.Context, addresses []string) ([]PoolDescriptor, error)
	ListAll(ctx context.Context) ([]PoolDescriptor, error)
}

// Build constructs a Graph from pools, applying priorityPairs at the front
// of each adjacency list (spec §4.C).
func Build(pools []PoolDescriptor, priorityPairs []PriorityPair) *Graph {
	g := &Graph{adjacency: make(map[string][]edge)}

	priority := make(map[string]bool, len(priorityPairs))
	for _, pp := range priorityPairs {
		priority[normalize(pp.Pool)] = true
	}

	var priorityPools, regularPools []PoolDescriptor
	for _, p := range pools {
		if priority[normalize(p.Address)] {
			priorityPools = append(priorityPools, p)
		} else {
			regularPools = append(regularPools, p)
		}
	}

	for _, p := range priorityPools {
		g.addPool(p)
	}
	for _, p := range regularPools {
		g.addPool(p)
	}
	return g
}

func (g *Graph) addPool(p PoolDescriptor) {
	if !ammmath.HasLiquidity(p.Reserve0, p.Reserve1) {
		return
	}
	// ammmath.PairRate(A, B) returns normalized(B)/normalized(A), i.e. the
	// rate to go FROM B TO A. Spec §4.C's rateAB = reserveA/reserveB is the
	// rate to go FROM A TO B, so the t0->t1 edge needs PairRate(Reserve1,
	// Reserve0) and the t1->t0 edge needs PairRate(Reserve0, Reserve1).
	rateT0ToT1, ok1 := ammmath.PairRate(p.Reserve1, p.Reserve0, p.Decimals1, p.Decimals0)
	rateT1ToT0, ok2 := ammmath.PairRate(p.Reserve0, p.Reserve1, p.Decimals0, p.Decimals1)
	if !ok1 || !ok2 {
		return
	}

	t0, t1 := normalize(p.Token0), normalize(p.Token1)
	g.adjacency[t0] = append(g.adjacency[t0], edge{neighbor: t1, rate: rateT0ToT1})
	g.adjacency[t1] = append(g.adjacency[t1], edge{neighbor: t0, rate: rateT1ToT0})
}

// Propagate runs BFS from anchor (price 1.0), returning a map of every
// reached token to its USD price. Tokens not in the result are explicitly
// unpriced (spec §4.C, §7 price-unknown).
func (g *Graph) Propagate(anchor string) map[string]*big.Float {
	log := applog.For("pricegraph")
	anchor = normalize(anchor)

	prices := map[string]*big.Float{anchor: big.NewFloat(1.0)}
	queue := []string{anchor}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, e := range g.adjacency[current] {
			if _, visited := prices[e.neighbor]; visited {
				continue
			}
			price := new(big.Float).Mul(prices[current], e.rate)
			prices[e.neighbor] = price
			queue = append(queue, e.neighbor)
		}
	}

	log.WithField("reached", len(prices)).Info("price graph propagation complete")
	return prices
}

// BuildFocused implements the "focused" flavor: fetch only pools relevant
// to tokens, build a graph, and BFS from anchor.
func BuildFocused(ctx context.Context, fetcher PoolFetcher, tokens []string, anchor string, priorityPairs []PriorityPair) (map[string]*big.Float, error) {
	pools, err := fetcher.ListFocused(ctx, tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to list focused pools: %w", err)
	}
	return Build(pools, priorityPairs).Propagate(anchor), nil
}

// BuildFull implements the "full" flavor: enumerate every pool through
// fetcher.ListAll (reserves as ListAll returns them), then BFS from
// anchor. Slower
// than BuildFocused; intended for periodic full refreshes, not per-request
// use (spec §4.C).
func BuildFull(ctx context.Context, fetcher PoolFetcher, anchor string, priorityPairs []PriorityPair) (map[string]*big.Float, error) {
	pools, err := fetcher.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list all pools: %w", err)
	}

	// ListAll is expected to batch its own reserve reads internally; the
	// bounded-concurrency guard here exists for fetchers that return
	// descriptors lazily and need their reserves hydrated per-pool.
	g, err := hydrateAndBuild(ctx, pools, priorityPairs)
	if err != nil {
		return nil, err
	}
	return g.Propagate(anchor), nil
}

// hydrateAndBuild is a no-op hydration pass today (ListAll already returns
// fully-populated descriptors) but keeps the bounded-concurrency seam used
// by fetchers that need a secondary per-pool RPC round trip.
func hydrateAndBuild(ctx context.Context, pools []PoolDescriptor, priorityPairs []PriorityPair) (*Graph, error) {
	sem := make(chan struct{}, fullModeConcurrency)
	g, groupCtx := errgroup.WithContext(ctx)
	results := make([]PoolDescriptor, len(pools))

	for i, p := range pools {
		i, p := i, p
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-groupCtx.Done():
				return groupCtx.Err()
			}
			defer func() { <-sem }()
			results[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to hydrate pool set: %w", err)
	}

	return Build(results, priorityPairs), nil
}

func normalize(addr string) string {
	return strings.ToLower(addr)
}
