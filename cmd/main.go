// Command hedgeledger starts the indexer fleet and the read-side HTTP
// facade (spec §4.L, §6). Grounded on the teacher's cmd/main.go (load
// config, dial the chain, wire one listener, run to completion),
// generalized from a single strategy loop into a multi-chain,
// multi-domain fleet supervised by internal/scheduler.
package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/hedgeledger/core/internal/aggregate"
	"github.com/hedgeledger/core/internal/analytics"
	"github.com/hedgeledger/core/internal/applog"
	"github.com/hedgeledger/core/internal/chainclient"
	"github.com/hedgeledger/core/internal/checkpoint"
	"github.com/hedgeledger/core/internal/config"
	"github.com/hedgeledger/core/internal/contractclient"
	"github.com/hedgeledger/core/internal/deposits"
	"github.com/hedgeledger/core/internal/httpapi"
	"github.com/hedgeledger/core/internal/indexers"
	"github.com/hedgeledger/core/internal/players"
	"github.com/hedgeledger/core/internal/pools"
	"github.com/hedgeledger/core/internal/pricegraph"
	"github.com/hedgeledger/core/internal/scheduler"
	"github.com/hedgeledger/core/internal/store"
)

const (
	configPathEnv     = "CONFIG_PATH"
	defaultConfigPath = "configs/config.yml"
)

func main() {
	_ = godotenv.Load()
	log := applog.For("main")

	env := config.LoadEnv()
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	db, err := store.Open(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}

	cpStore := checkpoint.New(db)
	playerStore := players.New(db)
	reconciler := deposits.New(db, cfg.StablecoinAddr)
	garden := deposits.NewGardenFlow(db, cfg.StablecoinAddr)

	if len(cfg.Chains) == 0 {
		log.Fatal("no chains configured")
	}

	var sup scheduler.Supervisor
	var primaryDirectory *pools.Directory
	var primaryFetcher pricegraph.PoolFetcher
	var primaryRewards analytics.RewardReader
	var primaryScanner analytics.LiveVolumeScanner

	for _, chainCfg := range cfg.Chains {
		contracts, ok := cfg.Contracts[chainCfg.ChainID]
		if !ok {
			log.WithField("chain", chainCfg.Name).Warn("no contract set configured, skipping chain")
			continue
		}

		directory, fetcher, rewards, scanner := wireChain(&sup, db, cpStore, chainCfg, contracts, cfg.StablecoinAddr, toPriorityPairs(cfg.PriorityPairs), log)
		if primaryDirectory == nil && directory != nil {
			primaryDirectory = directory
			primaryFetcher = fetcher
			primaryRewards = rewards
			primaryScanner = scanner
		}
	}

	if primaryDirectory == nil {
		log.Fatal("no chain produced a staking directory; the analytics API requires one")
	}

	sup.Periodics = append(sup.Periodics, scheduler.PeriodicJob{
		Name:     "deposit-sweep",
		Interval: time.Minute,
		Task: func(ctx context.Context) error {
			_, err := reconciler.SweepExpired(time.Now().UTC())
			return err
		},
	})
	sup.Periodics = append(sup.Periodics, scheduler.PeriodicJob{
		Name:     "garden-sweep",
		Interval: time.Minute,
		Task: func(ctx context.Context) error {
			_, err := garden.SweepExpired(time.Now().UTC())
			return err
		},
	})

	analyticsAPI := analytics.New(db, primaryDirectory, primaryFetcher, primaryRewards, primaryScanner, cfg.StablecoinAddr, toPriorityPairs(cfg.PriorityPairs))

	sup.Periodics = append(sup.Periodics, scheduler.PeriodicJob{
		Name:     "pool-analytics-warm",
		Interval: 5 * time.Minute,
		Task: func(ctx context.Context) error {
			_, err := analyticsAPI.GetAllPoolAnalytics(ctx, time.Now().Add(90*time.Second))
			return err
		},
	})

	server := httpapi.NewServer(db, analyticsAPI, playerStore, reconciler, garden, cpStore, primaryDirectory, env, cfg.RateLimit)

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("http facade listening")
		if err := http.ListenAndServe(cfg.HTTPAddr, server.Router()); err != nil {
			log.WithError(err).Fatal("http server exited")
		}
	}()

	scheduler.RunUntilSignal(&sup, 30*time.Second)
}

func resolveConfigPath() string {
	if p := os.Getenv(configPathEnv); p != "" {
		return p
	}
	return defaultConfigPath
}

// wireChain dials chainCfg's RPC, builds every indexer its contract set
// names, and registers a scheduler.IndexerJob per indexer plus any
// chain-scoped periodic jobs. It returns the chain's pool directory,
// price-graph fetcher and reward reader so the caller can designate one
// chain as the analytics API's primary source (spec §4.G's read path
// assumes a single economy-of-record chain; see DESIGN.md).
func wireChain(
	sup *scheduler.Supervisor,
	db *store.DB,
	cpStore *checkpoint.Store,
	chainCfg config.ChainEndpoint,
	contracts config.ContractSet,
	anchor string,
	priority []pricegraph.PriorityPair,
	log *logrus.Entry,
) (*pools.Directory, pricegraph.PoolFetcher, analytics.RewardReader, analytics.LiveVolumeScanner) {
	clog := log.WithField("chain", chainCfg.Name)

	rpc, err := ethclient.Dial(chainCfg.RPCURL)
	if err != nil {
		clog.WithError(err).Fatal("failed to dial chain RPC")
	}
	chain := chainclient.New(rpc, chainclient.WithChunkSize(chainCfg.ChunkSize))

	blockTS := func(ctx context.Context, blockNumber uint64) (time.Time, error) {
		header, err := chain.Block(ctx, blockNumber)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(int64(header.Time), 0).UTC(), nil
	}

	var directory *pools.Directory
	var fetcher pricegraph.PoolFetcher
	var rewards analytics.RewardReader
	var scanner analytics.LiveVolumeScanner

	if contracts.StakingAddr != "" {
		stakingABI, err := contractclient.LoadABI(contracts.StakingABI)
		if err != nil {
			clog.WithError(err).Fatal("failed to load staking ABI")
		}
		staking := contractclient.NewContractClient(rpc, common.HexToAddress(contracts.StakingAddr), stakingABI)
		directory = pools.New(staking)
		rewards = stakingRewardReader{staking: staking}

		stakeIdx := indexers.NewStakeIndexer(db, staking, chainCfg.ChainID)
		addWorker(sup, cpStore, chainCfg, "stake", nil, contracts.GenesisBlock, chain,
			stakeIdx.FilterBuilder, stakeIdx.Process)

		if contracts.PairAddr != "" {
			pairABI, err := contractclient.LoadABI(contracts.PairABI)
			if err != nil {
				clog.WithError(err).Fatal("failed to load pair ABI")
			}
			fetcher = pools.NewDirectoryPoolFetcher(directory, rpc, pairABI)
			scanner = analytics.NewChainScanner(chain, pairABI)

			count, err := directory.PoolCount(context.Background())
			if err != nil {
				clog.WithError(err).Warn("failed to read pool count, per-pool indexers not started")
				count = 0
			}

			var aggPools []aggregatedPool
			for pid := int64(0); pid < count; pid++ {
				meta, err := directory.Metadata(context.Background(), pid)
				if err != nil {
					continue
				}
				pair := contractclient.NewContractClient(rpc, meta.LpToken, pairABI)

				swapIdx := indexers.NewSwapIndexer(db, pair, chainCfg.ChainID, pid, blockTS)
				addWorker(sup, cpStore, chainCfg, "swap", &pid, contracts.GenesisBlock, chain,
					swapIdx.FilterBuilder, swapIdx.Process)

				rewardIdx := indexers.NewRewardIndexer(db, staking, chainCfg.ChainID, pid, blockTS)
				addWorker(sup, cpStore, chainCfg, "reward", &pid, contracts.GenesisBlock, chain,
					rewardIdx.FilterBuilder, rewardIdx.Process)

				aggPools = append(aggPools, aggregatedPool{pid: pid, meta: meta, pair: pair})
			}

			if len(aggPools) > 0 {
				stakingAddr := common.HexToAddress(contracts.StakingAddr)
				aggregator := aggregate.New(db, livePriceLookup(fetcher, anchor, priority), aggregate.DefaultCutoffPolicy())
				sup.Periodics = append(sup.Periodics, scheduler.PeriodicJob{
					Name:     fmt.Sprintf("%s-aggregate-daily", chainCfg.Name),
					Interval: 24 * time.Hour,
					Task: func(ctx context.Context) error {
						return runDailyAggregates(ctx, aggregator, chainCfg.ChainID, stakingAddr, aggPools)
					},
				})
			}
		}
	}

	if contracts.BridgeAddr != "" {
		bridgeABI, err := contractclient.LoadABI(contracts.BridgeABI)
		if err != nil {
			clog.WithError(err).Fatal("failed to load bridge ABI")
		}
		bridge := contractclient.NewContractClient(rpc, common.HexToAddress(contracts.BridgeAddr), bridgeABI)
		bridgeIdx := indexers.NewBridgeIndexer(db, bridge, chainCfg.ChainID, unresolvedPriceResolver{}, blockTS)
		addWorker(sup, cpStore, chainCfg, "bridge", nil, contracts.GenesisBlock, chain,
			bridgeIdx.FilterBuilder, bridgeIdx.Process)
	}

	if contracts.HuntingAddr != "" {
		huntingABI, err := contractclient.LoadABI(contracts.HuntingABI)
		if err != nil {
			clog.WithError(err).Fatal("failed to load hunting ABI")
		}
		hunting := contractclient.NewContractClient(rpc, common.HexToAddress(contracts.HuntingAddr), huntingABI)
		huntIdx := indexers.NewHuntIndexer(db, hunting, chainCfg.ChainID, blockTS)
		addWorker(sup, cpStore, chainCfg, "hunt", nil, contracts.GenesisBlock, chain,
			huntIdx.FilterBuilder, huntIdx.Process)
	}

	if contracts.ArenaAddr != "" {
		arenaABI, err := contractclient.LoadABI(contracts.ArenaABI)
		if err != nil {
			clog.WithError(err).Fatal("failed to load arena ABI")
		}
		arena := contractclient.NewContractClient(rpc, common.HexToAddress(contracts.ArenaAddr), arenaABI)
		arenaIdx := indexers.NewTournamentIndexer(db, arena, chainCfg.ChainID)
		addWorker(sup, cpStore, chainCfg, "tournament", nil, contracts.GenesisBlock, chain,
			arenaIdx.FilterBuilder, arenaIdx.Process)
	}

	if contracts.MarketAddr != "" {
		marketABI, err := contractclient.LoadABI(contracts.MarketABI)
		if err != nil {
			clog.WithError(err).Fatal("failed to load marketplace ABI")
		}
		market := contractclient.NewContractClient(rpc, common.HexToAddress(contracts.MarketAddr), marketABI)
		snapshotter := indexers.NewTavernSnapshotter(db, marketListingFetcher{market: market})

		sup.Periodics = append(sup.Periodics, scheduler.PeriodicJob{
			Name:     fmt.Sprintf("%s-tavern-snapshot", chainCfg.Name),
			Interval: time.Hour,
			Task: func(ctx context.Context) error {
				return snapshotter.Snapshot(ctx, time.Now().UTC())
			},
		})
	}

	if contracts.NurseryAddr != "" {
		nurseryABI, err := contractclient.LoadABI(contracts.NurseryABI)
		if err != nil {
			clog.WithError(err).Fatal("failed to load nursery ABI")
		}
		nursery := contractclient.NewContractClient(rpc, common.HexToAddress(contracts.NurseryAddr), nurseryABI)
		summonIdx := indexers.NewSummonIndexer(db, nursery, chainCfg.ChainID, blockTS)
		addWorker(sup, cpStore, chainCfg, "summon", nil, contracts.GenesisBlock, chain,
			summonIdx.FilterBuilder, summonIdx.Process)

		sup.Periodics = append(sup.Periodics, scheduler.PeriodicJob{
			Name:     fmt.Sprintf("%s-summon-conversion", chainCfg.Name),
			Interval: 24 * time.Hour,
			Task: func(ctx context.Context) error {
				return indexers.RunDailyConversion(db, time.Now().UTC().Add(-24*time.Hour))
			},
		})
	}

	return directory, fetcher, rewards, scanner
}

// aggregatedPool carries the per-pool handles the daily aggregator needs
// to build a PoolSnapshot without re-deriving them on every run.
type aggregatedPool struct {
	pid  int64
	meta pools.Metadata
	pair contractclient.ContractClient
}

// livePriceLookup adapts the live price graph to aggregate.PriceLookup.
// No historical-price-by-day feed is wired for this deployment, so the
// `day` argument is ignored and today's live-propagated price stands in
// for it; a miss still means "unpriced" and is excluded from the sum
// (spec §7), same as unresolvedPriceResolver does for the bridge indexer.
// See DESIGN.md for the open-question resolution.
func livePriceLookup(fetcher pricegraph.PoolFetcher, anchor string, priority []pricegraph.PriorityPair) aggregate.PriceLookup {
	return func(token string, day time.Time) (*big.Float, bool) {
		prices, err := pricegraph.BuildFocused(context.Background(), fetcher, []string{token}, anchor, priority)
		if err != nil {
			return nil, false
		}
		p, ok := prices[strings.ToLower(token)]
		return p, ok
	}
}

// runDailyAggregates computes yesterday's PoolDailyAggregate row for every
// pool in pools, reading each pool's day-end staked/reserve snapshot live
// off the chain (spec §4.F). A single pool's read failure is logged and
// skipped rather than aborting the whole run.
func runDailyAggregates(ctx context.Context, aggregator *aggregate.Aggregator, chainID int64, stakingAddr common.Address, poolList []aggregatedPool) error {
	log := applog.For("main")
	day := time.Now().UTC().Add(-24 * time.Hour)

	for _, p := range poolList {
		snapshot, err := buildPoolSnapshot(ctx, p, stakingAddr)
		if err != nil {
			log.WithError(err).WithField("pid", p.pid).Warn("failed to build pool snapshot, skipping daily aggregate")
			continue
		}
		if err := aggregator.RunDay(chainID, p.pid, day, snapshot); err != nil {
			log.WithError(err).WithField("pid", p.pid).Warn("failed to run daily aggregate")
		}
	}
	return nil
}

// buildPoolSnapshot reads a pool's day-end TVL inputs straight off its LP
// token, which is itself the ERC20 the staking contract holds a balance
// of (Uniswap-V2-style pair contracts are their own LP token). There is
// no V1-legacy staking contract in this deployment's contract set, so
// V1Legacy is always zero; see DESIGN.md.
func buildPoolSnapshot(ctx context.Context, p aggregatedPool, stakingAddr common.Address) (aggregate.PoolSnapshot, error) {
	reservesOut, err := p.pair.Call(ctx, nil, "getReserves")
	if err != nil || len(reservesOut) < 2 {
		return aggregate.PoolSnapshot{}, fmt.Errorf("failed to read reserves for pool %d: %w", p.pid, err)
	}
	reserve0, ok0 := reservesOut[0].(*big.Int)
	reserve1, ok1 := reservesOut[1].(*big.Int)
	if !ok0 || !ok1 {
		return aggregate.PoolSnapshot{}, fmt.Errorf("pool %d getReserves returned unexpected types", p.pid)
	}

	supplyOut, err := p.pair.Call(ctx, nil, "totalSupply")
	if err != nil || len(supplyOut) == 0 {
		return aggregate.PoolSnapshot{}, fmt.Errorf("failed to read LP total supply for pool %d: %w", p.pid, err)
	}
	totalSupply, ok := supplyOut[0].(*big.Int)
	if !ok {
		return aggregate.PoolSnapshot{}, fmt.Errorf("pool %d totalSupply returned unexpected type", p.pid)
	}

	stakedOut, err := p.pair.Call(ctx, nil, "balanceOf", stakingAddr)
	if err != nil || len(stakedOut) == 0 {
		return aggregate.PoolSnapshot{}, fmt.Errorf("failed to read staked LP balance for pool %d: %w", p.pid, err)
	}
	staked, ok := stakedOut[0].(*big.Int)
	if !ok {
		return aggregate.PoolSnapshot{}, fmt.Errorf("pool %d staked balanceOf returned unexpected type", p.pid)
	}

	return aggregate.PoolSnapshot{
		Pid:           p.pid,
		Token0:        p.meta.Token0.Hex(),
		Token1:        p.meta.Token1.Hex(),
		Decimals0:     p.meta.Decimals0,
		Decimals1:     p.meta.Decimals1,
		TotalStakedV2: staked,
		V1Legacy:      big.NewInt(0),
		LpReserve0:    reserve0,
		LpReserve1:    reserve1,
		LpTotalSupply: totalSupply,
	}, nil
}

// addWorker seeds name's checkpoint from genesisBlock (a no-op if already
// seeded) and registers a log-driven worker with sup.
func addWorker(
	sup *scheduler.Supervisor,
	cpStore *checkpoint.Store,
	chainCfg config.ChainEndpoint,
	kind string,
	pid *int64,
	genesisBlock uint64,
	chain *chainclient.Client,
	filterBuilder func(from, to uint64) ethereum.FilterQuery,
	process func(ctx context.Context, logs []types.Log) error,
) {
	name := fmt.Sprintf("%s-%s", chainCfg.Name, kind)
	if pid != nil {
		name = fmt.Sprintf("%s-%d", name, *pid)
	}
	if _, err := cpStore.Seed(name, kind, pid, 0, nil, genesisBlock); err != nil {
		applog.For("main").WithError(err).WithField("worker", name).Warn("failed to seed checkpoint")
	}

	worker := &indexers.Worker{
		Name:          name,
		Kind:          kind,
		Chain:         chain,
		Checkpoints:   cpStore,
		Confirmations: chainCfg.Confirmations,
		FilterBuilder: filterBuilder,
		Process:       process,
	}
	sup.Indexers = append(sup.Indexers, scheduler.IndexerJob{
		Name:         name,
		Run:          worker.Run,
		IdleBackoff:  5 * time.Second,
		ErrorBackoff: 15 * time.Second,
	})
}

// stakingRewardReader adapts a staking ContractClient's pendingRewards
// view function to analytics.RewardReader.
type stakingRewardReader struct {
	staking contractclient.ContractClient
}

func (r stakingRewardReader) PendingRewards(ctx context.Context, pid int64, wallet string) (*big.Int, error) {
	out, err := r.staking.Call(ctx, nil, "pendingRewards", big.NewInt(pid), common.HexToAddress(wallet))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return big.NewInt(0), nil
	}
	amount, ok := out[0].(*big.Int)
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

// unresolvedPriceResolver is the bridge indexer's price source when no
// concrete historical/live price feed is wired for a deployment; every
// lookup misses, routing the amount into the unpriced-token ledger
// (internal/indexers.BridgeIndexer.recordUnpriced) instead of silently
// recording a zero USD value.
type unresolvedPriceResolver struct{}

func (unresolvedPriceResolver) HistoricalPrice(ctx context.Context, chainID int64, token string, day time.Time) (float64, bool, error) {
	return 0, false, nil
}

func (unresolvedPriceResolver) LivePrice(ctx context.Context, token string) (float64, bool) {
	return 0, false
}

// marketListingFetcher adapts a marketplace ContractClient's view functions
// to indexers.ListingFetcher. getActiveListings returns parallel arrays
// (heroId, owner, listingId, price); getRecentSales returns the listing ids
// resolved by a sale since a given unix timestamp. Both are read-only view
// calls, matching how every other indexer in this fleet only ever observes
// chain state.
type marketListingFetcher struct {
	market contractclient.ContractClient
}

func (f marketListingFetcher) ActiveListings(ctx context.Context) ([]indexers.Listing, error) {
	out, err := f.market.Call(ctx, nil, "getActiveListings")
	if err != nil {
		return nil, err
	}
	if len(out) < 4 {
		return nil, fmt.Errorf("getActiveListings returned %d values, want 4", len(out))
	}
	heroIDs, ok0 := out[0].([]*big.Int)
	owners, ok1 := out[1].([]common.Address)
	listingIDs, ok2 := out[2].([]*big.Int)
	prices, ok3 := out[3].([]*big.Int)
	if !ok0 || !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("getActiveListings returned unexpected types")
	}

	n := len(listingIDs)
	listings := make([]indexers.Listing, 0, n)
	for i := 0; i < n; i++ {
		listings = append(listings, indexers.Listing{
			HeroID:    heroIDs[i].Int64(),
			Owner:     owners[i].Hex(),
			ListingID: listingIDs[i].Int64(),
			Price:     prices[i],
		})
	}
	return listings, nil
}

func (f marketListingFetcher) SoldListingIDs(ctx context.Context, since time.Time) ([]int64, error) {
	out, err := f.market.Call(ctx, nil, "getRecentSales", big.NewInt(since.Unix()))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	raw, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("getRecentSales returned unexpected type")
	}
	ids := make([]int64, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, id.Int64())
	}
	return ids, nil
}

func toPriorityPairs(in []config.PriorityPair) []pricegraph.PriorityPair {
	out := make([]pricegraph.PriorityPair, 0, len(in))
	for _, p := range in {
		out = append(out, pricegraph.PriorityPair{Token: p.Token, Pool: p.Pool})
	}
	return out
}
