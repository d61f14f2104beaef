package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSqliteMigratesEverySchema(t *testing.T) {
	db, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	for _, model := range allModels {
		assert.True(t, db.Migrator().HasTable(model), "expected table for %T to exist", model)
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open("postgres", "whatever")
	assert.Error(t, err)
}

func TestCheckpointUniqueName(t *testing.T) {
	db, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	cp := IndexerCheckpoint{Name: "swap-indexer-pid7", Kind: "swap", GenesisBlock: 0, LastIndexedBlock: 0}
	require.NoError(t, db.Create(&cp).Error)

	dup := IndexerCheckpoint{Name: "swap-indexer-pid7", Kind: "swap"}
	err = db.Create(&dup).Error
	assert.Error(t, err, "expected a uniqueness conflict on duplicate checkpoint name")
}

func TestSwapEventUniqueTxLogIndex(t *testing.T) {
	db, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	ev := SwapEvent{ChainID: 53935, Pid: 7, BlockNumber: 100, TxHash: "0xabc", LogIndex: 2, Timestamp: time.Now()}
	require.NoError(t, db.Create(&ev).Error)

	dup := SwapEvent{ChainID: 53935, Pid: 7, BlockNumber: 100, TxHash: "0xabc", LogIndex: 2, Timestamp: time.Now()}
	err = db.Create(&dup).Error
	assert.Error(t, err, "expected a uniqueness conflict on duplicate (txHash, logIndex)")
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "ingestion_state", IndexerCheckpoint{}.TableName())
	assert.Equal(t, "pool_swap_events", SwapEvent{}.TableName())
	assert.Equal(t, "pool_reward_events", RewardEvent{}.TableName())
	assert.Equal(t, "pool_daily_aggregates", PoolDailyAggregate{}.TableName())
	assert.Equal(t, "deposit_requests", DepositRequest{}.TableName())
	assert.Equal(t, "summon_conversion_metrics", SummonConversionMetrics{}.TableName())
}
