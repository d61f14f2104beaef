package store

import "time"

// Pool is a staking-contract-managed LP position slot (spec §3, §4.D).
// Created on discovery; AllocPoint/TotalStakedV2 are refreshed per
// analytics request rather than by an indexer.
type Pool struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	ChainID       int64  `gorm:"uniqueIndex:idx_pool_pid;not null"`
	Pid           int64  `gorm:"uniqueIndex:idx_pool_pid;not null"`
	LpToken       string `gorm:"size:42;not null"`
	Token0        string `gorm:"size:42;not null"`
	Token1        string `gorm:"size:42;not null"`
	Decimals0     uint8  `gorm:"not null"`
	Decimals1     uint8  `gorm:"not null"`
	Symbol0       string `gorm:"size:32"`
	Symbol1       string `gorm:"size:32"`
	AllocPoint    string `gorm:"type:varchar(78);not null;default:'0'"` // big.Int as string
	TotalStakedV2 string `gorm:"type:varchar(78);not null;default:'0'"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (Pool) TableName() string { return "pools" }

// StakerPosition is a (wallet,pid) stake balance, last-writer-wins (spec
// §3, §5). Zero-balance rows are retained for history.
type StakerPosition struct {
	ID                  uint   `gorm:"primaryKey;autoIncrement"`
	Wallet              string `gorm:"uniqueIndex:idx_staker_wallet_pid;size:42;not null"`
	Pid                 int64  `gorm:"uniqueIndex:idx_staker_wallet_pid;not null"`
	ChainID             int64  `gorm:"not null"`
	StakedLp            string `gorm:"type:varchar(78);not null;default:'0'"`
	LastActivityType    string `gorm:"size:16"` // deposit,withdraw
	LastActivityBlock   uint64
	LastActivityTxHash  string `gorm:"size:66"`
	UpdatedAt           time.Time
}

func (StakerPosition) TableName() string { return "pool_stakers" }

// PoolStakeEvent is one decoded Deposit/Withdraw log (spec §4.E, §8
// scenario 6). Append-only, unique on (TxHash, LogIndex) — the same
// idempotent-ingest invariant every other raw event table in this
// package enforces.
type PoolStakeEvent struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	ChainID      int64     `gorm:"not null"`
	Pid          int64     `gorm:"index;not null"`
	BlockNumber  uint64    `gorm:"index;not null"`
	TxHash       string    `gorm:"uniqueIndex:idx_stake_tx_log;size:66;not null"`
	LogIndex     uint      `gorm:"uniqueIndex:idx_stake_tx_log;not null"`
	Wallet       string    `gorm:"size:42;index"`
	ActivityType string    `gorm:"size:16;not null"` // deposit,withdraw
	Amount       string    `gorm:"type:varchar(78);not null;default:'0'"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (PoolStakeEvent) TableName() string { return "pool_stake_events" }

// SwapEvent is one decoded Swap log (spec §3, §4.E). Append-only, unique on
// (TxHash, LogIndex).
type SwapEvent struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	ChainID     int64     `gorm:"not null"`
	Pid         int64     `gorm:"index;not null"`
	BlockNumber uint64    `gorm:"index;not null"`
	TxHash      string    `gorm:"uniqueIndex:idx_swap_tx_log;size:66;not null"`
	LogIndex    uint      `gorm:"uniqueIndex:idx_swap_tx_log;not null"`
	Sender      string    `gorm:"size:42"`
	Amount0In   string    `gorm:"type:varchar(78);not null;default:'0'"`
	Amount1In   string    `gorm:"type:varchar(78);not null;default:'0'"`
	Amount0Out  string    `gorm:"type:varchar(78);not null;default:'0'"`
	Amount1Out  string    `gorm:"type:varchar(78);not null;default:'0'"`
	Timestamp   time.Time `gorm:"index;not null"`
}

func (SwapEvent) TableName() string { return "pool_swap_events" }

// RewardEvent is one decoded RewardCollected log (spec §3, §4.E).
// Append-only, unique on (TxHash, LogIndex).
type RewardEvent struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	ChainID     int64     `gorm:"not null"`
	Pid         int64     `gorm:"index;not null"`
	BlockNumber uint64    `gorm:"index;not null"`
	TxHash      string    `gorm:"uniqueIndex:idx_reward_tx_log;size:66;not null"`
	LogIndex    uint      `gorm:"uniqueIndex:idx_reward_tx_log;not null"`
	Wallet      string    `gorm:"size:42;index"`
	RewardToken string    `gorm:"size:42;not null"`
	Amount      string    `gorm:"type:varchar(78);not null;default:'0'"`
	Timestamp   time.Time `gorm:"index;not null"`
}

func (RewardEvent) TableName() string { return "pool_reward_events" }

// PoolDailyAggregate is the daily rollup written once by internal/aggregate
// and read-mostly thereafter (spec §3, §4.F). Unique on (Pid, Date).
type PoolDailyAggregate struct {
	ID               uint      `gorm:"primaryKey;autoIncrement"`
	ChainID          int64     `gorm:"uniqueIndex:idx_daily_pid_date;not null"`
	Pid              int64     `gorm:"uniqueIndex:idx_daily_pid_date;not null"`
	Date             time.Time `gorm:"uniqueIndex:idx_daily_pid_date;not null"` // UTC day start
	VolumeUsd        float64   `gorm:"not null;default:0"`
	FeesUsd          float64   `gorm:"not null;default:0"`
	RewardsToken     string    `gorm:"type:varchar(78);not null;default:'0'"`
	RewardsUsd       float64   `gorm:"not null;default:0"`
	TvlUsd           float64   `gorm:"not null;default:0"`
	FeeApr           float64   `gorm:"not null;default:0"`
	HarvestApr       float64   `gorm:"not null;default:0"`
	TotalApr         float64   `gorm:"not null;default:0"`
	SwapCount        int       `gorm:"not null;default:0"`
	RewardEventCount int       `gorm:"not null;default:0"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

func (PoolDailyAggregate) TableName() string { return "pool_daily_aggregates" }
