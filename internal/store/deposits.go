package store

import "time"

// Deposit request lifecycle states (spec §4.H).
const (
	DepositPending   = "pending"
	DepositMatched   = "matched"
	DepositCompleted = "completed"
	DepositExpired   = "expired"
	DepositErrored   = "errored"
)

// DepositRequest is the state machine row for one pending on-chain deposit
// (spec §3, §4.H). Exactly one row per player may be `pending` at a time.
type DepositRequest struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	PlayerID     uint      `gorm:"index;not null"`
	Wallet       string    `gorm:"size:42;not null"`
	UniqueAmount string    `gorm:"size:64;not null"` // decimal string, baseAmount+jitter
	ExpiresAt    time.Time `gorm:"not null"`
	Status       string    `gorm:"size:16;not null;default:pending;index"`
	TxHash       string    `gorm:"size:66"`
	ErrorMessage string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (DepositRequest) TableName() string { return "deposit_requests" }

// QueryCost tracks, per Discord user and billing period, how many
// "expensive" analytics queries they triggered (SPEC_FULL.md supplemented
// feature grounded on the teacher's gas-cost ledger shape in
// TransactionRecord/StakingResult: append a cost record, then sum).
type QueryCost struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	PlayerID   uint      `gorm:"index;not null"`
	QueryType  string    `gorm:"size:64;not null"` // e.g. "full-price-graph", "live-wallet-rewards"
	Period     string    `gorm:"size:16;not null;index"` // YYYY-MM
	Count      int       `gorm:"not null;default:0"`
	UpdatedAt  time.Time
}

func (QueryCost) TableName() string { return "query_costs" }

// Garden-optimization payment lifecycle states (spec §4.H parallel flow).
const (
	OptimizationAwaitingPayment = "awaiting_payment"
	OptimizationPaymentVerified = "payment_verified"
	OptimizationProcessing      = "processing"
	OptimizationCompleted       = "completed"
	OptimizationFailed          = "failed"
	OptimizationExpired         = "expired"
)

// GardenOptimization is the parallel payment flow for a gardening-quest
// optimization request (spec §4.H, §9 BoostPolicy).
type GardenOptimization struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	PlayerID     uint      `gorm:"index;not null"`
	Wallet       string    `gorm:"size:42;not null"`
	UniqueAmount string    `gorm:"size:64;not null"`
	Status       string    `gorm:"size:24;not null;default:awaiting_payment;index"`
	TxHash       string    `gorm:"size:66"`
	ResultData   string    `gorm:"type:text"` // JSON blob describing the computed optimization
	ExpiresAt    time.Time `gorm:"not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (GardenOptimization) TableName() string { return "garden_optimizations" }
