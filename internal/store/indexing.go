package store

import "time"

// IndexerCheckpoint is one worker's resumable progress row (spec §3,
// §4.B). Exclusively written by its owning worker.
type IndexerCheckpoint struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	Name             string `gorm:"uniqueIndex;size:128;not null"`
	Kind             string `gorm:"index;size:64;not null"`
	Pid              *int64 `gorm:"index"`
	ShardStart       uint64 `gorm:"not null"`
	ShardEnd         *uint64
	LastIndexedBlock uint64 `gorm:"not null"`
	GenesisBlock     uint64 `gorm:"not null"`
	Status           string `gorm:"size:16;not null;default:idle"` // idle,running,complete,error
	Stats            string `gorm:"type:text"`                     // JSON blob, see AppContext note in DESIGN.md
	LastError        string `gorm:"type:text"`
	UpdatedAt        time.Time
}

func (IndexerCheckpoint) TableName() string { return "ingestion_state" }

// Checkpoint statuses.
const (
	StatusIdle     = "idle"
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusError    = "error"
)

// HistoricalPrice is a point-in-time USD price snapshot used by the bridge
// indexer when the live price graph cannot reach a token directly (spec
// §4.E bridge indexer: "computing USD via historical-price cache").
type HistoricalPrice struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	ChainID   int64     `gorm:"uniqueIndex:idx_hist_price;not null"`
	Token     string    `gorm:"uniqueIndex:idx_hist_price;size:42;not null"`
	Day       time.Time `gorm:"uniqueIndex:idx_hist_price;not null"`
	UsdPrice  float64   `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (HistoricalPrice) TableName() string { return "historical_prices" }

// UnpricedToken catalogs a token the price graph and historical-price cache
// both failed to resolve, with a pricing-status enum (spec §4.E).
type UnpricedToken struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	ChainID   int64     `gorm:"uniqueIndex:idx_unpriced_token;not null"`
	Token     string    `gorm:"uniqueIndex:idx_unpriced_token;size:42;not null"`
	Status    string    `gorm:"size:24;not null;default:unresolved"` // unresolved,investigating,ignored
	FirstSeen time.Time `gorm:"not null"`
	LastSeen  time.Time `gorm:"not null"`
	Occurrences int     `gorm:"not null;default:1"`
}

func (UnpricedToken) TableName() string { return "unpriced_tokens" }
