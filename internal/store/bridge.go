package store

import "time"

// BridgeEvent is one decoded Synapse-style bridge transfer (spec §3, §4.E).
// Unique on (TxHash, Wallet, BridgeType).
type BridgeEvent struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	Wallet      string    `gorm:"uniqueIndex:idx_bridge_tx_wallet_type;size:42;not null"`
	BridgeType  string    `gorm:"uniqueIndex:idx_bridge_tx_wallet_type;size:16;not null"` // item,hero,equipment,pet
	Direction   string    `gorm:"size:8;not null"`                                        // in,out
	Token       string    `gorm:"size:42"`
	Amount      string    `gorm:"type:varchar(78)"`
	AssetID     *int64
	UsdValue    float64 `gorm:"not null;default:0"`
	SrcChainID  int64   `gorm:"not null"`
	DstChainID  int64   `gorm:"not null"`
	TxHash      string  `gorm:"uniqueIndex:idx_bridge_tx_wallet_type;size:66;not null"`
	BlockNumber uint64  `gorm:"index;not null"`
	Timestamp   time.Time `gorm:"index;not null"`
}

func (BridgeEvent) TableName() string { return "bridge_events" }

// WalletBridgeMetrics is the idempotent rollup of a wallet's BridgeEvents
// (spec §3, §4.J), read by the classification engine to derive the
// extractor score.
type WalletBridgeMetrics struct {
	Wallet             string `gorm:"primaryKey;size:42"`
	BridgedInUsd       float64 `gorm:"not null;default:0"`
	BridgedOutUsd      float64 `gorm:"not null;default:0"`
	NetExtractedUsd    float64 `gorm:"not null;default:0"`
	ByTokenIn          string  `gorm:"type:text"` // JSON {token: usd}
	ByTokenOut         string  `gorm:"type:text"`
	HeroesIn           int     `gorm:"not null;default:0"`
	HeroesOut          int     `gorm:"not null;default:0"`
	LastProcessedBlock uint64  `gorm:"not null;default:0"`
	ExtractorScore     float64 `gorm:"not null;default:0"`
	ExtractorFlags     string  `gorm:"type:text"` // JSON array
	UpdatedAt          time.Time
}

func (WalletBridgeMetrics) TableName() string { return "wallet_bridge_metrics" }
