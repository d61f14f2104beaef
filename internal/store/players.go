package store

import "time"

// Player is a Discord-identified participant (spec §3, §4.I).
type Player struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	DiscordID     string `gorm:"uniqueIndex;size:32;not null"`
	Username      string `gorm:"size:64"`
	PrimaryWallet string `gorm:"size:42"`
	Tier          string `gorm:"size:16;not null;default:free"` // free,bronze,silver,gold,whale
	State         string `gorm:"size:16;not null;default:visitor"`
	Flags         string `gorm:"type:text"` // JSON array
	ProfileData   string `gorm:"type:text"` // JSON blob, tagged-record per §9
	FirstSeenAt   time.Time `gorm:"not null"`
	UpdatedAt     time.Time
}

func (Player) TableName() string { return "players" }

// WalletCluster groups the wallets controlled by one player (spec §3,
// §4.I, §9 cyclic-relation redesign: cluster owns wallets; player
// references ClusterKey, never the reverse).
type WalletCluster struct {
	ClusterKey   string `gorm:"primaryKey;size:64"`
	OwnerPlayerID uint  `gorm:"index;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (WalletCluster) TableName() string { return "wallet_clusters" }

// WalletLink binds one address to one cluster. An address may be active in
// at most one cluster (spec invariant §8: "∀ wallet w in an active cluster
// c1: w is not active in any other cluster").
type WalletLink struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	ClusterKey string `gorm:"index;size:64;not null"`
	Chain      string `gorm:"size:32;not null"`
	Address    string `gorm:"size:42;not null"`
	IsPrimary  bool   `gorm:"not null;default:false"`
	IsActive   bool   `gorm:"not null;default:true"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (WalletLink) TableName() string { return "wallet_links" }

// JewelBalance is the billing/balance sibling row created atomically with
// a Player on first insert (spec §4.I: "on first insert also creates the
// billing/balance sibling row atomically").
type JewelBalance struct {
	PlayerID  uint    `gorm:"primaryKey"`
	Balance   string  `gorm:"type:varchar(78);not null;default:'0'"`
	UpdatedAt time.Time
}

func (JewelBalance) TableName() string { return "jewel_balances" }
