package store

import "time"

// HuntingEncounter records one hunt/patrol drop event with a party-luck
// snapshot (spec §3, §4.E hunt/patrol indexer).
type HuntingEncounter struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	ChainID       int64     `gorm:"not null"`
	Wallet        string    `gorm:"size:42;index;not null"`
	TxHash        string    `gorm:"uniqueIndex:idx_hunt_tx_log;size:66;not null"`
	LogIndex      uint      `gorm:"uniqueIndex:idx_hunt_tx_log;not null"`
	HeroID        int64     `gorm:"not null"`
	PartyLuck     int       `gorm:"not null"`
	DroppedItem   string    `gorm:"size:64"`
	DroppedAmount string    `gorm:"type:varchar(78)"`
	BlockNumber   uint64    `gorm:"index;not null"`
	Timestamp     time.Time `gorm:"index;not null"`
}

func (HuntingEncounter) TableName() string { return "hunting_encounters" }

// PvPMatch records one resolved PvP bout (spec §3, §4.E tournament
// indexer's companion event stream).
type PvPMatch struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	ChainID      int64     `gorm:"not null"`
	TxHash       string    `gorm:"uniqueIndex:idx_pvp_tx_log;size:66;not null"`
	LogIndex     uint      `gorm:"uniqueIndex:idx_pvp_tx_log;not null"`
	AttackerHero int64     `gorm:"not null"`
	DefenderHero int64     `gorm:"not null"`
	WinnerHero   int64     `gorm:"not null"`
	BlockNumber  uint64    `gorm:"index;not null"`
	Timestamp    time.Time `gorm:"index;not null"`
}

func (PvPMatch) TableName() string { return "pvp_matches" }

// PvPTournament is one tournament instance (spec §3, §4.E).
type PvPTournament struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	ChainID     int64     `gorm:"not null"`
	TournamentID int64    `gorm:"uniqueIndex;not null"`
	StartBlock  uint64    `gorm:"not null"`
	EndBlock    *uint64
	Status      string    `gorm:"size:16;not null;default:active"` // active,completed
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (PvPTournament) TableName() string { return "pvp_tournaments" }

// TournamentPlacement is one hero's final placement in a PvPTournament
// (spec §4.E: "records placements and a full HeroTournamentSnapshot at
// participation time").
type TournamentPlacement struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	TournamentID int64  `gorm:"uniqueIndex:idx_placement_tourn_hero;not null"`
	HeroID       int64  `gorm:"uniqueIndex:idx_placement_tourn_hero;not null"`
	Wallet       string `gorm:"size:42;index;not null"`
	Placement    int    `gorm:"not null"`
	RewardUsd    float64 `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (TournamentPlacement) TableName() string { return "tournament_placements" }

// HeroTournamentSnapshot captures a hero's full stat block at the moment
// it entered a tournament, for later dispute/audit.
type HeroTournamentSnapshot struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	TournamentID int64  `gorm:"uniqueIndex:idx_snapshot_tourn_hero;not null"`
	HeroID       int64  `gorm:"uniqueIndex:idx_snapshot_tourn_hero;not null"`
	StatBlock    string `gorm:"type:text;not null"` // JSON blob
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (HeroTournamentSnapshot) TableName() string { return "hero_tournament_snapshots" }

// TavernHero mirrors the current state of one hero listed on the
// marketplace (spec §4.E tavern/marketplace indexer).
type TavernHero struct {
	HeroID      int64  `gorm:"primaryKey"`
	Owner       string `gorm:"size:42;index;not null"`
	ListingID   *int64 `gorm:"index"`
	Price       string `gorm:"type:varchar(78)"`
	IsListed    bool   `gorm:"not null;default:false"`
	UpdatedAt   time.Time
}

func (TavernHero) TableName() string { return "tavern_heroes" }

// Listing outcome classifications written by the hourly tavern snapshot
// diff (spec §4.E: "classify each prior listing as still-listed|sold|delisted").
const (
	ListingStillListed = "still-listed"
	ListingSold        = "sold"
	ListingDelisted    = "delisted"
)

// TavernListingHistory is one hourly snapshot's classification of a prior
// listing.
type TavernListingHistory struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	ListingID   int64     `gorm:"index;not null"`
	HeroID      int64     `gorm:"index;not null"`
	Price       string    `gorm:"type:varchar(78)"`
	Outcome     string    `gorm:"size:16;not null"`
	ObservedAt  time.Time `gorm:"not null"`
}

func (TavernListingHistory) TableName() string { return "tavern_listing_history" }

// TavernDemandMetrics is an hourly rollup of tavern activity used for
// demand-trend analytics.
type TavernDemandMetrics struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	Hour           time.Time `gorm:"uniqueIndex;not null"`
	NewListings    int       `gorm:"not null;default:0"`
	SoldCount      int       `gorm:"not null;default:0"`
	DelistedCount  int       `gorm:"not null;default:0"`
	AvgSalePrice   float64   `gorm:"not null;default:0"`
}

func (TavernDemandMetrics) TableName() string { return "tavern_demand_metrics" }

// SummonSession records one hero-breeding session (SPEC_FULL.md
// supplemented feature, same shape as the tavern indexer: checkpointed,
// idempotent on (TxHash, LogIndex)).
type SummonSession struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	ChainID        int64     `gorm:"not null"`
	TxHash         string    `gorm:"uniqueIndex:idx_summon_tx_log;size:66;not null"`
	LogIndex       uint      `gorm:"uniqueIndex:idx_summon_tx_log;not null"`
	SummonerHeroID int64     `gorm:"not null"`
	AssistantHeroID int64    `gorm:"not null"`
	Owner          string    `gorm:"size:42;index;not null"`
	Cost           string    `gorm:"type:varchar(78);not null;default:'0'"`
	BlockNumber    uint64    `gorm:"index;not null"`
	Timestamp      time.Time `gorm:"index;not null"`
}

func (SummonSession) TableName() string { return "summon_sessions" }

// SummonOffspring is the hero produced by a SummonSession.
type SummonOffspring struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	SummonSessionID uint   `gorm:"uniqueIndex;not null"`
	OffspringHeroID int64  `gorm:"uniqueIndex;not null"`
	GenesSummary    string `gorm:"type:text"` // JSON blob
	CreatedAt       time.Time `gorm:"autoCreateTime"`
}

func (SummonOffspring) TableName() string { return "summon_offspring" }

// SummonSalesOutcome records whether, and at what price, an offspring hero
// was later sold on the tavern.
type SummonSalesOutcome struct {
	ID              uint    `gorm:"primaryKey;autoIncrement"`
	OffspringHeroID int64   `gorm:"uniqueIndex;not null"`
	Sold            bool    `gorm:"not null;default:false"`
	SalePriceUsd    float64 `gorm:"not null;default:0"`
	SoldAt          *time.Time
}

func (SummonSalesOutcome) TableName() string { return "summon_sales_outcomes" }

// SummonConversionMetrics is a daily rollup of the summon funnel —
// analogous to PoolDailyAggregate but for summons-started vs.
// offspring-sold (SPEC_FULL.md supplemented feature).
type SummonConversionMetrics struct {
	ID              uint      `gorm:"primaryKey;autoIncrement"`
	Date            time.Time `gorm:"uniqueIndex;not null"`
	SummonsStarted  int       `gorm:"not null;default:0"`
	OffspringSold   int       `gorm:"not null;default:0"`
	ConversionRate  float64   `gorm:"not null;default:0"`
	AvgSalePriceUsd float64   `gorm:"not null;default:0"`
}

func (SummonConversionMetrics) TableName() string { return "summon_conversion_metrics" }
