// Package store holds the gorm models for every persisted entity and the
// DB bootstrap helper. Grounded on the teacher's internal/db, which wraps a
// *gorm.DB behind NewMySQLRecorder(dsn) (AutoMigrate + gorm's own Logger)
// and exposes GetDB()/Close() for callers that need direct query access —
// generalized from one append-only snapshot table to the engine's full
// schema.
package store

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// allModels lists every table AutoMigrate must create, in dependency order
// (tables referenced by a foreign key come first).
var allModels = []interface{}{
	&IndexerCheckpoint{},
	&Pool{},
	&StakerPosition{},
	&PoolStakeEvent{},
	&SwapEvent{},
	&RewardEvent{},
	&PoolDailyAggregate{},
	&HistoricalPrice{},
	&UnpricedToken{},
	&BridgeEvent{},
	&WalletBridgeMetrics{},
	&Player{},
	&WalletCluster{},
	&WalletLink{},
	&DepositRequest{},
	&JewelBalance{},
	&QueryCost{},
	&GardenOptimization{},
	&HuntingEncounter{},
	&PvPMatch{},
	&PvPTournament{},
	&TournamentPlacement{},
	&HeroTournamentSnapshot{},
	&TavernHero{},
	&TavernListingHistory{},
	&TavernDemandMetrics{},
	&SummonSession{},
	&SummonOffspring{},
	&SummonSalesOutcome{},
	&SummonConversionMetrics{},
}

// DB wraps the gorm handle every store package depends on.
type DB struct {
	*gorm.DB
}

// Open dials driver ("mysql" or "sqlite") at dsn and migrates every known
// model. "sqlite" is intended for tests only (in-memory DSN ":memory:");
// production deployments use "mysql", matching the teacher's
// NewMySQLRecorder(dsn) contract.
func Open(driver, dsn string) (*DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	if err := gdb.AutoMigrate(allModels...); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &DB{DB: gdb}, nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying DB: %w", err)
	}
	return sqlDB.Close()
}
