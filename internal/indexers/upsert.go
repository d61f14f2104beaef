package indexers

import "gorm.io/gorm/clause"

// onConflictDoNothing implements spec §4.E step 4's "upsert with ON
// CONFLICT DO NOTHING on (txHash, logIndex)" for gorm's portable Create
// path (gorm renders it as ON CONFLICT DO NOTHING on SQLite and as a
// no-op ON DUPLICATE KEY UPDATE on MySQL). indexName is documentation
// only; gorm's DoNothing applies to
// whichever unique constraint the row collides with.
func onConflictDoNothing(indexName string) clause.OnConflict {
	return clause.OnConflict{DoNothing: true}
}
