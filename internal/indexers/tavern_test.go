package indexers

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgeledger/core/internal/store"
)

type fakeListingFetcher struct {
	active []Listing
	sold   []int64
}

func (f *fakeListingFetcher) ActiveListings(ctx context.Context) ([]Listing, error) {
	return f.active, nil
}

func (f *fakeListingFetcher) SoldListingIDs(ctx context.Context, since time.Time) ([]int64, error) {
	return f.sold, nil
}

func TestTavernSnapshotterClassifiesStillListedSoldAndDelisted(t *testing.T) {
	db, err := store.Open("sqlite", ":memory:")
	require.NoError(t, err)
	hourOne := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	fetcher := &fakeListingFetcher{active: []Listing{
		{HeroID: 1, Owner: "0xA", ListingID: 100, Price: big.NewInt(50)},
		{HeroID: 2, Owner: "0xB", ListingID: 101, Price: big.NewInt(75)},
		{HeroID: 3, Owner: "0xC", ListingID: 102, Price: big.NewInt(10)},
	}}
	ts := NewTavernSnapshotter(db, fetcher)
	require.NoError(t, ts.Snapshot(context.Background(), hourOne))

	hourTwo := hourOne.Add(time.Hour)
	fetcher.active = []Listing{
		{HeroID: 1, Owner: "0xA", ListingID: 100, Price: big.NewInt(50)},
	}
	fetcher.sold = []int64{101}
	require.NoError(t, ts.Snapshot(context.Background(), hourTwo))

	var stillListed store.TavernHero
	require.NoError(t, db.Where("hero_id = ?", 1).First(&stillListed).Error)
	assert.True(t, stillListed.IsListed)

	var sold store.TavernHero
	require.NoError(t, db.Where("hero_id = ?", 2).First(&sold).Error)
	assert.False(t, sold.IsListed)

	var delisted store.TavernHero
	require.NoError(t, db.Where("hero_id = ?", 3).First(&delisted).Error)
	assert.False(t, delisted.IsListed)

	var history []store.TavernListingHistory
	require.NoError(t, db.Find(&history).Error)
	outcomes := map[int64]string{}
	for _, h := range history {
		outcomes[h.ListingID] = h.Outcome
	}
	assert.Equal(t, store.ListingStillListed, outcomes[100])
	assert.Equal(t, store.ListingSold, outcomes[101])
	assert.Equal(t, store.ListingDelisted, outcomes[102])

	var metrics store.TavernDemandMetrics
	require.NoError(t, db.Where("hour = ?", hourTwo.Truncate(time.Hour)).First(&metrics).Error)
	assert.Equal(t, 1, metrics.SoldCount)
	assert.Equal(t, 1, metrics.DelistedCount)
	assert.Equal(t, 0, metrics.NewListings)
}

func TestTavernSnapshotterRecordsOffspringSaleWhenTracked(t *testing.T) {
	db, err := store.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Create(&store.SummonOffspring{SummonSessionID: 1, OffspringHeroID: 9}).Error)

	hourOne := time.Date(2026, 6, 2, 10, 0, 0, 0, time.UTC)
	fetcher := &fakeListingFetcher{active: []Listing{
		{HeroID: 9, Owner: "0xA", ListingID: 200, Price: big.NewInt(30)},
	}}
	ts := NewTavernSnapshotter(db, fetcher)
	require.NoError(t, ts.Snapshot(context.Background(), hourOne))

	fetcher.active = nil
	fetcher.sold = []int64{200}
	require.NoError(t, ts.Snapshot(context.Background(), hourOne.Add(time.Hour)))

	var outcome store.SummonSalesOutcome
	require.NoError(t, db.Where("offspring_hero_id = ?", 9).First(&outcome).Error)
	assert.True(t, outcome.Sold)
	assert.InDelta(t, 30.0, outcome.SalePriceUsd, 1e-9)
}
