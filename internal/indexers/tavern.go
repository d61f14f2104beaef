package indexers

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"gorm.io/gorm"

	"github.com/hedgeledger/core/internal/store"
)

// Listing is one active tavern/marketplace listing as read from the
// marketplace contract's view functions.
type Listing struct {
	HeroID    int64
	Owner     string
	ListingID int64
	Price     *big.Int
}

// ListingFetcher reads the marketplace's current state (spec §4.E tavern
// indexer). SoldListingIDs reports listing ids resolved by a sale event
// since the given time, letting the snapshot diff distinguish a sale from
// a plain delisting instead of guessing from absence alone.
type ListingFetcher interface {
	ActiveListings(ctx context.Context) ([]Listing, error)
	SoldListingIDs(ctx context.Context, since time.Time) ([]int64, error)
}

// TavernSnapshotter runs the hourly marketplace snapshot (spec §4.E:
// "hourly snapshots, comparing current listings vs. the previous snapshot
// to classify each prior listing as still-listed|sold|delisted").
type TavernSnapshotter struct {
	db      *gorm.DB
	fetcher ListingFetcher
}

func NewTavernSnapshotter(db *store.DB, fetcher ListingFetcher) *TavernSnapshotter {
	return &TavernSnapshotter{db: db.DB, fetcher: fetcher}
}

func (ts *TavernSnapshotter) Snapshot(ctx context.Context, now time.Time) error {
	var prevListed []store.TavernHero
	if err := ts.db.Where("is_listed = ?", true).Find(&prevListed).Error; err != nil {
		return fmt.Errorf("failed to load previous tavern listings: %w", err)
	}
	prevByListingID := make(map[int64]store.TavernHero, len(prevListed))
	for _, h := range prevListed {
		if h.ListingID != nil {
			prevByListingID[*h.ListingID] = h
		}
	}

	current, err := ts.fetcher.ActiveListings(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch active tavern listings: %w", err)
	}
	currentByListingID := make(map[int64]Listing, len(current))
	for _, l := range current {
		currentByListingID[l.ListingID] = l
	}

	sold, err := ts.fetcher.SoldListingIDs(ctx, now.Add(-time.Hour))
	if err != nil {
		return fmt.Errorf("failed to fetch sold tavern listings: %w", err)
	}
	soldSet := make(map[int64]bool, len(sold))
	for _, id := range sold {
		soldSet[id] = true
	}

	metrics := store.TavernDemandMetrics{Hour: now.Truncate(time.Hour)}

	for id, prev := range prevByListingID {
		if _, stillListed := currentByListingID[id]; stillListed {
			ts.recordHistory(id, prev, store.ListingStillListed, now)
			continue
		}
		if soldSet[id] {
			metrics.SoldCount++
			var salePrice float64
			if price, ok := new(big.Float).SetString(priceOf(prev)); ok {
				salePrice, _ = price.Float64()
				metrics.AvgSalePrice += salePrice
			}
			ts.recordHistory(id, prev, store.ListingSold, now)
			ts.markUnlisted(prev.HeroID)
			ts.recordOffspringSaleIfTracked(prev.HeroID, salePrice, now)
			continue
		}
		metrics.DelistedCount++
		ts.recordHistory(id, prev, store.ListingDelisted, now)
		ts.markUnlisted(prev.HeroID)
	}
	if metrics.SoldCount > 0 {
		metrics.AvgSalePrice /= float64(metrics.SoldCount)
	}

	for _, l := range current {
		if _, wasListed := prevByListingID[l.ListingID]; !wasListed {
			metrics.NewListings++
		}
		row := store.TavernHero{
			HeroID: l.HeroID, Owner: l.Owner, ListingID: &l.ListingID,
			Price: zeroString(l.Price), IsListed: true, UpdatedAt: now,
		}
		err = ts.db.Where(store.TavernHero{HeroID: l.HeroID}).Assign(row).FirstOrCreate(&store.TavernHero{}).Error
		if err != nil {
			return fmt.Errorf("failed to upsert tavern hero %d: %w", l.HeroID, err)
		}
	}

	if err := ts.db.Where(store.TavernDemandMetrics{Hour: metrics.Hour}).
		Assign(metrics).FirstOrCreate(&store.TavernDemandMetrics{}).Error; err != nil {
		return fmt.Errorf("failed to upsert tavern demand metrics for %s: %w", metrics.Hour, err)
	}
	return nil
}

func (ts *TavernSnapshotter) recordHistory(listingID int64, prev store.TavernHero, outcome string, observedAt time.Time) {
	ts.db.Create(&store.TavernListingHistory{
		ListingID: listingID, HeroID: prev.HeroID, Price: prev.Price,
		Outcome: outcome, ObservedAt: observedAt,
	})
}

func (ts *TavernSnapshotter) markUnlisted(heroID int64) {
	ts.db.Model(&store.TavernHero{}).Where("hero_id = ?", heroID).
		Updates(map[string]interface{}{"is_listed": false, "listing_id": nil})
}

// recordOffspringSaleIfTracked closes the summon conversion funnel (spec
// SPEC_FULL.md supplemented feature) when a sold tavern hero happens to be
// a tracked SummonOffspring; heroes outside that funnel are left alone.
func (ts *TavernSnapshotter) recordOffspringSaleIfTracked(heroID int64, salePriceUsd float64, soldAt time.Time) {
	var offspring store.SummonOffspring
	if err := ts.db.Where("offspring_hero_id = ?", heroID).First(&offspring).Error; err != nil {
		return
	}
	soldAtCopy := soldAt
	row := store.SummonSalesOutcome{OffspringHeroID: heroID, Sold: true, SalePriceUsd: salePriceUsd, SoldAt: &soldAtCopy}
	ts.db.Where(store.SummonSalesOutcome{OffspringHeroID: heroID}).Assign(row).FirstOrCreate(&store.SummonSalesOutcome{})
}

func priceOf(h store.TavernHero) string {
	if h.Price == "" {
		return "0"
	}
	return h.Price
}
