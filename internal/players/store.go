// Package players implements identity (Discord<->wallets), cluster
// linkage, and balance bookkeeping (spec §4.I). Grounded on the teacher's
// MySQLRecorder (internal/db/transaction_recorder.go): a thin struct over
// *gorm.DB exposing named, single-purpose methods, each wrapping its gorm
// call in a `fmt.Errorf("...: %w", err)`.
package players

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/hedgeledger/core/internal/store"
)

// ErrWalletAlreadyLinked is returned when an address is already active in
// a different cluster (spec invariant: an address belongs to at most one
// active cluster).
var ErrWalletAlreadyLinked = errors.New("players: wallet is already active in another cluster")

// Store provides the player/cluster operations named in spec §4.I.
type Store struct {
	db *gorm.DB
}

func New(db *store.DB) *Store {
	return &Store{db: db.DB}
}

// EnsurePlayer idempotently upserts a Player by discordID. On first
// insert it also creates the JewelBalance sibling row atomically, per
// spec §4.I. Re-running with the same discordID is a no-op beyond
// refreshing username (idempotence law: ensurePlayer ∘ ensurePlayer =
// ensurePlayer).
func (s *Store) EnsurePlayer(discordID, username string) (*store.Player, error) {
	var player store.Player
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("discord_id = ?", discordID).First(&player).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			player = store.Player{
				DiscordID:   discordID,
				Username:    username,
				Tier:        "free",
				State:       "visitor",
				FirstSeenAt: time.Now().UTC(),
			}
			if err := tx.Create(&player).Error; err != nil {
				return fmt.Errorf("failed to create player %s: %w", discordID, err)
			}
			balance := store.JewelBalance{PlayerID: player.ID, Balance: "0"}
			if err := tx.Create(&balance).Error; err != nil {
				return fmt.Errorf("failed to create balance row for player %d: %w", player.ID, err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("failed to load player %s: %w", discordID, err)
		default:
			if username != "" && username != player.Username {
				player.Username = username
				if err := tx.Model(&player).Update("username", username).Error; err != nil {
					return fmt.Errorf("failed to refresh username for player %d: %w", player.ID, err)
				}
			}
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return &player, nil
}

// LinkWallet normalizes address to lowercase and attaches it to the
// player's cluster, per spec §4.I. The first wallet linked becomes the
// player's primaryWallet. An address already active in a different
// cluster is rejected with ErrWalletAlreadyLinked.
func (s *Store) LinkWallet(playerID uint, chain, address string) (*store.WalletLink, error) {
	address = strings.ToLower(address)

	var link store.WalletLink
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing store.WalletLink
		err := tx.Where("address = ? AND is_active = ?", address, true).First(&existing).Error
		if err == nil {
			cluster, cerr := getOrCreateClusterTx(tx, playerID)
			if cerr != nil {
				return cerr
			}
			if existing.ClusterKey != cluster.ClusterKey {
				return ErrWalletAlreadyLinked
			}
			link = existing
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("failed to check existing wallet link for %s: %w", address, err)
		}

		cluster, err := getOrCreateClusterTx(tx, playerID)
		if err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&store.WalletLink{}).Where("cluster_key = ? AND is_active = ?", cluster.ClusterKey, true).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count existing links for cluster %s: %w", cluster.ClusterKey, err)
		}
		isPrimary := count == 0

		link = store.WalletLink{
			ClusterKey: cluster.ClusterKey,
			Chain:      chain,
			Address:    address,
			IsPrimary:  isPrimary,
			IsActive:   true,
		}
		if err := tx.Create(&link).Error; err != nil {
			return fmt.Errorf("failed to create wallet link for %s: %w", address, err)
		}
		if isPrimary {
			if err := tx.Model(&store.Player{}).Where("id = ?", playerID).Update("primary_wallet", address).Error; err != nil {
				return fmt.Errorf("failed to set primary wallet for player %d: %w", playerID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &link, nil
}
