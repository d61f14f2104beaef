package players

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/hedgeledger/core/internal/store"
)

// GetOrCreateCluster returns playerID's cluster, creating one on first use
// (spec §4.I).
func (s *Store) GetOrCreateCluster(playerID uint) (*store.WalletCluster, error) {
	var cluster store.WalletCluster
	err := s.db.Transaction(func(tx *gorm.DB) error {
		c, err := getOrCreateClusterTx(tx, playerID)
		if err != nil {
			return err
		}
		cluster = *c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &cluster, nil
}

func getOrCreateClusterTx(tx *gorm.DB, playerID uint) (*store.WalletCluster, error) {
	var cluster store.WalletCluster
	err := tx.Where("owner_player_id = ?", playerID).First(&cluster).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		cluster = store.WalletCluster{
			ClusterKey:    fmt.Sprintf("cluster-%d", playerID),
			OwnerPlayerID: playerID,
		}
		if err := tx.Create(&cluster).Error; err != nil {
			return nil, fmt.Errorf("failed to create cluster for player %d: %w", playerID, err)
		}
		return &cluster, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load cluster for player %d: %w", playerID, err)
	default:
		return &cluster, nil
	}
}
