package deposits

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/hedgeledger/core/internal/store"
)

// GardenFlow drives the parallel garden-optimization payment state machine
// (spec §4.H: "awaiting_payment -> payment_verified -> processing ->
// completed|failed|expired").
type GardenFlow struct {
	db          *gorm.DB
	depositAddr string
}

func NewGardenFlow(db *store.DB, depositAddr string) *GardenFlow {
	return &GardenFlow{db: db.DB, depositAddr: strings.ToLower(depositAddr)}
}

// VerifyPayment matches t against a pending GardenOptimization the same
// way Reconciler.MatchTransfer does, transitioning it to
// payment_verified. A transfer arriving after expiresAt marks the
// optimization expired with the tx hash preserved for audit rather than
// silently dropped (spec §4.H).
func (g *GardenFlow) VerifyPayment(t Transfer) (*store.GardenOptimization, error) {
	if strings.ToLower(t.To) != g.depositAddr || t.Amount == nil {
		return nil, ErrNoMatchingRequest
	}

	var candidates []store.GardenOptimization
	err := g.db.Where("status = ? AND unique_amount = ?", store.OptimizationAwaitingPayment, t.Amount.String()).Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load pending garden optimizations: %w", err)
	}

	from := strings.ToLower(t.From)
	for i := range candidates {
		opt := &candidates[i]
		if strings.ToLower(opt.Wallet) != from {
			continue
		}

		if t.BlockTime.After(opt.ExpiresAt) {
			if err := g.db.Model(opt).Updates(map[string]interface{}{
				"status":  store.OptimizationExpired,
				"tx_hash": t.TxHash,
			}).Error; err != nil {
				return nil, fmt.Errorf("failed to mark optimization %d expired: %w", opt.ID, err)
			}
			continue
		}

		if err := g.db.Model(opt).Updates(map[string]interface{}{
			"status":  store.OptimizationPaymentVerified,
			"tx_hash": t.TxHash,
		}).Error; err != nil {
			return nil, fmt.Errorf("failed to mark optimization %d payment-verified: %w", opt.ID, err)
		}
		opt.Status = store.OptimizationPaymentVerified
		opt.TxHash = t.TxHash
		return opt, nil
	}

	return nil, ErrNoMatchingRequest
}

// BeginProcessing transitions a payment_verified optimization to
// processing, the point at which the caller starts the actual (slow)
// optimization computation.
func (g *GardenFlow) BeginProcessing(id uint) error {
	result := g.db.Model(&store.GardenOptimization{}).
		Where("id = ? AND status = ?", id, store.OptimizationPaymentVerified).
		Update("status", store.OptimizationProcessing)
	if result.Error != nil {
		return fmt.Errorf("failed to begin processing optimization %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("optimization %d is not in payment_verified state", id)
	}
	return nil
}

// Complete writes the finished optimization's result and marks it
// completed.
func (g *GardenFlow) Complete(id uint, resultJSON string) error {
	err := g.db.Model(&store.GardenOptimization{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      store.OptimizationCompleted,
		"result_data": resultJSON,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to complete optimization %d: %w", id, err)
	}
	return nil
}

// Fail marks a processing optimization as failed, preserving the reason in
// ResultData for operator inspection.
func (g *GardenFlow) Fail(id uint, reason string) error {
	err := g.db.Model(&store.GardenOptimization{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      store.OptimizationFailed,
		"result_data": reason,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to mark optimization %d failed: %w", id, err)
	}
	return nil
}

// SweepExpired expires awaiting_payment optimizations past their deadline.
func (g *GardenFlow) SweepExpired(now time.Time) (int64, error) {
	result := g.db.Model(&store.GardenOptimization{}).
		Where("status = ? AND expires_at < ?", store.OptimizationAwaitingPayment, now).
		Update("status", store.OptimizationExpired)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to sweep expired garden optimizations: %w", result.Error)
	}
	return result.RowsAffected, nil
}
