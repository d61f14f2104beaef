// Package deposits implements the deposit/payment reconciliation state
// machine (spec §4.H): match inbound token transfers to outstanding
// DepositRequest rows by amount+sender+time window, then drive billing.
// Grounded on the teacher's Stake/Unstake result idiom in blackhole.go
// (a `{Success, ErrorMessage}`-shaped result plus wrapped errors at every
// step) generalized from an on-chain staking flow to an off-chain
// reconciliation state machine.
package deposits

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/hedgeledger/core/internal/applog"
	"github.com/hedgeledger/core/internal/store"
)

// ErrNoMatchingRequest means the transfer matched no pending request; it is
// not a failure, just a signal to the caller to log-and-skip.
var ErrNoMatchingRequest = errors.New("deposits: no pending request matches this transfer")

// ErrPendingRequestExists means the player already has an outstanding
// pending DepositRequest (spec §4.H: "exactly one DepositRequest per
// player may be pending at a time").
var ErrPendingRequestExists = errors.New("deposits: player already has a pending deposit request")

// jitterRange bounds the random sub-unit suffix added to a request's
// baseAmount (spec §4.H "uniqueAmount is the player's baseAmount +
// jittered sub-unit suffix"): the suffix is drawn from [0, 1000), so it
// spans the last three smallest-unit digits of the amount. Callers are
// expected to pass a baseAmount already rounded down to a multiple of
// jitterRange, leaving this much smallest-unit headroom for the suffix.
const jitterRange = 1000

// jitterRetries bounds how many times CreateDeposit will redraw a jitter
// suffix after a collision against another pool-amount before giving up.
const jitterRetries = 20

// Transfer is one observed inbound token transfer (decoded from a Transfer
// event by an indexer upstream of this package).
type Transfer struct {
	To        string
	From      string
	Amount    *big.Int
	TxHash    string
	BlockTime time.Time
}

// Reconciler drives the deposit state machine over *gorm.DB.
type Reconciler struct {
	db           *gorm.DB
	depositAddr  string
}

func New(db *store.DB, depositAddr string) *Reconciler {
	return &Reconciler{db: db.DB, depositAddr: strings.ToLower(depositAddr)}
}

// CreateDeposit opens a new pending DepositRequest for playerID, jittering
// baseAmount into a collision-resistant uniqueAmount (spec §4.H). Fails
// with ErrPendingRequestExists if the player already has a pending
// request; the caller is expected to surface that as "finish or cancel
// your existing request first" rather than silently replacing it.
func (r *Reconciler) CreateDeposit(playerID uint, wallet string, baseAmount *big.Int, ttl time.Duration) (*store.DepositRequest, error) {
	if baseAmount == nil || baseAmount.Sign() < 0 {
		return nil, fmt.Errorf("deposits: base amount must be a non-negative integer")
	}

	var req store.DepositRequest
	now := time.Now().UTC()

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var pending int64
		if err := tx.Model(&store.DepositRequest{}).
			Where("player_id = ? AND status = ?", playerID, store.DepositPending).
			Count(&pending).Error; err != nil {
			return fmt.Errorf("failed to check for an existing pending request: %w", err)
		}
		if pending > 0 {
			return ErrPendingRequestExists
		}

		uniqueAmount, err := jitteredAmount(tx, baseAmount)
		if err != nil {
			return err
		}

		req = store.DepositRequest{
			PlayerID:     playerID,
			Wallet:       strings.ToLower(wallet),
			UniqueAmount: uniqueAmount,
			Status:       store.DepositPending,
			ExpiresAt:    now.Add(ttl),
		}
		return tx.Create(&req).Error
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// jitteredAmount draws a random offset in [0, jitterRange) and adds it to
// base, redrawing on a collision against another currently-pending
// request's uniqueAmount (spec §4.H: "collision-resistant within the
// active request window"). Uses crypto/rand rather than math/rand since a
// predictable suffix would let one player guess and squat on another's
// expected transfer amount.
func jitteredAmount(tx *gorm.DB, base *big.Int) (string, error) {
	bound := big.NewInt(jitterRange)

	for attempt := 0; attempt < jitterRetries; attempt++ {
		offset, err := rand.Int(rand.Reader, bound)
		if err != nil {
			return "", fmt.Errorf("failed to generate jitter suffix: %w", err)
		}
		candidate := new(big.Int).Add(base, offset).String()

		var collisions int64
		if err := tx.Model(&store.DepositRequest{}).
			Where("status = ? AND unique_amount = ?", store.DepositPending, candidate).
			Count(&collisions).Error; err != nil {
			return "", fmt.Errorf("failed to check unique amount collision: %w", err)
		}
		if collisions == 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("failed to find a collision-free unique amount after %d attempts", jitterRetries)
}

// MatchTransfer applies spec §4.H's transfer-matching rule: a transfer
// matches a request iff to==depositAddress, amount==uniqueAmount,
// from==request.Wallet, and blockTime falls within [createdAt, expiresAt].
// A mismatch on any of these returns ErrNoMatchingRequest; the caller is
// expected to log it without crediting anything (spec §7 "Deposit
// mismatch": logged, tied to the tx, never credits).
func (r *Reconciler) MatchTransfer(t Transfer) (*store.DepositRequest, error) {
	log := applog.For("deposits").WithField("txHash", t.TxHash)

	if strings.ToLower(t.To) != r.depositAddr {
		return nil, ErrNoMatchingRequest
	}
	if t.Amount == nil {
		return nil, ErrNoMatchingRequest
	}

	var candidates []store.DepositRequest
	err := r.db.Where("status = ? AND unique_amount = ?", store.DepositPending, t.Amount.String()).Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load pending deposit requests: %w", err)
	}

	from := strings.ToLower(t.From)
	for i := range candidates {
		req := &candidates[i]
		if strings.ToLower(req.Wallet) != from {
			continue
		}
		if t.BlockTime.Before(req.CreatedAt) || t.BlockTime.After(req.ExpiresAt) {
			log.WithField("requestId", req.ID).Warn("transfer arrived outside the active window, recording mismatch")
			r.recordMismatch(req, fmt.Sprintf("transfer %s arrived outside [%s,%s]", t.TxHash, req.CreatedAt, req.ExpiresAt))
			continue
		}

		if err := r.db.Model(req).Updates(map[string]interface{}{
			"status":  store.DepositMatched,
			"tx_hash": t.TxHash,
		}).Error; err != nil {
			return nil, fmt.Errorf("failed to transition request %d to matched: %w", req.ID, err)
		}
		req.Status = store.DepositMatched
		req.TxHash = t.TxHash
		return req, nil
	}

	return nil, ErrNoMatchingRequest
}

func (r *Reconciler) recordMismatch(req *store.DepositRequest, reason string) {
	r.db.Model(req).Update("error_message", reason)
}

// CreditBalance is the second task spec §4.H describes: "a second task
// credits balance and transitions to completed." credit is the caller's
// balance-mutation closure (e.g. internal/players' JewelBalance update);
// it must be idempotent from CreditBalance's perspective only in the sense
// that CreditBalance itself guards against double-invocation by checking
// the request's current status before calling it.
func (r *Reconciler) CreditBalance(requestID uint, credit func(playerID uint, amount *big.Int) error) error {
	var req store.DepositRequest
	if err := r.db.First(&req, requestID).Error; err != nil {
		return fmt.Errorf("failed to load deposit request %d: %w", requestID, err)
	}

	if req.Status == store.DepositCompleted {
		// Already credited; a second invocation (e.g. a retried matcher) is
		// a no-op, per spec §8 scenario 3.
		return nil
	}
	if req.Status != store.DepositMatched {
		return fmt.Errorf("deposit request %d is in status %q, expected matched", requestID, req.Status)
	}

	amount, ok := new(big.Int).SetString(req.UniqueAmount, 10)
	if !ok {
		return r.markErrored(&req, fmt.Sprintf("unparsable unique amount %q", req.UniqueAmount))
	}

	if err := credit(req.PlayerID, amount); err != nil {
		return r.markErrored(&req, fmt.Sprintf("credit failed: %v", err))
	}

	if err := r.db.Model(&req).Update("status", store.DepositCompleted).Error; err != nil {
		return fmt.Errorf("failed to mark deposit request %d completed: %w", requestID, err)
	}
	return nil
}

func (r *Reconciler) markErrored(req *store.DepositRequest, reason string) error {
	err := r.db.Model(req).Updates(map[string]interface{}{
		"status":        store.DepositErrored,
		"error_message": reason,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to mark deposit request %d errored: %w", req.ID, err)
	}
	return fmt.Errorf("deposit request %d errored: %s", req.ID, reason)
}

// SweepExpired transitions every pending request whose expiresAt has
// passed into expired (spec §4.H's periodic expiry sweep).
func (r *Reconciler) SweepExpired(now time.Time) (int64, error) {
	result := r.db.Model(&store.DepositRequest{}).
		Where("status = ? AND expires_at < ?", store.DepositPending, now).
		Update("status", store.DepositExpired)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to sweep expired deposit requests: %w", result.Error)
	}
	return result.RowsAffected, nil
}
