package deposits

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgeledger/core/internal/store"
)

func newTestReconciler(t *testing.T) (*Reconciler, *store.DB) {
	db, err := store.Open("sqlite", ":memory:")
	require.NoError(t, err)
	return New(db, "0xHEDGE"), db
}

func TestDepositHappyPath(t *testing.T) {
	r, db := newTestReconciler(t)
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	req := store.DepositRequest{
		PlayerID: 1, Wallet: "0xA", UniqueAmount: "12345",
		Status: store.DepositPending, CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour),
	}
	require.NoError(t, db.Create(&req).Error)

	transfer := Transfer{
		To: "0xhedge", From: "0xA", Amount: big.NewInt(12345),
		TxHash: "0xT1", BlockTime: now.Add(1 * time.Hour),
	}
	matched, err := r.MatchTransfer(transfer)
	require.NoError(t, err)
	assert.Equal(t, store.DepositMatched, matched.Status)

	credited := 0
	creditFn := func(playerID uint, amount *big.Int) error {
		credited++
		return nil
	}
	require.NoError(t, r.CreditBalance(matched.ID, creditFn))
	require.NoError(t, r.CreditBalance(matched.ID, creditFn)) // idempotent second invocation

	assert.Equal(t, 1, credited, "balance must be credited exactly once")

	var final store.DepositRequest
	require.NoError(t, db.First(&final, matched.ID).Error)
	assert.Equal(t, store.DepositCompleted, final.Status)
}

func TestDepositWrongSenderLeavesRequestPending(t *testing.T) {
	r, db := newTestReconciler(t)
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	req := store.DepositRequest{
		PlayerID: 1, Wallet: "0xA", UniqueAmount: "12345",
		Status: store.DepositPending, ExpiresAt: now.Add(24 * time.Hour),
	}
	require.NoError(t, db.Create(&req).Error)

	transfer := Transfer{
		To: "0xhedge", From: "0xB", Amount: big.NewInt(12345),
		TxHash: "0xT2", BlockTime: now.Add(1 * time.Hour),
	}
	_, err := r.MatchTransfer(transfer)
	assert.True(t, errors.Is(err, ErrNoMatchingRequest))

	var unchanged store.DepositRequest
	require.NoError(t, db.First(&unchanged, req.ID).Error)
	assert.Equal(t, store.DepositPending, unchanged.Status)
	assert.Empty(t, unchanged.TxHash)
}

func TestSweepExpiredTransitionsPastDeadline(t *testing.T) {
	r, db := newTestReconciler(t)
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	req := store.DepositRequest{
		PlayerID: 1, Wallet: "0xA", UniqueAmount: "999",
		Status: store.DepositPending, ExpiresAt: now.Add(-1 * time.Hour),
	}
	require.NoError(t, db.Create(&req).Error)

	n, err := r.SweepExpired(now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var swept store.DepositRequest
	require.NoError(t, db.First(&swept, req.ID).Error)
	assert.Equal(t, store.DepositExpired, swept.Status)
}

func TestCreateDepositJittersAmountAndRejectsSecondPending(t *testing.T) {
	r, db := newTestReconciler(t)

	req, err := r.CreateDeposit(1, "0xA", big.NewInt(1_000_000), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, store.DepositPending, req.Status)

	amount, ok := new(big.Int).SetString(req.UniqueAmount, 10)
	require.True(t, ok)
	offset := new(big.Int).Sub(amount, big.NewInt(1_000_000))
	assert.True(t, offset.Sign() >= 0 && offset.Cmp(big.NewInt(jitterRange)) < 0,
		"unique amount must stay within [base, base+jitterRange)")

	var count int64
	require.NoError(t, db.Model(&store.DepositRequest{}).Where("player_id = ?", uint(1)).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = r.CreateDeposit(1, "0xA", big.NewInt(2_000_000), 24*time.Hour)
	assert.True(t, errors.Is(err, ErrPendingRequestExists))
}

func TestCreateDepositAvoidsCollisionWithAnotherPendingAmount(t *testing.T) {
	r, db := newTestReconciler(t)

	existing := store.DepositRequest{
		PlayerID: 2, Wallet: "0xB", UniqueAmount: "1000000",
		Status: store.DepositPending, ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	}
	require.NoError(t, db.Create(&existing).Error)

	req, err := r.CreateDeposit(3, "0xC", big.NewInt(1_000_000), 24*time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, existing.UniqueAmount, req.UniqueAmount)
}

func TestTransferOutsideWindowRecordsMismatchWithoutMatching(t *testing.T) {
	r, db := newTestReconciler(t)
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	req := store.DepositRequest{
		PlayerID: 1, Wallet: "0xA", UniqueAmount: "555",
		Status: store.DepositPending, ExpiresAt: now.Add(-1 * time.Minute),
	}
	require.NoError(t, db.Create(&req).Error)

	transfer := Transfer{To: "0xhedge", From: "0xA", Amount: big.NewInt(555), TxHash: "0xT3", BlockTime: now}
	_, err := r.MatchTransfer(transfer)
	assert.True(t, errors.Is(err, ErrNoMatchingRequest))

	var after store.DepositRequest
	require.NoError(t, db.First(&after, req.ID).Error)
	assert.Equal(t, store.DepositPending, after.Status)
	assert.NotEmpty(t, after.ErrorMessage)
}
