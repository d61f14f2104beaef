package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgeledger/core/internal/store"
)

func newTestStore(t *testing.T) (*Store, *store.DB) {
	t.Helper()
	db, err := store.Open("sqlite", ":memory:")
	require.NoError(t, err)
	return New(db), db
}

func TestSeedIsIdempotent(t *testing.T) {
	s, db := newTestStore(t)
	defer db.Close()

	first, err := s.Seed("swap-7", "swap", nil, 0, nil, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), first.LastIndexedBlock)

	second, err := s.Seed("swap-7", "swap", nil, 0, nil, 2000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), second.LastIndexedBlock, "seeding twice must not reset an existing checkpoint")
}

func TestUpsertNeverDecreasesLastIndexedBlock(t *testing.T) {
	s, db := newTestStore(t)
	defer db.Close()

	_, err := s.Seed("swap-7", "swap", nil, 0, nil, 0)
	require.NoError(t, err)

	advance := uint64(5000)
	require.NoError(t, s.Upsert("swap-7", Delta{LastIndexedBlock: &advance}))

	regress := uint64(100)
	err = s.Upsert("swap-7", Delta{LastIndexedBlock: &regress})
	assert.Error(t, err)

	cp, err := s.Get("swap-7")
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), cp.LastIndexedBlock)
}

func TestListByKind(t *testing.T) {
	s, db := newTestStore(t)
	defer db.Close()

	_, err := s.Seed("swap-1", "swap", nil, 0, nil, 0)
	require.NoError(t, err)
	_, err = s.Seed("swap-2", "swap", nil, 0, nil, 0)
	require.NoError(t, err)
	_, err = s.Seed("stake-1", "stake", nil, 0, nil, 0)
	require.NoError(t, err)

	swaps, err := s.ListByKind("swap")
	require.NoError(t, err)
	assert.Len(t, swaps, 2)
}

func TestResetRewindsToGenesisByDefault(t *testing.T) {
	s, db := newTestStore(t)
	defer db.Close()

	_, err := s.Seed("swap-7", "swap", nil, 0, nil, 500)
	require.NoError(t, err)

	advance := uint64(9000)
	require.NoError(t, s.Upsert("swap-7", Delta{LastIndexedBlock: &advance}))

	require.NoError(t, s.Reset("swap-7", nil))

	cp, err := s.Get("swap-7")
	require.NoError(t, err)
	assert.Equal(t, uint64(500), cp.LastIndexedBlock)
	assert.Equal(t, store.StatusIdle, cp.Status)
}

func TestResetToExplicitHeight(t *testing.T) {
	s, db := newTestStore(t)
	defer db.Close()

	_, err := s.Seed("swap-7", "swap", nil, 0, nil, 500)
	require.NoError(t, err)

	height := uint64(800)
	require.NoError(t, s.Reset("swap-7", &height))

	cp, err := s.Get("swap-7")
	require.NoError(t, err)
	assert.Equal(t, uint64(800), cp.LastIndexedBlock)
}

func TestGetReturnsNilForMissingCheckpoint(t *testing.T) {
	s, db := newTestStore(t)
	defer db.Close()

	cp, err := s.Get("does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, cp)
}
