package status

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"golockbridge/types"
)

const lockHex = "0x1c00000000000000000000000000000000000000000000000000000000000099"

type chainLocks map[common.Hash]*types.LockStatus

func (c chainLocks) ReadLockStatus(_ context.Context, id common.Hash) (*types.LockStatus, error) {
	if st, ok := c[id]; ok {
		return st, nil
	}
	return &types.LockStatus{Amount: big.NewInt(0)}, nil
}

type ledgerPing struct{ err error }

func (l ledgerPing) Ping(context.Context) error { return l.err }

type storedRecords map[string]*types.LockRecord

func (s storedRecords) FindByLockID(_ context.Context, id string) (*types.LockRecord, error) {
	return s[id], nil
}

type brokenStore struct{}

func (brokenStore) FindByLockID(context.Context, string) (*types.LockRecord, error) {
	return nil, errors.New("redis down")
}

func locked(completed bool) chainLocks {
	return chainLocks{common.HexToHash(lockHex): {
		Exists: true, Completed: completed, Amount: big.NewInt(994), Timestamp: time.Unix(1700000000, 0).UTC(),
	}}
}

func TestQuery_CompletedWithoutAnyRecord(t *testing.T) {
	svc := NewService(locked(true), ledgerPing{}, nil, zap.NewNop())

	st, err := svc.QueryByLockID(context.Background(), lockHex)
	require.NoError(t, err)
	require.Equal(t, types.StatusCompleted, st.Status)
	require.True(t, st.SourceCompleted)
	require.True(t, st.DestinationReachable)
	require.Equal(t, "994", st.Amount.String())
	require.Equal(t, int64(1700000000), st.LockedAt.Unix())
}

func TestQuery_DestinationUnreachable(t *testing.T) {
	svc := NewService(locked(false), ledgerPing{err: types.ErrDestinationUnavailable}, nil, zap.NewNop())

	st, err := svc.QueryByLockID(context.Background(), lockHex)
	require.NoError(t, err)
	require.Equal(t, types.StatusLocked, st.Status)
	require.False(t, st.DestinationReachable)
}

func TestQuery_EnrichedFromStore(t *testing.T) {
	id := common.HexToHash(lockHex).Hex()

	t.Run("stored completion upgrades", func(t *testing.T) {
		store := storedRecords{id: {ID: "r1", LockID: id, SourceTxHash: "0xabc", DestinationTxRef: "mint-1", Status: types.StatusCompleted}}
		st, err := NewService(locked(false), ledgerPing{}, store, zap.NewNop()).QueryByLockID(context.Background(), lockHex)
		require.NoError(t, err)
		require.Equal(t, types.StatusCompleted, st.Status)
		require.False(t, st.SourceCompleted)
		require.Equal(t, "0xabc", st.SourceTxHash)
		require.Equal(t, "mint-1", st.DestinationTxRef)
	})

	t.Run("stored failure is reported next to the chain status", func(t *testing.T) {
		detail := &types.ErrorDetail{Kind: types.KindMintTimeout, Recoverable: true}
		store := storedRecords{id: {ID: "r1", LockID: id, SourceTxHash: "0xabc", Status: types.StatusFailed, Error: detail}}
		st, err := NewService(locked(false), ledgerPing{}, store, zap.NewNop()).QueryByLockID(context.Background(), lockHex)
		require.NoError(t, err)
		require.Equal(t, types.StatusLocked, st.Status)
		require.Equal(t, detail, st.Error)
	})

	t.Run("store failure is tolerated", func(t *testing.T) {
		st, err := NewService(locked(true), ledgerPing{}, brokenStore{}, zap.NewNop()).QueryByLockID(context.Background(), lockHex)
		require.NoError(t, err)
		require.Equal(t, types.StatusCompleted, st.Status)
	})
}

func TestQuery_Errors(t *testing.T) {
	svc := NewService(chainLocks{}, ledgerPing{}, nil, zap.NewNop())

	_, err := svc.QueryByLockID(context.Background(), lockHex)
	require.ErrorIs(t, err, types.ErrLockNotFound)

	for _, bad := range []string{"", "0x1234", "zz", lockHex + "00"} {
		_, err := svc.QueryByLockID(context.Background(), bad)
		require.ErrorIs(t, err, types.ErrInvalidRequest, bad)
	}
}

func TestParseLockID_AcceptsBareHex(t *testing.T) {
	id, err := ParseLockID(lockHex[2:])
	require.NoError(t, err)
	require.Equal(t, common.HexToHash(lockHex), id)
}
