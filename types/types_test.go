package types

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatus_CanAdvanceTo(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusLocking, true},
		{StatusLocking, StatusLocked, true},
		{StatusLocked, StatusMinting, true},
		{StatusMinting, StatusCompleted, true},
		{StatusPending, StatusFailed, true},
		{StatusLocking, StatusFailed, true},
		{StatusMinting, StatusFailed, true},
		{StatusPending, StatusLocked, false},
		{StatusLocking, StatusCompleted, false},
		{StatusLocked, StatusLocking, false},
		{StatusMinting, StatusPending, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusCompleted, false},
		{StatusFailed, StatusPending, false},
		{StatusPending, Status("bogus"), false},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("%s->%s", c.from, c.to), func(t *testing.T) {
			require.Equal(t, c.ok, c.from.CanAdvanceTo(c.to))
		})
	}
}

func TestKindOf(t *testing.T) {
	require.Equal(t, ErrorKind(""), KindOf(nil))
	require.Equal(t, KindMintTimeout, KindOf(fmt.Errorf("%w: after 60 attempts", ErrMintTimeout)))
	require.Equal(t, KindCancelled, KindOf(fmt.Errorf("%w: %w", ErrCancelled, context.Canceled)))
	require.Equal(t, KindInternal, KindOf(fmt.Errorf("boom")))

	wrapped := &WorkflowError{Record: LockRecord{ID: "x", SourceTxHash: "0xabc"}, Err: ErrLockEventNotFound}
	require.Equal(t, KindLockEventNotFound, KindOf(wrapped))
	require.Contains(t, wrapped.Error(), "0xabc")
}

func TestNewErrorDetail_Recoverable(t *testing.T) {
	require.True(t, NewErrorDetail(ErrMintTimeout).Recoverable)
	require.True(t, NewErrorDetail(ErrConfirmationTimeout).Recoverable)
	require.True(t, NewErrorDetail(ErrBroadcastUncertain).Recoverable)
	require.False(t, NewErrorDetail(ErrTransactionReverted).Recoverable)
	require.False(t, NewErrorDetail(ErrLockEventNotFound).Recoverable)
}

func TestLockRecord_CloneIsDeep(t *testing.T) {
	rec := LockRecord{
		ID:         "r1",
		Amount:     big.NewInt(10),
		Error:      &ErrorDetail{Kind: KindMintTimeout},
		Timestamps: map[Status]time.Time{StatusPending: time.Unix(1, 0)},
	}
	c := rec.Clone()
	c.Amount.SetInt64(99)
	c.Error.Kind = KindCancelled
	c.Timestamps[StatusLocking] = time.Unix(2, 0)

	require.Equal(t, int64(10), rec.Amount.Int64())
	require.Equal(t, KindMintTimeout, rec.Error.Kind)
	require.Len(t, rec.Timestamps, 1)
}

func TestFeeSchedule_TotalBps(t *testing.T) {
	s := FeeSchedule{Components: []FeeComponent{{Name: "anchor", RateBps: 10}, {Name: "protocol", RateBps: 50}}}
	require.Equal(t, uint64(60), s.TotalBps())
}
