package lockevent

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"golockbridge/EVMRPC"
	"golockbridge/types"
)

var (
	bridge = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	token  = common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238")
	txHash = common.HexToHash("0xfeed")
	lockID = common.HexToHash("0x4c6f636b49440000000000000000000000000000000000000000000000000001")
)

func lockedLog(emitter common.Address, id common.Hash) *ethtypes.Log {
	return &ethtypes.Log{
		Address: emitter,
		Topics:  []common.Hash{LockedTopic, id, common.BytesToHash(token.Bytes()), common.HexToHash("0xa1")},
		TxHash:  txHash,
	}
}

func TestLockedTopicMatchesABI(t *testing.T) {
	require.Equal(t, EVMRPC.BridgeABI.Events["Locked"].ID, LockedTopic)
}

func TestExtract(t *testing.T) {
	transfer := &ethtypes.Log{
		Address: token,
		Topics:  []common.Hash{common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")},
		TxHash:  txHash,
	}

	t.Run("lock id from the bridge log", func(t *testing.T) {
		receipt := &ethtypes.Receipt{TxHash: txHash, Logs: []*ethtypes.Log{transfer, lockedLog(bridge, lockID)}}
		id, err := Extract(receipt, bridge)
		require.NoError(t, err)
		require.Equal(t, lockID, id)
	})

	t.Run("successful tx without the event", func(t *testing.T) {
		receipt := &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, TxHash: txHash, Logs: []*ethtypes.Log{transfer}}
		_, err := Extract(receipt, bridge)
		require.ErrorIs(t, err, types.ErrLockEventNotFound)
	})

	t.Run("same event from another contract is ignored", func(t *testing.T) {
		receipt := &ethtypes.Receipt{TxHash: txHash, Logs: []*ethtypes.Log{lockedLog(token, lockID)}}
		_, err := Extract(receipt, bridge)
		require.ErrorIs(t, err, types.ErrLockEventNotFound)
	})

	t.Run("removed log is ignored", func(t *testing.T) {
		removed := lockedLog(bridge, lockID)
		removed.Removed = true
		receipt := &ethtypes.Receipt{TxHash: txHash, Logs: []*ethtypes.Log{removed}}
		_, err := Extract(receipt, bridge)
		require.ErrorIs(t, err, types.ErrLockEventNotFound)
	})

	t.Run("log from another tx is ignored", func(t *testing.T) {
		other := lockedLog(bridge, lockID)
		other.TxHash = common.HexToHash("0xbeef")
		receipt := &ethtypes.Receipt{TxHash: txHash, Logs: []*ethtypes.Log{other}}
		_, err := Extract(receipt, bridge)
		require.ErrorIs(t, err, types.ErrLockEventNotFound)
	})

	t.Run("zero lock id", func(t *testing.T) {
		receipt := &ethtypes.Receipt{TxHash: txHash, Logs: []*ethtypes.Log{lockedLog(bridge, common.Hash{})}}
		_, err := Extract(receipt, bridge)
		require.ErrorIs(t, err, types.ErrLockEventNotFound)
	})

	t.Run("nil receipt", func(t *testing.T) {
		_, err := Extract(nil, bridge)
		require.ErrorIs(t, err, types.ErrLockEventNotFound)
	})
}
