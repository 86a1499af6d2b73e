package lockevent

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"golockbridge/types"
)

const LockedEventSignature = "Locked(bytes32,address,address,uint256,string)"

// LockedTopic is topic0 of every Locked log; topic1 is the lock id
var LockedTopic = crypto.Keccak256Hash([]byte(LockedEventSignature))

// Extract returns the lock id from the first Locked log the bridge emitted in receipt
func Extract(receipt *ethtypes.Receipt, bridge common.Address) (common.Hash, error) {
	if receipt == nil {
		return common.Hash{}, fmt.Errorf("%w: no receipt", types.ErrLockEventNotFound)
	}

	for _, log := range receipt.Logs {
		if log == nil || log.Removed {
			continue
		}
		if log.Address != bridge {
			continue
		}
		if len(log.Topics) < 2 || log.Topics[0] != LockedTopic {
			continue
		}
		if receipt.TxHash != (common.Hash{}) && log.TxHash != (common.Hash{}) && log.TxHash != receipt.TxHash {
			continue
		}

		lockID := log.Topics[1]
		if lockID == (common.Hash{}) {
			return common.Hash{}, fmt.Errorf("%w: zero lock id in tx %s", types.ErrLockEventNotFound, receipt.TxHash.Hex())
		}
		return lockID, nil
	}

	return common.Hash{}, fmt.Errorf("%w: tx %s has %d logs, none from bridge %s",
		types.ErrLockEventNotFound, receipt.TxHash.Hex(), len(receipt.Logs), bridge.Hex())
}
