package EVMRPC

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"golockbridge/types"
)

// TxCall is an unsigned contract call
type TxCall struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Signer submits calls on behalf of an account. The gateway never sees keys.
// A non-zero hash returned with an error means the tx was signed and may
// have been broadcast.
type Signer interface {
	Address() common.Address
	Submit(ctx context.Context, call TxCall) (common.Hash, error)
}

// KeyedSigner signs with a locally held key. Used by the server process,
// wallets plug their own Signer instead.
type KeyedSigner struct {
	client  ChainClient
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	// nonce read and broadcast must not interleave between workflows
	mu sync.Mutex
}

func NewKeyedSigner(client ChainClient, hexKey string, chainID int64) (*KeyedSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("error instantiating private key: %w", err)
	}
	return &KeyedSigner{
		client:  client,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: big.NewInt(chainID),
	}, nil
}

func (s *KeyedSigner) Address() common.Address {
	return s.from
}

func (s *KeyedSigner) Submit(ctx context.Context, call TxCall) (common.Hash, error) {
	value := call.Value
	if value == nil {
		value = big.NewInt(0)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, err := s.client.PendingNonceAt(ctx, s.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: error getting nonce for wallet: %v", types.ErrTransactionRejected, err)
	}

	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: error getting suggested gas price: %v", types.ErrTransactionRejected, err)
	}

	to := call.To
	gas, err := s.client.EstimateGas(ctx, ethereum.CallMsg{From: s.from, To: &to, Data: call.Data, Value: value})
	if err != nil {
		// estimation runs the call, a failure here means it would revert
		return common.Hash{}, fmt.Errorf("%w: gas estimation failed: %v", types.ErrTransactionRejected, err)
	}
	gas += gas / 5

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     call.Data,
	})
	signed, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(s.chainID), s.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: signing failed: %v", types.ErrTransactionRejected, err)
	}

	// once signed the hash is fixed and the tx may have reached a node even
	// when the send errors, so the hash is returned with the error
	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return signed.Hash(), fmt.Errorf("%w: %s: %v", types.ErrBroadcastUncertain, signed.Hash().Hex(), err)
	}
	return signed.Hash(), nil
}
