package EVMRPC

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// fakeChain answers ERC-20 and bridge view calls from in-memory state
type fakeChain struct {
	mu         sync.Mutex
	balances   map[common.Address]*big.Int
	allowances map[common.Address]*big.Int
	receipts   map[common.Hash]*ethtypes.Receipt
	lockStatus map[common.Hash][]interface{}
	head       uint64
	callErr    error
	sent       []*ethtypes.Transaction
	nonce      uint64

	receiptCalls int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		balances:   map[common.Address]*big.Int{},
		allowances: map[common.Address]*big.Int{},
		receipts:   map[common.Hash]*ethtypes.Receipt{},
		lockStatus: map[common.Hash][]interface{}{},
	}
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.callErr != nil {
		return nil, f.callErr
	}
	for _, parsed := range []abi.ABI{ERC20ABI, BridgeABI} {
		method, err := parsed.MethodById(msg.Data[:4])
		if err != nil {
			continue
		}
		args, err := method.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		switch method.Name {
		case "balanceOf":
			return method.Outputs.Pack(orZero(f.balances[args[0].(common.Address)]))
		case "allowance":
			return method.Outputs.Pack(orZero(f.allowances[args[0].(common.Address)]))
		case "lockStatus":
			id := common.Hash(args[0].([32]byte))
			if v, ok := f.lockStatus[id]; ok {
				return method.Outputs.Pack(v...)
			}
			return method.Outputs.Pack(false, big.NewInt(0), big.NewInt(0))
		}
	}
	return nil, fmt.Errorf("unexpected call %x", msg.Data[:4])
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func (f *fakeChain) TransactionReceipt(_ context.Context, h common.Hash) (*ethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiptCalls++
	if r, ok := f.receipts[h]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeChain) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeChain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	f.nonce++
	return nil
}

// recordingSigner hands out sequential hashes and keeps every call
type recordingSigner struct {
	mu    sync.Mutex
	from  common.Address
	calls []TxCall
	err   error

	// sendErr is returned together with the hash of a recorded call
	sendErr error
}

func (s *recordingSigner) Address() common.Address { return s.from }

func (s *recordingSigner) Submit(_ context.Context, call TxCall) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return common.Hash{}, s.err
	}
	s.calls = append(s.calls, call)
	return common.BigToHash(big.NewInt(int64(len(s.calls)))), s.sendErr
}

func (s *recordingSigner) methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, c := range s.calls {
		for _, parsed := range []abi.ABI{ERC20ABI, BridgeABI} {
			if m, err := parsed.MethodById(c.Data[:4]); err == nil {
				names = append(names, m.Name)
			}
		}
	}
	return names
}
