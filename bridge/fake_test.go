package bridge

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"golockbridge/lockevent"
	"golockbridge/monitor"
	"golockbridge/types"
)

var (
	bridgeAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	usdcRoute  = types.TokenRoute{
		Symbol:              "USDC",
		SourceToken:         "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
		DestinationAsset:    "usdc",
		SourceDecimals:      6,
		DestinationDecimals: 6,
		RequiresApproval:    true,
	}
	fees = types.FeeSchedule{Components: []types.FeeComponent{
		{Name: "anchor", RateBps: 10},
		{Name: "protocol", RateBps: 50},
	}}
)

func lockReceipt(txHash, lockID common.Hash) *ethtypes.Receipt {
	return &ethtypes.Receipt{
		Status: ethtypes.ReceiptStatusSuccessful,
		TxHash: txHash,
		Logs: []*ethtypes.Log{{
			Address: bridgeAddr,
			Topics:  []common.Hash{lockevent.LockedTopic, lockID},
			TxHash:  txHash,
		}},
	}
}

type fakeSource struct {
	approvalErr error
	submitErr   error

	// returned with submitErr, a signed tx whose broadcast is unconfirmed
	submitHash common.Hash

	// receipt defaults to a receipt carrying a lock id derived from the tx hash
	receipt    func(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	lockStatus *types.LockStatus

	approvals atomic.Int32
	submits   atomic.Int32
}

func (f *fakeSource) BridgeAddress() common.Address { return bridgeAddr }

func (f *fakeSource) EnsureApproval(context.Context, types.TokenRoute, *big.Int) error {
	f.approvals.Add(1)
	return f.approvalErr
}

func (f *fakeSource) SubmitLock(context.Context, types.TokenRoute, *big.Int, string) (common.Hash, error) {
	if f.submitErr != nil {
		return f.submitHash, f.submitErr
	}
	n := f.submits.Add(1)
	return common.BigToHash(big.NewInt(int64(1000 + n))), nil
}

func (f *fakeSource) AwaitConfirmation(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	if f.receipt != nil {
		return f.receipt(ctx, txHash)
	}
	return lockReceipt(txHash, lockIDFor(txHash)), nil
}

func (f *fakeSource) ReadLockStatus(context.Context, common.Hash) (*types.LockStatus, error) {
	if f.lockStatus != nil {
		return f.lockStatus, nil
	}
	return &types.LockStatus{Amount: big.NewInt(0)}, nil
}

func lockIDFor(txHash common.Hash) common.Hash {
	id := txHash
	id[0] = 0x1c
	return id
}

type fakeMint struct {
	baselineErr error
	await       func(ctx context.Context, req monitor.MintRequest) (string, error)

	mu   sync.Mutex
	reqs []monitor.MintRequest
}

func (f *fakeMint) Baseline(context.Context, string, string) (*types.LedgerBalance, error) {
	if f.baselineErr != nil {
		return nil, f.baselineErr
	}
	return &types.LedgerBalance{Balance: big.NewInt(0)}, nil
}

func (f *fakeMint) AwaitMint(ctx context.Context, req monitor.MintRequest) (string, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.await != nil {
		return f.await(ctx, req)
	}
	return "mint-" + req.Recipient, nil
}

func (f *fakeMint) lastRequest() monitor.MintRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

// eventLog collects published events per record
type eventLog struct {
	mu     sync.Mutex
	events []types.StatusEvent
}

func (l *eventLog) Publish(ev types.StatusEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) statuses(id string) []types.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []types.Status
	for _, ev := range l.events {
		if ev.Record.ID == id {
			out = append(out, ev.Record.Status)
		}
	}
	return out
}

func newOrchestrator(source SourceChain, mint MintWatcher, events Publisher) *Orchestrator {
	return NewOrchestrator(Settings{
		Routes:        []types.TokenRoute{usdcRoute},
		Fees:          fees,
		MaxAttempts:   60,
		PollInterval:  time.Millisecond,
		RequireAmount: true,
	}, source, mint, events, zap.NewNop())
}

func bridgeRequest(amount int64) Request {
	return Request{Symbol: "usdc", Amount: big.NewInt(amount), Recipient: "dest-account"}
}
